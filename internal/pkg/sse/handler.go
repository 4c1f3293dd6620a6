package sse

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Stream writes every message published on topic to the client as an SSE "data:" frame
// until the request context ends. initial, if not nil, is sent first.
func (h *Hub) Stream(c *gin.Context, topic string, initial []byte) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "streaming unsupported"})
		return
	}

	// поток живёт дольше WriteTimeout сервера
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	msgCh := make(chan []byte, 16)
	h.Subscribe(msgCh, topic)
	defer h.Unsubscribe(msgCh, topic)

	// комментарий-пинг, некоторые прокси иначе держат ответ в буфере
	fmt.Fprint(c.Writer, ": connected\n\n")
	if initial != nil {
		fmt.Fprintf(c.Writer, "data: %s\n\n", initial)
	}
	flusher.Flush()

	notify := c.Request.Context().Done()
	for {
		select {
		case <-notify:
			return
		case msg := <-msgCh:
			fmt.Fprintf(c.Writer, "data: %s\n\n", msg)
			flusher.Flush()
			logrus.WithField("topic", topic).Debug("SSE message sent")
		}
	}
}
