package sse

import (
	"context"
	"sync"
)

// Hub fans out messages to subscribers grouped by topic (a prediction id).
// All mutations of topics happen on the Run goroutine.
type Hub struct {
	// subscribers own their channels; the hub never closes them
	topics map[string]map[chan []byte]struct{}

	subscribe   chan subscription
	unsubscribe chan subscription
	publish     chan topicMessage

	mu sync.RWMutex
}

type subscription struct {
	ch    chan []byte
	topic string
	done  chan struct{}
}

type topicMessage struct {
	topic string
	msg   []byte
}

// NewHub буферизует публикации, чтобы короткий всплеск не блокировал отправителя
func NewHub() *Hub {
	return &Hub{
		topics:      make(map[string]map[chan []byte]struct{}),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		publish:     make(chan topicMessage, 100),
	}
}

// Run processes subscriptions and publications until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-h.subscribe:
			h.mu.Lock()
			subs, ok := h.topics[s.topic]
			if !ok {
				subs = make(map[chan []byte]struct{})
				h.topics[s.topic] = subs
			}
			subs[s.ch] = struct{}{}
			h.mu.Unlock()
			close(s.done)
		case s := <-h.unsubscribe:
			h.mu.Lock()
			if subs, ok := h.topics[s.topic]; ok {
				delete(subs, s.ch)
				if len(subs) == 0 {
					delete(h.topics, s.topic)
				}
			}
			h.mu.Unlock()
			close(s.done)
		case tm := <-h.publish:
			h.mu.RLock()
			for ch := range h.topics[tm.topic] {
				select {
				case ch <- tm.msg:
				default:
					// slow reader, drop
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues msg for every subscriber of topic.
func (h *Hub) Publish(topic string, msg []byte) {
	h.publish <- topicMessage{topic: topic, msg: msg}
}

// Subscribe returns once the channel is registered, so nothing published afterwards is missed.
func (h *Hub) Subscribe(ch chan []byte, topic string) {
	done := make(chan struct{})
	h.subscribe <- subscription{ch: ch, topic: topic, done: done}
	<-done
}

func (h *Hub) Unsubscribe(ch chan []byte, topic string) {
	done := make(chan struct{})
	h.unsubscribe <- subscription{ch: ch, topic: topic, done: done}
	<-done
}

// Subscribers reports how many channels listen on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
