package transport

import (
	"errors"
	"net/http"

	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/ds124wfegd/scribble-diffusion/internal/service"
	"github.com/gin-gonic/gin"
)

type ScribbleHandler struct {
	service service.ScribbleService
	baseURL string
}

func NewScribbleHandler(svc service.ScribbleService, baseURL string) *ScribbleHandler {
	return &ScribbleHandler{
		service: svc,
		baseURL: baseURL,
	}
}

func (h *ScribbleHandler) GetScribble(c *gin.Context) {
	scribble, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, detail := scribbleError(err)
		c.JSON(status, gin.H{"detail": detail})
		return
	}

	c.JSON(http.StatusOK, scribble)
}

func (h *ScribbleHandler) ListScribbles(c *gin.Context) {
	scribbles, err := h.service.ListRecent(c.Request.Context(), queryLimit(c, defaultListLimit))
	if err != nil {
		status, detail := scribbleError(err)
		c.JSON(status, gin.H{"detail": detail})
		return
	}

	c.JSON(http.StatusOK, scribbles)
}

// SharePage renders the page behind the "copy link" button.
func (h *ScribbleHandler) SharePage(c *gin.Context) {
	scribble, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, detail := scribbleError(err)
		c.String(status, detail)
		return
	}

	c.HTML(http.StatusOK, "scribble.html", gin.H{
		"Scribble": scribble,
		"ShareURL": h.baseURL + "/scribbles/" + scribble.UUID,
	})
}

func scribbleError(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrScribbleNotFound):
		return http.StatusNotFound, "Scribble not found"
	case errors.Is(err, entity.ErrStorageDisabled):
		return http.StatusServiceUnavailable, err.Error()
	default:
		return http.StatusInternalServerError, "Failed to load scribble"
	}
}
