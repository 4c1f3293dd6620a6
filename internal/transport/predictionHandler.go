package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/replicate"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/sse"
	"github.com/ds124wfegd/scribble-diffusion/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const defaultListLimit = 20

type PredictionHandler struct {
	service service.PredictionService
	hub     *sse.Hub
}

func NewPredictionHandler(svc service.PredictionService, hub *sse.Hub) *PredictionHandler {
	return &PredictionHandler{
		service: svc,
		hub:     hub,
	}
}

func (h *PredictionHandler) CreatePrediction(c *gin.Context) {
	var req entity.CreatePredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "prompt and image are required"})
		return
	}

	prediction, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		logrus.WithError(err).Error("Failed to create prediction")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": errorDetail(err)})
		return
	}

	if prediction.HasError() {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": prediction.ErrorDetail()})
		return
	}

	c.JSON(http.StatusCreated, prediction)
}

func (h *PredictionHandler) GetPrediction(c *gin.Context) {
	prediction, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, entity.ErrPredictionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": errorDetail(err)})
		return
	}

	if prediction.HasError() {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": prediction.ErrorDetail()})
		return
	}

	c.JSON(http.StatusOK, prediction)
}

func (h *PredictionHandler) ListPredictions(c *gin.Context) {
	limit := queryLimit(c, defaultListLimit)

	predictions, err := h.service.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to list predictions"})
		return
	}

	c.JSON(http.StatusOK, predictions)
}

// PredictionEvents streams updates of one prediction as Server-Sent Events.
func (h *PredictionHandler) PredictionEvents(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "live updates are disabled"})
		return
	}
	h.hub.Stream(c, c.Param("id"), nil)
}

type WebhookHandler struct {
	service service.PredictionService
}

func NewWebhookHandler(svc service.PredictionService) *WebhookHandler {
	return &WebhookHandler{service: svc}
}

func (h *WebhookHandler) ReplicateWebhook(c *gin.Context) {
	var prediction entity.Prediction
	if err := json.NewDecoder(c.Request.Body).Decode(&prediction); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid prediction payload"})
		return
	}

	if _, err := h.service.HandleWebhook(c.Request.Context(), &prediction); err != nil {
		if errors.Is(err, entity.ErrMissingPredictionID) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	c.Status(http.StatusOK)
}

func errorDetail(err error) string {
	var apiErr *replicate.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}

func queryLimit(c *gin.Context, fallback int) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
