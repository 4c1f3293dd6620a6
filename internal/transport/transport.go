package transport

import (
	"net/http"
	"time"

	"github.com/ds124wfegd/scribble-diffusion/internal/metrics"
	"github.com/ds124wfegd/scribble-diffusion/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Prediction *PredictionHandler
	Webhook    *WebhookHandler
	Upload     *UploadHandler
	Scribble   *ScribbleHandler
}

type RouteOptions struct {
	// glob for html templates; empty skips loading them
	Templates string
	// directory served under /uploads; empty disables it
	UploadsDir     string
	RequestTimeout time.Duration
	Health         func() gin.H
}

func InitRoutes(h *Handlers, opts RouteOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger(), metrics.Middleware(), middleware.CORS())

	if opts.Templates != "" {
		router.LoadHTMLGlob(opts.Templates)
	}
	if opts.UploadsDir != "" {
		router.Static("/uploads", opts.UploadsDir)
	}

	api := router.Group("/api")
	api.Use(middleware.Timeout(opts.RequestTimeout))
	{
		api.POST("/uploads", h.Upload.UploadScribble)

		api.POST("/predictions", h.Prediction.CreatePrediction)
		api.GET("/predictions", h.Prediction.ListPredictions)
		api.GET("/predictions/:id", h.Prediction.GetPrediction)

		api.POST("/replicate-webhook", h.Webhook.ReplicateWebhook)

		api.GET("/scribbles", h.Scribble.ListScribbles)
		api.GET("/scribbles/:id", h.Scribble.GetScribble)
	}

	// без таймаута: поток открыт, пока клиент не отключится
	router.GET("/api/predictions/:id/events", h.Prediction.PredictionEvents)

	router.GET("/scribbles/:id", h.Scribble.SharePage)

	router.GET("/metrics", metrics.Handler())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		status := gin.H{
			"status":  "ok",
			"service": "scribble-diffusion",
		}
		if opts.Health != nil {
			for k, v := range opts.Health() {
				status[k] = v
			}
		}
		c.JSON(http.StatusOK, status)
	})

	return router
}
