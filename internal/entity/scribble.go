package entity

import "time"

// Scribble is the shareable record of a succeeded prediction.
type Scribble struct {
	UUID           string    `json:"uuid"`
	PredictionID   string    `json:"prediction_id"`
	Prompt         string    `json:"prompt"`
	InputImageURL  string    `json:"input_image_url"`
	OutputImageURL string    `json:"output_image_url"`
	CreatedAt      time.Time `json:"created_at"`
}

type UploadRequest struct {
	Scribble string `json:"scribble"`
}

type UploadResponse struct {
	FileURL string `json:"fileUrl"`
}

const (
	EventPredictionCreated = "prediction.created"
	EventPredictionUpdated = "prediction.updated"

	SourceAPI       = "api"
	SourceWebhook   = "webhook"
	SourcePoll      = "poll"
	SourceReconcile = "reconcile"
)

type PredictionEvent struct {
	Type       string      `json:"type"`
	Source     string      `json:"source"`
	Prediction *Prediction `json:"prediction"`
	ReceivedAt time.Time   `json:"received_at"`
}

// ReconcileTask is carried by the delayed reconciliation queue.
type ReconcileTask struct {
	PredictionID string `json:"prediction_id"`
	Attempt      int    `json:"attempt"`
}
