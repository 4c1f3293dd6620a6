package entity

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

type Status string

const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// StructureScribble is the ControlNet conditioning used for canvas input.
const StructureScribble = "scribble"

func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Rank orders statuses along the lifecycle. Unknown statuses rank lowest.
func (s Status) Rank() int {
	switch s {
	case StatusStarting:
		return 1
	case StatusProcessing:
		return 2
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return 3
	}
	return 0
}

type PredictionInput struct {
	Prompt    string `json:"prompt"`
	Image     string `json:"image"`
	Structure string `json:"structure,omitempty"`
}

type Prediction struct {
	ID          string            `json:"id"`
	Version     string            `json:"version,omitempty"`
	Status      Status            `json:"status"`
	Input       PredictionInput   `json:"input"`
	Output      []string          `json:"output"`
	Error       interface{}       `json:"error"`
	Logs        string            `json:"logs,omitempty"`
	URLs        map[string]string `json:"urls,omitempty"`
	CreatedAt   *time.Time        `json:"created_at,omitempty"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// LatestOutput returns the most recent diffusion step, or "" while none exist.
func (p *Prediction) LatestOutput() string {
	if len(p.Output) == 0 {
		return ""
	}
	return p.Output[len(p.Output)-1]
}

// ErrorDetail renders the upstream error field as a single message.
func (p *Prediction) ErrorDetail() string {
	switch e := p.Error.(type) {
	case nil:
		return ""
	case string:
		return e
	case map[string]interface{}:
		for _, key := range []string{"detail", "message"} {
			if msg, ok := e[key].(string); ok && msg != "" {
				return msg
			}
		}
	}
	data, err := json.Marshal(p.Error)
	if err != nil {
		return fmt.Sprint(p.Error)
	}
	return string(data)
}

func (p *Prediction) HasError() bool {
	return p.ErrorDetail() != ""
}

// Supersedes reports whether p should replace old in a cache.
// Status never regresses; at equal rank the copy with more output wins.
// An update that repeats the cached status, output, error and completion
// does not supersede it.
func (p *Prediction) Supersedes(old *Prediction) bool {
	if old == nil {
		return true
	}
	newRank, oldRank := p.Status.Rank(), old.Status.Rank()
	if newRank != oldRank {
		return newRank > oldRank
	}
	if len(p.Output) != len(old.Output) {
		return len(p.Output) > len(old.Output)
	}
	return p.Status != old.Status ||
		!slices.Equal(p.Output, old.Output) ||
		p.ErrorDetail() != old.ErrorDetail() ||
		(p.CompletedAt != nil && old.CompletedAt == nil)
}

type CreatePredictionRequest struct {
	Prompt    string `json:"prompt" binding:"required"`
	Image     string `json:"image" binding:"required"`
	Structure string `json:"structure"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}
