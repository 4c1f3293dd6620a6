package entity

import "errors"

var (
	// Prediction errors
	ErrPredictionNotFound  = errors.New("prediction not found")
	ErrMissingAPIToken     = errors.New("The REPLICATE_API_TOKEN environment variable is not set. See README.md for instructions on how to set it.")
	ErrMissingPredictionID = errors.New("prediction id is required")

	// Upload errors
	ErrInvalidDataURI = errors.New("invalid data URI")
	ErrInvalidImage   = errors.New("invalid image")
	ErrUploadTooLarge = errors.New("upload exceeds size limit")
	ErrUploadFailed   = errors.New("upload failed")

	// Scribble errors
	ErrScribbleNotFound = errors.New("scribble not found")
	ErrStorageDisabled  = errors.New("scribble storage is not configured")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
)
