package client

import "github.com/Trygon117/ProjectCartesian/internal/status"

// Status is the body returned by GET {base}/status.
type Status struct {
	status.Snapshot
	Label string `json:"label"`
}

// Health is the body returned by GET {base}/healthz.
type Health struct {
	OK    bool         `json:"ok"`
	Phase status.Phase `json:"phase"`
	Error string       `json:"error,omitempty"`
}

// ErrorResponse represents an error returned by the API
type ErrorResponse struct {
	Error string `json:"error"`
}
