package ports

import (
	"context"
	"time"
)

// InflightStatus is the lifecycle state of a generation request.
type InflightStatus string

const (
	InflightRunning   InflightStatus = "running"
	InflightDone      InflightStatus = "done"
	InflightError     InflightStatus = "error"
	InflightCancelled InflightStatus = "cancelled"
)

// InflightState is the registry's view of one request.
type InflightState struct {
	RequestID string         `json:"request_id"`
	Backend   string         `json:"backend"`
	Status    InflightStatus `json:"status"`
	Error     string         `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_ts"`
	UpdatedAt time.Time `json:"updated_ts"`
}

// InflightRegistry tracks running engine requests so they can be aborted by
// id. Implementations must be concurrency-safe.
type InflightRegistry interface {
	// Register records a running request and its cancel func. Registering an
	// id that is already running returns an error.
	Register(req RegisterInflightRequest) (InflightState, error)

	// Finish moves a request to a terminal status and drops its cancel func.
	Finish(req FinishInflightRequest) (InflightState, bool)

	// Abort cancels a running request. It reports whether the request was running.
	Abort(requestID string) (InflightState, bool)

	Get(requestID string) (InflightState, bool)

	// Running returns the ids of all running requests.
	Running() []string
}

type RegisterInflightRequest struct {
	RequestID string
	Backend   string
	Cancel    context.CancelFunc
}

type FinishInflightRequest struct {
	RequestID string
	Status    InflightStatus
	Error     string
}
