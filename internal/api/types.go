package api

import (
	stdcontext "context"
	"errors"
	"time"
)

// ErrNotStarted is returned by a StatusSource before the child is spawned.
var ErrNotStarted = errors.New("supervisor not started")

// Status describes the supervisor and its child at a point in time.
type Status struct {
	Name        string    `json:"name"`
	Session     string    `json:"session"`
	State       string    `json:"state"`
	PID         int       `json:"pid"`
	ChildUp     bool      `json:"child_up"`
	Binary      string    `json:"binary"`
	LogPath     string    `json:"log_path"`
	StartedAt   time.Time `json:"started_at"`
	GeneratedAt time.Time `json:"generated_at"`
}

// StatusSource exposes supervisor state to the status server.
type StatusSource interface {
	Status(stdcontext.Context) (*Status, error)
}
