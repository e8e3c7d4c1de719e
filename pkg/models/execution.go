package models

import (
	"strings"
	"time"
)

// Status is the canonical lifecycle state of a provider execution.
// Provider-reported tokens are normalized through ParseStatus before
// anything outside the gateway sees them.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusError     Status = "error"
	// StatusTimeout is assigned locally when the polling budget is
	// exhausted; the provider never reports it.
	StatusTimeout Status = "timeout"
	// StatusUnknown is the initial local value before any status fetch.
	StatusUnknown Status = "unknown"
)

// ParseStatus normalizes a raw provider status token: surrounding
// whitespace and stray quotes are stripped and the result is lowercased.
// An empty token maps to StatusUnknown; unrecognized non-empty tokens pass
// through so callers can still log what the provider actually said.
func ParseStatus(raw string) Status {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"'`)
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return StatusUnknown
	}
	return Status(s)
}

// IsTerminal reports whether no further polling can change the outcome.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusError, StatusTimeout:
		return true
	}
	return false
}

// IsFailure reports whether the provider declared the execution failed.
// StatusTimeout is deliberately excluded: it means we stopped waiting,
// not that the provider gave up.
func (s Status) IsFailure() bool {
	return s == StatusFailed || s == StatusError
}

// Execution is the local, ephemeral view of one provider-side run. The
// provider owns durable history; this is reconstructed per query.
type Execution struct {
	ID          string         `json:"execution_id"`
	Status      Status         `json:"status"`
	Output      string         `json:"output,omitempty"`
	ErrorDetail string         `json:"error,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// DeviceTryCount is one per-device quota row. TryCountLeft is only ever
// overwritten via an explicit upsert, never decremented on job submission.
type DeviceTryCount struct {
	ID           int64     `json:"id"`
	DeviceID     string    `json:"device_id"`
	TryCountLeft int       `json:"try_count_left"`
	LastUpdated  time.Time `json:"last_updated"`
}
