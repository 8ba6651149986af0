package model

import "time"

// Progress event types
const (
	EventTypeStarted   = "started"
	EventTypeProgress  = "progress"
	EventTypeCompleted = "completed"
	EventTypeError     = "error"
)

// WebSocket control message types
const (
	WSMessageTypeConnected = "connected"
	WSMessageTypePing      = "ping"
	WSMessageTypePong      = "pong"
	WSMessageTypeStatus    = "status"
)

// ProgressEvent is an immutable snapshot emitted on phase transitions
type ProgressEvent struct {
	Type                  string        `json:"type"`
	JobID                 string        `json:"job_id"`
	Phase                 Phase         `json:"phase,omitempty"`
	Status                ContentStatus `json:"status"`
	ProgressPercent       int           `json:"progress_percent"`
	Message               string        `json:"message"`
	Timestamp             time.Time     `json:"timestamp"`
	Topic                 string        `json:"topic,omitempty"`
	PhasesCompleted       *int          `json:"phases_completed,omitempty"`
	TotalPhases           int           `json:"total_phases,omitempty"`
	Error                 string        `json:"error,omitempty"`
	FailedPhase           Phase         `json:"failed_phase,omitempty"`
	ProcessingTimeSeconds *float64      `json:"processing_time_seconds,omitempty"`
	ContentPreview        string        `json:"content_preview,omitempty"`
}

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSControlMessage is sent by the server outside the event stream
type WSControlMessage struct {
	Type      string    `json:"type"`
	JobID     string    `json:"job_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WSStatusMessage answers a client's status request
type WSStatusMessage struct {
	Type      string        `json:"type"`
	JobID     string        `json:"job_id"`
	Phase     Phase         `json:"phase,omitempty"`
	PhaseIdx  int           `json:"phase_idx"`
	Status    ContentStatus `json:"status,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
