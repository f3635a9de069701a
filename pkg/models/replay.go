package models

// Replay event types. Events for one trace form a totally ordered sequence
// with dense 1-based indices.
const (
	ReplayCreate   = "create"
	ReplayStep     = "step"
	ReplaySnapshot = "snapshot"
	ReplayStop     = "stop"
)

// ReplayEvent is one line of a trace's append-only event log.
type ReplayEvent struct {
	Type    string         `json:"type"`
	Index   int            `json:"index"`
	At      int64          `json:"at"`
	Payload map[string]any `json:"payload"`
}

// TraceManifest is a trace log reconstructed from disk. Replay means
// audit-reconstruction of observed events, not re-execution.
type TraceManifest struct {
	TraceID   string        `json:"trace_id"`
	CreatedAt int64         `json:"created_at"`
	SessionID string        `json:"session_id,omitempty"`
	Events    []ReplayEvent `json:"events"`
}

// TraceIndex is the sidecar index persisted next to each trace log.
type TraceIndex struct {
	TraceID   string `json:"traceId"`
	Total     int    `json:"total"`
	UpdatedAt int64  `json:"updated_at"`
}
