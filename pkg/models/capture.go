package models

// Network event id prefixes distinguish the three real subtypes. Synthetic
// action events use "{epoch_ms}:{action}" ids instead.
const (
	NetworkRequestPrefix  = "r_"
	NetworkResponsePrefix = "p_"
	NetworkFailurePrefix  = "f_"
)

// Network event types for synthetic action entries.
const (
	NetworkTypeAction       = "action"
	NetworkTypeActionFailed = "action_failed"
)

// NetworkEvent records one request, response, failure, or synthetic action
// entry on the session's network ring. Synthetic entries interleave causally
// with real network activity.
type NetworkEvent struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Method      string `json:"method"`
	Status      int    `json:"status,omitempty"`
	Type        string `json:"type,omitempty"`
	Time        int64  `json:"time"`
	FailureText string `json:"failureText,omitempty"`
}

// FrameRef is an immutable reference to a captured screencast frame. The
// JPEG artifact lives on disk at Path; when the ref is evicted from the ring
// the artifact may remain until a janitor reclaims it.
type FrameRef struct {
	ID        string         `json:"id"`
	Timestamp int64          `json:"timestamp"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	MIME      string         `json:"mime"`
	Checksum  string         `json:"checksum"`
	Path      string         `json:"path"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
