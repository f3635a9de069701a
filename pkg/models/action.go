package models

// Action result statuses.
const (
	ActionStatusCompleted    = "completed"
	ActionStatusFailed       = "failed"
	ActionStatusPolicyDenied = "policy_denied"
)

// Next-step recommendations returned to the caller. Advisory only; the
// server never retries autonomously.
const (
	RecommendContinue          = "continue"
	RecommendRetry             = "retry"
	RecommendFallbackOrAbandon = "fallback_or_abandon"
	RecommendHalt              = "halt"
)

// Point is a viewport coordinate pair.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ActionResult is the structural outcome of exactly one executed action.
// Failures are returned here, never thrown across the tool boundary.
type ActionResult struct {
	Action      string `json:"action"`
	Success     bool   `json:"success"`
	Status      string `json:"status"`
	Target      string `json:"target,omitempty"`
	Selector    string `json:"selector,omitempty"`
	Coordinates *Point `json:"coordinates,omitempty"`
	Detail      string `json:"detail,omitempty"`
	ElapsedMS   int64  `json:"elapsed_ms"`
}

// StepResult is the composed outcome of one step: the post-state packet,
// the action outcome, and advisory metadata.
type StepResult struct {
	State              *StatePacket  `json:"state"`
	FrameRefs          []FrameRef    `json:"frame_refs"`
	ActionResult       *ActionResult `json:"action_result"`
	ErrorCodes         []string      `json:"error_codes"`
	NextRecommendation string        `json:"next_recommendation"`
	LatencyMS          int64         `json:"latency_ms"`
	QueueHealth        QueueHealth   `json:"queue_health"`
}
