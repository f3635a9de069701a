package models

// Tool names exposed by the server.
const (
	ToolSessionCreate = "web_agent_session_create"
	ToolStep          = "web_agent_step"
	ToolSnapshot      = "web_agent_snapshot"
	ToolSessionStop   = "web_agent_session_stop"
	ToolReplay        = "web_agent_replay"
)

// Viewport is the requested browser viewport.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CaptureSettings selects which observations a state packet includes. When
// the caller omits the block, or sends one with no include flag set, the
// session falls back to the capture profile's defaults (preserving
// MaxFrames in the second case).
type CaptureSettings struct {
	IncludeDOM     bool `json:"include_dom,omitempty"`
	IncludeAX      bool `json:"include_ax,omitempty"`
	IncludeNetwork bool `json:"include_network,omitempty"`
	IncludeFrames  bool `json:"include_frames,omitempty"`
	MaxFrames      *int `json:"max_frames,omitempty"`
}

// AnyInclude reports whether any include flag is set.
func (c *CaptureSettings) AnyInclude() bool {
	if c == nil {
		return false
	}
	return c.IncludeDOM || c.IncludeAX || c.IncludeNetwork || c.IncludeFrames
}

// ConfidenceGate thresholds region detections surfaced to the caller.
type ConfidenceGate struct {
	MinScore float64 `json:"min_score"`
}

// CreateInput is the argument record for web_agent_session_create.
type CreateInput struct {
	TargetURL        string           `json:"target_url"`
	Viewport         *Viewport        `json:"viewport,omitempty"`
	CaptureProfile   CaptureProfile   `json:"capture_profile,omitempty"`
	PolicyMode       PolicyMode       `json:"policy_mode,omitempty"`
	MaxSteps         int              `json:"max_steps,omitempty"`
	MaxDurationMS    int64            `json:"max_duration_ms,omitempty"`
	StorageStatePath string           `json:"storage_state_path,omitempty"`
	Capture          *CaptureSettings `json:"capture,omitempty"`
	ConfidenceGate   *ConfidenceGate  `json:"confidence_gate,omitempty"`
	MaxFrameBudgetMS int64            `json:"max_frame_budget_ms,omitempty"`
}

// StepInput is the argument record for web_agent_step. Action fields are
// flat: which ones are required depends on the action (see validate).
// X and Y are pointers because (0,0) is a valid coordinate.
type StepInput struct {
	SessionID         string           `json:"session_id"`
	Action            string           `json:"action"`
	URL               string           `json:"url,omitempty"`
	Selector          string           `json:"selector,omitempty"`
	Text              string           `json:"text,omitempty"`
	Key               string           `json:"key,omitempty"`
	Target            string           `json:"target,omitempty"`
	X                 *float64         `json:"x,omitempty"`
	Y                 *float64         `json:"y,omitempty"`
	DeltaX            *float64         `json:"delta_x,omitempty"`
	DeltaY            *float64         `json:"delta_y,omitempty"`
	TimeoutMS         int              `json:"timeout_ms,omitempty"`
	MaxActionsPerStep int              `json:"max_actions_per_step,omitempty"`
	Capture           *CaptureSettings `json:"capture,omitempty"`
}

// SnapshotInput is the argument record for web_agent_snapshot. Include
// flags are honored literally; absent means excluded.
type SnapshotInput struct {
	SessionID string           `json:"session_id"`
	Capture   *CaptureSettings `json:"capture,omitempty"`
}

// StopInput is the argument record for web_agent_session_stop.
type StopInput struct {
	SessionID string `json:"session_id"`
	Preserve  *bool  `json:"preserve,omitempty"`
}

// ReplayInput is the argument record for web_agent_replay.
type ReplayInput struct {
	TraceID    string `json:"trace_id"`
	StartIndex *int   `json:"start_index,omitempty"`
	EndIndex   *int   `json:"end_index,omitempty"`
}

// SessionCapabilities reports what a session can do, returned on create.
type SessionCapabilities struct {
	CaptureProfile CaptureProfile `json:"capture_profile"`
	MaxSteps       int            `json:"max_steps"`
	MaxDurationMS  int64          `json:"max_duration_ms"`
	Policy         PolicyMode     `json:"policy"`
	DOMFirst       bool           `json:"dom_first"`
	FrameCapture   bool           `json:"frame_capture"`
}

// CreateResult is returned by web_agent_session_create.
type CreateResult struct {
	SessionID    string              `json:"session_id"`
	TraceID      string              `json:"trace_id"`
	Capabilities SessionCapabilities `json:"session_capabilities"`
	InitialState *StatePacket        `json:"initial_state_snapshot"`
	FrameRef     *FrameRef           `json:"frame_ref,omitempty"`
}

// Stop cleanup outcomes.
const (
	CleanupCleaned  = "cleaned"
	CleanupRetained = "retained"
	CleanupNoop     = "noop"
)

// StopResult is returned by web_agent_session_stop. Stop is idempotent; a
// second stop reports CleanupNoop.
type StopResult struct {
	Status    string `json:"status"`
	Cleanup   string `json:"cleanup"`
	TracePath string `json:"tracePath,omitempty"`
}
