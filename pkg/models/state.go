// Package models provides the wire-visible domain types for the webagent
// tool server: state packets, frame references, network events, action
// results, and replay records. Every type here crosses the serialization
// boundary, so JSON tags are part of the contract.
package models

// CaptureProfile selects which observations a session includes by default.
type CaptureProfile string

const (
	// ProfileAdaptive includes DOM, accessibility, network, and frames, and
	// enables the adaptive frame throttle with burst-on-drift.
	ProfileAdaptive CaptureProfile = "adaptive"

	// ProfileDOMOnly disables frame capture entirely.
	ProfileDOMOnly CaptureProfile = "dom_only"

	// ProfileFramesOnly excludes DOM and accessibility by default.
	ProfileFramesOnly CaptureProfile = "frames_only"
)

// PolicyMode selects the action policy adapter for a session.
type PolicyMode string

const (
	// PolicyModelOwnsAction lets every action through.
	PolicyModelOwnsAction PolicyMode = "model_owns_action"

	// PolicyDeterministic additionally blocks unsafe-scheme navigations.
	PolicyDeterministic PolicyMode = "deterministic"
)

// Change tokens derived by comparing consecutive state tokens.
const (
	ChangeInit    = "INIT"
	ChangeNone    = "NO_CHANGE"
	ChangeChanged = "STATE_CHANGED"
)

// Bounds is an integer pixel rectangle. Components are clamped to >= 0
// before they leave the DOM evaluator.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DOMElement summarizes one interactive element from the page.
type DOMElement struct {
	Tag    string `json:"tag"`
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
	Text   string `json:"text"`
	Bounds Bounds `json:"bounds"`
}

// DOMSummary holds category counts plus the top interactive elements.
type DOMSummary struct {
	InteractiveCount int          `json:"interactive_count"`
	TextInputs       int          `json:"text_inputs"`
	Buttons          int          `json:"buttons"`
	Links            int          `json:"links"`
	Iframes          int          `json:"iframes"`
	CanvasNodes      int          `json:"canvas_nodes"`
	TopElements      []DOMElement `json:"top_elements"`
}

// RegionDetection is a synthesized detection over a DOM element's bounds.
type RegionDetection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Bounds     Bounds  `json:"bounds"`
}

// QueueHealth reports the frame ring's observable state at sampling time.
type QueueHealth struct {
	Depth   int   `json:"depth"`
	Max     int   `json:"max"`
	Dropped int64 `json:"dropped"`
	Pending int64 `json:"pending"`
}

// StatePacket is the normalized observation returned by every tool call that
// touches the page. StateToken is a content hash used for cheap change
// detection; ChangeTokens compares it to the previous packet from the same
// builder.
type StatePacket struct {
	StateToken       string            `json:"state_token"`
	Timestamp        int64             `json:"timestamp"`
	SessionID        string            `json:"session_id"`
	URL              string            `json:"url"`
	Title            string            `json:"title"`
	DOM              *DOMSummary       `json:"dom,omitempty"`
	Accessibility    any               `json:"accessibility,omitempty"`
	NetworkEvents    []NetworkEvent    `json:"network_events"`
	FrameRefs        []FrameRef        `json:"frame_refs"`
	RegionDetections []RegionDetection `json:"region_detections,omitempty"`
	ChangeTokens     []string          `json:"change_tokens"`
	QueueHealth      QueueHealth       `json:"queue_health"`
}
