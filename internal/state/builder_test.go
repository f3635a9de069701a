package state

import (
	"errors"
	"testing"
	"time"

	"github.com/haasonsaas/webagent/internal/ring"
	"github.com/haasonsaas/webagent/pkg/models"
)

type fakePage struct {
	url      string
	title    string
	titleErr error
	evalOut  interface{}
	evalErr  error
	evals    int
}

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) Title() (string, error) { return p.title, p.titleErr }

func (p *fakePage) Evaluate(expression string, arg ...interface{}) (interface{}, error) {
	p.evals++
	return p.evalOut, p.evalErr
}

type fakeFrames struct {
	refs   []models.FrameRef
	health models.QueueHealth
}

func (f *fakeFrames) Recent(n int) []models.FrameRef {
	if n >= len(f.refs) {
		return append([]models.FrameRef{}, f.refs...)
	}
	return append([]models.FrameRef{}, f.refs[len(f.refs)-n:]...)
}

func (f *fakeFrames) Health() models.QueueHealth { return f.health }

func domEvalResult() map[string]interface{} {
	return map[string]interface{}{
		"interactive_count": 3.0,
		"text_inputs":       1.0,
		"buttons":           2.0,
		"links":             0.0,
		"iframes":           0.0,
		"canvas_nodes":      0.0,
		"top_elements": []interface{}{
			map[string]interface{}{
				"tag": "button", "id": "go", "text": "Go",
				"bounds": map[string]interface{}{"x": 10.0, "y": 20.0, "width": 80.0, "height": 24.0},
			},
			map[string]interface{}{
				"tag": "input", "id": "", "text": "",
				"bounds": map[string]interface{}{"x": 0.0, "y": 0.0, "width": 120.0, "height": 24.0},
			},
		},
	}
}

func allOptions() Options {
	return Options{IncludeDOM: true, IncludeAX: true, IncludeNetwork: true, IncludeFrames: true}
}

func newTestBuilder(page *fakePage, frames FrameSource) (*Builder, *ring.Ring[models.NetworkEvent]) {
	network := ring.New[models.NetworkEvent](500)
	b := NewBuilder(page, func() (any, error) {
		return map[string]any{"role": "WebArea"}, nil
	}, network, frames, nil)
	b.SetNowFunc(func() time.Time { return time.UnixMilli(7_000) })
	return b, network
}

func TestBuildFullPacket(t *testing.T) {
	page := &fakePage{url: "https://example.com", title: "Example", evalOut: domEvalResult()}
	frames := &fakeFrames{
		refs:   []models.FrameRef{{ID: "f1"}, {ID: "f2"}},
		health: models.QueueHealth{Depth: 2, Max: 8, Dropped: 1},
	}
	b, network := newTestBuilder(page, frames)
	network.Push(models.NetworkEvent{ID: "r_1", URL: "https://example.com/a"})
	network.Push(models.NetworkEvent{ID: "p_1", Status: 200})

	packet, err := b.Build(allOptions())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if packet.URL != "https://example.com" || packet.Title != "Example" {
		t.Errorf("identity = %q %q", packet.URL, packet.Title)
	}
	if packet.Timestamp != 7_000 {
		t.Errorf("timestamp = %d", packet.Timestamp)
	}
	if packet.DOM == nil || packet.DOM.InteractiveCount != 3 || len(packet.DOM.TopElements) != 2 {
		t.Fatalf("dom = %+v", packet.DOM)
	}
	if packet.Accessibility == nil {
		t.Error("accessibility missing")
	}
	if len(packet.NetworkEvents) != 2 {
		t.Errorf("network events = %d", len(packet.NetworkEvents))
	}
	if len(packet.FrameRefs) != 2 {
		t.Errorf("frame refs = %d", len(packet.FrameRefs))
	}
	if packet.QueueHealth.Dropped != 1 || packet.QueueHealth.Max != 8 {
		t.Errorf("queue health = %+v", packet.QueueHealth)
	}
	if len(packet.StateToken) != 40 {
		t.Errorf("state token = %q, want 40 hex chars", packet.StateToken)
	}
}

func TestBuildRegionDetections(t *testing.T) {
	page := &fakePage{url: "https://example.com", title: "t", evalOut: domEvalResult()}
	b, _ := newTestBuilder(page, &fakeFrames{})

	packet, err := b.Build(Options{IncludeDOM: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(packet.RegionDetections) != 2 {
		t.Fatalf("regions = %d, want 2", len(packet.RegionDetections))
	}
	first := packet.RegionDetections[0]
	if first.Label != "button#go" {
		t.Errorf("label = %q, want button#go", first.Label)
	}
	if first.Confidence != 0.78 {
		t.Errorf("confidence = %v", first.Confidence)
	}
	if second := packet.RegionDetections[1]; second.Label != "input" {
		t.Errorf("label = %q, want bare tag when id is empty", second.Label)
	}
}

func TestChangeTokenSequence(t *testing.T) {
	page := &fakePage{url: "https://example.com", title: "t"}
	b, network := newTestBuilder(page, &fakeFrames{})

	first, _ := b.Build(Options{IncludeNetwork: true})
	if len(first.ChangeTokens) != 1 || first.ChangeTokens[0] != models.ChangeInit {
		t.Errorf("first tokens = %v, want [INIT]", first.ChangeTokens)
	}

	second, _ := b.Build(Options{IncludeNetwork: true})
	if second.ChangeTokens[0] != models.ChangeNone {
		t.Errorf("second tokens = %v, want [NO_CHANGE]", second.ChangeTokens)
	}
	if second.StateToken != first.StateToken {
		t.Error("state token changed without any observed change")
	}

	network.Push(models.NetworkEvent{ID: "r_9"})
	third, _ := b.Build(Options{IncludeNetwork: true})
	if third.ChangeTokens[0] != models.ChangeChanged {
		t.Errorf("third tokens = %v, want [STATE_CHANGED]", third.ChangeTokens)
	}
	if third.StateToken == second.StateToken {
		t.Error("state token should change with new network traffic")
	}
}

func TestBuildToleratesFailures(t *testing.T) {
	page := &fakePage{
		url:      "https://example.com",
		titleErr: errors.New("detached"),
		evalErr:  errors.New("execution context destroyed"),
	}
	network := ring.New[models.NetworkEvent](10)
	axErr := func() (any, error) { return nil, errors.New("no ax tree") }
	b := NewBuilder(page, axErr, network, &fakeFrames{}, nil)

	packet, err := b.Build(allOptions())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if packet.Title != "" {
		t.Errorf("title = %q, want empty on error", packet.Title)
	}
	if packet.DOM != nil {
		t.Error("dom should be absent when the evaluator fails")
	}
	if packet.Accessibility != nil {
		t.Error("accessibility should be absent when the provider fails")
	}
	if packet.NetworkEvents == nil || packet.FrameRefs == nil {
		t.Error("collections should be empty, not nil")
	}
}

func TestBuildFrameTake(t *testing.T) {
	refs := make([]models.FrameRef, 10)
	for i := range refs {
		refs[i] = models.FrameRef{ID: string(rune('a' + i))}
	}
	page := &fakePage{url: "u"}
	b, _ := newTestBuilder(page, &fakeFrames{refs: refs})

	packet, _ := b.Build(Options{IncludeFrames: true})
	if len(packet.FrameRefs) != 6 {
		t.Errorf("default take = %d, want 6", len(packet.FrameRefs))
	}

	n := 3
	packet, _ = b.Build(Options{IncludeFrames: true, MaxFrames: &n})
	if len(packet.FrameRefs) != 3 {
		t.Errorf("take = %d, want 3", len(packet.FrameRefs))
	}

	zero := 0
	packet, _ = b.Build(Options{IncludeFrames: true, MaxFrames: &zero})
	if len(packet.FrameRefs) != 1 {
		t.Errorf("take = %d, want floor of 1", len(packet.FrameRefs))
	}
}

func TestStateTokenOmitsDOMWhenAbsent(t *testing.T) {
	with := StateToken("u", "t", &models.DOMSummary{Buttons: 1}, 0, 0)
	without := StateToken("u", "t", nil, 0, 0)
	if with == without {
		t.Error("token should differ when dom counts are present")
	}
	if again := StateToken("u", "t", nil, 0, 0); again != without {
		t.Error("token not deterministic")
	}
}

func TestWithSessionID(t *testing.T) {
	packet := &models.StatePacket{StateToken: "tok", URL: "u"}
	out := WithSessionID(packet, "s-1")
	if out.SessionID != "s-1" || out.StateToken != "tok" {
		t.Errorf("copy = %+v", out)
	}
	if packet.SessionID != "" {
		t.Error("original mutated")
	}
	if WithSessionID(nil, "s-1") != nil {
		t.Error("nil packet should stay nil")
	}
}
