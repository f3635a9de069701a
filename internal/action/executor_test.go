package action

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/webagent/internal/ring"
	"github.com/haasonsaas/webagent/pkg/models"
)

type fakeElement struct {
	count      int
	countErr   error
	waitErr    error
	actionErr  error
	calls      []string
	filledWith string
}

func (e *fakeElement) Count() (int, error) { return e.count, e.countErr }

func (e *fakeElement) WaitVisible(timeoutMS float64) error {
	e.calls = append(e.calls, "wait_visible")
	return e.waitErr
}

func (e *fakeElement) Click() error {
	e.calls = append(e.calls, "click")
	return e.actionErr
}

func (e *fakeElement) Hover() error {
	e.calls = append(e.calls, "hover")
	return e.actionErr
}

func (e *fakeElement) Fill(text string) error {
	e.calls = append(e.calls, "fill")
	e.filledWith = text
	return e.actionErr
}

type fakePointer struct {
	calls []string
	errOn string
}

func (m *fakePointer) do(name string) error {
	m.calls = append(m.calls, name)
	if m.errOn == name {
		return errors.New(name + " failed")
	}
	return nil
}

func (m *fakePointer) Click(x, y float64) error           { return m.do("click") }
func (m *fakePointer) Move(x, y float64, steps int) error { return m.do("move") }
func (m *fakePointer) Down() error                        { return m.do("down") }
func (m *fakePointer) Up() error                          { return m.do("up") }
func (m *fakePointer) Wheel(deltaX, deltaY float64) error { return m.do("wheel") }

type fakeKeys struct {
	pressed []string
	typed   []string
}

func (k *fakeKeys) Press(key string, delayMS float64) error {
	k.pressed = append(k.pressed, key)
	return nil
}

func (k *fakeKeys) Type(text string) error {
	k.typed = append(k.typed, text)
	return nil
}

type fakeDriverPage struct {
	url        string
	element    *fakeElement
	pointer    *fakePointer
	keys       *fakeKeys
	navErr     error
	navigated  []string
	loadWaits  []string
	loadErr    error
	navBlockMS int
}

func (p *fakeDriverPage) URL() string { return p.url }

func (p *fakeDriverPage) Navigate(url string, timeoutMS float64) error {
	if p.navBlockMS > 0 {
		time.Sleep(time.Duration(p.navBlockMS) * time.Millisecond)
	}
	p.navigated = append(p.navigated, url)
	return p.navErr
}

func (p *fakeDriverPage) Element(selector string) Element { return p.element }

func (p *fakeDriverPage) Pointer() Pointer { return p.pointer }

func (p *fakeDriverPage) Keys() Keys { return p.keys }

func (p *fakeDriverPage) WaitForLoad(state string, timeoutMS float64) error {
	p.loadWaits = append(p.loadWaits, state)
	return p.loadErr
}

func newTestExecutor(page *fakeDriverPage) (*Executor, *ring.Ring[models.NetworkEvent]) {
	if page.element == nil {
		page.element = &fakeElement{}
	}
	if page.pointer == nil {
		page.pointer = &fakePointer{}
	}
	if page.keys == nil {
		page.keys = &fakeKeys{}
	}
	network := ring.New[models.NetworkEvent](500)
	e := NewExecutor(page, network, nil, nil)
	e.SetSleepFunc(func(ctx context.Context, d time.Duration) {})
	return e, network
}

func fp(v float64) *float64 { return &v }

func TestClampTimeout(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 8000},
		{50, 100},
		{100, 100},
		{8000, 8000},
		{120000, 120000},
		{500000, 120000},
	}
	for _, tc := range cases {
		if got := ClampTimeout(tc.in); got != tc.want {
			t.Errorf("ClampTimeout(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestNavigate(t *testing.T) {
	page := &fakeDriverPage{url: "https://example.com"}
	e, network := newTestExecutor(page)

	result := e.Execute(context.Background(), &models.StepInput{Action: "navigate", URL: "https://example.com/next"})
	if !result.Success || result.Status != models.ActionStatusCompleted {
		t.Fatalf("result = %+v", result)
	}
	if result.Target != "https://example.com" {
		t.Errorf("target = %q, want the page url", result.Target)
	}
	if len(page.navigated) != 1 || page.navigated[0] != "https://example.com/next" {
		t.Errorf("navigated = %v", page.navigated)
	}

	events := network.Snapshot()
	if len(events) != 1 {
		t.Fatalf("synthetic events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.Type != models.NetworkTypeAction || !strings.HasSuffix(ev.ID, ":navigate") {
		t.Errorf("event = %+v", ev)
	}
	if ev.Method != "navigate" || ev.Status != 200 || ev.FailureText != "" {
		t.Errorf("event = %+v, want method=navigate status=200", ev)
	}
}

func TestClickPrefersDOM(t *testing.T) {
	el := &fakeElement{count: 2}
	page := &fakeDriverPage{element: el, pointer: &fakePointer{}}
	e, _ := newTestExecutor(page)

	result := e.Execute(context.Background(), &models.StepInput{
		Action: "click", Selector: "#go", X: fp(5), Y: fp(5),
	})
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if len(el.calls) != 2 || el.calls[0] != "wait_visible" || el.calls[1] != "click" {
		t.Errorf("element calls = %v", el.calls)
	}
	if len(page.pointer.calls) != 0 {
		t.Errorf("pointer used despite matching selector: %v", page.pointer.calls)
	}
}

func TestClickFallsBackToCoordinates(t *testing.T) {
	el := &fakeElement{count: 0}
	page := &fakeDriverPage{element: el}
	e, _ := newTestExecutor(page)

	result := e.Execute(context.Background(), &models.StepInput{
		Action: "click", Selector: "#missing", X: fp(10), Y: fp(20),
	})
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if len(page.pointer.calls) != 1 || page.pointer.calls[0] != "click" {
		t.Errorf("pointer calls = %v", page.pointer.calls)
	}
	if result.Coordinates == nil || result.Coordinates.X != 10 {
		t.Errorf("coordinates = %+v", result.Coordinates)
	}
}

func TestClickNoTargetFails(t *testing.T) {
	page := &fakeDriverPage{element: &fakeElement{count: 0}}
	e, network := newTestExecutor(page)

	result := e.Execute(context.Background(), &models.StepInput{Action: "click", Selector: "#missing"})
	if result.Success || result.Status != models.ActionStatusFailed {
		t.Fatalf("result = %+v", result)
	}
	if result.Detail != "selector not found and coordinates missing" {
		t.Errorf("detail = %q", result.Detail)
	}

	events := network.Snapshot()
	if len(events) != 1 || events[0].Type != models.NetworkTypeActionFailed {
		t.Fatalf("events = %+v", events)
	}
	ev := events[0]
	if ev.Method != "click" || ev.Status != 0 {
		t.Errorf("event = %+v, want method=click status=0", ev)
	}
	if ev.FailureText != "selector not found and coordinates missing" {
		t.Errorf("failureText = %q", ev.FailureText)
	}
}

func TestTypeFillsElement(t *testing.T) {
	el := &fakeElement{count: 1}
	page := &fakeDriverPage{element: el}
	e, _ := newTestExecutor(page)

	result := e.Execute(context.Background(), &models.StepInput{
		Action: "type", Selector: "input", Text: "hello",
	})
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if el.filledWith != "hello" {
		t.Errorf("filled = %q", el.filledWith)
	}
}

func TestTypeCoordinateFallbackClicksThenTypes(t *testing.T) {
	page := &fakeDriverPage{element: &fakeElement{count: 0}, keys: &fakeKeys{}}
	e, _ := newTestExecutor(page)

	result := e.Execute(context.Background(), &models.StepInput{
		Action: "type", Selector: "#gone", Text: "abc", X: fp(1), Y: fp(2),
	})
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if len(page.pointer.calls) != 1 || page.pointer.calls[0] != "click" {
		t.Errorf("pointer calls = %v", page.pointer.calls)
	}
	if len(page.keys.typed) != 1 || page.keys.typed[0] != "abc" {
		t.Errorf("typed = %v", page.keys.typed)
	}
}

func TestPress(t *testing.T) {
	page := &fakeDriverPage{keys: &fakeKeys{}}
	e, _ := newTestExecutor(page)

	result := e.Execute(context.Background(), &models.StepInput{Action: "press", Key: "Enter"})
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if len(page.keys.pressed) != 1 || page.keys.pressed[0] != "Enter" {
		t.Errorf("pressed = %v", page.keys.pressed)
	}
}

func TestScroll(t *testing.T) {
	// Wheel only when no coordinates are given.
	page := &fakeDriverPage{}
	e, _ := newTestExecutor(page)
	if r := e.Execute(context.Background(), &models.StepInput{Action: "scroll", DeltaY: fp(-120)}); !r.Success {
		t.Fatalf("result = %+v", r)
	}
	if len(page.pointer.calls) != 1 || page.pointer.calls[0] != "wheel" {
		t.Errorf("pointer calls = %v", page.pointer.calls)
	}

	// Coordinates move the pointer before the wheel fires.
	page = &fakeDriverPage{}
	e, _ = newTestExecutor(page)
	if r := e.Execute(context.Background(), &models.StepInput{
		Action: "scroll", X: fp(40), Y: fp(60), DeltaX: fp(0), DeltaY: fp(200),
	}); !r.Success {
		t.Fatalf("result = %+v", r)
	}
	want := []string{"move", "wheel"}
	if len(page.pointer.calls) != len(want) || page.pointer.calls[0] != want[0] || page.pointer.calls[1] != want[1] {
		t.Errorf("pointer calls = %v, want %v", page.pointer.calls, want)
	}
}

func TestDrag(t *testing.T) {
	page := &fakeDriverPage{}
	e, _ := newTestExecutor(page)

	result := e.Execute(context.Background(), &models.StepInput{
		Action: "drag", X: fp(10), Y: fp(10), DeltaX: fp(190), DeltaY: fp(290),
	})
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	want := []string{"move", "down", "move", "up"}
	if len(page.pointer.calls) != len(want) {
		t.Fatalf("pointer calls = %v", page.pointer.calls)
	}
	for i, w := range want {
		if page.pointer.calls[i] != w {
			t.Errorf("call %d = %q, want %q", i, page.pointer.calls[i], w)
		}
	}

	bad := e.Execute(context.Background(), &models.StepInput{
		Action: "drag", X: fp(1), Y: fp(1),
	})
	if bad.Success || !strings.Contains(bad.Detail, "drag requires") {
		t.Errorf("result = %+v", bad)
	}
}

func TestWaitFor(t *testing.T) {
	page := &fakeDriverPage{element: &fakeElement{count: 1}}
	e, _ := newTestExecutor(page)

	for _, target := range []string{"networkidle", "network_idle", "stable", "domstable"} {
		if r := e.Execute(context.Background(), &models.StepInput{Action: "wait_for", Target: target}); !r.Success {
			t.Fatalf("wait_for %s = %+v", target, r)
		}
	}
	want := []string{"networkidle", "networkidle", "domcontentloaded", "domcontentloaded"}
	if len(page.loadWaits) != len(want) {
		t.Fatalf("load waits = %v", page.loadWaits)
	}
	for i, w := range want {
		if page.loadWaits[i] != w {
			t.Errorf("load wait %d = %q, want %q", i, page.loadWaits[i], w)
		}
	}

	// Unknown targets are treated as selectors.
	if r := e.Execute(context.Background(), &models.StepInput{Action: "wait_for", Target: "#spinner"}); !r.Success {
		t.Fatalf("selector wait = %+v", r)
	}
	if page.element.calls[len(page.element.calls)-1] != "wait_visible" {
		t.Errorf("element calls = %v", page.element.calls)
	}
}

func TestWatchdogTimeout(t *testing.T) {
	page := &fakeDriverPage{navBlockMS: 600}
	e, _ := newTestExecutor(page)

	result := e.Execute(context.Background(), &models.StepInput{
		Action: "navigate", URL: "https://slow.example.com", TimeoutMS: 100,
	})
	if result.Success {
		t.Fatal("expected timeout failure")
	}
	if result.Detail != "action timeout after 100ms" {
		t.Errorf("detail = %q", result.Detail)
	}
}

func TestMaxActionsPerStepGuard(t *testing.T) {
	page := &fakeDriverPage{}
	e, _ := newTestExecutor(page)

	result := e.Execute(context.Background(), &models.StepInput{
		Action: "click", MaxActionsPerStep: 2, X: fp(1), Y: fp(1),
	})
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Detail != "max_actions_per_step must be 1 in phase 1" {
		t.Errorf("detail = %q", result.Detail)
	}
}

func TestSyntheticEventTrim(t *testing.T) {
	page := &fakeDriverPage{}
	e, network := newTestExecutor(page)

	for i := 0; i < 450; i++ {
		network.Push(models.NetworkEvent{ID: "r_x"})
	}
	e.Execute(context.Background(), &models.StepInput{Action: "wait"})
	if depth := network.Depth(); depth != 400 {
		t.Errorf("depth after trim = %d, want 400", depth)
	}
	last, _ := network.Latest()
	if !strings.HasSuffix(last.ID, ":wait") {
		t.Errorf("latest = %+v", last)
	}
}
