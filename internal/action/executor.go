// Package action executes exactly one page action per step. Resolution is
// DOM-first: a selector that matches wins, explicit coordinates are the
// fallback. Failures come back as structured results, never as errors
// crossing the tool boundary.
package action

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/haasonsaas/webagent/internal/observability"
	"github.com/haasonsaas/webagent/internal/ring"
	"github.com/haasonsaas/webagent/pkg/models"
)

// Timeout bounds in milliseconds. The outer watchdog grants the driver a
// short grace beyond the per-action timeout before abandoning the wait.
const (
	timeoutFloorMS   = 100
	timeoutCeilMS    = 120_000
	defaultTimeoutMS = 8_000
	timeoutGraceMS   = 300

	networkRingTrim = 400
	pressDelayMS    = 20
	dragMoveSteps   = 10
)

// Page is the driver surface the executor needs. The playwright adapter in
// this package satisfies it; tests substitute fakes.
type Page interface {
	URL() string
	Navigate(url string, timeoutMS float64) error
	Element(selector string) Element
	Pointer() Pointer
	Keys() Keys
	WaitForLoad(state string, timeoutMS float64) error
}

// Element is one resolvable DOM target.
type Element interface {
	Count() (int, error)
	WaitVisible(timeoutMS float64) error
	Click() error
	Hover() error
	Fill(text string) error
}

// Pointer is the raw mouse surface used for coordinate fallback.
type Pointer interface {
	Click(x, y float64) error
	Move(x, y float64, steps int) error
	Down() error
	Up() error
	Wheel(deltaX, deltaY float64) error
}

// Keys is the keyboard surface.
type Keys interface {
	Press(key string, delayMS float64) error
	Type(text string) error
}

// Executor runs actions against one page and records a synthetic network
// event per action on the session's ring.
type Executor struct {
	page    Page
	network *ring.Ring[models.NetworkEvent]
	logger  *slog.Logger
	metrics *observability.Metrics

	// For testing.
	nowFunc   func() time.Time
	sleepFunc func(ctx context.Context, d time.Duration)
}

// NewExecutor creates an executor bound to one page.
func NewExecutor(page Page, network *ring.Ring[models.NetworkEvent], logger *slog.Logger, metrics *observability.Metrics) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		page:      page,
		network:   network,
		logger:    logger,
		metrics:   metrics,
		nowFunc:   time.Now,
		sleepFunc: sleepCtx,
	}
}

// SetNowFunc sets a custom time function for testing.
func (e *Executor) SetNowFunc(fn func() time.Time) { e.nowFunc = fn }

// SetSleepFunc sets a custom sleep function for testing.
func (e *Executor) SetSleepFunc(fn func(ctx context.Context, d time.Duration)) { e.sleepFunc = fn }

// ClampTimeout normalizes a requested per-action timeout.
func ClampTimeout(requested int) int {
	if requested == 0 {
		return defaultTimeoutMS
	}
	if requested < timeoutFloorMS {
		return timeoutFloorMS
	}
	if requested > timeoutCeilMS {
		return timeoutCeilMS
	}
	return requested
}

// Execute runs the single action described by in. The returned result always
// has Status and ElapsedMS populated.
func (e *Executor) Execute(ctx context.Context, in *models.StepInput) *models.ActionResult {
	started := e.nowFunc()
	result := &models.ActionResult{
		Action:   in.Action,
		Selector: in.Selector,
		Target:   in.Target,
	}
	if in.X != nil && in.Y != nil {
		result.Coordinates = &models.Point{X: *in.X, Y: *in.Y}
	}

	finish := func(err error) *models.ActionResult {
		result.ElapsedMS = e.nowFunc().Sub(started).Milliseconds()
		if err != nil {
			result.Success = false
			result.Status = models.ActionStatusFailed
			result.Detail = err.Error()
			e.metrics.RecordActionFailure(in.Action)
			e.logger.Debug("action failed", "action", in.Action, "error", err)
		} else {
			result.Success = true
			result.Status = models.ActionStatusCompleted
			result.Target = e.page.URL()
		}
		e.recordSyntheticEvent(in.Action, result.Success, result.Detail)
		return result
	}

	if in.MaxActionsPerStep > 1 {
		return finish(fmt.Errorf("max_actions_per_step must be 1 in phase 1"))
	}

	timeoutMS := ClampTimeout(in.TimeoutMS)
	done := make(chan error, 1)
	go func() {
		done <- e.dispatch(ctx, in, timeoutMS)
	}()

	watchdog := time.Duration(timeoutMS+timeoutGraceMS) * time.Millisecond
	select {
	case err := <-done:
		return finish(err)
	case <-ctx.Done():
		return finish(ctx.Err())
	case <-time.After(watchdog):
		return finish(fmt.Errorf("action timeout after %dms", timeoutMS))
	}
}

func (e *Executor) dispatch(ctx context.Context, in *models.StepInput, timeoutMS int) error {
	timeout := float64(timeoutMS)
	switch in.Action {
	case "navigate":
		return e.page.Navigate(in.URL, timeout)

	case "click":
		return e.withElementOrCoordinate(in, timeout,
			func(el Element) error { return el.Click() },
			func(x, y float64) error { return e.page.Pointer().Click(x, y) },
		)

	case "hover":
		return e.withElementOrCoordinate(in, timeout,
			func(el Element) error { return el.Hover() },
			func(x, y float64) error { return e.page.Pointer().Move(x, y, 1) },
		)

	case "type":
		return e.withElementOrCoordinate(in, timeout,
			func(el Element) error { return el.Fill(in.Text) },
			func(x, y float64) error {
				if err := e.page.Pointer().Click(x, y); err != nil {
					return err
				}
				return e.page.Keys().Type(in.Text)
			},
		)

	case "press":
		return e.page.Keys().Press(in.Key, pressDelayMS)

	case "scroll":
		return e.scroll(in)

	case "drag":
		return e.drag(in, timeout)

	case "wait":
		e.wait(ctx, in)
		return nil

	case "wait_for":
		return e.waitFor(in, timeout)

	default:
		return fmt.Errorf("unsupported action: %s", in.Action)
	}
}

// withElementOrCoordinate resolves the action target DOM-first. A selector
// with no match falls through to coordinates instead of failing outright.
func (e *Executor) withElementOrCoordinate(in *models.StepInput, timeoutMS float64, viaElement func(Element) error, viaPoint func(x, y float64) error) error {
	if in.Selector != "" {
		el := e.page.Element(in.Selector)
		count, err := el.Count()
		if err == nil && count > 0 {
			if err := el.WaitVisible(timeoutMS); err != nil {
				return fmt.Errorf("element %q not visible: %w", in.Selector, err)
			}
			return viaElement(el)
		}
	}
	if in.X != nil && in.Y != nil {
		return viaPoint(*in.X, *in.Y)
	}
	return fmt.Errorf("selector not found and coordinates missing")
}

// scroll optionally moves the pointer first, then dispatches a wheel with
// the given deltas.
func (e *Executor) scroll(in *models.StepInput) error {
	pointer := e.page.Pointer()
	if in.X != nil && in.Y != nil {
		if err := pointer.Move(*in.X, *in.Y, 1); err != nil {
			return err
		}
	}
	dx, dy := 0.0, 0.0
	if in.DeltaX != nil {
		dx = *in.DeltaX
	}
	if in.DeltaY != nil {
		dy = *in.DeltaY
	}
	return pointer.Wheel(dx, dy)
}

// drag presses at the origin and releases at origin plus deltas, moving in
// discrete steps so the page sees intermediate events.
func (e *Executor) drag(in *models.StepInput, timeoutMS float64) error {
	if in.X == nil || in.Y == nil || in.DeltaX == nil || in.DeltaY == nil {
		return fmt.Errorf("drag requires x, y, delta_x, delta_y")
	}
	pointer := e.page.Pointer()
	if err := pointer.Move(*in.X, *in.Y, 1); err != nil {
		return err
	}
	if err := pointer.Down(); err != nil {
		return err
	}
	if err := pointer.Move(*in.X+*in.DeltaX, *in.Y+*in.DeltaY, dragMoveSteps); err != nil {
		_ = pointer.Up()
		return err
	}
	return pointer.Up()
}

// wait sleeps for the requested duration, defaulting to one second.
func (e *Executor) wait(ctx context.Context, in *models.StepInput) {
	ms := in.TimeoutMS
	if ms <= 0 {
		ms = 1000
	}
	if ms > timeoutCeilMS {
		ms = timeoutCeilMS
	}
	e.sleepFunc(ctx, time.Duration(ms)*time.Millisecond)
}

// waitFor blocks on a named load state, or treats an unknown target as a
// selector to wait visible.
func (e *Executor) waitFor(in *models.StepInput, timeoutMS float64) error {
	switch in.Target {
	case "networkidle", "network_idle":
		return e.page.WaitForLoad("networkidle", timeoutMS)
	case "stable", "domstable":
		return e.page.WaitForLoad("domcontentloaded", timeoutMS)
	default:
		el := e.page.Element(in.Target)
		if err := el.WaitVisible(timeoutMS); err != nil {
			return fmt.Errorf("wait_for %q: %w", in.Target, err)
		}
		return nil
	}
}

// recordSyntheticEvent appends an action marker to the network ring so the
// state builder's change detection observes actions even on quiet pages.
func (e *Executor) recordSyntheticEvent(action string, success bool, detail string) {
	if e.network == nil {
		return
	}
	nowMS := e.nowFunc().UnixMilli()
	event := models.NetworkEvent{
		ID:     fmt.Sprintf("%d:%s", nowMS, action),
		URL:    e.page.URL(),
		Method: action,
		Type:   models.NetworkTypeActionFailed,
		Time:   nowMS,
	}
	if success {
		event.Status = 200
		event.Type = models.NetworkTypeAction
	} else {
		event.FailureText = detail
	}
	e.network.Push(event)
	e.network.TrimTo(networkRingTrim)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
