// Package session owns the browser session lifecycle: admission, the
// created/starting/active/stopping/stopped state machine, the step
// pipeline, and garbage collection of idle sessions.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/webagent/internal/capture"
	"github.com/haasonsaas/webagent/internal/observability"
	"github.com/haasonsaas/webagent/internal/policy"
	"github.com/haasonsaas/webagent/internal/replay"
	"github.com/haasonsaas/webagent/internal/ring"
	"github.com/haasonsaas/webagent/internal/state"
	"github.com/haasonsaas/webagent/internal/validate"
	"github.com/haasonsaas/webagent/pkg/models"
)

// State is the session lifecycle state.
type State string

const (
	StateCreated  State = "created"
	StateStarting State = "starting"
	StateActive   State = "active"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// Session budget defaults.
const (
	DefaultMaxSteps      = 100
	DefaultMaxDurationMS = 30 * 60 * 1000

	networkRingCap = 500
)

// Config describes one session to create.
type Config struct {
	ID               string
	TraceID          string
	TargetURL        string
	Viewport         models.Viewport
	Profile          models.CaptureProfile
	Policy           models.PolicyMode
	MaxSteps         int
	MaxDurationMS    int64
	StorageStatePath string
	Capture          *models.CaptureSettings
	Headless         bool
}

// stateBuilder, actionRunner, and frameCoordinator are the session's
// internal seams. The production wiring in launch.go fills them with the
// real builder, executor, and capture coordinator.
type stateBuilder interface {
	Build(opts state.Options) (*models.StatePacket, error)
}

type actionRunner interface {
	Execute(ctx context.Context, in *models.StepInput) *models.ActionResult
}

type frameCoordinator interface {
	Start() error
	Stop()
	SignalVisualDrift()
	Recent(n int) []models.FrameRef
	LatestFrame() *models.FrameRef
	Health() models.QueueHealth
}

// Session is one live browser session. Steps are serialized: at most one
// step executes at a time per session.
type Session struct {
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
	store   *replay.Store

	mu        sync.Mutex
	state     State
	createdAt time.Time
	lastTouch time.Time
	stepIndex int

	network  *ring.Ring[models.NetworkEvent]
	frames   frameCoordinator
	builder  stateBuilder
	executor actionRunner
	policy   policy.Adapter

	// closers tear down driver resources in order: page, context,
	// browser, driver.
	closers []func() error

	nowFunc func() time.Time // For testing
}

// NewSession creates a session in the created state. Start must be called
// before any step.
func NewSession(cfg Config, store *replay.Store, logger *slog.Logger, metrics *observability.Metrics) *Session {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.MaxDurationMS <= 0 {
		cfg.MaxDurationMS = DefaultMaxDurationMS
	}
	if cfg.Viewport.Width <= 0 || cfg.Viewport.Height <= 0 {
		cfg.Viewport = models.Viewport{Width: 1280, Height: 800}
	}
	if cfg.Profile == "" {
		cfg.Profile = models.ProfileAdaptive
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:     cfg,
		logger:  logger.With("session_id", cfg.ID),
		metrics: metrics,
		store:   store,
		state:   StateCreated,
		network: ring.New[models.NetworkEvent](networkRingCap),
		policy:  policy.ForMode(cfg.Policy),
		nowFunc: time.Now,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.cfg.ID }

// TraceID returns the replay trace id.
func (s *Session) TraceID() string { return s.cfg.TraceID }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CreatedAt returns the budget anchor time. Each completed step re-anchors
// it, so the duration budget bounds the gap between steps rather than total
// session wall time.
func (s *Session) CreatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createdAt
}

// LastTouch returns the last activity time, used by the idle GC.
func (s *Session) LastTouch() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTouch
}

// Start launches the browser and transitions the session to active. It
// returns the create result with the initial state snapshot.
func (s *Session) Start(ctx context.Context) (*models.CreateResult, error) {
	s.mu.Lock()
	if s.state != StateCreated {
		s.mu.Unlock()
		return nil, fmt.Errorf("session already started")
	}
	s.state = StateStarting
	s.mu.Unlock()

	if err := s.launch(ctx); err != nil {
		s.teardown()
		s.setState(StateStopped)
		return nil, fmt.Errorf("launch session: %w", err)
	}
	return s.activate()
}

// activate runs the post-launch half of Start: capture, initial state, the
// replay create event. Split out so tests can drive it with fake seams.
func (s *Session) activate() (*models.CreateResult, error) {
	if s.frames != nil {
		if err := s.frames.Start(); err != nil {
			// Degraded capture is survivable; the session still serves
			// DOM and network observations.
			s.logger.Warn("frame capture unavailable", "error", err)
		}
	}

	// The initial packet's inclusion rule is fixed by the profile; the
	// create request's capture block only sizes the frame take.
	opts := state.Options{
		IncludeDOM:     s.cfg.Profile != models.ProfileFramesOnly,
		IncludeAX:      true,
		IncludeNetwork: true,
		IncludeFrames:  s.cfg.Profile != models.ProfileDOMOnly,
	}
	if s.cfg.Capture != nil {
		opts.MaxFrames = s.cfg.Capture.MaxFrames
	}
	initial, err := s.builder.Build(opts)
	if err != nil {
		s.teardown()
		s.setState(StateStopped)
		return nil, fmt.Errorf("build initial state: %w", err)
	}
	initial = state.WithSessionID(initial, s.cfg.ID)

	now := s.nowFunc()
	s.mu.Lock()
	s.state = StateActive
	s.createdAt = now
	s.lastTouch = now
	s.stepIndex = 0
	s.mu.Unlock()

	s.metrics.SessionStarted()
	s.appendReplay(models.ReplayCreate, map[string]any{
		"session_id":      s.cfg.ID,
		"target_url":      s.cfg.TargetURL,
		"capture_profile": string(s.cfg.Profile),
		"policy":          string(s.policy.Mode()),
		"viewport":        map[string]any{"width": s.cfg.Viewport.Width, "height": s.cfg.Viewport.Height},
	})

	result := &models.CreateResult{
		SessionID:    s.cfg.ID,
		TraceID:      s.cfg.TraceID,
		InitialState: initial,
		Capabilities: models.SessionCapabilities{
			CaptureProfile: s.cfg.Profile,
			MaxSteps:       s.cfg.MaxSteps,
			MaxDurationMS:  s.cfg.MaxDurationMS,
			Policy:         s.policy.Mode(),
			DOMFirst:       true,
			FrameCapture:   s.cfg.Profile != models.ProfileDOMOnly,
		},
	}
	if s.frames != nil {
		result.FrameRef = s.frames.LatestFrame()
	}
	s.logger.Info("session active", "trace_id", s.cfg.TraceID, "url", s.cfg.TargetURL)
	return result, nil
}

// Step executes one action and returns the post-action state. A policy
// denial short-circuits before the action and mutates nothing.
func (s *Session) Step(ctx context.Context, in *models.StepInput) (*models.StepResult, error) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return nil, fmt.Errorf("session is not active")
	}
	steps := s.stepIndex
	anchor := s.createdAt
	s.mu.Unlock()

	started := s.nowFunc()

	if steps >= s.cfg.MaxSteps {
		return nil, fmt.Errorf("max_steps reached")
	}
	if started.Sub(anchor).Milliseconds() > s.cfg.MaxDurationMS {
		return nil, fmt.Errorf("session exceeded max_duration_ms")
	}

	opts := s.captureOptions(in.Capture)

	pre, err := s.builder.Build(opts)
	if err != nil {
		return nil, fmt.Errorf("build pre-action state: %w", err)
	}
	pre = state.WithSessionID(pre, s.cfg.ID)

	if decision := s.policy.Evaluate(pre, in); !decision.Allowed {
		s.metrics.RecordPolicyDenial()
		s.logger.Info("step denied by policy", "action", in.Action, "reason", decision.Reason)
		return &models.StepResult{
			State: pre,
			ActionResult: &models.ActionResult{
				Action:   in.Action,
				Success:  false,
				Status:   models.ActionStatusPolicyDenied,
				Selector: in.Selector,
				Target:   in.Target,
				Detail:   decision.Reason,
			},
			FrameRefs:          pre.FrameRefs,
			ErrorCodes:         []string{validate.CodePolicyDenied},
			NextRecommendation: models.RecommendHalt,
			LatencyMS:          s.nowFunc().Sub(started).Milliseconds(),
			QueueHealth:        pre.QueueHealth,
		}, nil
	}

	actionResult := s.executor.Execute(ctx, in)

	if in.Action == "wait" || in.Action == "wait_for" {
		if s.frames != nil {
			s.frames.SignalVisualDrift()
		}
	}

	post, err := s.builder.Build(opts)
	if err != nil {
		return nil, fmt.Errorf("build post-action state: %w", err)
	}
	post = state.WithSessionID(post, s.cfg.ID)

	now := s.nowFunc()
	s.mu.Lock()
	s.stepIndex++
	s.lastTouch = now
	s.createdAt = now // each step re-anchors the duration budget
	stepNumber := s.stepIndex
	s.mu.Unlock()

	result := &models.StepResult{
		State:              post,
		FrameRefs:          post.FrameRefs,
		ActionResult:       actionResult,
		ErrorCodes:         stepErrorCodes(actionResult, opts, post),
		NextRecommendation: recommend(actionResult),
		LatencyMS:          now.Sub(started).Milliseconds(),
		QueueHealth:        post.QueueHealth,
	}

	s.metrics.RecordStepLatency(float64(result.LatencyMS) / 1000.0)
	s.appendReplay(models.ReplayStep, map[string]any{
		"step":        stepNumber,
		"action":      in.Action,
		"success":     actionResult.Success,
		"status":      actionResult.Status,
		"detail":      actionResult.Detail,
		"state_token": post.StateToken,
		"url":         post.URL,
	})
	return result, nil
}

// Snapshot builds a state packet honoring the capture flags literally: an
// absent block means everything excluded.
func (s *Session) Snapshot(in *models.SnapshotInput) (*models.StatePacket, error) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return nil, fmt.Errorf("session is not active")
	}
	s.lastTouch = s.nowFunc()
	s.mu.Unlock()

	var opts state.Options
	if in != nil && in.Capture != nil {
		opts = state.Options{
			IncludeDOM:     in.Capture.IncludeDOM,
			IncludeAX:      in.Capture.IncludeAX,
			IncludeNetwork: in.Capture.IncludeNetwork,
			IncludeFrames:  in.Capture.IncludeFrames,
			MaxFrames:      in.Capture.MaxFrames,
		}
	}

	packet, err := s.builder.Build(opts)
	if err != nil {
		return nil, fmt.Errorf("build snapshot state: %w", err)
	}
	packet = state.WithSessionID(packet, s.cfg.ID)

	s.appendReplay(models.ReplaySnapshot, map[string]any{
		"state_token": packet.StateToken,
		"url":         packet.URL,
	})
	return packet, nil
}

// Stop tears the session down. It is idempotent: stopping a stopped session
// reports a noop cleanup.
func (s *Session) Stop(preserve bool) (*models.StopResult, error) {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return &models.StopResult{Status: "stopped", Cleanup: models.CleanupNoop}, nil
	}
	wasActive := s.state == StateActive
	s.state = StateStopping
	s.mu.Unlock()

	if s.frames != nil {
		s.frames.Stop()
	}
	s.teardown()
	s.setState(StateStopped)

	if wasActive {
		s.metrics.SessionEnded()
		s.appendReplay(models.ReplayStop, map[string]any{
			"session_id": s.cfg.ID,
			"preserve":   preserve,
		})
	}

	result := &models.StopResult{Status: "stopped"}
	if preserve {
		result.Cleanup = models.CleanupRetained
		if s.store != nil {
			result.TracePath = s.store.TracePath(s.cfg.TraceID)
		}
	} else {
		result.Cleanup = models.CleanupCleaned
		if s.store != nil {
			if err := s.store.Cleanup(s.cfg.TraceID); err != nil {
				s.logger.Warn("trace cleanup failed", "error", err)
			}
			if err := os.RemoveAll(s.store.FramesDir(s.cfg.TraceID)); err != nil {
				s.logger.Warn("frames cleanup failed", "error", err)
			}
		}
	}
	s.logger.Info("session stopped", "cleanup", result.Cleanup)
	return result, nil
}

// teardown closes driver resources in registration order, swallowing
// individual errors so one stuck resource cannot block the rest.
func (s *Session) teardown() {
	for _, closer := range s.closers {
		if err := closer(); err != nil {
			s.logger.Debug("teardown step failed", "error", err)
		}
	}
	s.closers = nil
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// captureOptions normalizes a step's capture block against the profile
// defaults. A block with no include flag set keeps the profile defaults but
// honors its max_frames.
func (s *Session) captureOptions(settings *models.CaptureSettings) state.Options {
	opts := profileDefaults(s.cfg.Profile)
	if settings != nil {
		if settings.AnyInclude() {
			opts = state.Options{
				IncludeDOM:     settings.IncludeDOM,
				IncludeAX:      settings.IncludeAX,
				IncludeNetwork: settings.IncludeNetwork,
				IncludeFrames:  settings.IncludeFrames,
			}
		}
		opts.MaxFrames = settings.MaxFrames
	}
	if s.cfg.Profile == models.ProfileDOMOnly {
		opts.IncludeFrames = false
	}
	return opts
}

func profileDefaults(profile models.CaptureProfile) state.Options {
	switch profile {
	case models.ProfileDOMOnly:
		return state.Options{IncludeDOM: true, IncludeAX: true, IncludeNetwork: true}
	case models.ProfileFramesOnly:
		return state.Options{IncludeNetwork: true, IncludeFrames: true}
	default:
		return state.Options{IncludeDOM: true, IncludeAX: true, IncludeNetwork: true, IncludeFrames: true}
	}
}

// recommend maps an action outcome to the advisory next step. A timed-out
// action already consumed its full window, so retrying the same thing is
// unlikely to help; other failures are worth one more attempt.
func recommend(result *models.ActionResult) string {
	switch {
	case result.Success:
		return models.RecommendContinue
	case result.Status == models.ActionStatusPolicyDenied:
		return models.RecommendHalt
	case strings.Contains(result.Detail, "timeout"):
		return models.RecommendFallbackOrAbandon
	default:
		return models.RecommendRetry
	}
}

func stepErrorCodes(result *models.ActionResult, opts state.Options, post *models.StatePacket) []string {
	codes := []string{}
	if !result.Success {
		codes = append(codes, validate.CodeActionFailed)
	}
	if opts.IncludeNetwork && len(post.NetworkEvents) == 0 {
		codes = append(codes, validate.CodeNoNetworkEvent)
	}
	return codes
}

// appendReplay appends one trace event. The next index is derived from the
// persisted log, and the sidecar index is refreshed after the append.
func (s *Session) appendReplay(eventType string, payload map[string]any) {
	if s.store == nil {
		return
	}
	manifest, err := s.store.Load(s.cfg.TraceID)
	if err != nil {
		s.logger.Warn("replay load failed", "error", err)
		return
	}
	event := models.ReplayEvent{
		Type:    eventType,
		Index:   len(manifest.Events) + 1,
		At:      s.nowFunc().UnixMilli(),
		Payload: payload,
	}
	if err := s.store.Append(s.cfg.TraceID, event); err != nil {
		s.logger.Warn("replay append failed", "error", err)
		return
	}
	if err := s.store.PersistIndex(s.cfg.TraceID, append(manifest.Events, event)); err != nil {
		s.logger.Warn("replay index persist failed", "error", err)
	}
}

// resolveFrameCapacity computes the coordinator ring size for this session.
func resolveFrameCapacity(cfg Config) int {
	var requested *int
	if cfg.Capture != nil {
		requested = cfg.Capture.MaxFrames
	}
	return capture.ResolveFrameCap(requested, cfg.Profile)
}
