// Package tools exposes the five web agent tools behind a single dispatch
// surface shared by the stdio and rest transports. Arguments are checked
// twice: structurally against a compiled JSON schema, then semantically by
// the validate package.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/haasonsaas/webagent/internal/config"
	"github.com/haasonsaas/webagent/internal/observability"
	"github.com/haasonsaas/webagent/internal/replay"
	"github.com/haasonsaas/webagent/internal/validate"
	"github.com/haasonsaas/webagent/pkg/models"
)

// Definition describes one tool for transport-level listings.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schema      string `json:"input_schema"`
}

// Definitions lists the served tools in a stable order.
func Definitions() []Definition {
	return []Definition{
		{
			Name:        models.ToolSessionCreate,
			Description: "Launch a browser session, navigate to the target URL, and return the initial state snapshot.",
			Schema:      sessionCreateSchema,
		},
		{
			Name:        models.ToolStep,
			Description: "Execute one action in an active session and return the post-action state.",
			Schema:      stepSchema,
		},
		{
			Name:        models.ToolSnapshot,
			Description: "Capture the current session state without executing an action.",
			Schema:      snapshotSchema,
		},
		{
			Name:        models.ToolSessionStop,
			Description: "Stop a session, optionally discarding its replay trace.",
			Schema:      sessionStopSchema,
		},
		{
			Name:        models.ToolReplay,
			Description: "Reconstruct recorded events for a trace, optionally bounded by event indices.",
			Schema:      replaySchema,
		},
	}
}

// ValidationFailure is the structured result returned when arguments fail
// validation. It travels as a normal tool result, not a transport error.
type ValidationFailure struct {
	OK         bool             `json:"ok"`
	ErrorCodes []string         `json:"error_codes"`
	Issues     []validate.Issue `json:"issues"`
}

func failure(result validate.Result) *ValidationFailure {
	return &ValidationFailure{ErrorCodes: result.Codes(), Issues: result.Errors}
}

// ReplayResult is returned by web_agent_replay.
type ReplayResult struct {
	TraceID   string               `json:"trace_id"`
	SessionID string               `json:"session_id,omitempty"`
	CreatedAt int64                `json:"created_at"`
	Total     int                  `json:"total"`
	Events    []models.ReplayEvent `json:"events"`
}

// SessionService is the session-facing surface the registry dispatches to.
// *session.Manager implements it.
type SessionService interface {
	Create(ctx context.Context, in *models.CreateInput) (*models.CreateResult, error)
	Step(ctx context.Context, in *models.StepInput) (*models.StepResult, error)
	Snapshot(in *models.SnapshotInput) (*models.StatePacket, error)
	Stop(id string, preserve bool) (*models.StopResult, error)
	Store() *replay.Store
}

// Registry routes tool calls to the session manager and replay store.
type Registry struct {
	manager SessionService
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics

	nowFunc func() time.Time // For testing
}

// NewRegistry creates the dispatch surface.
func NewRegistry(manager SessionService, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		manager: manager,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		nowFunc: time.Now,
	}
}

// Dispatch executes one tool call. Validation failures come back as a
// ValidationFailure result; transport-level problems (unknown tool,
// undecodable arguments, missing session) are errors.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) (any, error) {
	started := r.nowFunc()
	result, err := r.dispatch(ctx, name, args)

	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordToolCall(name, status, r.nowFunc().Sub(started).Seconds())
	r.logger.Debug("tool call", "tool", name, "status", status)
	return result, err
}

func (r *Registry) dispatch(ctx context.Context, name string, args json.RawMessage) (any, error) {
	if err := initSchemas(); err != nil {
		return nil, fmt.Errorf("compile tool schemas: %w", err)
	}
	schema, ok := schemas.byTool[name]
	if !ok {
		return nil, fmt.Errorf("Unknown tool: %s", name)
	}

	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	var payload any
	if err := json.Unmarshal(args, &payload); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return &ValidationFailure{
			ErrorCodes: []string{validate.CodeInvalidArguments},
			Issues: []validate.Issue{{
				Code:    validate.CodeInvalidArguments,
				Message: err.Error(),
			}},
		}, nil
	}

	switch name {
	case models.ToolSessionCreate:
		return r.create(ctx, args)
	case models.ToolStep:
		return r.step(ctx, args)
	case models.ToolSnapshot:
		return r.snapshot(args)
	case models.ToolSessionStop:
		return r.stop(args)
	case models.ToolReplay:
		return r.replay(args)
	default:
		return nil, fmt.Errorf("Unknown tool: %s", name)
	}
}

func (r *Registry) create(ctx context.Context, args json.RawMessage) (any, error) {
	var in models.CreateInput
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("decode create input: %w", err)
	}
	if result := validate.Create(&in, r.cfg.Allowlist, r.cfg.Denylist); !result.OK {
		return failure(result), nil
	}
	return r.manager.Create(ctx, &in)
}

func (r *Registry) step(ctx context.Context, args json.RawMessage) (any, error) {
	var in models.StepInput
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("decode step input: %w", err)
	}
	if result := validate.Action(&in); !result.OK {
		return failure(result), nil
	}
	if in.Action == "navigate" {
		if result := validate.URL(in.URL, r.cfg.Allowlist, r.cfg.Denylist); !result.OK {
			return failure(result), nil
		}
	}
	return r.manager.Step(ctx, &in)
}

func (r *Registry) snapshot(args json.RawMessage) (any, error) {
	var in models.SnapshotInput
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("decode snapshot input: %w", err)
	}
	return r.manager.Snapshot(&in)
}

func (r *Registry) stop(args json.RawMessage) (any, error) {
	var in models.StopInput
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("decode stop input: %w", err)
	}
	preserve := true
	if in.Preserve != nil {
		preserve = *in.Preserve
	}
	return r.manager.Stop(in.SessionID, preserve)
}

func (r *Registry) replay(args json.RawMessage) (any, error) {
	var in models.ReplayInput
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("decode replay input: %w", err)
	}
	store := r.manager.Store()
	manifest, err := store.Load(in.TraceID)
	if err != nil {
		return nil, err
	}
	events, err := store.Filter(in.TraceID, in.StartIndex, in.EndIndex)
	if err != nil {
		return nil, err
	}
	return &ReplayResult{
		TraceID:   in.TraceID,
		SessionID: manifest.SessionID,
		CreatedAt: manifest.CreatedAt,
		Total:     len(events),
		Events:    events,
	}, nil
}
