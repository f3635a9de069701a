package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/webagent/internal/config"
	"github.com/haasonsaas/webagent/internal/observability"
	"github.com/haasonsaas/webagent/internal/replay"
	"github.com/haasonsaas/webagent/pkg/models"
)

const gcInterval = 30 * time.Second

// BrowserSession is the manager's view of one session. *Session implements
// it; tests substitute fakes through the factory.
type BrowserSession interface {
	ID() string
	TraceID() string
	LastTouch() time.Time
	Start(ctx context.Context) (*models.CreateResult, error)
	Step(ctx context.Context, in *models.StepInput) (*models.StepResult, error)
	Snapshot(in *models.SnapshotInput) (*models.StatePacket, error)
	Stop(preserve bool) (*models.StopResult, error)
}

// Manager owns the session pool: admission with least-recently-active
// eviction when the pool is full, lookup, and idle garbage collection.
type Manager struct {
	cfg     *config.Config
	store   *replay.Store
	logger  *slog.Logger
	metrics *observability.Metrics

	mu       sync.Mutex
	sessions map[string]BrowserSession

	// For testing.
	newSession func(cfg Config) BrowserSession
	nowFunc    func() time.Time
}

// NewManager creates a manager backed by the given replay store.
func NewManager(cfg *config.Config, store *replay.Store, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:      cfg,
		store:    store,
		logger:   logger,
		metrics:  metrics,
		sessions: make(map[string]BrowserSession),
		nowFunc:  time.Now,
	}
	m.newSession = func(sessionCfg Config) BrowserSession {
		return NewSession(sessionCfg, store, logger, metrics)
	}
	return m
}

// Store returns the replay store sessions write to.
func (m *Manager) Store() *replay.Store { return m.store }

// Create admits a new session, evicting the oldest if the pool is full, and
// starts it.
func (m *Manager) Create(ctx context.Context, in *models.CreateInput) (*models.CreateResult, error) {
	now := m.nowFunc()
	id := uuid.NewString()
	traceID := fmt.Sprintf("%s-%d", id, now.UnixMilli())

	policyMode := in.PolicyMode
	if policyMode == "" {
		policyMode = m.cfg.PolicyMode
	}

	sessionCfg := Config{
		ID:               id,
		TraceID:          traceID,
		TargetURL:        in.TargetURL,
		Profile:          in.CaptureProfile,
		Policy:           policyMode,
		MaxSteps:         in.MaxSteps,
		MaxDurationMS:    in.MaxDurationMS,
		StorageStatePath: in.StorageStatePath,
		Capture:          in.Capture,
		Headless:         m.cfg.Headless,
	}
	if in.Viewport != nil {
		sessionCfg.Viewport = *in.Viewport
	}

	m.evictForAdmission()

	sess := m.newSession(sessionCfg)
	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	result, err := sess.Start(ctx)
	if err != nil {
		m.remove(id)
		return nil, err
	}
	m.logger.Info("session created", "session_id", id, "trace_id", traceID, "url", in.TargetURL)
	return result, nil
}

// Get returns a session by id.
func (m *Manager) Get(id string) (BrowserSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return sess, nil
}

// Step routes one step to its session.
func (m *Manager) Step(ctx context.Context, in *models.StepInput) (*models.StepResult, error) {
	sess, err := m.Get(in.SessionID)
	if err != nil {
		return nil, err
	}
	return sess.Step(ctx, in)
}

// Snapshot routes one snapshot to its session.
func (m *Manager) Snapshot(in *models.SnapshotInput) (*models.StatePacket, error) {
	sess, err := m.Get(in.SessionID)
	if err != nil {
		return nil, err
	}
	return sess.Snapshot(in)
}

// Stop stops a session and removes it from the pool.
func (m *Manager) Stop(id string, preserve bool) (*models.StopResult, error) {
	sess, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	result, err := sess.Stop(preserve)
	m.remove(id)
	return result, err
}

// GC stops sessions idle past the configured max age. Stop errors are
// logged and swallowed so one stuck session cannot wedge collection.
func (m *Manager) GC(now time.Time) int {
	maxAge := time.Duration(m.cfg.SessionMaxAgeMS) * time.Millisecond

	m.mu.Lock()
	var expired []BrowserSession
	for _, sess := range m.sessions {
		if now.Sub(sess.LastTouch()) > maxAge {
			expired = append(expired, sess)
		}
	}
	m.mu.Unlock()

	for _, sess := range expired {
		if _, err := sess.Stop(false); err != nil {
			m.logger.Warn("gc stop failed", "session_id", sess.ID(), "error", err)
		}
		m.remove(sess.ID())
		m.metrics.SessionEvicted("max_age")
		m.logger.Info("session evicted", "session_id", sess.ID(), "reason", "max_age")
	}
	return len(expired)
}

// Run garbage-collects on a fixed interval until the context ends.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.GC(m.nowFunc())
		}
	}
}

// StopAll stops every session, preserving traces. Used at shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	all := make([]BrowserSession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		all = append(all, sess)
	}
	m.mu.Unlock()

	for _, sess := range all {
		if _, err := sess.Stop(true); err != nil {
			m.logger.Warn("shutdown stop failed", "session_id", sess.ID(), "error", err)
		}
		m.remove(sess.ID())
	}
}

// Count returns the current pool size.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// evictForAdmission makes room for one more session by stopping the
// least-recently-active entries while the pool is at capacity. Steps and
// snapshots re-anchor a session's touch time, so a busy session outlives an
// idle one regardless of creation order.
func (m *Manager) evictForAdmission() {
	for {
		m.mu.Lock()
		if len(m.sessions) < m.cfg.MaxSessions || len(m.sessions) == 0 {
			m.mu.Unlock()
			return
		}
		var oldest BrowserSession
		for _, sess := range m.sessions {
			if oldest == nil || sess.LastTouch().Before(oldest.LastTouch()) {
				oldest = sess
			}
		}
		m.mu.Unlock()

		if _, err := oldest.Stop(false); err != nil {
			m.logger.Warn("eviction stop failed", "session_id", oldest.ID(), "error", err)
		}
		m.remove(oldest.ID())
		m.metrics.SessionEvicted("overflow")
		m.logger.Info("session evicted", "session_id", oldest.ID(), "reason", "overflow")
	}
}

// remove drops a session from the pool.
func (m *Manager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}
