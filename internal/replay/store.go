// Package replay persists the append-only, per-trace event log and its
// sidecar index. The log is line-delimited JSON; reconstruction is
// deterministic and tolerates malformed lines.
package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/haasonsaas/webagent/pkg/models"
)

var unsafeTraceChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeTraceID replaces any character outside [A-Za-z0-9._-] with "_".
func SanitizeTraceID(traceID string) string {
	return unsafeTraceChars.ReplaceAllString(traceID, "_")
}

// Store is a file-backed replay event store rooted at one directory.
type Store struct {
	root    string
	nowFunc func() time.Time // For testing
}

// NewStore creates a store rooted at dir. The directory is created lazily
// on first append.
func NewStore(dir string) *Store {
	return &Store{root: dir, nowFunc: time.Now}
}

// SetNowFunc sets a custom time function for testing.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.nowFunc = fn
}

// Root returns the traces root directory.
func (s *Store) Root() string { return s.root }

// TracePath returns the on-disk path of a trace's event log.
func (s *Store) TracePath(traceID string) string {
	return filepath.Join(s.root, SanitizeTraceID(traceID)+".jsonl")
}

// IndexPath returns the on-disk path of a trace's sidecar index.
func (s *Store) IndexPath(traceID string) string {
	return filepath.Join(s.root, SanitizeTraceID(traceID)+".index.json")
}

// FramesDir returns the directory for a trace's frame artifacts.
func (s *Store) FramesDir(traceID string) string {
	return filepath.Join(s.root, SanitizeTraceID(traceID))
}

// Append writes one event as a JSON line. No fsync guarantee is promised.
func (s *Store) Append(traceID string, event models.ReplayEvent) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create traces root: %w", err)
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode replay event: %w", err)
	}

	f, err := os.OpenFile(s.TracePath(traceID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open trace log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append replay event: %w", err)
	}
	return nil
}

// Load reconstructs a trace manifest from disk. A missing file yields an
// empty manifest; malformed lines are dropped silently.
func (s *Store) Load(traceID string) (*models.TraceManifest, error) {
	manifest := &models.TraceManifest{
		TraceID:   traceID,
		CreatedAt: s.nowFunc().UnixMilli(),
		Events:    []models.ReplayEvent{},
	}

	data, err := os.ReadFile(s.TracePath(traceID))
	if err != nil {
		if os.IsNotExist(err) {
			return manifest, nil
		}
		return nil, fmt.Errorf("read trace log: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var event models.ReplayEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		manifest.Events = append(manifest.Events, event)
	}

	if len(manifest.Events) > 0 {
		if at := manifest.Events[0].At; at > 0 {
			manifest.CreatedAt = at
		}
		for _, event := range manifest.Events {
			if event.Type != models.ReplayCreate {
				continue
			}
			if id, ok := event.Payload["session_id"].(string); ok {
				manifest.SessionID = id
			}
			break
		}
	}
	return manifest, nil
}

// Filter loads a trace and keeps events with start <= index <= end. Either
// bound may be nil. Results are sorted by index.
func (s *Store) Filter(traceID string, start, end *int) ([]models.ReplayEvent, error) {
	manifest, err := s.Load(traceID)
	if err != nil {
		return nil, err
	}

	events := make([]models.ReplayEvent, 0, len(manifest.Events))
	for _, event := range manifest.Events {
		if start != nil && event.Index < *start {
			continue
		}
		if end != nil && event.Index > *end {
			continue
		}
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Index < events[j].Index })
	return events, nil
}

// PersistIndex writes the sidecar index for a trace.
func (s *Store) PersistIndex(traceID string, events []models.ReplayEvent) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create traces root: %w", err)
	}

	index := models.TraceIndex{
		TraceID:   traceID,
		Total:     len(events),
		UpdatedAt: s.nowFunc().UnixMilli(),
	}
	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("encode trace index: %w", err)
	}
	if err := os.WriteFile(s.IndexPath(traceID), data, 0o644); err != nil {
		return fmt.Errorf("write trace index: %w", err)
	}
	return nil
}

// Cleanup removes a trace's log and index, best-effort.
func (s *Store) Cleanup(traceID string) error {
	var firstErr error
	for _, path := range []string{s.TracePath(traceID), s.IndexPath(traceID)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
