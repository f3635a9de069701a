// Package capture maintains a bounded ring of recent screencast frames fed
// by the driver's remote-debug channel. Every frame the driver delivers is
// acknowledged, kept or not, so the driver never stalls; retention is
// decided by an adaptive throttle with a time-bounded burst window.
package capture

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/page"

	"github.com/haasonsaas/webagent/internal/observability"
	"github.com/haasonsaas/webagent/internal/ring"
	"github.com/haasonsaas/webagent/pkg/models"
)

// Throttle intervals. Steady state keeps at most ~3 frames/s; a visual
// drift signal opens a burst window at ~8 frames/s.
const (
	steadyIntervalMS = 333
	burstIntervalMS  = 125
	burstWindowMS    = 2000
)

// Channel is the remote-debug channel to the page. playwright's CDPSession
// satisfies it directly.
type Channel interface {
	Send(method string, params map[string]interface{}) (interface{}, error)
	On(name string, handler interface{})
	Detach() error
}

// Config configures a Coordinator.
type Config struct {
	Enabled   bool
	SessionID string
	TraceID   string
	Quality   int
	MaxWidth  int
	MaxHeight int
	MaxFrames int
	Adaptive  bool
	TraceDir  string
}

// Coordinator couples the asynchronous screencast stream to a bounded frame
// ring. Acknowledgement to the driver is independent of whether a frame is
// retained.
type Coordinator struct {
	cfg     Config
	open    func() (Channel, error)
	logger  *slog.Logger
	metrics *observability.Metrics

	frames  *ring.Ring[models.FrameRef]
	pending atomic.Int64
	seq     atomic.Int64

	mu             sync.Mutex
	active         bool
	ch             Channel
	lastCapturedMS int64
	burstUntilMS   int64
	dropsReported  int64

	nowFunc func() time.Time // For testing
}

// NewCoordinator creates a coordinator. open is called once at Start to
// acquire the remote-debug channel.
func NewCoordinator(cfg Config, open func() (Channel, error), logger *slog.Logger, metrics *observability.Metrics) *Coordinator {
	if cfg.MaxFrames < 1 {
		cfg.MaxFrames = 1
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = 70
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 1280
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = 800
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:     cfg,
		open:    open,
		logger:  logger,
		metrics: metrics,
		frames:  ring.New[models.FrameRef](cfg.MaxFrames),
		nowFunc: time.Now,
	}
}

// SetNowFunc sets a custom time function for testing.
func (c *Coordinator) SetNowFunc(fn func() time.Time) {
	c.nowFunc = fn
}

// Start opens the remote-debug channel, subscribes to screencast frames,
// and starts the screencast. No-op if disabled or already active.
func (c *Coordinator) Start() error {
	if !c.cfg.Enabled {
		return nil
	}
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	ch, err := c.open()
	if err != nil {
		return fmt.Errorf("open remote-debug channel: %w", err)
	}

	ch.On("Page.screencastFrame", func(ev map[string]interface{}) {
		c.handleFrame(ev)
	})

	if _, err := ch.Send("Page.enable", map[string]interface{}{}); err != nil {
		_ = ch.Detach()
		return fmt.Errorf("enable page domain: %w", err)
	}
	if _, err := ch.Send("Page.startScreencast", map[string]interface{}{
		"format":        "jpeg",
		"quality":       c.cfg.Quality,
		"maxWidth":      c.cfg.MaxWidth,
		"maxHeight":     c.cfg.MaxHeight,
		"everyNthFrame": 1,
	}); err != nil {
		_ = ch.Detach()
		return fmt.Errorf("start screencast: %w", err)
	}

	c.mu.Lock()
	c.ch = ch
	c.active = true
	c.mu.Unlock()

	c.logger.Debug("screencast started",
		"session_id", c.cfg.SessionID,
		"quality", c.cfg.Quality,
		"max_frames", c.cfg.MaxFrames)
	return nil
}

// handleFrame processes one screencast frame event. Whether the frame is
// kept or throttled away, any frame carrying a driver session id is
// acknowledged.
func (c *Coordinator) handleFrame(raw map[string]interface{}) {
	c.pending.Add(1)
	defer c.pending.Add(-1)

	started := c.nowFunc()
	event := decodeFrameEvent(raw)

	c.mu.Lock()
	active := c.active
	keep := active && c.shouldCaptureLocked(started.UnixMilli())
	ch := c.ch
	c.mu.Unlock()

	if keep && event != nil && len(event.Data) > 0 {
		if err := c.retainFrame(event, started); err != nil {
			c.logger.Warn("frame retention failed", "session_id", c.cfg.SessionID, "error", err)
		}
	}

	if event != nil && event.SessionID != 0 && ch != nil {
		if _, err := ch.Send("Page.screencastFrameAck", map[string]interface{}{
			"sessionId": event.SessionID,
		}); err != nil {
			c.logger.Debug("frame ack failed", "session_id", c.cfg.SessionID, "error", err)
		}
	}
}

// retainFrame decodes the frame payload, checksums the raw bytes, writes the
// JPEG artifact, and pushes a reference onto the ring.
func (c *Coordinator) retainFrame(event *page.EventScreencastFrame, started time.Time) error {
	raw, err := base64.StdEncoding.DecodeString(event.Data)
	if err != nil {
		return fmt.Errorf("decode frame data: %w", err)
	}
	sum := sha1.Sum(raw)
	seq := c.seq.Add(1)
	nowMS := started.UnixMilli()
	frameID := fmt.Sprintf("%s-%d-%d", c.cfg.SessionID, nowMS, seq)

	framesDir := filepath.Join(c.cfg.TraceDir, "frames")
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return fmt.Errorf("create frames dir: %w", err)
	}
	path := filepath.Join(framesDir, frameID+".jpg")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write frame artifact: %w", err)
	}

	width, height := c.cfg.MaxWidth, c.cfg.MaxHeight
	scale := 1.0
	if md := event.Metadata; md != nil {
		if md.DeviceWidth > 0 {
			width = int(md.DeviceWidth)
		}
		if md.DeviceHeight > 0 {
			height = int(md.DeviceHeight)
		}
		if md.PageScaleFactor > 0 {
			scale = md.PageScaleFactor
		}
	}

	c.frames.Push(models.FrameRef{
		ID:        frameID,
		Timestamp: nowMS,
		Width:     width,
		Height:    height,
		MIME:      "image/jpeg",
		Checksum:  hex.EncodeToString(sum[:]),
		Path:      path,
		Metadata: map[string]any{
			"raw_bytes":     len(raw),
			"processing_ms": c.nowFunc().Sub(started).Milliseconds(),
			"source_scale":  scale,
		},
	})

	c.mu.Lock()
	delta := c.frames.Dropped() - c.dropsReported
	c.dropsReported = c.frames.Dropped()
	c.mu.Unlock()
	c.metrics.RecordFrame(delta)
	return nil
}

// shouldCaptureLocked decides retention for a frame arriving now. The first
// frame is always kept. Callers hold c.mu.
func (c *Coordinator) shouldCaptureLocked(nowMS int64) bool {
	if c.lastCapturedMS == 0 {
		c.lastCapturedMS = nowMS
		return true
	}
	interval := int64(steadyIntervalMS)
	if nowMS < c.burstUntilMS {
		interval = burstIntervalMS
	}
	if nowMS-c.lastCapturedMS < interval {
		return false
	}
	c.lastCapturedMS = nowMS
	return true
}

// SignalVisualDrift opens the burst window when the throttle is adaptive.
func (c *Coordinator) SignalVisualDrift() {
	if !c.cfg.Adaptive {
		return
	}
	c.mu.Lock()
	c.burstUntilMS = c.nowFunc().UnixMilli() + burstWindowMS
	c.mu.Unlock()
}

// Stop disables capture before tearing the channel down, so a stopped
// coordinator pushes no further refs.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	ch := c.ch
	c.ch = nil
	c.mu.Unlock()

	if ch != nil {
		if _, err := ch.Send("Page.stopScreencast", map[string]interface{}{}); err != nil {
			c.logger.Debug("stop screencast failed", "session_id", c.cfg.SessionID, "error", err)
		}
		if err := ch.Detach(); err != nil {
			c.logger.Debug("channel detach failed", "session_id", c.cfg.SessionID, "error", err)
		}
	}

	c.frames.Clear()
	c.pending.Store(0)
}

// QueueDepth returns the current ring depth.
func (c *Coordinator) QueueDepth() int { return c.frames.Depth() }

// QueueMax returns the ring capacity.
func (c *Coordinator) QueueMax() int { return c.frames.Cap() }

// DroppedFrames returns the total evictions from the ring.
func (c *Coordinator) DroppedFrames() int64 { return c.frames.Dropped() }

// PendingAcks returns the number of frames with acknowledgement in flight.
func (c *Coordinator) PendingAcks() int64 { return c.pending.Load() }

// QueueSnapshot returns a copy of the current ring contents.
func (c *Coordinator) QueueSnapshot() []models.FrameRef { return c.frames.Snapshot() }

// Recent returns the newest n frame refs, oldest first.
func (c *Coordinator) Recent(n int) []models.FrameRef { return c.frames.Last(n) }

// LatestFrame returns the newest frame ref, if any.
func (c *Coordinator) LatestFrame() *models.FrameRef {
	ref, ok := c.frames.Latest()
	if !ok {
		return nil
	}
	return &ref
}

// Health reports the ring's observable state.
func (c *Coordinator) Health() models.QueueHealth {
	return models.QueueHealth{
		Depth:   c.frames.Depth(),
		Max:     c.frames.Cap(),
		Dropped: c.frames.Dropped(),
		Pending: c.pending.Load(),
	}
}

// decodeFrameEvent decodes the raw CDP event params into the typed
// screencast frame event. Returns nil when the payload is unusable.
func decodeFrameEvent(raw map[string]interface{}) *page.EventScreencastFrame {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var event page.EventScreencastFrame
	if err := json.Unmarshal(data, &event); err != nil {
		return nil
	}
	return &event
}
