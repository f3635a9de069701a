// Package state merges DOM, accessibility, network, and frame observations
// into a single state packet with a stable change-detection token.
package state

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/haasonsaas/webagent/internal/ring"
	"github.com/haasonsaas/webagent/pkg/models"
)

// Sampling limits.
const (
	networkSampleSize = 100
	defaultFrameTake  = 6
	regionConfidence  = 0.78
)

// Page is the subset of the driver page the builder reads.
type Page interface {
	URL() string
	Title() (string, error)
	Evaluate(expression string, arg ...interface{}) (interface{}, error)
}

// FrameSource exposes the capture coordinator's ring to the builder.
type FrameSource interface {
	Recent(n int) []models.FrameRef
	Health() models.QueueHealth
}

// Options selects what one packet includes.
type Options struct {
	IncludeDOM     bool
	IncludeAX      bool
	IncludeNetwork bool
	IncludeFrames  bool
	MaxFrames      *int
}

// Builder samples the page and rings on demand. It remembers the last state
// token per instance; there is no cross-session sharing.
type Builder struct {
	page    Page
	ax      func() (any, error)
	network *ring.Ring[models.NetworkEvent]
	frames  FrameSource
	logger  *slog.Logger

	mu        sync.Mutex
	lastToken string

	nowFunc func() time.Time // For testing
}

// NewBuilder creates a builder. ax may be nil when the session has no
// accessibility provider.
func NewBuilder(page Page, ax func() (any, error), network *ring.Ring[models.NetworkEvent], frames FrameSource, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		page:    page,
		ax:      ax,
		network: network,
		frames:  frames,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// SetNowFunc sets a custom time function for testing.
func (b *Builder) SetNowFunc(fn func() time.Time) {
	b.nowFunc = fn
}

// Build assembles one state packet. The rings are sampled at this instant;
// no snapshot barrier is taken against the capture loop.
func (b *Builder) Build(opts Options) (*models.StatePacket, error) {
	url := b.page.URL()
	title, err := b.page.Title()
	if err != nil {
		title = ""
	}

	packet := &models.StatePacket{
		Timestamp:     b.nowFunc().UnixMilli(),
		URL:           url,
		Title:         title,
		NetworkEvents: []models.NetworkEvent{},
		FrameRefs:     []models.FrameRef{},
	}

	if opts.IncludeDOM {
		dom, err := b.summarizeDOM()
		if err != nil {
			b.logger.Debug("dom summary failed", "error", err)
		} else {
			packet.DOM = dom
			packet.RegionDetections = synthesizeRegions(dom)
		}
	}

	if opts.IncludeAX && b.ax != nil {
		if snapshot, err := b.ax(); err == nil {
			packet.Accessibility = snapshot
		}
	}

	if opts.IncludeNetwork && b.network != nil {
		packet.NetworkEvents = b.network.Last(networkSampleSize)
	}

	if opts.IncludeFrames && b.frames != nil {
		take := defaultFrameTake
		if opts.MaxFrames != nil {
			take = *opts.MaxFrames
		}
		if take < 1 {
			take = 1
		}
		packet.FrameRefs = b.frames.Recent(take)
	}

	if b.frames != nil {
		packet.QueueHealth = b.frames.Health()
	}

	packet.StateToken = StateToken(url, title, packet.DOM, len(packet.NetworkEvents), len(packet.FrameRefs))
	packet.ChangeTokens = b.advanceToken(packet.StateToken)
	return packet, nil
}

// advanceToken compares the new token to the previous one and records it.
func (b *Builder) advanceToken(token string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.lastToken
	b.lastToken = token

	switch {
	case prev == "":
		return []string{models.ChangeInit}
	case prev == token:
		return []string{models.ChangeNone}
	default:
		return []string{models.ChangeChanged}
	}
}

// tokenPayload is the canonical serialization the state token hashes.
// Field order is fixed by the struct definition.
type tokenPayload struct {
	URL          string   `json:"url"`
	Title        string   `json:"title"`
	DOM          tokenDOM `json:"dom"`
	NetworkCount int      `json:"networkCount"`
	FrameCount   int      `json:"frameCount"`
}

type tokenDOM struct {
	InteractiveCount *int `json:"interactive_count,omitempty"`
	Buttons          *int `json:"buttons,omitempty"`
	TextInputs       *int `json:"text_inputs,omitempty"`
	Links            *int `json:"links,omitempty"`
	Iframes          *int `json:"iframes,omitempty"`
	CanvasNodes      *int `json:"canvas_nodes,omitempty"`
}

// StateToken computes the SHA-1 change-detection token over the canonical
// packet subset. DOM counts are omitted (empty object) when the packet has
// no DOM summary.
func StateToken(url, title string, dom *models.DOMSummary, networkCount, frameCount int) string {
	payload := tokenPayload{
		URL:          url,
		Title:        title,
		NetworkCount: networkCount,
		FrameCount:   frameCount,
	}
	if dom != nil {
		payload.DOM = tokenDOM{
			InteractiveCount: &dom.InteractiveCount,
			Buttons:          &dom.Buttons,
			TextInputs:       &dom.TextInputs,
			Links:            &dom.Links,
			Iframes:          &dom.Iframes,
			CanvasNodes:      &dom.CanvasNodes,
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(fmt.Sprintf("%s|%s|%d|%d", url, title, networkCount, frameCount))
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// WithSessionID returns a structural copy of the packet with the session id
// set and a fresh queue-health copy.
func WithSessionID(packet *models.StatePacket, sessionID string) *models.StatePacket {
	if packet == nil {
		return nil
	}
	out := *packet
	out.SessionID = sessionID
	out.QueueHealth = packet.QueueHealth
	return &out
}

// synthesizeRegions derives region detections from the top interactive
// elements, each with a fixed confidence.
func synthesizeRegions(dom *models.DOMSummary) []models.RegionDetection {
	if dom == nil || len(dom.TopElements) == 0 {
		return nil
	}
	regions := make([]models.RegionDetection, 0, len(dom.TopElements))
	for _, el := range dom.TopElements {
		label := el.Tag
		if el.ID != "" {
			label += "#" + el.ID
		}
		regions = append(regions, models.RegionDetection{
			Label:      label,
			Confidence: regionConfidence,
			Bounds:     el.Bounds,
		})
	}
	return regions
}
