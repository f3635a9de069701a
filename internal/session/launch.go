package session

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/playwright-community/playwright-go"

	"github.com/haasonsaas/webagent/internal/action"
	"github.com/haasonsaas/webagent/internal/capture"
	"github.com/haasonsaas/webagent/internal/state"
	"github.com/haasonsaas/webagent/pkg/models"
)

const initialNavTimeoutMS = 120_000

// Hardened launch arguments for headless automation.
var launchArgs = []string{
	"--disable-dev-shm-usage",
	"--disable-background-networking",
	"--disable-default-apps",
	"--disable-extensions",
	"--disable-sync",
	"--no-first-run",
	"--mute-audio",
}

// launch brings up the driver stack for this session: browser, context,
// page, network listeners, capture coordinator, state builder, and action
// executor. On error the caller tears down whatever was registered.
func (s *Session) launch(ctx context.Context) error {
	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("start driver: %w", err)
	}
	s.closers = append(s.closers, pw.Stop)

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.cfg.Headless),
		Args:     launchArgs,
	})
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	s.closers = append([]func() error{func() error { return browser.Close() }}, s.closers...)

	contextOptions := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  s.cfg.Viewport.Width,
			Height: s.cfg.Viewport.Height,
		},
	}
	if s.cfg.StorageStatePath != "" {
		contextOptions.StorageStatePath = playwright.String(s.cfg.StorageStatePath)
	}
	browserContext, err := browser.NewContext(contextOptions)
	if err != nil {
		return fmt.Errorf("create browser context: %w", err)
	}
	s.closers = append([]func() error{func() error { return browserContext.Close() }}, s.closers...)

	page, err := browserContext.NewPage()
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	s.closers = append([]func() error{func() error { return page.Close() }}, s.closers...)

	s.wireNetworkListeners(page)

	if s.cfg.Profile != models.ProfileDOMOnly {
		s.frames = capture.NewCoordinator(capture.Config{
			Enabled:   true,
			SessionID: s.cfg.ID,
			TraceID:   s.cfg.TraceID,
			MaxWidth:  s.cfg.Viewport.Width,
			MaxHeight: s.cfg.Viewport.Height,
			MaxFrames: resolveFrameCapacity(s.cfg),
			Adaptive:  s.cfg.Profile == models.ProfileAdaptive,
			TraceDir:  s.store.FramesDir(s.cfg.TraceID),
		}, func() (capture.Channel, error) {
			cdp, err := browserContext.NewCDPSession(page)
			if err != nil {
				return nil, err
			}
			return cdp, nil
		}, s.logger, s.metrics)
	}

	if _, err := page.Goto(s.cfg.TargetURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(initialNavTimeoutMS),
	}); err != nil {
		return fmt.Errorf("navigate to %s: %w", s.cfg.TargetURL, err)
	}

	ax := func() (any, error) {
		return page.Locator("body").AriaSnapshot()
	}
	s.builder = state.NewBuilder(page, ax, s.network, s.frameSource(), s.logger)
	s.executor = action.NewExecutor(action.Adapt(page), s.network, s.logger, s.metrics)
	return nil
}

// frameSource adapts the optional coordinator to the builder's seam. A
// dom_only session has no coordinator and no frame source.
func (s *Session) frameSource() state.FrameSource {
	if source, ok := s.frames.(state.FrameSource); ok {
		return source
	}
	return nil
}

// wireNetworkListeners streams request lifecycle events onto the network
// ring with the r_/p_/f_ id prefixes.
func (s *Session) wireNetworkListeners(page playwright.Page) {
	var seq atomic.Int64

	page.OnRequest(func(request playwright.Request) {
		s.network.Push(models.NetworkEvent{
			ID:     fmt.Sprintf("%s%d", models.NetworkRequestPrefix, seq.Add(1)),
			URL:    request.URL(),
			Method: request.Method(),
			Time:   s.nowFunc().UnixMilli(),
		})
	})

	page.OnResponse(func(response playwright.Response) {
		s.network.Push(models.NetworkEvent{
			ID:     fmt.Sprintf("%s%d", models.NetworkResponsePrefix, seq.Add(1)),
			URL:    response.URL(),
			Method: response.Request().Method(),
			Status: response.Status(),
			Time:   s.nowFunc().UnixMilli(),
		})
	})

	page.OnRequestFailed(func(request playwright.Request) {
		failureText := ""
		if failure := request.Failure(); failure != nil {
			failureText = failure.Error()
		}
		s.network.Push(models.NetworkEvent{
			ID:          fmt.Sprintf("%s%d", models.NetworkFailurePrefix, seq.Add(1)),
			URL:         request.URL(),
			Method:      request.Method(),
			Time:        s.nowFunc().UnixMilli(),
			FailureText: failureText,
		})
	})
}
