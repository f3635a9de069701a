package action

import (
	"github.com/playwright-community/playwright-go"
)

// Adapt wraps a playwright page in the executor's driver surface.
func Adapt(page playwright.Page) Page {
	return &pwPage{page: page}
}

type pwPage struct {
	page playwright.Page
}

func (p *pwPage) URL() string { return p.page.URL() }

func (p *pwPage) Navigate(url string, timeoutMS float64) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(timeoutMS),
	})
	return err
}

func (p *pwPage) Element(selector string) Element {
	return &pwElement{loc: p.page.Locator(selector)}
}

func (p *pwPage) Pointer() Pointer { return &pwPointer{mouse: p.page.Mouse()} }

func (p *pwPage) Keys() Keys { return &pwKeys{keyboard: p.page.Keyboard()} }

func (p *pwPage) WaitForLoad(state string, timeoutMS float64) error {
	loadState := playwright.LoadStateDomcontentloaded
	if state == "networkidle" {
		loadState = playwright.LoadStateNetworkidle
	}
	return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   loadState,
		Timeout: playwright.Float(timeoutMS),
	})
}

// pwElement keeps the unnarrowed locator for counting and narrows to First
// for interaction, so a multi-match selector acts on the first hit.
type pwElement struct {
	loc playwright.Locator
}

func (e *pwElement) Count() (int, error) { return e.loc.Count() }

func (e *pwElement) WaitVisible(timeoutMS float64) error {
	return e.loc.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(timeoutMS),
	})
}

func (e *pwElement) Click() error { return e.loc.First().Click() }

func (e *pwElement) Hover() error { return e.loc.First().Hover() }

func (e *pwElement) Fill(text string) error { return e.loc.First().Fill(text) }

type pwPointer struct {
	mouse playwright.Mouse
}

func (m *pwPointer) Click(x, y float64) error { return m.mouse.Click(x, y) }

func (m *pwPointer) Move(x, y float64, steps int) error {
	return m.mouse.Move(x, y, playwright.MouseMoveOptions{Steps: playwright.Int(steps)})
}

func (m *pwPointer) Down() error { return m.mouse.Down() }

func (m *pwPointer) Up() error { return m.mouse.Up() }

func (m *pwPointer) Wheel(deltaX, deltaY float64) error { return m.mouse.Wheel(deltaX, deltaY) }

type pwKeys struct {
	keyboard playwright.Keyboard
}

func (k *pwKeys) Press(key string, delayMS float64) error {
	return k.keyboard.Press(key, playwright.KeyboardPressOptions{Delay: playwright.Float(delayMS)})
}

func (k *pwKeys) Type(text string) error { return k.keyboard.Type(text) }
