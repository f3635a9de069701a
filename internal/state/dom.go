package state

import (
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/webagent/pkg/models"
)

// domSummaryExpression runs inside the page and returns category counts plus
// the top interactive elements. Bounds are rounded and clamped to >= 0 so a
// partially off-screen element still yields a usable rectangle.
const domSummaryExpression = `() => {
  const selector = 'button, input, textarea, select, a, [role="button"], [role="link"], [onclick], canvas';
  const nodes = Array.from(document.querySelectorAll(selector));
  const clamp = (v) => Math.max(0, Math.round(v));
  const summary = {
    interactive_count: nodes.length,
    text_inputs: document.querySelectorAll('input[type="text"], input[type="search"], input[type="email"], input[type="password"], input:not([type]), textarea').length,
    buttons: document.querySelectorAll('button, input[type="button"], input[type="submit"], [role="button"]').length,
    links: document.querySelectorAll('a[href], [role="link"]').length,
    iframes: document.querySelectorAll('iframe').length,
    canvas_nodes: document.querySelectorAll('canvas').length,
    top_elements: [],
  };
  for (const node of nodes.slice(0, 12)) {
    const rect = node.getBoundingClientRect();
    summary.top_elements.push({
      tag: node.tagName.toLowerCase(),
      id: node.id || '',
      name: node.getAttribute('name') || '',
      role: node.getAttribute('role') || '',
      text: (node.innerText || node.value || '').trim().slice(0, 64),
      bounds: {
        x: clamp(rect.x),
        y: clamp(rect.y),
        width: clamp(rect.width),
        height: clamp(rect.height),
      },
    });
  }
  return summary;
}`

// summarizeDOM evaluates the summary expression and decodes the result into
// the typed summary via a JSON round trip. The driver hands back untyped
// maps, so the round trip is the cheapest faithful decode.
func (b *Builder) summarizeDOM() (*models.DOMSummary, error) {
	raw, err := b.page.Evaluate(domSummaryExpression)
	if err != nil {
		return nil, fmt.Errorf("evaluate dom summary: %w", err)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode dom summary: %w", err)
	}
	var summary models.DOMSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("decode dom summary: %w", err)
	}
	return &summary, nil
}
