package validate

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/haasonsaas/webagent/pkg/models"
)

// Issue is one validation failure.
type Issue struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Result is the outcome of a validation pass.
type Result struct {
	OK     bool    `json:"ok"`
	Errors []Issue `json:"errors"`
}

func (r *Result) add(code, field, message string) {
	r.OK = false
	r.Errors = append(r.Errors, Issue{Code: code, Field: field, Message: message})
}

// Codes returns the error codes in order.
func (r *Result) Codes() []string {
	codes := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		codes[i] = e.Code
	}
	return codes
}

func newResult() Result {
	return Result{OK: true, Errors: []Issue{}}
}

// Schemes accepted for navigation targets.
var allowedSchemes = map[string]bool{"http": true, "https": true}

// Schemes rejected outright before the allowed-set check.
var disallowedSchemes = map[string]bool{"chrome": true, "file": true, "about": true}

const maxURLLength = 2048

// MatchHost reports whether host matches a list entry: exact match, or any
// subdomain of the entry.
func MatchHost(host, entry string) bool {
	host = strings.ToLower(host)
	entry = strings.ToLower(entry)
	return host == entry || strings.HasSuffix(host, "."+entry)
}

func matchAny(host string, entries []string) bool {
	for _, e := range entries {
		if MatchHost(host, e) {
			return true
		}
	}
	return false
}

// URL validates a navigation target against scheme rules and the configured
// host allow/deny lists.
func URL(raw string, allowlist, denylist []string) Result {
	res := newResult()

	if strings.TrimSpace(raw) == "" {
		res.add(CodeMissingURL, "url", "url is required")
		return res
	}
	if len(raw) > maxURLLength {
		res.add(CodeInvalidURL, "url", fmt.Sprintf("url exceeds %d characters", maxURLLength))
		return res
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" {
		res.add(CodeInvalidURL, "url", "url could not be parsed")
		return res
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch {
	case disallowedSchemes[scheme]:
		res.add(CodeDisallowedScheme, "url", fmt.Sprintf("scheme %q is disallowed", scheme))
		return res
	case !allowedSchemes[scheme]:
		res.add(CodeInvalidScheme, "url", fmt.Sprintf("scheme %q is not http or https", scheme))
		return res
	}

	host := parsed.Hostname()
	if host == "" {
		res.add(CodeInvalidURL, "url", "url has no host")
		return res
	}
	if matchAny(host, denylist) {
		res.add(CodeDomainDenied, "url", fmt.Sprintf("host %q is denied", host))
		return res
	}
	if len(allowlist) > 0 && !matchAny(host, allowlist) {
		res.add(CodeDomainNotAllowed, "url", fmt.Sprintf("host %q is not on the allowlist", host))
	}
	return res
}

// Actions the step executor understands.
var knownActions = map[string]bool{
	"navigate": true,
	"click":    true,
	"hover":    true,
	"type":     true,
	"press":    true,
	"scroll":   true,
	"drag":     true,
	"wait":     true,
	"wait_for": true,
}

// Action validates a step input's action and its per-action required fields.
func Action(in *models.StepInput) Result {
	res := newResult()
	if in == nil {
		res.add(CodeInvalidAction, "action", "step input is required")
		return res
	}

	if !knownActions[in.Action] {
		res.add(CodeInvalidAction, "action", fmt.Sprintf("unknown action %q", in.Action))
		return res
	}

	if in.TimeoutMS != 0 && (in.TimeoutMS < 50 || in.TimeoutMS > 120000) {
		res.add(CodeInvalidTimeout, "timeout_ms", "timeout_ms must be between 50 and 120000")
	}
	if in.MaxActionsPerStep != 0 && (in.MaxActionsPerStep < 1 || in.MaxActionsPerStep > 20) {
		res.add(CodeInvalidActionLimit, "max_actions_per_step", "max_actions_per_step must be between 1 and 20")
	}

	hasCoords := in.X != nil && in.Y != nil

	switch in.Action {
	case "navigate":
		if strings.TrimSpace(in.URL) == "" {
			res.add(CodeMissingURL, "url", "navigate requires url")
		} else {
			urlRes := URL(in.URL, nil, nil)
			res.Errors = append(res.Errors, urlRes.Errors...)
			if !urlRes.OK {
				res.OK = false
			}
		}
	case "click", "hover":
		if in.Selector == "" && !hasCoords {
			res.add(CodeInvalidSelector, "selector", in.Action+" requires a selector or x,y coordinates")
		}
	case "type":
		if in.Text == "" {
			res.add(CodeMissingText, "text", "type requires text")
		}
		if in.Selector == "" && !hasCoords {
			res.add(CodeInvalidSelector, "selector", "type requires a selector or x,y coordinates")
		}
	case "press":
		if in.Key == "" {
			res.add(CodeMissingKey, "key", "press requires key")
		}
	case "wait_for":
		if in.Target == "" {
			res.add(CodeMissingTarget, "target", "wait_for requires target")
		}
	case "drag":
		if !hasCoords || in.DeltaX == nil || in.DeltaY == nil {
			res.add(CodeInvalidTarget, "x", "drag requires x, y, delta_x, delta_y")
		}
	}
	return res
}

// Create validates a session-create input.
func Create(in *models.CreateInput, allowlist, denylist []string) Result {
	res := newResult()
	if in == nil {
		res.add(CodeMissingURL, "target_url", "target_url is required")
		return res
	}

	urlRes := URL(in.TargetURL, allowlist, denylist)
	if !urlRes.OK {
		res.OK = false
		res.Errors = append(res.Errors, urlRes.Errors...)
	}

	if vp := in.Viewport; vp != nil {
		if vp.Width < 320 || vp.Width > 7680 || vp.Height < 200 || vp.Height > 4320 {
			res.add(CodeInvalidViewport, "viewport", "viewport width must be 320-7680 and height 200-4320")
		}
	}
	if in.MaxSteps != 0 && (in.MaxSteps < 1 || in.MaxSteps > 50000) {
		res.add(CodeInvalidMaxSteps, "max_steps", "max_steps must be between 1 and 50000")
	}
	if in.MaxDurationMS != 0 && in.MaxDurationMS < 1000 {
		res.add(CodeInvalidDuration, "max_duration_ms", "max_duration_ms must be at least 1000")
	}
	return res
}
