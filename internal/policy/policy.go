// Package policy decides whether a step's action may execute. The gate runs
// before the action, using the pre-state packet; a denial must not mutate
// session state.
package policy

import (
	"regexp"

	"github.com/haasonsaas/webagent/pkg/models"
)

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Allowed bool
	Reason  string
}

// Adapter evaluates one step against a policy mode.
type Adapter interface {
	// Mode returns the policy mode this adapter implements.
	Mode() models.PolicyMode

	// Evaluate decides whether the action may execute, given the pre-state.
	Evaluate(pre *models.StatePacket, in *models.StepInput) Decision
}

// ForMode returns the adapter for a policy mode, defaulting to
// model_owns_action for unrecognized values.
func ForMode(mode models.PolicyMode) Adapter {
	if mode == models.PolicyDeterministic {
		return &Deterministic{}
	}
	return &ModelOwnsAction{}
}

// ModelOwnsAction lets every action through.
type ModelOwnsAction struct{}

// Mode implements Adapter.
func (*ModelOwnsAction) Mode() models.PolicyMode { return models.PolicyModelOwnsAction }

// Evaluate implements Adapter.
func (*ModelOwnsAction) Evaluate(_ *models.StatePacket, _ *models.StepInput) Decision {
	return Decision{Allowed: true}
}

var unsafeNavigation = regexp.MustCompile(`^(javascript:|data:|file:|about:|chrome:)`)

// Deterministic blocks navigations to unsafe schemes.
type Deterministic struct{}

// Mode implements Adapter.
func (*Deterministic) Mode() models.PolicyMode { return models.PolicyDeterministic }

// Evaluate implements Adapter.
func (*Deterministic) Evaluate(_ *models.StatePacket, in *models.StepInput) Decision {
	if in != nil && in.Action == "navigate" && unsafeNavigation.MatchString(in.URL) {
		return Decision{Allowed: false, Reason: "navigation to unsafe scheme blocked by deterministic policy"}
	}
	return Decision{Allowed: true}
}
