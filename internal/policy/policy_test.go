package policy

import (
	"testing"

	"github.com/haasonsaas/webagent/pkg/models"
)

func TestForMode(t *testing.T) {
	if a := ForMode(models.PolicyDeterministic); a.Mode() != models.PolicyDeterministic {
		t.Errorf("mode = %q", a.Mode())
	}
	if a := ForMode(models.PolicyModelOwnsAction); a.Mode() != models.PolicyModelOwnsAction {
		t.Errorf("mode = %q", a.Mode())
	}
	if a := ForMode("bogus"); a.Mode() != models.PolicyModelOwnsAction {
		t.Errorf("unknown mode should default to model_owns_action, got %q", a.Mode())
	}
}

func TestModelOwnsActionAllowsEverything(t *testing.T) {
	a := &ModelOwnsAction{}
	in := &models.StepInput{Action: "navigate", URL: "javascript:alert(1)"}
	if d := a.Evaluate(nil, in); !d.Allowed {
		t.Error("model_owns_action should allow unsafe navigation")
	}
}

func TestDeterministicBlocksUnsafeSchemes(t *testing.T) {
	a := &Deterministic{}

	blocked := []string{
		"javascript:alert(1)",
		"data:text/html,<script>",
		"file:///etc/passwd",
		"about:blank",
		"chrome://settings",
	}
	for _, u := range blocked {
		d := a.Evaluate(nil, &models.StepInput{Action: "navigate", URL: u})
		if d.Allowed {
			t.Errorf("navigate %q should be denied", u)
		}
		if d.Reason == "" {
			t.Errorf("denial for %q should carry a reason", u)
		}
	}

	if d := a.Evaluate(nil, &models.StepInput{Action: "navigate", URL: "https://example.com"}); !d.Allowed {
		t.Error("https navigation should be allowed")
	}
	// Only navigations are inspected.
	if d := a.Evaluate(nil, &models.StepInput{Action: "click", URL: "javascript:void(0)"}); !d.Allowed {
		t.Error("non-navigate actions pass")
	}
}
