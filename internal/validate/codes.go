// Package validate performs structural and semantic checks on tool
// arguments before any browser work happens, and exposes the string error
// codes surfaced to callers.
package validate

// Validation error codes.
const (
	CodeInvalidURL         = "INVALID_URL"
	CodeInvalidScheme      = "INVALID_SCHEME"
	CodeDisallowedScheme   = "DISALLOWED_SCHEME"
	CodeDomainNotAllowed   = "DOMAIN_NOT_ALLOWED"
	CodeDomainDenied       = "DOMAIN_DENIED"
	CodeInvalidTarget      = "INVALID_TARGET"
	CodeInvalidViewport    = "INVALID_VIEWPORT"
	CodeInvalidMaxSteps    = "INVALID_MAX_STEPS"
	CodeInvalidDuration    = "INVALID_DURATION"
	CodeInvalidAction      = "INVALID_ACTION"
	CodeMissingURL         = "MISSING_URL"
	CodeMissingText        = "MISSING_TEXT"
	CodeMissingKey         = "MISSING_KEY"
	CodeMissingTarget      = "MISSING_TARGET"
	CodeInvalidSelector    = "INVALID_SELECTOR"
	CodeInvalidTimeout     = "INVALID_TIMEOUT"
	CodeInvalidActionLimit = "INVALID_ACTION_LIMIT"
	CodeInvalidArguments   = "INVALID_ARGUMENTS"
)

// Runtime error codes.
const (
	CodePolicyDenied   = "POLICY_DENIED"
	CodeActionFailed   = "ACTION_FAILED"
	CodeNoNetworkEvent = "NO_NETWORK_EVENT"
)
