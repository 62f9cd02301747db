// Package validation produces advisory warnings for a generation request
// before it is sent. Warnings never block a request; vendor APIs remain the
// source of truth.
package validation

import (
	llmprovider "github.com/starhound/null-llm-go"
)

// Severity indicates how serious a validation warning is
type Severity string

const (
	SeverityInfo    Severity = "info"    // Informational (might be expected)
	SeverityWarning Severity = "warning" // Potentially problematic
	SeverityError   Severity = "error"   // Likely to cause API failure
)

// WarningCode is a machine-readable identifier for validation warnings
type WarningCode string

const (
	// Model warnings
	WarningCodeModelUnknown WarningCode = "MODEL_UNKNOWN"

	// Context warnings
	WarningCodeContextNearlyFull WarningCode = "CONTEXT_NEARLY_FULL"
	WarningCodeContextExceeded   WarningCode = "CONTEXT_EXCEEDED"

	// Tool warnings
	WarningCodeToolInvalid           WarningCode = "TOOL_INVALID"
	WarningCodeToolDuplicate         WarningCode = "TOOL_DUPLICATE"
	WarningCodeToolsUnsupported      WarningCode = "TOOLS_UNSUPPORTED"
	WarningCodeToolResultWithoutCall WarningCode = "TOOL_RESULT_WITHOUT_CALL"

	// Parameter warnings
	WarningCodeParameterInvalid WarningCode = "PARAMETER_INVALID"
)

// Warning represents a potential issue that might cause API failure.
type Warning struct {
	Code     WarningCode // Machine-readable code
	Category string      // "model", "context", "tool", "parameter"
	Field    string      // Field that might cause issues
	Value    any         // The potentially problematic value
	Message  string      // Human-readable warning
	Severity Severity    // How serious this warning is
}

// Request is everything a rule may inspect.
type Request struct {
	Provider      llmprovider.ProviderID
	Model         string
	SupportsTools bool
	Options       *llmprovider.Options

	llmprovider.GenerateRequest
}

// Rule interface allows adding custom validation logic
type Rule interface {
	// Name returns a human-readable name for this rule
	Name() string

	// Check validates a request and returns warnings
	Check(req *Request) []Warning
}
