package templatecenter

import (
	"errors"
	"net/http"
)

// ErrorKind classifies an Error for transport mapping and retry decisions.
type ErrorKind int

const (
	// KindNotFound marks a missing project, template, document, or gate.
	KindNotFound ErrorKind = iota + 1
	// KindForbidden marks cross-org/workspace access or a role violation.
	KindForbidden
	// KindBadRequest marks an unknown action or disallowed transition.
	KindBadRequest
	// KindConflict marks a blocked gate or an idempotency violation.
	KindConflict
	// KindDataIntegrity marks corrupt stored state, e.g. a template schema
	// that no longer parses. Distinct from KindNotFound on purpose: a 404
	// hides corruption that operators need to see.
	KindDataIntegrity
)

// Machine-readable error codes surfaced to callers and audit records.
const (
	CodeProjectNotFound         = "PROJECT_NOT_FOUND"
	CodeTemplateNotFound        = "TEMPLATE_NOT_FOUND"
	CodeTemplateVersionNotFound = "TEMPLATE_VERSION_NOT_FOUND"
	CodeDocumentNotFound        = "DOCUMENT_NOT_FOUND"
	CodeForbidden               = "FORBIDDEN"
	CodeInvalidAction           = "INVALID_ACTION"
	CodeInvalidStateTransition  = "INVALID_STATE_TRANSITION"
	CodeInvalidDecision         = "INVALID_DECISION"
	CodeVersionExists           = "VERSION_EXISTS"
	CodeSubsystemDisabled       = "TEMPLATE_CENTER_DISABLED"
	CodeInternal                = "INTERNAL"

	// Gate and policy codes use the wire spelling the gate API exposes.
	CodeGateBlocked        = "gate_blocked"
	CodeTemplateNotApplied = "template_not_applied"
	CodeGateNotDefined     = "gate_not_defined"
	CodeSchemaCorrupt      = "template_schema_corrupt"
)

// Error is the structured error type for all core operations. Kind drives
// the HTTP status, Code is machine-readable, and Details carries structured
// payloads such as gate blockers.
type Error struct {
	Kind    ErrorKind      `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// NotFoundError creates a KindNotFound error.
func NotFoundError(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// ForbiddenError creates a KindForbidden error.
func ForbiddenError(code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

// BadRequestError creates a KindBadRequest error.
func BadRequestError(code, message string) *Error {
	return &Error{Kind: KindBadRequest, Code: code, Message: message}
}

// ConflictError creates a KindConflict error.
func ConflictError(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// DataIntegrityError creates a KindDataIntegrity error.
func DataIntegrityError(code, message string) *Error {
	return &Error{Kind: KindDataIntegrity, Code: code, Message: message}
}

// Blocker types and reasons, as exposed on the gate API.
const (
	BlockerTypeDocument = "document"
	BlockerTypeKpi      = "kpi"

	ReasonMissingDocInstance = "missing_doc_instance"
	ReasonDocStateInvalid    = "doc_state_invalid"
	ReasonMissingProjectKpi  = "missing_project_kpi"
)

// Blocker is one unmet gate prerequisite.
type Blocker struct {
	Type   string `json:"type"`
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// GateBlockedError creates the structured Conflict returned when a gate
// decision of approved/approved_with_comments finds unmet prerequisites.
func GateBlockedError(gateKey string, blockers []Blocker) *Error {
	return &Error{
		Kind:    KindConflict,
		Code:    CodeGateBlocked,
		Message: "gate has unmet prerequisites",
		Details: map[string]any{
			"gateKey":  gateKey,
			"blockers": blockers,
		},
	}
}

// AsError extracts an *Error from err, or nil if err is of another type.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// ErrorCode returns the machine-readable code for err, or CodeInternal for
// errors outside the taxonomy.
func ErrorCode(err error) string {
	if e := AsError(err); e != nil {
		return e.Code
	}
	return CodeInternal
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	e := AsError(err)
	return e != nil && e.Kind == kind
}

// HTTPStatus maps an error to its HTTP status code. Errors outside the
// taxonomy map to 500.
func HTTPStatus(err error) int {
	e := AsError(err)
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindBadRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindDataIntegrity:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
