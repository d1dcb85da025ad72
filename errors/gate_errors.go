package errors

import "fmt"

// GateError represents a standardized gate error surfaced to visitors or logs.
type GateError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *GateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Gate error codes
const (
	InvalidRequest     = "invalid_request"
	MissingCredential  = "missing_credential"
	DeniedByPolicy     = "denied_by_policy"
	SessionInvalid     = "session_invalid"
	LookupFailed       = "lookup_failed"
	NotificationFailed = "notification_failed"
	ServerError        = "server_error"
)

// Common error constructors
func NewInvalidRequest(description string) *GateError {
	return &GateError{
		Code:        InvalidRequest,
		Description: description,
	}
}

func NewMissingCredential(description string) *GateError {
	return &GateError{
		Code:        MissingCredential,
		Description: description,
	}
}

func NewDeniedByPolicy(description string) *GateError {
	return &GateError{
		Code:        DeniedByPolicy,
		Description: description,
	}
}

func NewSessionInvalid(description string) *GateError {
	return &GateError{
		Code:        SessionInvalid,
		Description: description,
	}
}

func NewLookupFailed(description string) *GateError {
	return &GateError{
		Code:        LookupFailed,
		Description: description,
	}
}

func NewServerError(description string) *GateError {
	return &GateError{
		Code:        ServerError,
		Description: description,
	}
}
