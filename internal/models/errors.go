package models

import "fmt"

// Client-visible error codes. These surface verbatim to transfer callers when
// they originate from a ledger leg.
const (
	ErrInvalidDocument  = "INVALID_DOCUMENT"
	ErrUserUnauthorized = "USER_UNAUTHORIZED"
	ErrInvalidAccount   = "INVALID_ACCOUNT"
	ErrInactiveAccount  = "INACTIVE_ACCOUNT"
	ErrInvalidValue     = "INVALID_VALUE"
	ErrInvalidType      = "INVALID_TYPE"
)

// APIError is a typed error carrying one of the error codes above. It is what
// the account client returns so the transfer saga can surface upstream codes.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code, message string) *APIError {
	return &APIError{Code: code, Message: message}
}
