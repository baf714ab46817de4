package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// InternalMessage is the only text clients see for unexpected failures.
const InternalMessage = "Internal server error"

var (
	ErrValidationFailed   = errors.New("validation failed")
	ErrDuplicateName      = errors.New("duplicate product name")
	ErrProductNotFound    = errors.New("Product not found")
	ErrInvalidIdentifier  = errors.New("invalid product identifier")
	ErrMissingToken       = errors.New("No token provided")
	ErrInvalidToken       = errors.New("Invalid or expired token")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// AppError wraps an underlying error with an HTTP status and a message that is
// safe to hand back to the client.
type AppError struct {
	Err     error
	Status  int
	Message string
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(err error, status int, message string) *AppError {
	return &AppError{Err: err, Status: status, Message: message}
}

// DuplicateName reports that a product called name already exists.
func DuplicateName(name string) *AppError {
	return New(ErrDuplicateName, http.StatusBadRequest,
		fmt.Sprintf("A product named %q already exists.", name))
}

// Storage wraps an infrastructure failure. The underlying error is kept for
// logs but never rendered to clients.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	return New(fmt.Errorf("%w: %v", ErrStorageUnavailable, err), http.StatusInternalServerError, InternalMessage)
}

// Resolve maps any error to the HTTP status and client message it should be
// reported with. Unknown errors become opaque 500s.
func Resolve(err error) (int, string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status, appErr.Message
	}

	switch {
	case errors.Is(err, ErrValidationFailed):
		return http.StatusBadRequest, ErrValidationFailed.Error()
	case errors.Is(err, ErrDuplicateName):
		return http.StatusBadRequest, ErrDuplicateName.Error()
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrInvalidIdentifier):
		return http.StatusNotFound, ErrProductNotFound.Error()
	case errors.Is(err, ErrMissingToken):
		return http.StatusUnauthorized, ErrMissingToken.Error()
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrInvalidCredentials.Error()
	case errors.Is(err, ErrInvalidToken):
		return http.StatusForbidden, ErrInvalidToken.Error()
	}
	return http.StatusInternalServerError, InternalMessage
}
