package store

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("store: record not found")
	ErrConflict   = errors.New("store: record was changed concurrently")
	ErrDuplicate  = errors.New("store: record violates a unique constraint")
	ErrReferenced = errors.New("store: record is still referenced")
	ErrNilEntity  = errors.New("store: entity required")
	ErrInvalid    = errors.New("store: record is invalid")
)

// ServiceError carries a stable operation.reason code next to the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

// NewServiceError builds the "<operation>.<reason>" coded error.
func NewServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ErrorCode returns the service error code within err, or "" when none.
func ErrorCode(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code()
	}
	return ""
}

// Reason classifies err into the short reason used in service error codes.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrReferenced):
		return "referenced"
	case errors.Is(err, ErrInvalid):
		return "invalid"
	default:
		return "query_failed"
	}
}

// ValidationError reports a field that breaks a declared constraint.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Translate maps driver errors onto the package sentinels. Both the sqlite and
// the postgres dialector translate unique violations when TranslateError is
// set; the string checks cover connections opened without it.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %v", ErrReferenced, err)
	}
	message := err.Error()
	switch {
	case strings.Contains(message, "UNIQUE constraint failed"),
		strings.Contains(message, "duplicate key value"):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case strings.Contains(message, "FOREIGN KEY constraint failed"),
		strings.Contains(message, "violates foreign key constraint"):
		return fmt.Errorf("%w: %v", ErrReferenced, err)
	}
	return err
}
