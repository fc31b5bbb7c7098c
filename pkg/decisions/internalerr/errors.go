package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound                  = errors.New("not found")
	ErrInvalidInput              = errors.New("invalid input")
	ErrForbidden                 = errors.New("forbidden")
	ErrConflict                  = errors.New("conflict")
	ErrDuplicate                 = errors.New("duplicate entry")
	ErrStoreUnavailable          = errors.New("store unavailable")
	ErrInvalidConfig             = errors.New("invalid configuration")
	ErrClassificationUnavailable = errors.New("classification unavailable")
)

// UserError is a rejected request whose message is shown verbatim to the
// requesting user. It never changes state.
type UserError struct {
	Msg string
	Err error // ErrInvalidInput, ErrForbidden or ErrNotFound
}

func (e *UserError) Error() string { return e.Msg }

func (e *UserError) Unwrap() error { return e.Err }

// NewUserError builds a UserError of the given class.
func NewUserError(class error, msg string) *UserError {
	return &UserError{Msg: msg, Err: class}
}

// IsUserError reports whether err (or anything it wraps) is a UserError.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}
