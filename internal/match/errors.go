package match

import "errors"

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrSelfJoin          = errors.New("self join")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInternal          = errors.New("internal error")
	ErrInvalidTier       = errors.New("invalid tier")
	ErrForbidden         = errors.New("forbidden")
)

// Error carries a user-facing message for one of the sentinel kinds above
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func fail(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}
