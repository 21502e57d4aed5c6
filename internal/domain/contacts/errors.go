package contacts

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrConsentRequired = errors.New("consent is required")
	ErrEmailRequired   = errors.New("email is required")
	ErrEmailTooLong    = errors.New("email address too long")
	ErrEmailFormat     = errors.New("invalid email format")
	ErrEmailTypo       = errors.New("email domain looks misspelled")
	ErrDisposable      = errors.New("temporary email addresses are not allowed")
	ErrDomainNotFound  = errors.New("email domain does not exist")
)

// ValidationError explains why an address was refused.
type ValidationError struct {
	Kind       error
	Message    string
	Suggestion string
}

func (e *ValidationError) Error() string { return e.Message }

// Unwrap exposes the sentinel kind.
func (e *ValidationError) Unwrap() error { return e.Kind }
