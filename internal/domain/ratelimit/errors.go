package ratelimit

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrUnknownAction = errors.New("unknown action")
)

// LimitError carries a denied decision.
type LimitError struct {
	Decision Decision
}

func (e *LimitError) Error() string { return e.Decision.Reason }

// Is lets errors.Is match ErrRateLimited.
func (e *LimitError) Is(target error) bool { return target == ErrRateLimited }
