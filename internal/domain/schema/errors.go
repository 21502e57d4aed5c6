package schema

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrDuplicateKey   = errors.New("duplicate canonical key")
	ErrDuplicateAlias = errors.New("alias bound to more than one canonical key")
	ErrEmptyKey       = errors.New("canonical key must not be empty")
	ErrUnknownSeason  = errors.New("unknown season")
)
