package usagelog

import "errors"

var (
	ErrMissingType    = errors.New("usage event has no type")
	ErrMissingSession = errors.New("usage event has no session hash")
	ErrNoStore        = errors.New("usage log has no store")
)
