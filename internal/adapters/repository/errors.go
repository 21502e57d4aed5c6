package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNoConsent   = errors.New("contact stored without consent")
	ErrCorruptRow  = errors.New("corrupt row")
	ErrStoreClosed = errors.New("store closed")
)
