package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted        = errors.New("service not started")
	ErrNoUpload          = errors.New("no upload in this session")
	ErrNoReports         = errors.New("no report could be rendered")
	ErrContactsDisabled  = errors.New("contact collection is disabled")
	ErrInvalidSeason     = errors.New("invalid season")
	ErrMissingSessionKey = errors.New("missing session id")
)
