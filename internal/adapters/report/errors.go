package report

import "errors"

var (
	ErrNoRenderer  = errors.New("report: no pdf renderer configured")
	ErrRender      = errors.New("report: render failed")
	ErrEmptyBundle = errors.New("report: nothing to bundle")
	ErrNoAthlete   = errors.New("report: athlete not found")
)
