package queue

import "errors"

// ErrFull is returned by callers that could not place a job.
var ErrFull = errors.New("render queue is full")
