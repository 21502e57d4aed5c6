package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/okian/perfreport/internal/adapters/mq/queue"
	"github.com/okian/perfreport/internal/adapters/report"
	service "github.com/okian/perfreport/internal/app"
	"github.com/okian/perfreport/internal/domain/contacts"
	"github.com/okian/perfreport/internal/domain/ratelimit"
	"github.com/okian/perfreport/internal/domain/sanitize"
	"github.com/okian/perfreport/pkg/logger"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrMissingFile      = errors.New("missing file part")
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// KindError tags an error with the operation that produced it and a
// sentinel kind callers can match with errors.Is.
type KindError struct {
	Op   string
	Kind error
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

// Unwrap exposes both the kind and the cause.
func (e *KindError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewKind returns a KindError without a cause.
func NewKind(op string, kind error) error {
	return &KindError{Op: op, Kind: kind}
}

// WrapKind returns a KindError wrapping err.
func WrapKind(op string, kind, err error) error {
	return &KindError{Op: op, Kind: kind, Err: err}
}

type errorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Limit      int64  `json:"limit,omitempty"`
	Actual     int64  `json:"actual,omitempty"`
	RetryAfter int    `json:"retry_after_seconds,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// describe maps an error onto its HTTP status and response body.
func describe(err error) (int, errorResponse) {
	resp := errorResponse{Message: err.Error()}

	var (
		violation *sanitize.StructuralViolation
		limited   *ratelimit.LimitError
		invalid   *contacts.ValidationError
	)
	switch {
	case errors.As(err, &violation):
		resp.Code = string(violation.Reason)
		resp.Limit = violation.Limit
		resp.Actual = violation.Actual
		if violation.Reason == sanitize.ReasonFileSize {
			return http.StatusRequestEntityTooLarge, resp
		}
		return http.StatusUnprocessableEntity, resp
	case errors.As(err, &limited):
		resp.Code = "rate_limited"
		resp.RetryAfter = int(math.Ceil(limited.Decision.RetryAfter.Seconds()))
		return http.StatusTooManyRequests, resp
	case errors.As(err, &invalid):
		resp.Code = "invalid_email"
		if errors.Is(invalid, contacts.ErrConsentRequired) {
			resp.Code = "consent_required"
		}
		resp.Message = invalid.Message
		resp.Suggestion = invalid.Suggestion
		return http.StatusBadRequest, resp
	case errors.Is(err, service.ErrNoUpload), errors.Is(err, report.ErrNoAthlete):
		resp.Code = "not_found"
		return http.StatusNotFound, resp
	case errors.Is(err, ErrMethodNotAllowed):
		resp.Code = "method_not_allowed"
		return http.StatusMethodNotAllowed, resp
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrMissingFile),
		errors.Is(err, service.ErrInvalidSeason), errors.Is(err, service.ErrMissingSessionKey):
		resp.Code = "bad_request"
		return http.StatusBadRequest, resp
	case errors.Is(err, queue.ErrFull):
		resp.Code = "backpressure"
		resp.RetryAfter = 1
		return http.StatusServiceUnavailable, resp
	case errors.Is(err, service.ErrNotStarted):
		resp.Code = "unavailable"
		return http.StatusServiceUnavailable, resp
	case errors.Is(err, service.ErrContactsDisabled):
		resp.Code = "contacts_disabled"
		return http.StatusNotImplemented, resp
	case errors.Is(err, context.DeadlineExceeded):
		resp.Code = "timeout"
		return http.StatusGatewayTimeout, resp
	case errors.Is(err, service.ErrNoReports), errors.Is(err, report.ErrRender):
		resp.Code = "render_failed"
		return http.StatusInternalServerError, resp
	}
	resp.Code = "internal_error"
	return http.StatusInternalServerError, resp
}

// writeFailure writes err with the status it maps to.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := describe(err)
	if resp.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfter))
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.Get().Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("code", resp.Code),
			logger.Error(err),
		)
	}
	writeJSON(w, status, resp)
}
