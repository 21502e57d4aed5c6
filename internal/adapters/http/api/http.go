// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/okian/perfreport/internal/adapters/report"
	"github.com/okian/perfreport/internal/adapters/repository"
	service "github.com/okian/perfreport/internal/app"
	"github.com/okian/perfreport/internal/domain/assembler"
	"github.com/okian/perfreport/internal/domain/schema"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	UploadDependencies
	ReportDependencies
	ContactDependencies
	StatsProvider
}

// UploadDependencies covers ingesting CSV files and reading the result.
type UploadDependencies interface {
	Upload(ctx context.Context, sessionID, filename string, r io.Reader, declared int64, season schema.Season) (service.UploadSummary, error)
	CurrentUpload(ctx context.Context, sessionID string) (service.UploadSummary, error)
	Athletes(ctx context.Context, sessionID string, season schema.Season) ([]assembler.Athlete, error)
}

// ReportDependencies covers rendering PDFs.
type ReportDependencies interface {
	AthleteReport(ctx context.Context, sessionID string, row int, season schema.Season) (report.Report, error)
	TeamReport(ctx context.Context, sessionID string, season schema.Season, w io.Writer) (service.TeamSummary, error)
}

// ContactDependencies covers the opt-in mailing list.
type ContactDependencies interface {
	SubmitContact(ctx context.Context, sessionID, email string, consent bool) (repository.ContactOutcome, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	uploadHandler  *UploadHandler
	reportHandler  *ReportHandler
	contactHandler *ContactHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		uploadHandler:  NewUploadHandler(deps),
		reportHandler:  NewReportHandler(deps),
		contactHandler: NewContactHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/uploads/current", MetricsMiddleware(s.uploadHandler.HandleCurrent, "uploads_current"))
	mux.HandleFunc("/uploads", MetricsMiddleware(s.uploadHandler.HandleUpload, "uploads"))
	mux.HandleFunc("/athletes", MetricsMiddleware(s.uploadHandler.HandleAthletes, "athletes"))
	mux.HandleFunc("/reports/team", MetricsMiddleware(s.reportHandler.HandleTeam, "reports_team"))
	mux.HandleFunc("/reports/", MetricsMiddleware(s.reportHandler.HandleAthlete, "reports_athlete"))
	mux.HandleFunc("/contacts", MetricsMiddleware(s.contactHandler.HandleSubmit, "contacts"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requireMethod writes 405 and reports false unless r uses one of methods.
func requireMethod(w http.ResponseWriter, r *http.Request, op string, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	writeFailure(w, r, NewKind(op, ErrMethodNotAllowed))
	return false
}

// season reads the optional season query parameter.
func season(r *http.Request) schema.Season {
	return schema.Season(r.URL.Query().Get("season"))
}
