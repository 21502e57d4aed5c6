package api

import (
	"bytes"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/okian/perfreport/internal/domain/schema"
)

// Headers describing a team bundle. HeaderFailedAthletes carries the
// path-escaped names of athletes left out, comma separated.
const (
	HeaderReportCount    = "X-Report-Count"
	HeaderFailedAthletes = "X-Failed-Athletes"
)

// ReportHandler handles PDF and ZIP downloads.
type ReportHandler struct {
	deps ReportDependencies
}

// NewReportHandler creates a new report handler.
func NewReportHandler(deps ReportDependencies) *ReportHandler {
	return &ReportHandler{deps: deps}
}

// HandleAthlete handles POST /reports/{row} requests.
func (h *ReportHandler) HandleAthlete(w http.ResponseWriter, r *http.Request) {
	const op = "api.athlete_report"
	if !requireMethod(w, r, op, http.MethodPost, http.MethodGet) {
		return
	}
	// Extract path parameter after /reports/
	path := strings.TrimPrefix(r.URL.Path, "/reports/")
	row, err := strconv.Atoi(path)
	if err != nil || row < 0 {
		writeFailure(w, r, NewKind(op, ErrBadRequest))
		return
	}
	rep, err := h.deps.AthleteReport(r.Context(), sessionID(w, r), row, season(r))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeAttachment(w, "application/pdf", rep.Filename, rep.PDF)
}

// HandleTeam handles POST /reports/team requests.
func (h *ReportHandler) HandleTeam(w http.ResponseWriter, r *http.Request) {
	const op = "api.team_report"
	if !requireMethod(w, r, op, http.MethodPost, http.MethodGet) {
		return
	}
	var buf bytes.Buffer
	s := season(r)
	summary, err := h.deps.TeamReport(r.Context(), sessionID(w, r), s, &buf)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	w.Header().Set(HeaderReportCount, strconv.Itoa(summary.Reports))
	if len(summary.Failed) > 0 {
		w.Header().Set(HeaderFailedAthletes, failedNames(summary.Failed))
	}
	writeAttachment(w, "application/zip", bundleName(s), buf.Bytes())
}

func failedNames(names []string) string {
	escaped := make([]string, len(names))
	for i, n := range names {
		escaped[i] = url.PathEscape(n)
	}
	return strings.Join(escaped, ",")
}

// bundleName mirrors the season label, e.g. "OFF_Season_team_reports.zip".
func bundleName(s schema.Season) string {
	parsed, err := schema.ParseSeason(string(s))
	if err != nil {
		parsed = schema.SeasonOff
	}
	return strings.ReplaceAll(parsed.Label(), " ", "_") + "_team_reports.zip"
}

func writeAttachment(w http.ResponseWriter, contentType, name string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
