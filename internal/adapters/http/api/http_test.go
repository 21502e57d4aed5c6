package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/perfreport/internal/adapters/http/api"
	"github.com/okian/perfreport/internal/adapters/mq/queue"
	"github.com/okian/perfreport/internal/adapters/report"
	"github.com/okian/perfreport/internal/adapters/repository"
	service "github.com/okian/perfreport/internal/app"
	"github.com/okian/perfreport/internal/domain/assembler"
	"github.com/okian/perfreport/internal/domain/contacts"
	"github.com/okian/perfreport/internal/domain/ratelimit"
	"github.com/okian/perfreport/internal/domain/sanitize"
	"github.com/okian/perfreport/internal/domain/schema"
	"github.com/okian/perfreport/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// mockDependencies records what handlers pass in and returns canned results.
type mockDependencies struct {
	sessionID string
	filename  string
	body      string
	declared  int64
	season    schema.Season
	row       int
	email     string
	consent   bool

	uploadErr  error
	reportErr  error
	teamErr    error
	contactErr error
	failed     []string
}

func (m *mockDependencies) Upload(_ context.Context, sessionID, filename string, r io.Reader, declared int64, season schema.Season) (service.UploadSummary, error) {
	m.sessionID, m.filename, m.declared, m.season = sessionID, filename, declared, season
	data, _ := io.ReadAll(r)
	m.body = string(data)
	if m.uploadErr != nil {
		return service.UploadSummary{}, m.uploadErr
	}
	return service.UploadSummary{UploadID: "u1", Filename: filename, Season: schema.SeasonOff, Athletes: 2}, nil
}

func (m *mockDependencies) CurrentUpload(_ context.Context, sessionID string) (service.UploadSummary, error) {
	m.sessionID = sessionID
	if m.uploadErr != nil {
		return service.UploadSummary{}, m.uploadErr
	}
	return service.UploadSummary{UploadID: "u1"}, nil
}

func (m *mockDependencies) Athletes(_ context.Context, sessionID string, season schema.Season) ([]assembler.Athlete, error) {
	m.sessionID, m.season = sessionID, season
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	return []assembler.Athlete{{Row: 0, Name: "Ana Silva"}, {Row: 1, Name: "Ben Jones"}}, nil
}

func (m *mockDependencies) AthleteReport(_ context.Context, sessionID string, row int, season schema.Season) (report.Report, error) {
	m.sessionID, m.row, m.season = sessionID, row, season
	if m.reportErr != nil {
		return report.Report{}, m.reportErr
	}
	return report.Report{Row: row, Athlete: "Ben Jones", Filename: "Ben_Jones_performance_report.pdf", PDF: []byte("%PDF-1.4")}, nil
}

func (m *mockDependencies) TeamReport(_ context.Context, sessionID string, season schema.Season, w io.Writer) (service.TeamSummary, error) {
	m.sessionID, m.season = sessionID, season
	if m.teamErr != nil {
		return service.TeamSummary{}, m.teamErr
	}
	_, _ = w.Write([]byte("PK"))
	return service.TeamSummary{Reports: 2, Failed: m.failed}, nil
}

func (m *mockDependencies) SubmitContact(_ context.Context, sessionID, email string, consent bool) (repository.ContactOutcome, error) {
	m.sessionID, m.email, m.consent = sessionID, email, consent
	if m.contactErr != nil {
		return "", m.contactErr
	}
	return repository.ContactStored, nil
}

func (m *mockDependencies) Stats(context.Context) (service.Stats, error) {
	return service.Stats{
		Usage:   repository.UsageStats{Totals: map[string]int{"upload": 3}},
		Service: map[string]any{"started": true},
	}, nil
}

func newMux(deps *mockDependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps).Register(context.Background(), mux)
	return mux
}

func serve(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Limit      int64  `json:"limit"`
	Actual     int64  `json:"actual"`
	RetryAfter int    `json:"retry_after_seconds"`
	Suggestion string `json:"suggestion"`
}

func decodeError(w *httptest.ResponseRecorder) errorBody {
	var b errorBody
	So(json.NewDecoder(w.Body).Decode(&b), ShouldBeNil)
	return b
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(&mockDependencies{})

		Convey("Then the metrics endpoint answers", func() {
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("And stats are served as JSON", func() {
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/stats", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			So(w.Body.String(), ShouldContainSubstring, `"upload":3`)
		})

		Convey("And unknown paths are not found", func() {
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("And wrong methods are refused", func() {
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/uploads", nil))
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(decodeError(w).Code, ShouldEqual, "method_not_allowed")
		})
	})
}

func TestUploadHandler(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)
		csv := "Name,CMJ\nAna,40\n"

		Convey("When a raw CSV body is posted without a session", func() {
			req := httptest.NewRequest(http.MethodPost, "/uploads?filename=team.csv&season=in", strings.NewReader(csv))
			req.Header.Set("Content-Type", "text/csv")
			w := serve(mux, req)

			Convey("Then the upload is accepted under a new session", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(deps.filename, ShouldEqual, "team.csv")
				So(deps.body, ShouldEqual, csv)
				So(deps.declared, ShouldEqual, int64(len(csv)))
				So(deps.season, ShouldEqual, schema.Season("in"))
				So(deps.sessionID, ShouldNotBeEmpty)
				So(w.Header().Get(api.SessionHeader), ShouldEqual, deps.sessionID)
				So(w.Header().Get("Set-Cookie"), ShouldContainSubstring, api.SessionCookie+"="+deps.sessionID)
			})
		})

		Convey("When the client names its session", func() {
			req := httptest.NewRequest(http.MethodPost, "/uploads", strings.NewReader(csv))
			req.Header.Set(api.SessionHeader, "coach-42")
			w := serve(mux, req)

			Convey("Then it is reused and no cookie is minted", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(deps.sessionID, ShouldEqual, "coach-42")
				So(deps.filename, ShouldEqual, "upload.csv")
				So(w.Header().Get("Set-Cookie"), ShouldBeEmpty)
			})
		})

		Convey("When the session header holds unexpected characters", func() {
			req := httptest.NewRequest(http.MethodPost, "/uploads", strings.NewReader(csv))
			req.Header.Set(api.SessionHeader, "<script>")
			serve(mux, req)
			So(deps.sessionID, ShouldNotEqual, "<script>")
		})

		Convey("When the CSV arrives as a multipart form", func() {
			var body bytes.Buffer
			mw := multipart.NewWriter(&body)
			_ = mw.WriteField("note", "ignored")
			fw, _ := mw.CreateFormFile("file", "../../squad.csv")
			_, _ = fw.Write([]byte(csv))
			_ = mw.Close()
			req := httptest.NewRequest(http.MethodPost, "/uploads", &body)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			w := serve(mux, req)

			Convey("Then the file part is streamed with its base name", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(deps.filename, ShouldEqual, "squad.csv")
				So(deps.body, ShouldEqual, csv)
				So(deps.declared, ShouldEqual, int64(-1))
			})
		})

		Convey("When a multipart form has no file part", func() {
			var body bytes.Buffer
			mw := multipart.NewWriter(&body)
			_ = mw.WriteField("note", "nothing")
			_ = mw.Close()
			req := httptest.NewRequest(http.MethodPost, "/uploads", &body)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			w := serve(mux, req)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the file is too large", func() {
			deps.uploadErr = &sanitize.StructuralViolation{Reason: sanitize.ReasonFileSize, Limit: 100, Actual: 101}
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/uploads", strings.NewReader(csv)))

			Convey("Then it is refused with 413 and the limit", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
				b := decodeError(w)
				So(b.Code, ShouldEqual, "file_too_large")
				So(b.Limit, ShouldEqual, int64(100))
				So(b.Actual, ShouldEqual, int64(101))
			})
		})

		Convey("When the file has too many rows", func() {
			deps.uploadErr = &sanitize.StructuralViolation{Reason: sanitize.ReasonRows, Limit: 500, Actual: 501}
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/uploads", strings.NewReader(csv)))

			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(decodeError(w).Code, ShouldEqual, "too_many_rows")
		})

		Convey("When the session is over its upload limit", func() {
			deps.uploadErr = ratelimit.Decision{
				Action:     ratelimit.ActionUpload,
				Limit:      10,
				RetryAfter: 59*time.Second + 200*time.Millisecond,
				Reason:     "upload limit reached",
			}.Err()
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/uploads", strings.NewReader(csv)))

			Convey("Then it answers 429 with a rounded-up Retry-After", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(w.Header().Get("Retry-After"), ShouldEqual, "60")
				b := decodeError(w)
				So(b.Code, ShouldEqual, "rate_limited")
				So(b.Message, ShouldEqual, "upload limit reached")
			})
		})

		Convey("When the season is unknown", func() {
			deps.uploadErr = service.ErrInvalidSeason
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/uploads?season=summer", strings.NewReader(csv)))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the session has no upload yet", func() {
			deps.uploadErr = service.ErrNoUpload

			So(serve(mux, httptest.NewRequest(http.MethodGet, "/uploads/current", nil)).Code, ShouldEqual, http.StatusNotFound)
			So(serve(mux, httptest.NewRequest(http.MethodGet, "/athletes", nil)).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When listing athletes for a season", func() {
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/athletes?season=in", nil))

			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.season, ShouldEqual, schema.Season("in"))
			So(w.Body.String(), ShouldContainSubstring, `"name":"Ben Jones"`)
		})
	})
}

func TestReportHandler(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("When requesting one athlete's PDF", func() {
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/reports/1?season=off", nil))

			Convey("Then it is served as an attachment", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.row, ShouldEqual, 1)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/pdf")
				So(w.Header().Get("Content-Disposition"), ShouldEqual, "attachment; filename=Ben_Jones_performance_report.pdf")
				So(w.Body.String(), ShouldEqual, "%PDF-1.4")
			})
		})

		Convey("When the row is not a number", func() {
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/reports/ben", nil))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the row does not exist", func() {
			deps.reportErr = report.ErrNoAthlete
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/reports/9", nil))
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the render queue is full", func() {
			deps.reportErr = queue.ErrFull
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/reports/0", nil))

			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(w.Header().Get("Retry-After"), ShouldEqual, "1")
		})

		Convey("When rendering fails", func() {
			deps.reportErr = report.ErrRender
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/reports/0", nil))

			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decodeError(w).Code, ShouldEqual, "render_failed")
		})

		Convey("When requesting the in-season team bundle", func() {
			deps.failed = []string{"Cara Diaz", "O'Neil, Sam"}
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/reports/team?season=in", nil))

			Convey("Then a ZIP named for the season is served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/zip")
				So(w.Header().Get("Content-Disposition"), ShouldEqual, "attachment; filename=IN_Season_team_reports.zip")
				So(w.Header().Get(api.HeaderReportCount), ShouldEqual, "2")
				So(w.Header().Get(api.HeaderFailedAthletes), ShouldEqual, "Cara%20Diaz,O%27Neil%2C%20Sam")
				So(w.Body.String(), ShouldEqual, "PK")
			})
		})

		Convey("When no athlete could be rendered", func() {
			deps.teamErr = service.ErrNoReports
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/reports/team", nil))
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestContactHandler(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)
		post := func(body string) *httptest.ResponseRecorder {
			return serve(mux, httptest.NewRequest(http.MethodPost, "/contacts", strings.NewReader(body)))
		}

		Convey("When a consented address is posted", func() {
			w := post(`{"email":"coach@club.org","consent":true}`)

			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.email, ShouldEqual, "coach@club.org")
			So(deps.consent, ShouldBeTrue)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("When the body is not JSON", func() {
			So(post(`email=coach`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the domain looks misspelled", func() {
			deps.contactErr = &contacts.ValidationError{
				Kind:       contacts.ErrEmailTypo,
				Message:    "Did you mean coach@gmail.com?",
				Suggestion: "coach@gmail.com",
			}
			w := post(`{"email":"coach@gmial.com","consent":true}`)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
			b := decodeError(w)
			So(b.Code, ShouldEqual, "invalid_email")
			So(b.Suggestion, ShouldEqual, "coach@gmail.com")
		})

		Convey("When consent is missing", func() {
			deps.contactErr = &contacts.ValidationError{Kind: contacts.ErrConsentRequired, Message: "Consent is required"}
			w := post(`{"email":"coach@club.org"}`)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w).Code, ShouldEqual, "consent_required")
		})

		Convey("When contact collection is off", func() {
			deps.contactErr = service.ErrContactsDisabled
			So(post(`{"email":"coach@club.org","consent":true}`).Code, ShouldEqual, http.StatusNotImplemented)
		})
	})
}

func TestKindError(t *testing.T) {
	Convey("Given a wrapped kind error", t, func() {
		cause := io.ErrUnexpectedEOF
		err := api.WrapKind("api.upload", api.ErrBadRequest, cause)

		Convey("Then both the kind and the cause match", func() {
			So(err.Error(), ShouldEqual, "api.upload: bad request: unexpected EOF")
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
		})

		Convey("And a bare kind reads cleanly", func() {
			So(api.NewKind("api.upload", api.ErrMissingFile).Error(), ShouldEqual, "api.upload: missing file part")
		})
	})
}
