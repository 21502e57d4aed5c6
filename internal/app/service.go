// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/perfreport/internal/adapters/mq/queue"
	"github.com/okian/perfreport/internal/adapters/mq/worker"
	"github.com/okian/perfreport/internal/adapters/report"
	"github.com/okian/perfreport/internal/adapters/repository"
	"github.com/okian/perfreport/internal/adapters/usagelog"
	"github.com/okian/perfreport/internal/domain/assembler"
	"github.com/okian/perfreport/internal/domain/contacts"
	"github.com/okian/perfreport/internal/domain/ratelimit"
	"github.com/okian/perfreport/internal/domain/sanitize"
	"github.com/okian/perfreport/internal/domain/schema"
	"github.com/okian/perfreport/internal/domain/session"
	"github.com/okian/perfreport/internal/domain/upload"
	"github.com/okian/perfreport/pkg/logger"
	"github.com/okian/perfreport/pkg/metrics"
)

// Report kinds used for job routing and metrics.
const (
	kindSingle = "single"
	kindTeam   = "team"
)

const (
	defaultQueueSize     = 1000
	defaultWorkerCount   = 4
	defaultRenderTimeout = 30 * time.Second
	defaultSessionTTL    = 2 * time.Hour
	minJanitorInterval   = time.Second
)

// UploadSummary is what a client learns about its upload. It never carries
// raw cell values.
type UploadSummary struct {
	UploadID     string                  `json:"upload_id"`
	Filename     string                  `json:"filename"`
	Season       schema.Season           `json:"season"`
	Athletes     int                     `json:"athletes"`
	Availability map[string]bool         `json:"availability"`
	Bindings     []schema.Binding        `json:"bindings"`
	Unrecognized []string                `json:"unrecognized_columns"`
	Duplicates   []string                `json:"duplicate_columns,omitempty"`
	Charts       []assembler.ChartSpec   `json:"charts"`
	Sections     []assembler.Section     `json:"sections"`
	Sanitized    map[sanitize.Threat]int `json:"sanitized_cells"`
	Truncated    int                     `json:"truncated_cells"`
	CreatedAt    time.Time               `json:"created_at"`
}

// Summarize describes a processed upload.
func Summarize(u *session.Upload) UploadSummary {
	return UploadSummary{
		UploadID:     u.ID,
		Filename:     u.Table.Filename,
		Season:       u.Result.Season,
		Athletes:     len(u.Result.Athletes),
		Availability: u.Availability.Present(),
		Bindings:     u.Availability.Bindings,
		Unrecognized: u.Availability.Unrecognized,
		Duplicates:   u.Availability.Duplicates,
		Charts:       u.Result.Charts,
		Sections:     u.Result.Sections,
		Sanitized:    u.Table.Stats.Sanitized,
		Truncated:    u.Table.Stats.Truncated,
		CreatedAt:    u.CreatedAt,
	}
}

// TeamSummary reports how a team bundle went.
type TeamSummary struct {
	Reports int      `json:"reports"`
	Failed  []string `json:"failed,omitempty"`
}

// Stats combines the persisted usage aggregate with live service state.
type Stats struct {
	Usage   repository.UsageStats `json:"usage"`
	Service map[string]any        `json:"service"`
}

// Service implements the API dependencies for the report system.
type Service struct {
	mu sync.RWMutex

	// Core components
	registry  *schema.Registry
	assembler *assembler.Assembler
	parser    *upload.Parser
	sessions  *session.Store
	limiter   *ratelimit.Limiter
	usage     *usagelog.Logger
	renderer  worker.Renderer
	jobs      *queue.InMemoryQueue
	pool      *worker.Pool

	validator    *contacts.Validator
	contactStore repository.ContactStore

	// Configuration
	workerCount   int
	queueSize     int
	renderTimeout time.Duration
	limits        sanitize.Limits
	maxCellLength int
	rateWindow    time.Duration
	rateLimits    map[ratelimit.Action]int
	sessionTTL    time.Duration
	hashSalt      string
	now           func() time.Time

	// State
	started bool
	stopCh  chan struct{}
	janitor sync.WaitGroup

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		registry:      schema.DefaultRegistry(),
		usage:         usagelog.New(nil),
		workerCount:   defaultWorkerCount,
		queueSize:     defaultQueueSize,
		renderTimeout: defaultRenderTimeout,
		limits:        sanitize.DefaultLimits(),
		maxCellLength: sanitize.DefaultMaxCellLength,
		rateWindow:    ratelimit.DefaultWindow,
		rateLimits: map[ratelimit.Action]int{
			ratelimit.ActionUpload:       ratelimit.DefaultUploadLimit,
			ratelimit.ActionSingleReport: ratelimit.DefaultSingleReportLimit,
			ratelimit.ActionTeamReport:   ratelimit.DefaultTeamReportLimit,
		},
		sessionTTL: defaultSessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.assembler = assembler.New(s.registry)
	s.parser = upload.NewParser(s.limits, sanitize.New(sanitize.WithMaxCellLength(s.maxCellLength)))
	s.sessions = session.NewStore(session.WithSalt(s.hashSalt), session.WithClock(s.now))
	limiterOpts := []ratelimit.Option{ratelimit.WithWindow(s.rateWindow), ratelimit.WithClock(s.now)}
	for a, n := range s.rateLimits {
		limiterOpts = append(limiterOpts, ratelimit.WithLimit(a, n))
	}
	s.limiter = ratelimit.New(s.sessions, limiterOpts...)
	return s
}

// Start initializes and starts the render pipeline and the session janitor.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting report service...")

	if s.renderer == nil {
		s.renderer = report.NewGenerator(report.NewChromiumRenderer("", s.renderTimeout))
	}
	s.jobs = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.jobs, s.renderer, worker.WithRenderTimeout(s.renderTimeout))
	s.pool.Start(context.WithoutCancel(ctx))

	s.stopCh = make(chan struct{})
	s.janitor.Add(1)
	go s.sweepLoop(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "report service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("maxRows", s.limits.MaxRows),
		logger.Duration("rateWindow", s.rateWindow),
		logger.Duration("renderTimeout", s.renderTimeout),
		logger.Bool("contacts", s.validator != nil && s.contactStore != nil),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping report service...")

	close(s.stopCh)
	s.janitor.Wait()
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "report service stopped")
}

// sweepLoop drops sessions idle for longer than the TTL.
func (s *Service) sweepLoop(ctx context.Context) {
	defer s.janitor.Done()
	interval := s.sessionTTL / 4
	if interval < minJanitorInterval {
		interval = minJanitorInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if n := s.SweepSessions(); n > 0 {
				s.logger.Debug(ctx, "swept idle sessions", logger.Int("count", n))
			}
		}
	}
}

// SweepSessions removes idle sessions and returns how many were dropped.
func (s *Service) SweepSessions() int {
	n := s.sessions.Sweep(s.sessionTTL)
	metrics.UpdateSessionCount(s.sessions.Len())
	return n
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// record writes a usage event; failures are logged and never reach callers.
func (s *Service) record(ctx context.Context, e usagelog.Event) {
	if err := s.usage.Record(ctx, e); err != nil {
		s.logger.Warn(ctx, "usage log write failed",
			logger.String("event_type", string(e.Type)),
			logger.Error(err),
		)
		metrics.RecordErrorByComponent("usagelog", "write_failed")
	}
}

// admit runs the rate limiter and logs denials.
func (s *Service) admit(ctx context.Context, sessionID string, a ratelimit.Action) (ratelimit.Decision, error) {
	if sessionID == "" {
		return ratelimit.Decision{}, ErrMissingSessionKey
	}
	d, err := s.limiter.Allow(ctx, sessionID, a)
	if err != nil {
		return d, err
	}
	if d.Admitted {
		return d, nil
	}
	metrics.RecordRateLimited(string(a))
	s.record(ctx, usagelog.Event{
		Type:        usagelog.EventRateLimited,
		SessionHash: s.sessions.Hash(sessionID),
		Detail:      string(a),
	})
	return d, d.Err()
}

// Upload checks the upload rate limit, parses and sanitizes the CSV,
// resolves its columns and assembles the view. The result replaces the
// session's current upload.
func (s *Service) Upload(ctx context.Context, sessionID, filename string, r io.Reader, declared int64, season schema.Season) (UploadSummary, error) {
	if err := s.running(); err != nil {
		return UploadSummary{}, err
	}
	if season == "" {
		season = schema.SeasonOff
	}
	season, err := schema.ParseSeason(string(season))
	if err != nil {
		return UploadSummary{}, fmt.Errorf("%w: %w", ErrInvalidSeason, err)
	}
	if _, err := s.admit(ctx, sessionID, ratelimit.ActionUpload); err != nil {
		return UploadSummary{}, err
	}
	start := s.now()
	hashed := s.sessions.Hash(sessionID)

	table, err := s.parse(r, declared, filename)
	if err != nil {
		var v *sanitize.StructuralViolation
		if errors.As(err, &v) {
			metrics.RecordUploadRejected(string(v.Reason))
			s.record(ctx, usagelog.Event{
				Type:        usagelog.EventUploadRejected,
				SessionHash: hashed,
				Season:      string(season),
				Counts:      map[string]int{"limit": int(v.Limit), "actual": int(v.Actual)},
				Detail:      string(v.Reason),
			})
			return UploadSummary{}, err
		}
		s.record(ctx, usagelog.Event{Type: usagelog.EventError, SessionHash: hashed, Detail: "upload_read"})
		return UploadSummary{}, err
	}

	av := s.registry.Resolve(table.Headers)
	av.Populate(table.Rows)
	res := s.assembler.Assemble(av, table.Rows, season)

	up := &session.Upload{
		ID:           uuid.NewString(),
		Season:       season,
		Table:        table,
		Availability: av,
		Result:       res,
		CreatedAt:    s.now(),
	}
	s.sessions.GetOrCreate(sessionID).SetUpload(up)

	exact := 0
	for _, b := range av.Bindings {
		if b.Exact {
			exact++
		}
	}
	for threat, n := range table.Stats.Sanitized {
		metrics.RecordCellsSanitized(string(threat), n)
	}
	metrics.RecordColumnsResolved("exact", exact)
	metrics.RecordColumnsResolved("partial", len(av.Bindings)-exact)
	metrics.RecordColumnsResolved("unrecognized", len(av.Unrecognized))
	metrics.RecordUploadAccepted(len(res.Athletes))
	metrics.RecordUploadLatency(float64(s.now().Sub(start).Milliseconds()))
	metrics.UpdateSessionCount(s.sessions.Len())

	if n := table.Stats.SanitizedTotal(); n > 0 {
		s.logger.Warn(ctx, "neutralized suspicious cells",
			logger.String("session", hashed),
			logger.Int("cells", n),
		)
	}
	s.record(ctx, usagelog.Event{
		Type:        usagelog.EventUpload,
		SessionHash: hashed,
		Season:      string(season),
		Counts: map[string]int{
			"athletes":     len(res.Athletes),
			"columns":      len(table.Headers),
			"recognized":   len(av.Bindings),
			"unrecognized": len(av.Unrecognized),
			"charts":       len(res.Charts),
			"sanitized":    table.Stats.SanitizedTotal(),
		},
	})
	return Summarize(up), nil
}

func (s *Service) parse(r io.Reader, declared int64, filename string) (*upload.Table, error) {
	data, err := s.parser.ReadAll(r, declared)
	if err != nil {
		return nil, err
	}
	return s.parser.Parse(filename, data)
}

// current returns the session's upload, re-assembled when season differs.
func (s *Service) current(sessionID string, season schema.Season) (*session.Upload, *assembler.Result, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, ErrNoUpload
	}
	up, ok := sess.Upload()
	if !ok {
		return nil, nil, ErrNoUpload
	}
	if season == "" {
		return up, up.Result, nil
	}
	season, err := schema.ParseSeason(string(season))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidSeason, err)
	}
	if season == up.Season {
		return up, up.Result, nil
	}
	return up, s.assembler.Assemble(up.Availability, up.Table.Rows, season), nil
}

// CurrentUpload summarizes the session's current upload.
func (s *Service) CurrentUpload(_ context.Context, sessionID string) (UploadSummary, error) {
	if err := s.running(); err != nil {
		return UploadSummary{}, err
	}
	up, _, err := s.current(sessionID, "")
	if err != nil {
		return UploadSummary{}, err
	}
	return Summarize(up), nil
}

// Athletes lists the assembled athletes of the current upload.
func (s *Service) Athletes(_ context.Context, sessionID string, season schema.Season) ([]assembler.Athlete, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	_, res, err := s.current(sessionID, season)
	if err != nil {
		return nil, err
	}
	return res.Athletes, nil
}

// AthleteReport renders one athlete's PDF through the worker pool.
func (s *Service) AthleteReport(ctx context.Context, sessionID string, row int, season schema.Season) (report.Report, error) {
	if err := s.running(); err != nil {
		return report.Report{}, err
	}
	_, res, err := s.current(sessionID, season)
	if err != nil {
		return report.Report{}, err
	}
	ath, ok := res.Athlete(row)
	if !ok {
		return report.Report{}, fmt.Errorf("%w: row %d", report.ErrNoAthlete, row)
	}
	d, err := s.admit(ctx, sessionID, ratelimit.ActionSingleReport)
	if err != nil {
		return report.Report{}, err
	}

	hashed := s.sessions.Hash(sessionID)
	reply := make(chan queue.Outcome, 1)
	if !s.jobs.Enqueue(ctx, queue.NewJob(ctx, kindSingle, res, ath, reply)) {
		s.limiter.Release(sessionID, d)
		return report.Report{}, queue.ErrFull
	}
	select {
	case out := <-reply:
		if out.Err != nil {
			s.record(ctx, usagelog.Event{Type: usagelog.EventError, SessionHash: hashed, Season: string(res.Season), Detail: "render_failed"})
			return report.Report{}, out.Err
		}
		s.record(ctx, usagelog.Event{
			Type:        usagelog.EventPDFGenerated,
			SessionHash: hashed,
			Season:      string(res.Season),
			Counts:      map[string]int{"charts": len(res.Charts), "bytes": len(out.Report.PDF)},
		})
		return out.Report, nil
	case <-ctx.Done():
		return report.Report{}, ctx.Err()
	}
}

// TeamReport renders every athlete and writes a ZIP bundle to w. Athletes
// whose render fails are logged and left out; it fails only when nothing
// could be rendered.
func (s *Service) TeamReport(ctx context.Context, sessionID string, season schema.Season, w io.Writer) (TeamSummary, error) {
	if err := s.running(); err != nil {
		return TeamSummary{}, err
	}
	_, res, err := s.current(sessionID, season)
	if err != nil {
		return TeamSummary{}, err
	}
	d, err := s.admit(ctx, sessionID, ratelimit.ActionTeamReport)
	if err != nil {
		return TeamSummary{}, err
	}
	hashed := s.sessions.Hash(sessionID)

	reply := make(chan queue.Outcome, len(res.Athletes))
	pending := make(map[uuid.UUID]assembler.Athlete, len(res.Athletes))
	jobs := make([]queue.Job, 0, len(res.Athletes))
	for _, ath := range res.Athletes {
		job := queue.NewJob(ctx, kindTeam, res, ath, reply)
		jobs = append(jobs, job)
		pending[job.ID] = ath
	}
	if !s.jobs.EnqueueAll(ctx, jobs) {
		s.limiter.Release(sessionID, d)
		return TeamSummary{}, queue.ErrFull
	}

	var (
		reports []report.Report
		summary TeamSummary
	)
	for len(pending) > 0 {
		select {
		case out := <-reply:
			ath := pending[out.JobID]
			delete(pending, out.JobID)
			if out.Err != nil {
				summary.Failed = append(summary.Failed, ath.Name)
				s.logger.Warn(ctx, "skipping athlete in team report",
					logger.Int("row", ath.Row),
					logger.Error(out.Err),
				)
				continue
			}
			reports = append(reports, out.Report)
		case <-ctx.Done():
			return TeamSummary{}, ctx.Err()
		}
	}
	if len(reports) == 0 {
		s.record(ctx, usagelog.Event{Type: usagelog.EventError, SessionHash: hashed, Season: string(res.Season), Detail: "team_render_failed"})
		return summary, ErrNoReports
	}

	// Bundle order follows the upload, not completion order.
	sort.Slice(reports, func(i, j int) bool { return reports[i].Row < reports[j].Row })
	var buf bytes.Buffer
	if err := report.Bundle(&buf, reports, s.now()); err != nil {
		return summary, err
	}
	if _, err := buf.WriteTo(w); err != nil {
		return summary, fmt.Errorf("write team bundle: %w", err)
	}
	summary.Reports = len(reports)
	s.record(ctx, usagelog.Event{
		Type:        usagelog.EventTeamReport,
		SessionHash: hashed,
		Season:      string(res.Season),
		Counts:      map[string]int{"athletes": len(res.Athletes), "reports": len(reports), "failed": len(summary.Failed)},
	})
	return summary, nil
}

// SubmitContact validates and stores a consented email address. Duplicates
// and submissions past the storage cap report success.
func (s *Service) SubmitContact(ctx context.Context, sessionID, email string, consent bool) (repository.ContactOutcome, error) {
	if err := s.running(); err != nil {
		return "", err
	}
	if s.validator == nil || s.contactStore == nil {
		return "", ErrContactsDisabled
	}
	if sessionID == "" {
		return "", ErrMissingSessionKey
	}
	if !consent {
		metrics.RecordContactSubmitted("no_consent")
		return "", &contacts.ValidationError{Kind: contacts.ErrConsentRequired, Message: "Consent is required to store your email address."}
	}
	normalized, err := s.validator.Validate(ctx, email)
	if err != nil {
		metrics.RecordContactSubmitted("invalid")
		return "", err
	}
	hashed := s.sessions.Hash(sessionID)
	outcome, err := s.contactStore.AddContact(ctx, repository.Contact{
		Email:       normalized,
		EmailHash:   contacts.HashEmail(normalized),
		SessionHash: hashed,
		Consent:     true,
	})
	if err != nil {
		metrics.RecordErrorByComponent("contacts", "store_failed")
		return "", err
	}
	metrics.RecordContactSubmitted(string(outcome))
	s.record(ctx, usagelog.Event{Type: usagelog.EventEmailSubmitted, SessionHash: hashed, Detail: string(outcome)})
	return outcome, nil
}

// Stats returns the usage aggregate and live service state.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	usage, err := s.usage.Stats(ctx)
	if err != nil && !errors.Is(err, usagelog.ErrNoStore) {
		return Stats{}, err
	}
	return Stats{Usage: usage, Service: s.GetStats()}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limits := make(map[string]int, len(s.rateLimits))
	for a, n := range s.rateLimits {
		limits[string(a)] = n
	}
	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"sessions":    s.sessions.Len(),
		"rateWindow":  s.rateWindow.String(),
		"rateLimits":  limits,
		"maxRows":     s.limits.MaxRows,
		"maxColumns":  s.limits.MaxColumns,
		"maxBytes":    s.limits.MaxBytes,
	}
	if s.started {
		queueLen := s.jobs.Len(context.Background())
		stats["queueLength"] = queueLen
		stats["workers"] = s.pool.Size()
		metrics.UpdateSessionCount(s.sessions.Len())
	}
	return stats
}
