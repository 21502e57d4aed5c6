package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/okian/perfreport/internal/adapters/mq/queue"
	"github.com/okian/perfreport/internal/adapters/mq/worker"
	"github.com/okian/perfreport/internal/adapters/report"
	"github.com/okian/perfreport/internal/domain/schema"
)

// errNothingRendered is returned when every athlete failed.
var errNothingRendered = errors.New("no report could be rendered")

type generateOptions struct {
	season     string
	out        string
	zip        bool
	chromePath string
	timeout    time.Duration
	workers    int
}

func newGenerateCmd(renderers rendererFactory) *cobra.Command {
	opts := generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate <csv>",
		Short: "Render every athlete's PDF report",
		Long: `Renders one PDF per athlete into --out, or a single ZIP with --zip.
Athletes whose report fails are listed and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), cmd.OutOrStdout(), args[0], opts, renderers(opts.chromePath, opts.timeout))
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.season, "season", string(schema.SeasonOff), "season: off or in")
	f.StringVar(&opts.out, "out", "team_reports", "output directory")
	f.BoolVar(&opts.zip, "zip", false, "write a single ZIP instead of separate PDFs")
	f.StringVar(&opts.chromePath, "chrome-path", "", "Chrome/Chromium binary (auto-detected when empty)")
	f.DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-report render timeout")
	f.IntVar(&opts.workers, "workers", runtime.NumCPU(), "concurrent renders")
	return cmd
}

func runGenerate(ctx context.Context, out io.Writer, path string, opts generateOptions, renderer worker.Renderer) error {
	season, err := schema.ParseSeason(opts.season)
	if err != nil {
		return err
	}
	l, err := load(path, season)
	if err != nil {
		return err
	}
	res := l.result
	if len(res.Athletes) == 0 {
		return errNothingRendered
	}

	jobs := queue.NewInMemoryQueue(queue.WithCapacity(len(res.Athletes)))
	pool := worker.NewPool(opts.workers, jobs, renderer, worker.WithRenderTimeout(opts.timeout))
	pool.Start(ctx)
	defer func() { _ = pool.Shutdown(context.WithoutCancel(ctx)) }()

	reply := make(chan queue.Outcome, len(res.Athletes))
	names := make(map[string]string, len(res.Athletes))
	batch := make([]queue.Job, 0, len(res.Athletes))
	for _, ath := range res.Athletes {
		job := queue.NewJob(ctx, "cli", res, ath, reply)
		batch = append(batch, job)
		names[job.ID.String()] = ath.Name
	}
	if !jobs.EnqueueAll(ctx, batch) {
		return queue.ErrFull
	}

	var (
		reports []report.Report
		failed  []string
	)
	for range res.Athletes {
		select {
		case o := <-reply:
			if o.Err != nil {
				failed = append(failed, names[o.JobID.String()])
				fmt.Fprintf(out, "failed: %s: %v\n", names[o.JobID.String()], o.Err)
				continue
			}
			reports = append(reports, o.Report)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if len(reports) == 0 {
		return errNothingRendered
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Row < reports[j].Row })

	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return err
	}
	written, err := write(opts, season, reports)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Generated %d of %d reports (%s) in %s\n",
		len(reports), len(res.Athletes), humanize.Bytes(uint64(written)), opts.out)
	if len(failed) > 0 {
		fmt.Fprintf(out, "Skipped: %s\n", strings.Join(failed, ", "))
	}
	return nil
}

// write stores the reports and returns the number of bytes written.
func write(opts generateOptions, season schema.Season, reports []report.Report) (int64, error) {
	if opts.zip {
		var buf bytes.Buffer
		if err := report.Bundle(&buf, reports, time.Now()); err != nil {
			return 0, err
		}
		name := strings.ReplaceAll(season.Label(), " ", "_") + "_team_reports.zip"
		if err := os.WriteFile(filepath.Join(opts.out, name), buf.Bytes(), 0o644); err != nil {
			return 0, err
		}
		return int64(buf.Len()), nil
	}

	var total int64
	seen := make(map[string]int, len(reports))
	for _, r := range reports {
		name := r.Filename
		// Two athletes with the same name would otherwise overwrite each other.
		if n := seen[strings.ToLower(name)]; n > 0 {
			name = strings.TrimSuffix(name, ".pdf") + fmt.Sprintf("_%d.pdf", n+1)
		}
		seen[strings.ToLower(r.Filename)]++
		if err := os.WriteFile(filepath.Join(opts.out, name), r.PDF, 0o644); err != nil {
			return total, err
		}
		total += int64(len(r.PDF))
	}
	return total, nil
}
