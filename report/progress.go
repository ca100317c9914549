package report

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/erp_importer/appctx"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Progress logs a heartbeat line whenever the configured row count has been
// processed since the last line, or the interval elapses, whichever comes
// first. Long stretches of slow remote calls still produce output.
type Progress struct {
	rep      *Reporter
	log      *logrus.Logger
	rows     int
	interval time.Duration

	mu       sync.Mutex
	lastRows int
	stage    string
	run      string
	entity   string
	dryRun   bool
}

func NewProgress(rep *Reporter, log *logrus.Logger, everyRows int, interval time.Duration) *Progress {
	if everyRows <= 0 {
		everyRows = 50
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Progress{rep: rep, log: log, rows: everyRows, interval: interval, stage: "starting"}
}

func (p *Progress) SetStage(stage string) {
	p.mu.Lock()
	p.stage = stage
	p.mu.Unlock()
}

// Run ticks until ctx is cancelled. Call in its own goroutine. The run id,
// entity and dry-run marker travel on ctx and are stamped onto every
// heartbeat so interleaved runs stay attributable in shared logs.
func (p *Progress) Run(ctx context.Context) {
	p.mu.Lock()
	if v, ok := appctx.GetString(ctx, appctx.ContextKeyRunId); ok {
		p.run = v
	}
	if v, ok := appctx.GetString(ctx, appctx.ContextKeyEntity); ok {
		p.entity = v
	}
	if v, ok := appctx.GetBool(ctx, appctx.ContextKeyDryRun); ok {
		p.dryRun = v
	}
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.emit(false)
		}
	}
}

// Tick is called after each processed document; it emits when the row
// threshold since the last line is crossed.
func (p *Progress) Tick() {
	p.emit(true)
}

func (p *Progress) emit(threshold bool) {
	s := p.rep.Stats()
	p.mu.Lock()
	if threshold && s.ProcessedRows-p.lastRows < p.rows {
		p.mu.Unlock()
		return
	}
	p.lastRows = s.ProcessedRows
	stage := p.stage
	run, entity, dryRun := p.run, p.entity, p.dryRun
	p.mu.Unlock()

	elapsed := time.Since(s.Started)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(s.ProcessedRows) / elapsed.Seconds()
	}
	eta := "n/a"
	if rate > 0 && s.TotalRows > s.ProcessedRows {
		remaining := time.Duration(float64(s.TotalRows-s.ProcessedRows)/rate) * time.Second
		eta = remaining.Round(time.Second).String()
	}

	fields := logrus.Fields{
		"stage":     stage,
		"elapsed":   elapsed.Round(time.Second).String(),
		"processed": fmt.Sprintf("%d/%d", s.ProcessedRows, s.TotalRows),
		"rate":      fmt.Sprintf("%.1f rows/s", rate),
		"eta":       eta,
		"success":   s.Success,
		"skipped":   s.Skipped,
		"failed":    s.Failed,
	}
	if run != "" {
		fields["run"] = run
	}
	if entity != "" {
		fields["entity"] = entity
	}
	if dryRun {
		fields["dryRun"] = true
	}
	p.log.WithFields(fields).Info("progress")
}

// PrintSummary writes the end-of-run summary to w, coloring counts so the
// failure line stands out in a terminal.
func (r *Reporter) PrintSummary(w io.Writer, entity string, dryRun bool) {
	s := r.Stats()
	elapsed := time.Since(s.Started).Round(time.Second)

	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	title := "Import summary"
	if dryRun {
		title = "Import summary (dry run)"
	}
	bold.Fprintf(w, "\n%s: %s\n", title, entity)
	fmt.Fprintf(w, "  rows       %d/%d in %s\n", s.ProcessedRows, s.TotalRows, elapsed)
	fmt.Fprintf(w, "  documents  %d\n", s.Documents)
	green.Fprintf(w, "  succeeded  %d\n", s.Success)
	if s.Skipped > 0 {
		yellow.Fprintf(w, "  skipped    %d\n", s.Skipped)
		for reason, n := range s.SkipReasons {
			fmt.Fprintf(w, "             %d %s\n", n, reason)
		}
	}
	if s.Failed > 0 || s.FailureCount > 0 {
		red.Fprintf(w, "  failed     %d (%d failure records)\n", s.Failed, s.FailureCount)
		for cat, n := range s.ByCategory {
			fmt.Fprintf(w, "             %d %s\n", n, cat)
		}
	} else {
		fmt.Fprintf(w, "  failed     0\n")
	}
	fmt.Fprintf(w, "  success    %.1f%%\n", s.SuccessRate())
}
