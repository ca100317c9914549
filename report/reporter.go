package report

import (
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/erp_importer/models"
	"github.com/sirupsen/logrus"
)

// Reporter accumulates per-row outcomes, failure records and missing
// references for one run. Appends are guarded by a single mutex held only
// for the append, never during I/O; workbook writing happens after the
// workers drain.
type Reporter struct {
	mu       sync.Mutex
	log      *logrus.Logger
	started  time.Time
	total    int
	outcomes []models.Outcome
	failures []models.FailureRecord
	missing  []models.MissingReference
}

func NewReporter(log *logrus.Logger) *Reporter {
	return &Reporter{log: log, started: time.Now()}
}

// SetTotalRows declares the input size for rate/ETA math.
func (r *Reporter) SetTotalRows(n int) {
	r.mu.Lock()
	r.total = n
	r.mu.Unlock()
}

// RecordOutcome is thread-safe; every input row ends up covered by exactly
// one outcome.
func (r *Reporter) RecordOutcome(o models.Outcome) {
	if o.FinishedAt.IsZero() {
		o.FinishedAt = time.Now()
	}
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()
}

func (r *Reporter) RecordFailure(f models.FailureRecord) {
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	r.mu.Lock()
	r.failures = append(r.failures, f)
	r.mu.Unlock()
}

func (r *Reporter) RecordMissing(refs ...models.MissingReference) {
	r.mu.Lock()
	r.missing = append(r.missing, refs...)
	r.mu.Unlock()
}

// Stats is a point-in-time snapshot for progress ticks and the summary.
type Stats struct {
	TotalRows     int
	ProcessedRows int
	Documents     int
	Success       int
	Skipped       int
	Failed        int
	FailureCount  int
	ByCategory    map[models.ErrorCategory]int
	SkipReasons   map[string]int
	Started       time.Time
	FirstOutcome  time.Time
	LastOutcome   time.Time
}

func (s Stats) SuccessRate() float64 {
	done := s.Success + s.Skipped + s.Failed
	if done == 0 {
		return 0
	}
	return float64(s.Success) / float64(done) * 100
}

func (r *Reporter) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		TotalRows:    r.total,
		Started:      r.started,
		ByCategory:   map[models.ErrorCategory]int{},
		SkipReasons:  map[string]int{},
		FailureCount: len(r.failures),
	}
	docs := map[string]bool{}
	for _, o := range r.outcomes {
		s.ProcessedRows += len(o.SourceRows)
		if o.DocumentKey != "" {
			docs[o.DocumentKey] = true
		}
		switch o.Kind {
		case models.OutcomeSuccess:
			s.Success++
		case models.OutcomeSkip:
			s.Skipped++
			s.SkipReasons[o.Reason]++
		case models.OutcomeFailure:
			s.Failed++
		}
		if s.FirstOutcome.IsZero() || o.FinishedAt.Before(s.FirstOutcome) {
			s.FirstOutcome = o.FinishedAt
		}
		if o.FinishedAt.After(s.LastOutcome) {
			s.LastOutcome = o.FinishedAt
		}
	}
	s.Documents = len(docs)
	for _, f := range r.failures {
		s.ByCategory[f.Category]++
	}
	return s
}

// HasFailures reports whether any FailureRecord was produced; the CLI maps
// this to a non-zero exit code.
func (r *Reporter) HasFailures() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures) > 0
}

func (r *Reporter) failureSnapshot() []models.FailureRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.FailureRecord, len(r.failures))
	copy(out, r.failures)
	return out
}

func (r *Reporter) missingSnapshot() []models.MissingReference {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.MissingReference, len(r.missing))
	copy(out, r.missing)
	return out
}

func (r *Reporter) skipSnapshot() []models.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Outcome
	for _, o := range r.outcomes {
		if o.Kind == models.OutcomeSkip {
			out = append(out, o)
		}
	}
	return out
}
