package engine

import (
	"context"
	"sync"

	"bitbucket.org/mmdatafocus/erp_importer/assemble"
	"bitbucket.org/mmdatafocus/erp_importer/models"
	"bitbucket.org/mmdatafocus/erp_importer/report"
	"github.com/sirupsen/logrus"
)

// Engine drives the worker pool over assembled documents. Documents are
// dispatched batch by batch in assembled order; the checkpoint counts whole
// completed batches, so a resumed run can never skip a document that was
// still in flight or never dispatched.
type Engine struct {
	desc *models.EntityDescriptor
	exec *Executor
	rep  *report.Reporter
	prog *report.Progress
	log  *logrus.Logger

	workers        int
	batchSize      int
	checkpointPath string
}

type Options struct {
	Workers        int
	BatchSize      int
	CheckpointPath string
}

// RunResult summarizes the dispatch loop; per-document results live in the
// reporter.
type RunResult struct {
	Documents int
	Skipped   int // documents already covered by the checkpoint
	Aborted   bool
}

func New(desc *models.EntityDescriptor, exec *Executor, rep *report.Reporter, prog *report.Progress, log *logrus.Logger, opt Options) *Engine {
	if opt.Workers <= 0 {
		opt.Workers = 1
	}
	if opt.BatchSize <= 0 {
		opt.BatchSize = 100
	}
	return &Engine{
		desc:           desc,
		exec:           exec,
		rep:            rep,
		prog:           prog,
		log:            log,
		workers:        opt.Workers,
		batchSize:      opt.BatchSize,
		checkpointPath: opt.CheckpointPath,
	}
}

// Run processes every document in the assembly result. resumeFrom is the
// number of documents a previous run already completed, counted in assembled
// order, 0 for a fresh run. Stopping ctx lets in-flight documents finish,
// leaves the checkpoint at the last whole batch and returns with Aborted set.
func (e *Engine) Run(ctx context.Context, res assemble.Result, resumeFrom int) (RunResult, error) {
	// Assembly diagnostics were already reported by the run that produced
	// the checkpoint; re-recording them would duplicate workbook rows.
	if resumeFrom <= 0 {
		resumeFrom = 0
		e.recordAssembly(res)
	}
	if resumeFrom > len(res.Documents) {
		resumeFrom = len(res.Documents)
	}

	var out RunResult
	out.Skipped = resumeFrom
	pending := res.Documents[resumeFrom:]
	out.Documents = len(pending)

	completed := resumeFrom
	for start := 0; start < len(pending); start += e.batchSize {
		if ctx.Err() != nil {
			out.Aborted = true
			break
		}
		end := start + e.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		done, err := e.runBatch(ctx, batch)
		if err != nil {
			return out, err
		}
		if !done {
			// Interrupted mid-batch: part of the batch was never
			// dispatched, so the checkpoint must not cover it.
			out.Aborted = true
			break
		}

		completed += len(batch)
		if e.checkpointPath != "" {
			cp := Checkpoint{LastProcessedIndex: completed, Entity: e.desc.Name}
			if err := StoreCheckpoint(e.checkpointPath, cp); err != nil {
				e.log.WithField("path", e.checkpointPath).Warnf("checkpoint not written: %v", err)
			}
		}
	}

	if ctx.Err() != nil {
		out.Aborted = true
	}
	if !out.Aborted && e.checkpointPath != "" {
		if err := ClearCheckpoint(e.checkpointPath); err != nil {
			e.log.Warnf("checkpoint not cleared: %v", err)
		}
	}
	return out, nil
}

// runBatch fans the batch out over the worker pool. Worker indexes are
// stable so each worker keeps reusing its own pooled session. The bool
// reports whether every document in the batch was dispatched and finished;
// an interrupt mid-dispatch returns false.
func (e *Engine) runBatch(ctx context.Context, batch []models.Document) (bool, error) {
	workers := e.workers
	if workers > len(batch) {
		workers = len(batch)
	}

	jobs := make(chan models.Document)
	errs := make(chan error, workers)
	var wg sync.WaitGroup

	// Remote calls get an uncancelled context so an interrupt finishes the
	// document in flight; the per-call timeout still bounds every call.
	callCtx := context.WithoutCancel(ctx)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for doc := range jobs {
				outcome, failures, err := e.exec.Process(callCtx, worker, doc)
				if err != nil {
					errs <- err
					return
				}
				e.rep.RecordOutcome(outcome)
				for _, f := range failures {
					e.rep.RecordFailure(f)
				}
				if e.prog != nil {
					e.prog.Tick()
				}
			}
		}(w)
	}

	completed := true
dispatch:
	for _, doc := range batch {
		select {
		case jobs <- doc:
		case <-ctx.Done():
			completed = false
			break dispatch
		case err := <-errs:
			close(jobs)
			wg.Wait()
			return false, err
		}
	}
	close(jobs)
	wg.Wait()

	select {
	case err := <-errs:
		return false, err
	default:
		return completed, nil
	}
}

// recordAssembly rolls assembly-time failures and missing references into
// the reporter so every input row is accounted for.
func (e *Engine) recordAssembly(res assemble.Result) {
	e.rep.RecordMissing(res.Missing...)
	for _, f := range res.Failures {
		e.rep.RecordFailure(f)
		e.rep.RecordOutcome(models.Outcome{
			Kind:        models.OutcomeFailure,
			DocumentKey: f.DocumentKey,
			SourceRows:  []int{f.SourceRow},
			Reason:      f.Message,
		})
	}
}
