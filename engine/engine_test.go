package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/erp_importer/assemble"
	"bitbucket.org/mmdatafocus/erp_importer/models"
	"bitbucket.org/mmdatafocus/erp_importer/report"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// newHappyHandler answers the create path against an empty remote: every
// document is new, creates get fresh ids, and the read-back echoes the
// created name in draft. Safe under concurrent workers.
func newHappyHandler() func(rpcCall) (any, error) {
	var mu sync.Mutex
	nextID := int64(900)
	created := map[int64]string{}
	return func(c rpcCall) (any, error) {
		switch c.Method {
		case "search_read":
			return []any{}, nil
		case "create":
			mu.Lock()
			defer mu.Unlock()
			nextID++
			name, _ := c.Args[0].(map[string]any)["name"].(string)
			created[nextID] = name
			return nextID, nil
		case "read":
			mu.Lock()
			defer mu.Unlock()
			id := c.Args[0].([]any)[0].(int64)
			return []any{map[string]any{"name": created[id], "state": "draft"}}, nil
		}
		return nil, errors.New("unexpected " + c.Method)
	}
}

func runEngine(t *testing.T, ctx context.Context, res assemble.Result, resumeFrom int, opt Options) (*report.Reporter, RunResult) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(&strings.Builder{})

	desc := orderDescriptor()
	exec := testExecutor(desc, &scriptedCaller{handler: newHappyHandler()}, ExecutorOptions{})
	rep := report.NewReporter(log)
	eng := New(desc, exec, rep, nil, log, opt)

	runRes, err := eng.Run(ctx, res, resumeFrom)
	require.NoError(t, err)
	return rep, runRes
}

func TestRunProcessesAllDocuments(t *testing.T) {
	res := assemble.Result{
		Documents: []models.Document{
			orderDocument("PO-1", 100),
			orderDocument("PO-2", 101),
			orderDocument("PO-3", 102),
		},
		RowCount: 3,
	}
	cpPath := filepath.Join(t.TempDir(), "cp.json")
	rep, runRes := runEngine(t, context.Background(), res, 0, Options{Workers: 2, BatchSize: 2, CheckpointPath: cpPath})

	require.False(t, runRes.Aborted)
	require.Equal(t, 3, runRes.Documents)

	stats := rep.Stats()
	require.Equal(t, 3, stats.Success)
	require.Zero(t, stats.Failed)

	// a clean finish clears the checkpoint
	cp, err := LoadCheckpoint(cpPath)
	require.NoError(t, err)
	require.Zero(t, cp.LastProcessedIndex)
}

func TestRunSkipsCheckpointedDocuments(t *testing.T) {
	res := assemble.Result{
		Documents: []models.Document{
			orderDocument("PO-1", 100),
			orderDocument("PO-2", 101),
			orderDocument("PO-3", 102),
		},
		RowCount: 3,
	}
	rep, runRes := runEngine(t, context.Background(), res, 2, Options{Workers: 1, BatchSize: 10})

	require.Equal(t, 2, runRes.Skipped)
	require.Equal(t, 1, runRes.Documents)
	require.Equal(t, 1, rep.Stats().Success)
}

// A document's position in assembled order decides whether the checkpoint
// covers it, not its row numbers. PO-A spans rows 2 and 10 and PO-B sits on
// row 3 in between; after PO-A alone was completed, a resumed run must still
// import PO-B.
func TestRunResumesByDocumentPosition(t *testing.T) {
	dA := orderDocument("PO-A", 100)
	dA.SourceRows = []int{2, 10}
	dB := orderDocument("PO-B", 101)
	dB.SourceRows = []int{3}

	log := logrus.New()
	log.SetOutput(&strings.Builder{})

	var mu sync.Mutex
	var createdNames []string
	handler := func(c rpcCall) (any, error) {
		switch c.Method {
		case "search_read":
			return []any{}, nil
		case "create":
			mu.Lock()
			defer mu.Unlock()
			name, _ := c.Args[0].(map[string]any)["name"].(string)
			createdNames = append(createdNames, name)
			return int64(900 + len(createdNames)), nil
		case "read":
			mu.Lock()
			defer mu.Unlock()
			last := createdNames[len(createdNames)-1]
			return []any{map[string]any{"name": last, "state": "draft"}}, nil
		}
		return nil, errors.New("unexpected " + c.Method)
	}

	desc := orderDescriptor()
	exec := testExecutor(desc, &scriptedCaller{handler: handler}, ExecutorOptions{})
	rep := report.NewReporter(log)
	eng := New(desc, exec, rep, nil, log, Options{Workers: 1, BatchSize: 10})

	res := assemble.Result{Documents: []models.Document{dA, dB}, RowCount: 3}
	runRes, err := eng.Run(context.Background(), res, 1)
	require.NoError(t, err)

	require.Equal(t, 1, runRes.Skipped)
	require.Equal(t, 1, runRes.Documents)
	require.Equal(t, []string{"PO-B"}, createdNames)
	require.Equal(t, 1, rep.Stats().Success)
}

func TestRunRecordsAssemblyFailures(t *testing.T) {
	res := assemble.Result{
		Documents: []models.Document{orderDocument("PO-1", 100)},
		Failures: []models.FailureRecord{{
			Timestamp: time.Now(),
			SourceRow: 9,
			Category:  models.CategoryNormalization,
			Message:   "required value missing",
		}},
		Missing: []models.MissingReference{{
			Kind: models.RefProduct, Token: "GHOST", SourceRow: 9,
		}},
		RowCount: 2,
	}
	rep, _ := runEngine(t, context.Background(), res, 0, Options{Workers: 1, BatchSize: 10})

	stats := rep.Stats()
	require.Equal(t, 1, stats.Success)
	require.Equal(t, 1, stats.Failed)
	require.Equal(t, 1, stats.ByCategory[models.CategoryNormalization])
	require.True(t, rep.HasFailures())
}

func TestRunAbortsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := assemble.Result{Documents: []models.Document{orderDocument("PO-1", 100)}, RowCount: 1}
	rep, runRes := runEngine(t, ctx, res, 0, Options{Workers: 1, BatchSize: 10})

	require.True(t, runRes.Aborted)
	require.Zero(t, rep.Stats().Success)
}

func TestRunWritesCheckpointPerBatch(t *testing.T) {
	// cancel while the only document of the first batch is in flight
	d1 := orderDocument("PO-1", 100)
	d2 := orderDocument("PO-2", 101)

	log := logrus.New()
	log.SetOutput(&strings.Builder{})
	desc := orderDescriptor()
	desc.StateField = ""
	desc.MutableStates = nil
	desc.LockedStates = nil
	desc.ExpectedCreateState = ""

	ctx, cancel := context.WithCancel(context.Background())
	processed := 0
	lastName := ""
	exec := testExecutor(desc, &scriptedCaller{handler: func(c rpcCall) (any, error) {
		switch c.Method {
		case "search_read":
			return []any{}, nil
		case "create":
			processed++
			if processed == 1 {
				// interrupt arrives while the first document is in flight
				cancel()
			}
			lastName, _ = c.Args[0].(map[string]any)["name"].(string)
			return int64(900), nil
		case "read":
			return []any{map[string]any{"name": lastName, "state": "draft"}}, nil
		}
		return nil, errors.New("unexpected " + c.Method)
	}}, ExecutorOptions{})

	cpPath := filepath.Join(t.TempDir(), "cp.json")
	rep := report.NewReporter(log)
	eng := New(desc, exec, rep, nil, log, Options{Workers: 1, BatchSize: 1, CheckpointPath: cpPath})

	runRes, err := eng.Run(ctx, assemble.Result{Documents: []models.Document{d1, d2}, RowCount: 2}, 0)
	require.NoError(t, err)
	require.True(t, runRes.Aborted)

	// the in-flight document finished; the checkpoint covers it and nothing
	// beyond it
	require.Equal(t, 1, rep.Stats().Success)
	cp, err := LoadCheckpoint(cpPath)
	require.NoError(t, err)
	require.Equal(t, 1, cp.LastProcessedIndex)
}

// An interrupt arriving while the first document of a batch is in flight
// must not checkpoint past the documents that were never dispatched; after
// the in-flight document drains, the stored index covers completed batches
// only.
func TestRunInterruptedBatchNotCheckpointed(t *testing.T) {
	d1 := orderDocument("PO-1", 100)
	d2 := orderDocument("PO-2", 101)

	log := logrus.New()
	log.SetOutput(&strings.Builder{})
	desc := orderDescriptor()
	desc.StateField = ""
	desc.MutableStates = nil
	desc.LockedStates = nil
	desc.ExpectedCreateState = ""

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var createdNames []string
	exec := testExecutor(desc, &scriptedCaller{handler: func(c rpcCall) (any, error) {
		switch c.Method {
		case "search_read":
			return []any{}, nil
		case "create":
			mu.Lock()
			name, _ := c.Args[0].(map[string]any)["name"].(string)
			createdNames = append(createdNames, name)
			first := len(createdNames) == 1
			mu.Unlock()
			if first {
				cancel()
				// hold the only worker so the dispatcher observes the
				// cancellation before this document drains
				time.Sleep(50 * time.Millisecond)
			}
			return int64(900), nil
		case "read":
			mu.Lock()
			defer mu.Unlock()
			return []any{map[string]any{"name": createdNames[len(createdNames)-1], "state": "draft"}}, nil
		}
		return nil, errors.New("unexpected " + c.Method)
	}}, ExecutorOptions{})

	cpPath := filepath.Join(t.TempDir(), "cp.json")
	rep := report.NewReporter(log)
	eng := New(desc, exec, rep, nil, log, Options{Workers: 1, BatchSize: 2, CheckpointPath: cpPath})

	runRes, err := eng.Run(ctx, assemble.Result{Documents: []models.Document{d1, d2}, RowCount: 2}, 0)
	require.NoError(t, err)
	require.True(t, runRes.Aborted)

	// only the in-flight document reached the remote
	require.Equal(t, []string{"PO-1"}, createdNames)
	require.Equal(t, 1, rep.Stats().Success)

	// no whole batch completed, so nothing is checkpointed and a resumed
	// run starts from the top
	cp, err := LoadCheckpoint(cpPath)
	require.NoError(t, err)
	require.Zero(t, cp.LastProcessedIndex)
}

// A resumed run reuses the workbooks of the run that produced the
// checkpoint; assembly failures and missing references must not be recorded
// a second time.
func TestRunResumeSkipsAssemblyRecords(t *testing.T) {
	res := assemble.Result{
		Documents: []models.Document{
			orderDocument("PO-1", 100),
			orderDocument("PO-2", 101),
		},
		Failures: []models.FailureRecord{{
			Timestamp: time.Now(),
			SourceRow: 9,
			Category:  models.CategoryNormalization,
			Message:   "required value missing",
		}},
		Missing: []models.MissingReference{{
			Kind: models.RefProduct, Token: "GHOST", SourceRow: 9,
		}},
		RowCount: 3,
	}
	rep, runRes := runEngine(t, context.Background(), res, 1, Options{Workers: 1, BatchSize: 10})

	require.Equal(t, 1, runRes.Skipped)
	require.Equal(t, 1, rep.Stats().Success)
	require.Zero(t, rep.Stats().Failed)
	require.False(t, rep.HasFailures())
}
