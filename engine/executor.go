package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/erp_importer/erpclient"
	"bitbucket.org/mmdatafocus/erp_importer/models"
	"bitbucket.org/mmdatafocus/erp_importer/normalize"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Executor turns one assembled document into remote calls: look the natural
// key up, decide create / update / append / skip, execute, then verify. All
// remote traffic goes through the shared Caller; the worker index pins the
// calls to one pooled session.
type Executor struct {
	desc        *models.EntityDescriptor
	call        erpclient.Caller
	log         *logrus.Logger
	dryRun      bool
	allowUnsafe bool

	// nil means the descriptor default stands.
	updateHeader *bool
}

type ExecutorOptions struct {
	DryRun            bool
	AllowUnsafeWrites bool
	UpdateHeader      *bool
}

func NewExecutor(desc *models.EntityDescriptor, call erpclient.Caller, log *logrus.Logger, opt ExecutorOptions) *Executor {
	return &Executor{
		desc:         desc,
		call:         call,
		log:          log,
		dryRun:       opt.DryRun,
		allowUnsafe:  opt.AllowUnsafeWrites,
		updateHeader: opt.UpdateHeader,
	}
}

func (e *Executor) updateExistingHeader() bool {
	if e.updateHeader != nil {
		return *e.updateHeader
	}
	return e.desc.UpdateExistingHeader
}

// Process runs the full decision procedure for one document. The returned
// error is reserved for aborts (context cancellation, exhausted retries on a
// lookup); everything else lands in the outcome and failure records.
func (e *Executor) Process(ctx context.Context, worker int, doc models.Document) (models.Outcome, []models.FailureRecord, error) {
	if len(e.desc.UnsafeWrites) > 0 && !e.allowUnsafe {
		return models.Outcome{
			Kind:        models.OutcomeSkip,
			DocumentKey: doc.Key,
			SourceRows:  doc.SourceRows,
			Plan:        models.PlanSkip,
			Reason:      models.SkipReasonUnsafeDisabled,
		}, nil, nil
	}

	plan, err := e.Plan(ctx, worker, doc)
	if err != nil {
		return e.failOutcome(doc, plan.Kind, err)
	}

	switch plan.Kind {
	case models.PlanSkip:
		e.log.WithFields(logrus.Fields{
			"entity":   e.desc.Name,
			"document": doc.Key,
			"reason":   plan.Reason,
		}).Info("skipped")
		return models.Outcome{
			Kind:        models.OutcomeSkip,
			DocumentKey: doc.Key,
			SourceRows:  doc.SourceRows,
			Plan:        plan.Kind,
			Reason:      plan.Reason,
		}, nil, nil
	case models.PlanFail:
		return e.failOutcome(doc, plan.Kind, errors.New(plan.Reason))
	}

	if e.dryRun {
		e.logDryRun(doc, plan)
		return models.Outcome{
			Kind:        models.OutcomeSuccess,
			DocumentKey: doc.Key,
			SourceRows:  doc.SourceRows,
			Plan:        plan.Kind,
			Reason:      "dry-run",
			RemoteID:    plan.ExistingID,
		}, nil, nil
	}

	id, err := e.execute(ctx, worker, doc, plan)
	if err != nil {
		return e.failOutcome(doc, plan.Kind, err)
	}

	if plan.Kind == models.PlanCreate {
		if err := e.verifyCreate(ctx, worker, doc, id); err != nil {
			out := models.Outcome{
				Kind:        models.OutcomeFailure,
				DocumentKey: doc.Key,
				SourceRows:  doc.SourceRows,
				Plan:        plan.Kind,
				Reason:      err.Error(),
				RemoteID:    id,
			}
			return out, []models.FailureRecord{e.failureRecord(doc, models.CategoryVerification, err.Error(), false)}, nil
		}
	}

	if err := e.applyUnsafeWrites(ctx, worker, doc, id); err != nil {
		return e.failOutcome(doc, plan.Kind, err)
	}

	e.log.WithFields(logrus.Fields{
		"entity":   e.desc.Name,
		"document": doc.Key,
		"plan":     string(plan.Kind),
		"id":       id,
		"lines":    len(plan.Lines),
	}).Info("upserted")

	return models.Outcome{
		Kind:        models.OutcomeSuccess,
		DocumentKey: doc.Key,
		SourceRows:  doc.SourceRows,
		Plan:        plan.Kind,
		RemoteID:    id,
	}, nil, nil
}

// Plan looks the natural key up remotely and decides what Execute should do.
func (e *Executor) Plan(ctx context.Context, worker int, doc models.Document) (models.UpsertPlan, error) {
	existingID, state, err := e.lookupExisting(ctx, worker, doc.Key)
	if err != nil {
		return models.UpsertPlan{Kind: models.PlanFail}, err
	}

	if existingID == 0 {
		header := e.buildValues(doc.Header, e.desc.HeaderFields, true)
		lines := e.createCommands(doc.Lines)
		if e.desc.OwnsLines() {
			header[e.desc.LineField] = models.Commands(lines)
		}
		return models.UpsertPlan{Kind: models.PlanCreate, Header: header, Lines: lines}, nil
	}

	if e.desc.StateField != "" && !contains(e.desc.MutableStates, state) {
		return models.UpsertPlan{
			Kind:       models.PlanSkip,
			ExistingID: existingID,
			Reason:     models.SkipReasonLocked,
		}, nil
	}

	switch e.desc.Mode {
	case models.UpsertModeSingle:
		header := e.buildValues(doc.Header, e.desc.HeaderFields, false)
		delete(header, e.desc.NaturalKeyERP)
		if len(header) == 0 {
			return models.UpsertPlan{Kind: models.PlanSkip, ExistingID: existingID, Reason: models.SkipReasonHeaderUnchanged}, nil
		}
		return models.UpsertPlan{Kind: models.PlanUpdateReplaceLines, ExistingID: existingID, Header: header}, nil

	case models.UpsertModeReplaceLines:
		existing, err := e.existingLineIDs(ctx, worker, existingID)
		if err != nil {
			return models.UpsertPlan{Kind: models.PlanFail, ExistingID: existingID}, err
		}
		var cmds []models.LineCommand
		for _, lineID := range existing {
			cmds = append(cmds, models.DeleteLineCommand(lineID))
		}
		cmds = append(cmds, e.createCommands(doc.Lines)...)
		plan := models.UpsertPlan{Kind: models.PlanUpdateReplaceLines, ExistingID: existingID, Lines: cmds}
		if e.updateExistingHeader() {
			header := e.buildValues(doc.Header, e.desc.HeaderFields, false)
			delete(header, e.desc.NaturalKeyERP)
			plan.Header = header
		}
		return plan, nil

	case models.UpsertModeAppendLines:
		fresh := doc.Lines
		if !e.desc.AppendAlways {
			fresh, err = e.withoutExistingProducts(ctx, worker, existingID, doc.Lines)
			if err != nil {
				return models.UpsertPlan{Kind: models.PlanFail, ExistingID: existingID}, err
			}
		}
		if len(fresh) == 0 {
			return models.UpsertPlan{Kind: models.PlanSkip, ExistingID: existingID, Reason: "all lines already present"}, nil
		}
		plan := models.UpsertPlan{Kind: models.PlanAppendLines, ExistingID: existingID, Lines: e.createCommands(fresh)}
		if e.updateExistingHeader() {
			header := e.buildValues(doc.Header, e.desc.HeaderFields, false)
			delete(header, e.desc.NaturalKeyERP)
			plan.Header = header
		}
		return plan, nil
	}

	return models.UpsertPlan{Kind: models.PlanFail, ExistingID: existingID},
		fmt.Errorf("descriptor %s has unknown mode %q", e.desc.Name, e.desc.Mode)
}

func (e *Executor) execute(ctx context.Context, worker int, doc models.Document, plan models.UpsertPlan) (int64, error) {
	switch plan.Kind {
	case models.PlanCreate:
		return erpclient.Create(ctx, e.call, worker, e.desc.ERPModel, plan.Header)

	case models.PlanUpdateReplaceLines, models.PlanAppendLines:
		values := map[string]any{}
		for k, v := range plan.Header {
			values[k] = v
		}
		if len(plan.Lines) > 0 {
			values[e.desc.LineField] = models.Commands(plan.Lines)
		}
		if len(values) == 0 {
			return plan.ExistingID, nil
		}
		err := erpclient.Write(ctx, e.call, worker, e.desc.ERPModel, []int64{plan.ExistingID}, values)
		return plan.ExistingID, err
	}
	return 0, fmt.Errorf("cannot execute plan %q", plan.Kind)
}

// lookupExisting returns the remote id for the natural key, 0 when absent.
// Two or more matches mean the remote data is already ambiguous; the first
// id wins and a warning is logged.
func (e *Executor) lookupExisting(ctx context.Context, worker int, key string) (int64, string, error) {
	fields := []string{"id"}
	if e.desc.StateField != "" {
		fields = append(fields, e.desc.StateField)
	}
	records, err := erpclient.SearchRead(ctx, e.call, worker, e.desc.ERPModel,
		[]any{erpclient.Domain(e.desc.NaturalKeyERP, "=", key)}, fields, 2)
	if err != nil {
		return 0, "", err
	}
	if len(records) == 0 {
		return 0, "", nil
	}
	if len(records) > 1 {
		e.log.WithFields(logrus.Fields{
			"entity": e.desc.Name,
			"key":    key,
		}).Warn("natural key matches more than one remote record")
	}
	id := erpclient.Int64(records[0]["id"])
	state := ""
	if e.desc.StateField != "" {
		state = erpclient.StringField(records[0][e.desc.StateField])
	}
	return id, state, nil
}

func (e *Executor) existingLineIDs(ctx context.Context, worker int, headerID int64) ([]int64, error) {
	records, err := erpclient.Read(ctx, e.call, worker, e.desc.ERPModel, []int64{headerID}, []string{e.desc.LineField})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return erpclient.Int64Slice(records[0][e.desc.LineField]), nil
}

// withoutExistingProducts drops candidate lines whose product already sits on
// the remote document. The guard keeps re-imports of accumulating documents
// from doubling every line.
func (e *Executor) withoutExistingProducts(ctx context.Context, worker int, headerID int64, lines []models.NormalizedRow) ([]models.NormalizedRow, error) {
	productLogical, productERP := e.productLineField()
	if productERP == "" {
		return lines, nil
	}

	ids, err := e.existingLineIDs(ctx, worker, headerID)
	if err != nil {
		return nil, err
	}
	present := map[int64]bool{}
	if len(ids) > 0 {
		records, err := erpclient.Read(ctx, e.call, worker, e.desc.LineModel, ids, []string{productERP})
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if id := erpclient.RelationID(rec[productERP]); id > 0 {
				present[id] = true
			}
		}
	}

	var fresh []models.NormalizedRow
	for _, line := range lines {
		if id := line.ID(productLogical); !id.Zero() && present[id.ID] {
			continue
		}
		fresh = append(fresh, line)
	}
	return fresh, nil
}

func (e *Executor) productLineField() (logical, erp string) {
	for _, f := range e.desc.LineFields {
		if f.Ref == models.RefProduct && f.ERPField != "" {
			return f.Name, f.ERPField
		}
	}
	return "", ""
}

// verifyCreate reads the new record back and checks the natural key landed
// and the state is the expected fresh one. A mismatch is a verification
// failure, never a retry.
func (e *Executor) verifyCreate(ctx context.Context, worker int, doc models.Document, id int64) error {
	fields := []string{e.desc.NaturalKeyERP}
	if e.desc.StateField != "" && e.desc.ExpectedCreateState != "" {
		fields = append(fields, e.desc.StateField)
	}
	records, err := erpclient.Read(ctx, e.call, worker, e.desc.ERPModel, []int64{id}, fields)
	if err != nil {
		return fmt.Errorf("read-back of %d failed: %w", id, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("created record %d not readable", id)
	}
	got := erpclient.StringField(records[0][e.desc.NaturalKeyERP])
	if got != doc.Key {
		return fmt.Errorf("created record %d has key %q, want %q", id, got, doc.Key)
	}
	if e.desc.StateField != "" && e.desc.ExpectedCreateState != "" {
		if state := erpclient.StringField(records[0][e.desc.StateField]); state != e.desc.ExpectedCreateState {
			return fmt.Errorf("created record %d is in state %q, want %q", id, state, e.desc.ExpectedCreateState)
		}
	}
	return nil
}

// applyUnsafeWrites issues the descriptor's forced writes. Only reached when
// --allow-unsafe-writes was passed; without it the document is skipped
// before planning.
func (e *Executor) applyUnsafeWrites(ctx context.Context, worker int, doc models.Document, id int64) error {
	for _, uw := range e.desc.UnsafeWrites {
		e.log.WithFields(logrus.Fields{
			"entity":   e.desc.Name,
			"document": doc.Key,
			"write":    uw.Description,
		}).Warn("forcing server-computed fields")

		method := uw.Method
		if method == "" {
			method = "write"
		}
		var args []any
		if method == "write" {
			args = []any{[]any{id}, uw.Fields}
		} else {
			args = []any{[]any{id}}
		}
		if _, err := e.call.Call(ctx, worker, e.desc.ERPModel, method, args, nil); err != nil {
			return fmt.Errorf("unsafe write %q: %w", uw.Description, err)
		}
	}
	return nil
}

// buildValues turns a normalized row into an execute_kw payload. Defaults
// are written on create only; OmitOnUpdate fields never appear in update
// payloads.
func (e *Executor) buildValues(row models.NormalizedRow, fields []models.FieldSpec, create bool) map[string]any {
	values := map[string]any{}
	for _, f := range fields {
		if f.ERPField == "" {
			continue
		}
		if !create && f.OmitOnUpdate {
			continue
		}
		v, ok := row.Values[f.Name]
		if !ok || v == nil {
			if create && f.Default != nil {
				values[f.ERPField] = f.Default
			}
			continue
		}
		if f.Many2Many {
			if id, ok := v.(models.Identifier); ok {
				values[f.ERPField] = models.Commands([]models.LineCommand{models.ReplaceLinesCommand([]int64{id.ID})})
			}
			continue
		}
		values[f.ERPField] = wireValue(v)
	}
	return values
}

func (e *Executor) createCommands(lines []models.NormalizedRow) []models.LineCommand {
	cmds := make([]models.LineCommand, 0, len(lines))
	for i, line := range lines {
		vals := e.buildValues(line, e.desc.LineFields, true)
		if e.desc.LineSequenceField != "" {
			vals[e.desc.LineSequenceField] = int64((i + 1) * 10)
		}
		cmds = append(cmds, models.CreateLineCommand(vals))
	}
	return cmds
}

// wireValue lowers engine types into what the XML-RPC marshaller handles.
func wireValue(v any) any {
	switch t := v.(type) {
	case models.Identifier:
		return t.ID
	case decimal.Decimal:
		f, _ := t.Float64()
		return f
	case normalize.Discount:
		if !t.Percent.IsZero() {
			f, _ := t.Percent.Float64()
			return f
		}
		f, _ := t.Fixed.Float64()
		return f
	default:
		return v
	}
}

func (e *Executor) logDryRun(doc models.Document, plan models.UpsertPlan) {
	fields := logrus.Fields{
		"entity":   e.desc.Name,
		"document": doc.Key,
	}
	switch plan.Kind {
	case models.PlanCreate:
		fields["lines"] = len(plan.Lines)
		e.log.WithFields(fields).Infof("dry-run: would create %s with %d lines", doc.Key, len(plan.Lines))
	case models.PlanUpdateReplaceLines:
		fields["id"] = plan.ExistingID
		e.log.WithFields(fields).Infof("dry-run: would update %s replacing lines", doc.Key)
	case models.PlanAppendLines:
		fields["id"] = plan.ExistingID
		fields["lines"] = len(plan.Lines)
		e.log.WithFields(fields).Infof("dry-run: would append %d lines to %s", len(plan.Lines), doc.Key)
	}
}

func (e *Executor) failOutcome(doc models.Document, plan models.PlanKind, err error) (models.Outcome, []models.FailureRecord, error) {
	// Context cancellation and credential rejection abort the run instead
	// of burning the remaining documents as failures; neither can succeed
	// for a later document.
	if errors.Is(err, context.Canceled) || errors.Is(err, erpclient.ErrAuthenticationFailed) {
		return models.Outcome{}, nil, err
	}

	category, retryable := categorize(err)
	out := models.Outcome{
		Kind:        models.OutcomeFailure,
		DocumentKey: doc.Key,
		SourceRows:  doc.SourceRows,
		Plan:        plan,
		Reason:      err.Error(),
	}
	rec := e.failureRecord(doc, category, err.Error(), retryable)
	e.log.WithFields(logrus.Fields{
		"entity":   e.desc.Name,
		"document": doc.Key,
		"category": string(category),
	}).Error(err.Error())
	return out, []models.FailureRecord{rec}, nil
}

func (e *Executor) failureRecord(doc models.Document, cat models.ErrorCategory, msg string, retryable bool) models.FailureRecord {
	return models.FailureRecord{
		Timestamp:   time.Now(),
		DocumentKey: doc.Key,
		SourceRow:   doc.Header.SourceRow,
		Category:    cat,
		Message:     msg,
		Raw:         doc.Header.Raw,
		Retryable:   retryable,
	}
}

func categorize(err error) (models.ErrorCategory, bool) {
	if errors.Is(err, erpclient.ErrServerUnreachable) {
		return models.CategoryConnection, true
	}
	var fault *erpclient.RemoteFault
	if errors.As(err, &fault) {
		return models.CategoryRemoteFault, false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.CategoryConnection, true
	}
	return models.CategoryRemoteFault, false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
