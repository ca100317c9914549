package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/erp_importer/appctx"
	"bitbucket.org/mmdatafocus/erp_importer/assemble"
	"bitbucket.org/mmdatafocus/erp_importer/config"
	"bitbucket.org/mmdatafocus/erp_importer/engine"
	"bitbucket.org/mmdatafocus/erp_importer/erpclient"
	"bitbucket.org/mmdatafocus/erp_importer/models"
	"bitbucket.org/mmdatafocus/erp_importer/report"
	"bitbucket.org/mmdatafocus/erp_importer/resolver"
	"bitbucket.org/mmdatafocus/erp_importer/sheets"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func applyFlagOverrides(s config.Settings) config.Settings {
	if flags.server != "" {
		s.ServerURL = flags.server
	}
	if flags.database != "" {
		s.Database = flags.database
	}
	if flags.username != "" {
		s.Username = flags.username
	}
	if flags.password != "" {
		s.Password = flags.password
	}
	if flags.workers > 0 {
		s.Workers = flags.workers
	}
	if flags.batchSize > 0 {
		s.BatchSize = flags.batchSize
	}
	return s
}

// runImport is the full pipeline for one entity: read, assemble, upsert,
// report. Mapped exit codes: 0 clean, 1 fatal or completed with failures,
// 2 interrupted with the checkpoint persisted.
func runImport(cmd *cobra.Command, desc *models.EntityDescriptor) error {
	if flags.noColor {
		color.NoColor = true
	}
	log := config.GetLogger()
	if flags.verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if flags.file == "" {
		return &exitError{code: 1, msg: "missing input workbook (pass it as an argument or with --file)"}
	}
	settings := applyFlagOverrides(config.Load())
	if err := settings.Validate(); err != nil {
		return &exitError{code: 1, msg: err.Error()}
	}

	started := time.Now()
	runID := uuid.NewString()[:8]
	runDir := filepath.Join(settings.RunsDir, started.Format("20060102_150405")+"-"+runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return &exitError{code: 1, msg: fmt.Sprintf("cannot create run directory: %v", err)}
	}
	logCloser := config.TeeToRunLog(runDir)
	defer logCloser.Close()

	ctx := appctx.Set(cmd.Context(), appctx.ContextKeyRunId, runID)
	ctx = appctx.Set(ctx, appctx.ContextKeyEntity, desc.Name)
	ctx = appctx.Set(ctx, appctx.ContextKeyDryRun, flags.dryRun)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"run":    runID,
		"entity": desc.Name,
		"file":   flags.file,
		"dryRun": flags.dryRun,
	}).Info("starting import")

	sheet, err := sheets.ReadWorkbook(flags.file)
	if err != nil {
		return &exitError{code: 1, msg: err.Error()}
	}
	if len(sheet.Rows) == 0 {
		return &exitError{code: 1, msg: "input has no data rows"}
	}

	resumeFrom, cpPath, err := resumePoint(desc.Name, settings.RunsDir)
	if err != nil {
		return &exitError{code: 1, msg: err.Error()}
	}

	client, err := erpclient.New(erpclient.OptionsFromSettings(settings), log, nil)
	if err != nil {
		return &exitError{code: 1, msg: err.Error()}
	}
	defer client.Close()

	// Preflight so credential and connectivity problems fail before any row
	// is touched.
	server, err := client.Version(ctx)
	if err != nil {
		return &exitError{code: 1, msg: fmt.Sprintf("server unreachable: %v", err)}
	}
	log.WithField("server", server).Info("connected")

	res := resolver.New(client, log)
	if desc.AllowCreatePartner && !flags.dryRun {
		res.AllowPartnerCreation(desc.PartnerRole)
	}

	rep := report.NewReporter(log)
	rep.SetTotalRows(len(sheet.Rows))
	prog := report.NewProgress(rep, log, settings.ProgressEveryRows, settings.ProgressEveryTime)

	prog.SetStage("resolving references")
	go prog.Run(ctx)

	result, err := assemble.New(desc, res, log).Assemble(ctx, sheet)
	if err != nil {
		return &exitError{code: 1, msg: fmt.Sprintf("assembly aborted: %v", err)}
	}
	if flags.limit > 0 && len(result.Documents) > flags.limit {
		result.Documents = result.Documents[:flags.limit]
	}

	prog.SetStage("upserting documents")
	exec := engine.NewExecutor(desc, client, log, engine.ExecutorOptions{
		DryRun:            flags.dryRun,
		AllowUnsafeWrites: flags.allowUnsafe,
		UpdateHeader:      updateHeaderOverride(cmd),
	})
	eng := engine.New(desc, exec, rep, prog, log, engine.Options{
		Workers:        settings.Workers,
		BatchSize:      settings.BatchSize,
		CheckpointPath: cpPath,
	})

	runRes, err := eng.Run(ctx, result, resumeFrom)
	if err != nil {
		return &exitError{code: 1, msg: fmt.Sprintf("run aborted: %v", err)}
	}

	if path, err := rep.WriteFailureWorkbook(runDir, started); err != nil {
		config.LogError(log, "cmd", "runImport", "write failure workbook", runDir, err)
	} else if path != "" {
		log.WithField("path", path).Info("failure workbook written")
	}
	if paths, err := rep.WriteMissingWorkbooks(runDir, started); err != nil {
		config.LogError(log, "cmd", "runImport", "write missing-reference workbooks", runDir, err)
	} else {
		for _, p := range paths {
			log.WithField("path", p).Info("missing-reference workbook written")
		}
	}

	rep.PrintSummary(os.Stdout, desc.Name, flags.dryRun)

	if runRes.Aborted {
		color.Yellow("interrupted after %d documents; continue with --resume", checkpointedDocuments(cpPath))
		return &exitError{code: 2}
	}
	if rep.HasFailures() {
		return &exitError{code: 1}
	}
	return nil
}

// resumePoint decides where to start. With --resume the stored checkpoint is
// used directly; otherwise a stale checkpoint prompts before being honored,
// and declining clears it.
func resumePoint(entity, runsDir string) (int, string, error) {
	cpPath := engine.CheckpointPath(runsDir, entity, flags.file)
	cp, err := engine.LoadCheckpoint(cpPath)
	if err != nil {
		return 0, cpPath, err
	}
	if cp.LastProcessedIndex == 0 {
		return 0, cpPath, nil
	}
	if flags.resume {
		return cp.LastProcessedIndex, cpPath, nil
	}

	color.Yellow("A previous run stopped after completing %d documents.", cp.LastProcessedIndex)
	fmt.Print("Resume from there? [y/N] ")
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	if answer := strings.ToLower(strings.TrimSpace(line)); answer == "y" || answer == "yes" {
		return cp.LastProcessedIndex, cpPath, nil
	}
	if err := engine.ClearCheckpoint(cpPath); err != nil {
		return 0, cpPath, err
	}
	return 0, cpPath, nil
}

func checkpointedDocuments(cpPath string) int {
	cp, err := engine.LoadCheckpoint(cpPath)
	if err != nil {
		return 0
	}
	return cp.LastProcessedIndex
}

// updateHeaderOverride returns nil when the flag was not given so the
// descriptor default stands.
func updateHeaderOverride(cmd *cobra.Command) *bool {
	if !cmd.Flags().Changed("update-existing") {
		return nil
	}
	v := flags.updateExisting
	return &v
}
