package main

import (
	"fmt"

	"bitbucket.org/mmdatafocus/erp_importer/entities"
	"github.com/spf13/cobra"
)

var flags struct {
	file           string
	dryRun         bool
	limit          int
	resume         bool
	workers        int
	batchSize      int
	server         string
	database       string
	username       string
	password       string
	allowUnsafe    bool
	updateExisting bool
	noColor        bool
	verbose        bool
}

var rootCmd = &cobra.Command{
	Use:           "erp-import",
	Short:         "Bulk-import spreadsheet data into the ERP over XML-RPC",
	Long: `erp-import reads an .xlsx or .csv workbook, groups rows into documents,
resolves human-typed references against the ERP and upserts the result
idempotently. Re-running the same sheet converges instead of duplicating.

Connection settings come from ERP_SERVER_URL, ERP_DATABASE, ERP_USERNAME
and ERP_PASSWORD (or a .env file); flags override them per run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.file, "file", "f", "", "input workbook (.xlsx or .csv)")
	pf.BoolVarP(&flags.dryRun, "dry-run", "n", false, "resolve and plan but write nothing")
	pf.IntVar(&flags.limit, "limit", 0, "process at most this many documents")
	pf.BoolVar(&flags.resume, "resume", false, "continue from the stored checkpoint without asking")
	pf.IntVar(&flags.workers, "workers", 0, "parallel workers (default from IMPORT_WORKERS)")
	pf.IntVar(&flags.batchSize, "batch-size", 0, "documents per checkpointed batch")
	pf.StringVar(&flags.server, "server", "", "ERP server URL")
	pf.StringVar(&flags.database, "database", "", "ERP database name")
	pf.StringVar(&flags.username, "username", "", "ERP login")
	pf.StringVar(&flags.password, "password", "", "ERP password")
	pf.BoolVar(&flags.allowUnsafe, "allow-unsafe-writes", false, "permit writes to server-computed fields")
	pf.BoolVar(&flags.updateExisting, "update-existing", false, "also update header fields on existing mutable documents")
	pf.BoolVar(&flags.noColor, "no-color", false, "disable colored output")
	pf.BoolVar(&flags.verbose, "verbose", false, "debug-level logging")

	for _, desc := range entities.All() {
		desc := desc
		cmd := &cobra.Command{
			Use:   desc.Name + " [file]",
			Short: fmt.Sprintf("Import %s rows into %s", desc.Name, desc.ERPModel),
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				flags.file = resolveInput(flags.file, args)
				return runImport(cmd, desc)
			},
		}
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(entitiesCmd)
}

// resolveInput picks the input workbook: --file wins, a positional argument
// serves when the flag is absent.
func resolveInput(flagFile string, args []string) string {
	if flagFile != "" {
		return flagFile
	}
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
