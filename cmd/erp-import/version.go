package main

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/erp_importer/config"
	"bitbucket.org/mmdatafocus/erp_importer/entities"
	"bitbucket.org/mmdatafocus/erp_importer/erpclient"
	"github.com/spf13/cobra"
)

// set via -ldflags "-X main.version=..."
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tool version and, when configured, the server version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("erp-import %s\n", version)

		settings := applyFlagOverrides(config.Load())
		if settings.ServerURL == "" {
			return nil
		}
		client, err := erpclient.New(erpclient.OptionsFromSettings(settings), config.GetLogger(), nil)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		server, err := client.Version(ctx)
		if err != nil {
			return &exitError{code: 1, msg: fmt.Sprintf("server unreachable: %v", err)}
		}
		fmt.Printf("server %s at %s\n", server, settings.ServerURL)
		return nil
	},
}

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List the importable entities",
	Run: func(cmd *cobra.Command, args []string) {
		for _, desc := range entities.All() {
			mode := string(desc.Mode)
			fmt.Printf("%-18s %-22s %s\n", desc.Name, desc.ERPModel, mode)
		}
	},
}
