package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"xpose-triage/internal/config"
	"xpose-triage/pkg/logger"
)

// cli carries what every subcommand needs once flags are parsed
type cli struct {
	configPath string
	verbose    bool

	cfg *config.Config
	log *logger.Logger
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "xposectl",
		Short:         "Operate the Xpose crime report triage service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg

			level := "warn"
			if c.verbose {
				level = "debug"
			}
			c.log = logger.New(logger.Config{Level: level, Format: "console"})
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ./config.yaml)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(
		newTrackIDCommand(c),
		newDistrictsCommand(c),
		newLedgerCommand(c),
		newMigrateCommand(c),
		newDirectoryCommand(c),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
