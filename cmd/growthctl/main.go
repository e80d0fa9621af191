// Package main implements growthctl, a local CLI for the growth co-pilot.
//
// growthctl runs the same services as growthd in-process, so plans created
// here land in the configured store (use --db for a SQLite file).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/CrillyPienaah/sme-growth-copilot/internal/config"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/logging"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/services"
)

// version information
var version = "dev"

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// cliOptions holds the persistent flags.
type cliOptions struct {
	configPath string
	dbPath     string
	output     string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "growthctl",
		Short: "Plan and track growth experiments from the command line",
		Long: `growthctl turns a business's funnel KPIs into a ranked growth plan and
records experiment outcomes so failed experiments are not proposed again.

Examples:
  # Create a plan from a request file
  growthctl plan -f coffee.yaml

  # Keep history in a SQLite file
  growthctl --db growth.db plan -f coffee.yaml

  # Mark the chosen experiment as failed
  growthctl --db growth.db outcome 1 FAILED --observed 0.01`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/growth-copilot/config.yaml)")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides storage config)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", formatText, "output format: text, json or yaml")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline activity")

	root.AddCommand(
		newPlanCmd(opts),
		newHistoryCmd(opts),
		newMemoryCmd(opts),
		newFailCmd(opts),
		newOutcomeCmd(opts),
	)
	return root
}

// loadConfig loads configuration and applies flag overrides.
func (o *cliOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFile(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		cfg.Storage.Driver = config.StorageSQLite
		cfg.Storage.SQLitePath = o.dbPath
	}
	return cfg, nil
}

// registry builds the services for one command. Callers must Close it.
func (o *cliOptions) registry(ctx context.Context) (services.Registry, error) {
	switch o.output {
	case formatText, formatJSON, formatYAML:
	default:
		return nil, fmt.Errorf("unknown output format %q", o.output)
	}

	cfg, err := o.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewNop()
	if o.verbose {
		logCfg, err := logging.ConfigFor("debug", "console")
		if err != nil {
			return nil, err
		}
		if logger, err = logging.NewLogger(logCfg, nil); err != nil {
			return nil, fmt.Errorf("initializing logger: %w", err)
		}
	}

	return services.Build(ctx, cfg, services.BuildOptions{Logger: logger})
}

// render writes v in the selected structured format. It reports false for
// text output, which each command renders itself.
func (o *cliOptions) render(w io.Writer, v any) (bool, error) {
	switch o.output {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return true, enc.Encode(v)
	default:
		return false, nil
	}
}
