package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/CrillyPienaah/sme-growth-copilot/internal/memory"
)

func newHistoryCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <business-id>",
		Short: "List stored plans for a business",
		Long: `List stored plans for a business, oldest first, with the outcome of
each experiment.

Examples:
  growthctl --db growth.db history coffee-001
  growthctl --db growth.db history coffee-001 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := opts.registry(ctx)
			if err != nil {
				return err
			}
			defer reg.Close()

			plans, err := reg.Planner().ListPlans(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to list plans: %w", err)
			}

			out := cmd.OutOrStdout()
			if ok, err := opts.render(out, plans); ok || err != nil {
				return err
			}
			if len(plans) == 0 {
				fmt.Fprintf(out, "No plans for %s\n", args[0])
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tPLAN\tEXP ID\tEXPERIMENT\tSCORE\tSTATUS\tRESULT\t")
			for _, p := range plans {
				for _, e := range p.Experiments {
					name := e.Name
					if e.Chosen {
						name += "*"
					}
					result := "-"
					if e.ObservedResult != nil {
						result = strconv.FormatFloat(*e.ObservedResult, 'f', -1, 64)
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.2f\t%s\t%s\t\n",
						p.CreatedAt.Local().Format("2006-01-02 15:04"), shortID(p.ID),
						e.ID, name, e.PriorityScore, e.Status, result)
				}
			}
			return tw.Flush()
		},
	}
}

func newMemoryCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "memory <business-id>",
		Short: "Show experiments a business has marked as failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := opts.registry(ctx)
			if err != nil {
				return err
			}
			defer reg.Close()

			rec, err := reg.Planner().Memory(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to read strategy memory: %w", err)
			}
			return printMemory(cmd, opts, rec)
		},
	}
}

func newFailCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fail <business-id> <experiment>",
		Short: "Mark an experiment as failed so it is not proposed again",
		Long: `Mark an experiment as failed for a business. Future plans for the
business skip it. Recording the same failure twice has no effect.

Examples:
  growthctl --db growth.db fail coffee-001 "Referral Program"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := opts.registry(ctx)
			if err != nil {
				return err
			}
			defer reg.Close()

			rec, err := reg.Planner().RecordFailure(ctx, args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to record failure: %w", err)
			}
			return printMemory(cmd, opts, rec)
		},
	}
}

func newOutcomeCmd(opts *cliOptions) *cobra.Command {
	var observed float64

	cmd := &cobra.Command{
		Use:   "outcome <experiment-id> <status>",
		Short: "Record the outcome of a planned experiment",
		Long: `Record the outcome of a stored experiment. Status is one of PLANNED,
RUNNING, SUCCEEDED, FAILED, CANCELED_LOW_IMPACT or NO_IMPACT (any case).
FAILED, CANCELED_LOW_IMPACT and NO_IMPACT also add the experiment to the
business's strategy memory.

Examples:
  growthctl --db growth.db outcome 3 running
  growthctl --db growth.db outcome 3 failed --observed 0.01`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id < 1 {
				return fmt.Errorf("invalid experiment id %q", args[0])
			}
			var obs *float64
			if cmd.Flags().Changed("observed") {
				obs = &observed
			}

			ctx := cmd.Context()
			reg, err := opts.registry(ctx)
			if err != nil {
				return err
			}
			defer reg.Close()

			res, err := reg.Planner().UpdateExperimentResult(ctx, id, args[1], obs)
			if err != nil {
				return fmt.Errorf("failed to record outcome: %w", err)
			}

			out := cmd.OutOrStdout()
			if ok, err := opts.render(out, res); ok || err != nil {
				return err
			}
			fmt.Fprintf(out, "Experiment %d (%s) is now %s\n", res.Experiment.ID, res.Experiment.Name, res.Experiment.Status)
			if res.MemoryUpdated {
				fmt.Fprintf(out, "%s will not be proposed to %s again\n", res.Experiment.Name, res.Experiment.BusinessID)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&observed, "observed", 0, "observed result, e.g. conversion lift")
	return cmd
}

func printMemory(cmd *cobra.Command, opts *cliOptions, rec *memory.Record) error {
	out := cmd.OutOrStdout()
	if ok, err := opts.render(out, rec); ok || err != nil {
		return err
	}
	if len(rec.FailedExperiments) == 0 {
		fmt.Fprintf(out, "No failed experiments recorded for %s\n", rec.BusinessID)
		return nil
	}
	fmt.Fprintf(out, "Failed experiments for %s:\n", rec.BusinessID)
	for _, name := range rec.FailedExperiments {
		fmt.Fprintf(out, "  - %s\n", name)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
