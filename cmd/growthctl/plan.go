package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/CrillyPienaah/sme-growth-copilot/internal/growth"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/pipeline"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/services"
)

func newPlanCmd(opts *cliOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Create a growth plan from a request file",
		Long: `Create a growth plan from a YAML or JSON plan request.

The request has the same shape as POST /api/v1/plans:

  business_profile:
    business_id: coffee-001
    name: Test Coffee Hub
    main_channels: [email, in-store]
  kpis: {visits: 2000, leads: 350, signups: 200, purchases: 80, revenue: 8400}
  goal: {objective: increase repeat purchases, horizon_weeks: 6}

Examples:
  # From a file
  growthctl plan -f coffee.yaml

  # From stdin, as JSON
  cat request.json | growthctl plan -f - -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", file, err)
				}
				defer f.Close()
				in = f
			}

			req, err := readPlanRequest(in)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			reg, err := opts.registry(ctx)
			if err != nil {
				return err
			}
			defer reg.Close()

			res, err := reg.Planner().CreatePlan(ctx, req)
			if err != nil {
				var stageErr *pipeline.StageError
				if errors.As(err, &stageErr) && res != nil {
					printAudit(cmd.ErrOrStderr(), res.Audit)
				}
				return fmt.Errorf("failed to create plan: %w", err)
			}

			out := cmd.OutOrStdout()
			if ok, err := opts.render(out, res); ok || err != nil {
				return err
			}
			printPlan(out, res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "plan request file, or - for stdin (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// readPlanRequest decodes a YAML (or JSON) plan request. Unknown fields are
// rejected so typos in KPI names do not silently become zeros.
func readPlanRequest(r io.Reader) (growth.PlanRequest, error) {
	var req growth.PlanRequest

	data, err := io.ReadAll(r)
	if err != nil {
		return req, fmt.Errorf("failed to read plan request: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return req, errors.New("plan request is empty")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("invalid plan request: %w", err)
	}
	return req, nil
}

func printPlan(w io.Writer, res *services.PlanResult) {
	plan := res.Plan
	chosen := plan.ChosenExperiment

	fmt.Fprintf(w, "Plan %s for %s (trace %s)\n\n", res.PlanID, plan.BusinessProfile.Name, plan.TraceID)
	fmt.Fprintf(w, "Bottleneck: %s -> %s (%.1f%% drop)\n", plan.FunnelInsight.FromStep,
		plan.FunnelInsight.ToStep, plan.FunnelInsight.DropRate*100)
	fmt.Fprintf(w, "  %s\n\n", plan.FunnelInsight.Comment)

	ids := make(map[string]int64, len(res.Experiments))
	for _, rec := range res.Experiments {
		ids[rec.Name] = rec.ID
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEXPERIMENT\tCHANNEL\tI\tC\tE\tSCORE\t")
	for _, exp := range plan.Experiments {
		id := ""
		if v, ok := ids[exp.Experiment.Name]; ok {
			id = fmt.Sprint(v)
		}
		mark := ""
		if exp.Experiment.Name == chosen.Experiment.Name {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s%s\t%s\t%d\t%d\t%d\t%.2f\t\n", id, exp.Experiment.Name, mark,
			exp.Experiment.Channel, exp.Impact, exp.Confidence, exp.Effort, exp.PriorityScore)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\nChosen: %s\n", chosen.Experiment.Name)
	if plan.CopySuggestion != "" {
		fmt.Fprintf(w, "\nCopy suggestion:\n%s\n", indent(plan.CopySuggestion))
	}
	if plan.StrategyCommentary != "" {
		fmt.Fprintf(w, "\n%s\n", plan.StrategyCommentary)
	}
	if warnings, ok := res.Metadata[pipeline.MetaDataWarnings.Name()].([]string); ok {
		for _, warn := range warnings {
			fmt.Fprintf(w, "\nwarning: %s", warn)
		}
		if len(warnings) > 0 {
			fmt.Fprintln(w)
		}
	}
}

func printAudit(w io.Writer, audit []pipeline.AuditEntry) {
	for _, e := range audit {
		fmt.Fprintf(w, "%s  %-12s %-8s %s\n", e.Timestamp.Format("15:04:05.000"), e.Stage, e.Action, e.Data)
	}
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
