package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/filerelay/internal/relay"
)

type planOptions struct {
	pathsOnly bool
}

func newPlanCommand() *cobra.Command {
	opts := &planOptions{}

	cmd := &cobra.Command{
		Use:   "plan <document>",
		Short: "Preview the writes the current on-disk state implies",
		Long: `Plan resolves every trigger's current file content through its value
map and shows, as unified diffs, what dispatch would write to each
matching target file. No target file is modified.

Targets already holding the planned content are reported as up to
date. Use --paths-only to list affected target paths without diffs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.pathsOnly, "paths-only", false, "print only the target paths that would change")

	return cmd
}

func runPlan(cmd *cobra.Command, path string, opts *planOptions) error {
	doc, err := relay.LoadDocument(path)
	if err != nil {
		return &ExitError{Code: exitCodeDocument, Err: err}
	}

	diffs, err := relay.ComputePlan(cmd.Context(), doc)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	changed := 0

	for _, d := range diffs {
		if !d.Changed {
			if !opts.pathsOnly {
				_, _ = fmt.Fprintf(out, "%s: up to date (trigger %s)\n", d.Path, d.Trigger)
			}

			continue
		}

		changed++

		if opts.pathsOnly {
			_, _ = fmt.Fprintln(out, d.Path)
			continue
		}

		_, _ = fmt.Fprintf(out, "%s (trigger %s):\n", d.Path, d.Trigger)
		_, _ = fmt.Fprintln(out, d.Unified)
	}

	if changed == 0 && !opts.pathsOnly {
		_, _ = fmt.Fprintln(out, "No pending writes.")
	}

	return nil
}
