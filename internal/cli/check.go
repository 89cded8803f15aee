package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/filerelay/internal/relay"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <document>",
		Short: "Validate a relay document",
		Long: `Check parses and validates a relay document without running the relay.

Validation enforces what the event loop relies on: unique trigger
names, actions referencing declared triggers, known trigger and action
kinds, and non-empty value maps. On success the normalized document is
printed; on failure the command exits with code 3.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args[0])
		},
	}

	return cmd
}

func runCheck(cmd *cobra.Command, path string) error {
	doc, err := relay.LoadDocument(path)
	if err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Invalid relay document: %v\n", err)

		return &ExitError{Code: exitCodeDocument, Err: err}
	}

	dump, err := doc.Dump()
	if err != nil {
		return err
	}

	_, _ = fmt.Fprint(cmd.OutOrStdout(), dump)
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Document is valid: %d trigger(s), %d action(s).\n",
		len(doc.Triggers), len(doc.Actions))

	return nil
}
