package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/phobologic/argstates/internal/cache"
	"github.com/phobologic/argstates/internal/report"
)

// newSchemaCmd implements `argstates schema`, which prints the JSON Schema of
// the report so harness generators can validate their input.
func newSchemaCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return report.Schema(stdout)
		},
	}
}

// newCleanCmd implements `argstates clean DIR`, which empties a result cache.
func newCleanCmd(stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "clean <cache-dir>",
		Short: "Remove every entry from a result cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cache.Open(args[0])
			if err != nil {
				return err
			}
			if err := c.Clear(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stderr, "cleared cache %s\n", args[0])
			return nil
		},
	}
}
