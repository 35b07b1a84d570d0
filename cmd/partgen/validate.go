package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tablekit/partgen/pkg/partition"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <spec-file>...",
	Short: "Check specifications without generating output",
	Long: `Validate parses each specification file and runs the full expansion
against an in-memory catalog, reporting every boundary, naming and
encoding problem with its source position.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd, args)
	},
}

func runValidate(cmd *cobra.Command, paths []string) error {
	failures := 0
	for _, path := range paths {
		children, err := expandFile(cmd.Context(), path)
		if err != nil {
			failures++
			fmt.Printf("❌ %s: %s\n", path, describeError(err))
			continue
		}
		fmt.Printf("✅ %s: %d partitions\n", path, countChildren(children))
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d specifications failed validation", failures, len(paths))
	}
	return nil
}

// describeError appends the source position and partition name when the
// failure carries them.
func describeError(err error) string {
	var specErr *partition.SpecError
	if !errors.As(err, &specErr) {
		return err.Error()
	}
	msg := specErr.Message
	if specErr.Partition != "" {
		msg = fmt.Sprintf("%s (partition %q)", msg, specErr.Partition)
	}
	if !specErr.Loc.IsZero() {
		msg = fmt.Sprintf("%s at %s", msg, specErr.Loc)
	}
	return msg
}
