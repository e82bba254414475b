package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Fepozopo/halftone/pkg/stdimg"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "stages [name]",
		Short: "List the pre-processing stages accepted by --pre",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				spec, ok := stdimg.LookupCommand(args[0])
				if !ok {
					return fmt.Errorf("%w: %q", stdimg.ErrUnknownStage, args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), stageHelp(spec))
				return nil
			}
			for _, spec := range stdimg.Commands {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", spec.Name, spec.Description)
			}
			return nil
		},
	})
}

// stageHelp describes a stage and its arguments.
func stageHelp(c stdimg.CommandSpec) string {
	var sb strings.Builder
	sb.WriteString(c.Usage)
	sb.WriteString("\n  ")
	if c.Description != "" {
		sb.WriteString(c.Description)
	} else {
		sb.WriteString("No description")
	}
	for _, a := range c.Args {
		req := "optional"
		if a.Required {
			req = "required"
		}
		fmt.Fprintf(&sb, "\n  - %s (%s, %s)", a.Name, a.Type, req)
		if a.Description != "" {
			sb.WriteString(": " + a.Description)
		}
		if a.Default != "" {
			sb.WriteString(" (default: " + a.Default + ")")
		}
	}
	return sb.String()
}
