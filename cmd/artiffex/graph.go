package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/artiffex/pkg/workflow"
)

func graphCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "graph <plan.dot>",
		Short: "Print a human-readable summary of a workflow plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPlan(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch strings.ToLower(format) {
			case "dot":
				fmt.Fprint(out, workflow.RenderDOT(p))
			case "text", "":
				fmt.Fprint(out, workflow.RenderText(p))
			default:
				return fmt.Errorf("unknown format %q: use text or dot", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text or dot")
	return cmd
}
