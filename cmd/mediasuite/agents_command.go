package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mediasuite/internal/agent"
	"mediasuite/internal/registry"
)

func newAgentsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Show the configured agent pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			reg, err := registry.Default(agent.Deps{KeyFrames: cfg.Storyboard.KeyFrames}, cfg.Pipeline.Agents...)
			if err != nil {
				return err
			}
			descriptors := reg.Descriptors()
			if jsonOutput {
				return writeJSON(cmd, descriptors)
			}
			rows := make([][]string, 0, len(descriptors))
			for i, desc := range descriptors {
				rows = append(rows, []string{
					fmt.Sprintf("%d", i+1),
					desc.ID,
					desc.Kind.Label(),
					strings.Join(desc.Capabilities, ", "),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Agent", "Kind", "Capabilities"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "Workers: %d  Timeout: %s  Retries: %d\n",
				cfg.Pipeline.Workers, cfg.AgentTimeout(), cfg.Pipeline.Retries)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
