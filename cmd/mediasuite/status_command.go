package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"mediasuite/internal/orchestrator"
	"mediasuite/internal/preflight"
	"mediasuite/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show preflight checks and job database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			lines := renderSectionHeader("Configuration", colorize)
			path := ctx.configPath
			if path == "" {
				path = "(defaults)"
			}
			lines = append(lines,
				renderStatusLine("Config", statusInfo, path, colorize),
				renderStatusLine("Agents", statusInfo, strings.Join(pipelineAgents(cfg.Pipeline.Agents), ", "), colorize),
				renderStatusLine("Media probing", statusInfo, yesNo(cfg.Validation.ProbeMedia), colorize),
			)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Preflight", colorize)...)
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Job database", colorize)...)
			err = ctx.withStore(func(st *store.Store) error {
				health, err := st.CheckHealth(cmd.Context())
				if err != nil {
					lines = append(lines, renderStatusLine("Database", statusError, err.Error(), colorize))
					return nil
				}
				kind := statusOK
				if !health.IntegrityCheck || len(health.MissingTables) > 0 {
					kind = statusWarn
				}
				lines = append(lines, renderStatusLine("Database", kind,
					fmt.Sprintf("%s (schema %s, integrity %s)", health.DBPath, health.SchemaVersion, yesNo(health.IntegrityCheck)), colorize))

				stats, err := st.Stats(cmd.Context())
				if err != nil {
					return err
				}
				lines = append(lines, renderStatusLine("Jobs", statusInfo, formatStats(stats), colorize))
				lines = append(lines, renderStatusLine("Messages", statusInfo, fmt.Sprintf("%d recorded", health.TotalMessages), colorize))
				return nil
			})
			if err != nil {
				lines = append(lines, renderStatusLine("Database", statusError, err.Error(), colorize))
			}

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}

func pipelineAgents(configured []string) []string {
	if len(configured) > 0 {
		return configured
	}
	return []string{"video-agent", "audio-agent", "metadata-agent", "storyboard-agent"}
}

func formatStats(stats map[orchestrator.Status]int) string {
	if len(stats) == 0 {
		return "none recorded"
	}
	keys := make([]string, 0, len(stats))
	for status := range stats {
		keys = append(keys, string(status))
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", key, stats[orchestrator.Status(key)]))
	}
	return strings.Join(parts, " ")
}
