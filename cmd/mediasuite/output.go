package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"mediasuite/internal/agent"
	"mediasuite/internal/orchestrator"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderResultsTable(job orchestrator.Job) string {
	rows := make([][]string, 0, len(job.Results))
	for i, entry := range job.Results {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			entry.AgentID,
			resultOutcome(entry.Result),
			entry.Result.Validation,
			summarizeMetrics(entry.Result),
		})
	}
	return renderTable(
		[]string{"#", "Agent", "Outcome", "Validation", "Details"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}

func resultOutcome(result agent.Result) string {
	if result.Failed() {
		return "error"
	}
	return "ok"
}

// summarizeMetrics renders scalar metrics as sorted key=value pairs; the
// error cause replaces them for failed results.
func summarizeMetrics(result agent.Result) string {
	if result.Failed() {
		return truncate(result.Error, 60)
	}
	keys := make([]string, 0, len(result.Metrics))
	for key, value := range result.Metrics {
		switch value.(type) {
		case string, int, int64, float64, bool:
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, result.Metrics[key]))
	}
	return truncate(strings.Join(parts, " "), 60)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func formatElapsed(job orchestrator.Job) string {
	if job.CompletedAt.IsZero() {
		return "-"
	}
	return job.CompletedAt.Sub(job.CreatedAt).Round(time.Millisecond).String()
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
