package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mediasuite/internal/orchestrator"
	"mediasuite/internal/store"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect recorded jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsRemoveCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				jobs, err := st.ListJobs(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonOutput {
					if jobs == nil {
						jobs = []*orchestrator.Job{}
					}
					return writeJSON(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs recorded")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						job.ID,
						string(job.Status),
						job.FileReference,
						fmt.Sprintf("%d", len(job.Results)),
						fmt.Sprintf("%d", job.Failures()),
						formatTimestamp(job.CreatedAt),
						formatElapsed(*job),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Status", "File", "Results", "Failures", "Created", "Elapsed"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (processing, completed, error, cancelled)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job with its agent results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				job, err := st.GetJob(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %s not found", args[0])
				}
				if jsonOutput {
					return writeJSON(cmd, job)
				}
				out := cmd.OutOrStdout()
				printJobSummary(out, *job)
				fmt.Fprintf(out, "Created: %s\n", formatTimestamp(job.CreatedAt))
				fmt.Fprintf(out, "Elapsed: %s\n", formatElapsed(*job))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newJobsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>...",
		Short: "Delete jobs and their message history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				out := cmd.OutOrStdout()
				for _, id := range args {
					removed, err := st.Remove(cmd.Context(), strings.TrimSpace(id))
					if err != nil {
						return err
					}
					if removed {
						fmt.Fprintf(out, "Removed job %s\n", id)
					} else {
						fmt.Fprintf(out, "Job %s not found\n", id)
					}
				}
				return nil
			})
		},
	}
}

func parseStatuses(values []string) ([]orchestrator.Status, error) {
	statuses := make([]orchestrator.Status, 0, len(values))
	for _, value := range values {
		status := orchestrator.Status(strings.ToLower(strings.TrimSpace(value)))
		switch status {
		case orchestrator.StatusProcessing, orchestrator.StatusCompleted, orchestrator.StatusError, orchestrator.StatusCancelled:
			statuses = append(statuses, status)
		default:
			return nil, fmt.Errorf("unknown status %q", value)
		}
	}
	return statuses, nil
}
