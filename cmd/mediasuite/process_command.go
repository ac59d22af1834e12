package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"mediasuite/internal/config"
	"mediasuite/internal/logging"
	"mediasuite/internal/metrics"
	"mediasuite/internal/orchestrator"
	"mediasuite/internal/preflight"
	"mediasuite/internal/store"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var (
		fileKind      string
		jsonOutput    bool
		skipPreflight bool
	)

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Run a media file through the agent pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve file path: %w", err)
			}
			if info, err := os.Stat(source); err != nil {
				return fmt.Errorf("inspect %q: %w", source, err)
			} else if info.IsDir() {
				return fmt.Errorf("%q is a directory", source)
			}
			if strings.TrimSpace(fileKind) == "" {
				fileKind = mime.TypeByExtension(strings.ToLower(filepath.Ext(source)))
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !skipPreflight {
				if failed := preflight.Failed(preflight.RunAll(runCtx, cfg)); len(failed) > 0 {
					return preflightError(failed)
				}
			}

			lock := flock.New(cfg.LockPath())
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !ok {
				return errors.New("another mediasuite process is already running")
			}
			defer func() { _ = lock.Unlock() }()

			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open job database: %w", err)
			}
			defer st.Close()

			m := metrics.New()
			orch, err := buildOrchestrator(cfg, logger, m, st)
			if err != nil {
				return err
			}

			jobID, runErr := orch.ProcessFile(runCtx, source, fileKind)

			if path := strings.TrimSpace(cfg.Metrics.Textfile); path != "" {
				if err := m.WriteTextfile(path); err != nil {
					logging.WarnWithContext(logger, "failed to write metrics textfile", "metrics_write_failed",
						logging.String("path", path),
						logging.Error(err),
						logging.Impact("metrics from this run are not exported"),
					)
				}
			}

			job, ok := orch.Job(jobID)
			if !ok {
				return runErr
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				if err := writeJSON(cmd, job); err != nil {
					return err
				}
			} else {
				printJobSummary(out, job)
			}
			if runErr != nil && errors.Is(runErr, orchestrator.ErrCancelled) {
				return context.Canceled
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&fileKind, "kind", "", "MIME type of the input (inferred from the extension when empty)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the finished job as JSON")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip directory and binary checks")
	return cmd
}

func preflightError(failed []preflight.Result) error {
	parts := make([]string, 0, len(failed))
	for _, result := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", result.Name, result.Detail))
	}
	return fmt.Errorf("preflight failed: %s", strings.Join(parts, "; "))
}

func printJobSummary(out io.Writer, job orchestrator.Job) {
	fmt.Fprintf(out, "Job %s %s\n", job.ID, job.Status)
	fmt.Fprintf(out, "File: %s\n", job.FileReference)
	if job.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", job.Error)
	}
	if len(job.Results) == 0 {
		return
	}
	fmt.Fprintln(out, renderResultsTable(job))
}
