package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mediasuite/internal/protocol"
	"mediasuite/internal/store"
)

func newMessagesCommand(ctx *commandContext) *cobra.Command {
	var action string

	cmd := &cobra.Command{
		Use:   "messages <job-id>",
		Short: "Export a job's protocol envelopes as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				jobID := strings.TrimSpace(args[0])
				job, err := st.GetJob(cmd.Context(), jobID)
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %s not found", jobID)
				}
				envs, err := st.Messages(cmd.Context(), jobID)
				if err != nil {
					return err
				}
				if action = strings.TrimSpace(action); action != "" {
					filtered := envs[:0]
					for _, env := range envs {
						if env.Action() == action {
							filtered = append(filtered, env)
						}
					}
					envs = filtered
				}
				return protocol.WriteRecords(cmd.OutOrStdout(), envs)
			})
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "Only export envelopes with this action")
	return cmd
}
