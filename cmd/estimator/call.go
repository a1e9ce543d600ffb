package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"

	"github.com/tuannvm/jira-estimate/internal/common"
	log "github.com/tuannvm/jira-estimate/internal/logging"
)

// newCallCmd sends one raw command to a running scanner agent and prints the
// task outcome. Useful to check a serve deployment end to end.
func newCallCmd() *cobra.Command {
	var (
		url     string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "call PAYLOAD",
		Short: `Send a raw command to a scanner agent, e.g. '{"command":"list"}'`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := loadConfig(false)
			if err != nil {
				return err
			}
			defer cleanup()

			if url == "" {
				url = cfg.AgentURL
			}
			// The agent validates the payload, so malformed commands are still sent
			if _, err := common.ParseCommand(args[0]); err != nil {
				log.Warnf("Payload does not parse as a command: %v", err)
			}

			a2aClient, err := common.SetupA2AClient(cfg, url)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			log.Infof("Sending command to %s", url)
			message := protocol.Message{Parts: []protocol.Part{protocol.NewTextPart(args[0])}}
			task, err := common.SendTask(ctx, a2aClient, message, time.Second)
			if err != nil {
				return err
			}

			fmt.Printf("task %s: %s\n", task.ID, task.Status.State)
			if text, ok := common.ResultText(task); ok {
				fmt.Println(text)
			}
			if task.Status.State != common.StateCompleted {
				return fmt.Errorf("task ended in state %s", task.Status.State)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Agent URL (defaults to the configured agent_url)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Give up after this long")
	return cmd
}
