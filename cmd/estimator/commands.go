package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tuannvm/jira-estimate/internal/agents"
	"github.com/tuannvm/jira-estimate/internal/editor"
	"github.com/tuannvm/jira-estimate/internal/jira"
	log "github.com/tuannvm/jira-estimate/internal/logging"
	"github.com/tuannvm/jira-estimate/internal/models"
	"github.com/tuannvm/jira-estimate/internal/surface"
)

func newScanCmd() *cobra.Command {
	var (
		annotate string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List the tickets found on the board page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := loadConfig(false)
			if err != nil {
				return err
			}
			defer cleanup()

			st, err := newStack(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.refresh(cmd.Context()); err != nil {
				return err
			}
			tickets := st.editor.Tickets()

			if annotate != "" {
				st.overlay.Mount()
				html, err := st.scanner.Document().HTML()
				if err != nil {
					return fmt.Errorf("failed to render annotated page: %w", err)
				}
				if err := os.WriteFile(annotate, []byte(html), 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", annotate, err)
				}
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(models.ListTicketsResponse{Tickets: tickets})
			}
			printTickets(tickets)
			return nil
		},
	}
	cmd.Flags().StringVar(&annotate, "annotate", "", "Write the page with estimate markers to this file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the ticket list as JSON")
	return cmd
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set the estimate of one ticket; VALUE none clears it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := editor.ParseValue(args[1])
			if err != nil {
				return err
			}
			cfg, cleanup, err := loadConfig(false)
			if err != nil {
				return err
			}
			defer cleanup()

			st, err := newStack(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.refresh(cmd.Context()); err != nil {
				return err
			}
			if err := st.editor.SetEstimate(cmd.Context(), args[0], value); err != nil {
				return err
			}
			fmt.Printf("✓ %s → %s  %s\n", args[0], models.FormatEstimate(value), st.jira.BrowseURL(args[0]))
			return nil
		},
	}
}

func newFillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fill VALUE",
		Short: "Set VALUE on every ticket without an estimate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := editor.ParseValue(args[0])
			if err != nil {
				return err
			}
			if value == nil {
				return fmt.Errorf("%w: fill needs a number", editor.ErrInvalidValue)
			}
			cfg, cleanup, err := loadConfig(false)
			if err != nil {
				return err
			}
			defer cleanup()

			st, err := newStack(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.refresh(cmd.Context()); err != nil {
				return err
			}
			result, err := st.editor.FillUnestimated(cmd.Context(), *value)
			for _, key := range result.Updated {
				fmt.Printf("✓ %s → %s\n", key, models.FormatDays(*value))
			}
			for key, ferr := range result.Failed {
				fmt.Printf("✗ %s: %v\n", key, ferr)
			}
			if err != nil {
				return err
			}
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d of %d updates failed", len(result.Failed), len(result.Failed)+len(result.Updated))
			}
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the page scanner over A2A and accept Jira webhooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := loadConfig(false)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			st, err := newStack(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer st.Close()

			agent := agents.NewScannerAgent(cfg, st.scanner, st.editor)
			if err := agent.SetupA2AServer(); err != nil {
				return fmt.Errorf("failed to setup A2A server: %w", err)
			}
			if err := agent.SetupHTTPServer(); err != nil {
				return fmt.Errorf("failed to setup webhook server: %w", err)
			}
			if err := st.refresh(ctx); err != nil {
				log.Warnf("Initial scan failed: %v", err)
			}

			errCh := make(chan error, 2)
			go func() { errCh <- agent.StartA2AServer(ctx) }()
			go func() { errCh <- agent.StartHTTPServer(ctx) }()

			var errs []error
			for i := 0; i < 2; i++ {
				if err := <-errCh; err != nil {
					errs = append(errs, err)
				}
			}
			log.Infof("Server shutdown complete")
			return errors.Join(errs...)
		},
	}
}

func newUICmd() *cobra.Command {
	var remote string
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Open the interactive estimate editor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := loadConfig(true)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			var e *editor.Editor
			if remote != "" {
				client, err := agents.NewScannerClient(cfg, remote)
				if err != nil {
					return err
				}
				e = editor.New(client, nil, editor.Options{
					Presets:        cfg.EstimatePresets,
					RescanDebounce: cfg.RescanDebounce,
					BulkPace:       cfg.BulkPace,
					ToastDuration:  cfg.ToastDuration,
				})
				defer e.Shutdown()
			} else {
				st, err := newStack(ctx, cfg, true)
				if err != nil {
					return err
				}
				defer st.Close()
				e = st.editor
			}

			browse := func(key string) string { return jira.BrowseURL(cfg.JiraBaseURL, key) }
			model := surface.NewModel(ctx, e, browse)
			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil && ctx.Err() == nil {
				return fmt.Errorf("error running program: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&remote, "remote", "", "URL of a scanner agent started with serve")
	return cmd
}

func printTickets(tickets []models.TicketInfo) {
	if len(tickets) == 0 {
		fmt.Println("No tickets found on this page.")
		return
	}
	writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintln(writer, "KEY\tTYPE\tESTIMATE\tSUMMARY")
	for _, t := range tickets {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", t.Key, t.IssueType, models.FormatEstimate(t.Estimate), t.Summary)
	}
	writer.Flush()

	totals := models.Summarize(tickets)
	fmt.Printf("\n%d ticket(s) · %s total · %d unestimated\n", totals.Count, models.FormatDays(totals.Total), totals.Unestimated)
}
