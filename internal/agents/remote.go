package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trpc.group/trpc-go/trpc-a2a-go/client"

	"github.com/tuannvm/jira-estimate/internal/common"
	"github.com/tuannvm/jira-estimate/internal/config"
	"github.com/tuannvm/jira-estimate/internal/jira"
	"github.com/tuannvm/jira-estimate/internal/models"
	"github.com/tuannvm/jira-estimate/internal/scanner"
)

// ErrCommandFailed is returned when the remote scanner rejected a command
var ErrCommandFailed = errors.New("scanner command failed")

// ScannerClient talks to a remote ScannerAgent. It satisfies the same
// contract as a local scanner so a control surface can run on another host.
type ScannerClient struct {
	client       *client.A2AClient
	pollInterval time.Duration
}

// NewScannerClient creates a client for the agent at targetURL
func NewScannerClient(cfg *config.Config, targetURL string) (*ScannerClient, error) {
	c, err := common.SetupA2AClient(cfg, targetURL)
	if err != nil {
		return nil, err
	}
	return &ScannerClient{client: c, pollInterval: 200 * time.Millisecond}, nil
}

// ListTickets asks the remote page scanner for the current tickets
func (c *ScannerClient) ListTickets(ctx context.Context) ([]models.TicketInfo, error) {
	text, err := c.send(ctx, models.Command{Command: models.CommandListTickets})
	if err != nil {
		return nil, err
	}
	return DecodeTickets(text)
}

// UpdateEstimate asks the remote page scanner to write an estimate
func (c *ScannerClient) UpdateEstimate(ctx context.Context, issueKey string, value *float64) error {
	text, err := c.send(ctx, models.Command{
		Command:  models.CommandUpdateEstimate,
		IssueKey: issueKey,
		Value:    value,
	})
	if err != nil {
		return err
	}
	return DecodeUpdate(text)
}

func (c *ScannerClient) send(ctx context.Context, cmd models.Command) (string, error) {
	msg, err := common.CommandMessage(cmd)
	if err != nil {
		return "", err
	}
	task, err := common.SendTask(ctx, c.client, msg, c.pollInterval)
	if err != nil {
		return "", err
	}
	text, ok := common.ResultText(task)
	if !ok {
		return "", fmt.Errorf("%w: task %s ended %s without a result", ErrCommandFailed, task.ID, task.Status.State)
	}
	return text, nil
}

// DecodeTickets reads a list_tickets result
func DecodeTickets(text string) ([]models.TicketInfo, error) {
	var resp struct {
		models.ListTicketsResponse
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode ticket list: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrCommandFailed, resp.Error)
	}
	if resp.Tickets == nil {
		return []models.TicketInfo{}, nil
	}
	return resp.Tickets, nil
}

// DecodeUpdate reads an update_estimate result and restores the error kind
// the scanner reported
func DecodeUpdate(text string) error {
	var resp models.UpdateEstimateResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return fmt.Errorf("failed to decode update result: %w", err)
	}
	if resp.Success {
		return nil
	}

	cause := errors.New(resp.Error)
	switch resp.Stage {
	case StageUnknownTicket:
		return fmt.Errorf("%w: %s", scanner.ErrUnknownTicket, resp.IssueKey)
	case string(jira.StageFetch), string(jira.StageResolve), string(jira.StageUpdate):
		return &jira.UpdateError{Stage: jira.Stage(resp.Stage), IssueKey: resp.IssueKey, Err: cause}
	default:
		return fmt.Errorf("%w: %s", ErrCommandFailed, resp.Error)
	}
}
