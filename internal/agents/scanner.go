package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"trpc.group/trpc-go/trpc-a2a-go/protocol"
	"trpc.group/trpc-go/trpc-a2a-go/server"
	"trpc.group/trpc-go/trpc-a2a-go/taskmanager"

	"github.com/tuannvm/jira-estimate/internal/common"
	"github.com/tuannvm/jira-estimate/internal/config"
	"github.com/tuannvm/jira-estimate/internal/jira"
	log "github.com/tuannvm/jira-estimate/internal/logging"
	"github.com/tuannvm/jira-estimate/internal/models"
	"github.com/tuannvm/jira-estimate/internal/scanner"
)

// StageUnknownTicket marks an update for a key that is not on the page
const StageUnknownTicket = "unknown-ticket"

// Scanner is the page scanner served by the agent
type Scanner interface {
	ListTickets(ctx context.Context) ([]models.TicketInfo, error)
	UpdateEstimate(ctx context.Context, issueKey string, value *float64) error
}

// Rescanner schedules a debounced rescan of the page
type Rescanner interface {
	ScheduleRescan()
	Tickets() []models.TicketInfo
}

// ScannerAgent answers list_tickets and update_estimate commands over A2A
// and turns Jira webhooks into page rescans.
type ScannerAgent struct {
	cfg       *config.Config
	scanner   Scanner
	rescanner Rescanner

	a2aServer  *server.A2AServer
	httpServer *http.Server
}

// NewScannerAgent creates a new ScannerAgent. rescanner may be nil, in which
// case webhooks are acknowledged but never trigger a rescan.
func NewScannerAgent(cfg *config.Config, s Scanner, rescanner Rescanner) *ScannerAgent {
	return &ScannerAgent{cfg: cfg, scanner: s, rescanner: rescanner}
}

// Process implements the TaskProcessor interface
func (a *ScannerAgent) Process(ctx context.Context, taskID string, msg protocol.Message, handle taskmanager.TaskHandle) error {
	cmd, err := common.ExtractCommand(msg)
	if err != nil {
		log.Warnf("Task %s: %v", taskID, err)
		return a.finish(handle, common.StateFailed, map[string]string{"error": err.Error()})
	}

	if err := handle.UpdateStatus(common.StateWorking, nil); err != nil {
		log.Warnf("Failed to update task status: %v", err)
	}

	log.Infof("Task %s: %s %s", taskID, cmd.Command, cmd.IssueKey)
	result, err := a.Execute(ctx, cmd)
	state := common.StateCompleted
	if err != nil {
		log.Warnf("Task %s failed: %v", taskID, err)
		state = common.StateFailed
	}
	return a.finish(handle, state, result)
}

// Execute runs one command. The returned result is always a response body;
// err is set when the command failed.
func (a *ScannerAgent) Execute(ctx context.Context, cmd models.Command) (interface{}, error) {
	switch cmd.Command {
	case models.CommandListTickets:
		tickets, err := a.scanner.ListTickets(ctx)
		if err != nil {
			return map[string]string{"error": err.Error()}, err
		}
		if tickets == nil {
			tickets = []models.TicketInfo{}
		}
		return models.ListTicketsResponse{Tickets: tickets}, nil

	case models.CommandUpdateEstimate:
		resp := models.UpdateEstimateResponse{IssueKey: cmd.IssueKey}
		if cmd.IssueKey == "" {
			err := fmt.Errorf("%w: missing issue key", scanner.ErrUnknownTicket)
			resp.Error, resp.Stage = err.Error(), StageUnknownTicket
			return resp, err
		}
		if err := a.scanner.UpdateEstimate(ctx, cmd.IssueKey, cmd.Value); err != nil {
			resp.Error, resp.Stage = err.Error(), stageOf(err)
			return resp, err
		}
		resp.Success = true
		return resp, nil

	default:
		err := fmt.Errorf("unknown command: %q", cmd.Command)
		return map[string]string{"error": err.Error()}, err
	}
}

// finish records the result as an artifact and closes the task
func (a *ScannerAgent) finish(handle taskmanager.TaskHandle, state protocol.TaskState, result interface{}) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	artifact := protocol.Artifact{
		Name:  common.StringPtr("result"),
		Parts: []protocol.Part{protocol.NewTextPart(string(data))},
	}
	if err := handle.AddArtifact(artifact); err != nil {
		log.Warnf("Failed to add artifact: %v", err)
	}

	msg := &protocol.Message{Parts: []protocol.Part{protocol.NewTextPart(string(data))}}
	if err := handle.UpdateStatus(state, msg); err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	return nil
}

// SetupA2AServer creates the A2A server for the agent
func (a *ScannerAgent) SetupA2AServer() error {
	srv, err := common.SetupServer(common.SetupServerOptions{
		AgentName:    a.cfg.AgentName,
		AgentVersion: a.cfg.AgentVersion,
		AgentURL:     a.cfg.AgentURL,
		AuthType:     a.cfg.AuthType,
		JWTSecret:    a.cfg.JWTSecret,
		APIKey:       a.cfg.APIKey,
		Processor:    a,
		Skills: []server.AgentSkill{
			{
				ID:          models.CommandListTickets,
				Name:        "List tickets",
				Description: common.StringPtr("Scans the board page and lists its tickets with their estimates"),
			},
			{
				ID:          models.CommandUpdateEstimate,
				Name:        "Update estimate",
				Description: common.StringPtr("Writes the estimate of one ticket to Jira; a null value clears it"),
			},
		},
	})
	if err != nil {
		return err
	}
	a.a2aServer = srv
	return nil
}

// StartA2AServer runs the A2A server until ctx is done
func (a *ScannerAgent) StartA2AServer(ctx context.Context) error {
	if a.a2aServer == nil {
		return fmt.Errorf("A2A server is not set up")
	}
	return common.StartServer(ctx, a.a2aServer, a.cfg.ServerAddr())
}

func stageOf(err error) string {
	switch {
	case errors.Is(err, scanner.ErrUnknownTicket):
		return StageUnknownTicket
	case errors.Is(err, jira.ErrFetchFailed):
		return string(jira.StageFetch)
	case errors.Is(err, jira.ErrFieldNotFound):
		return string(jira.StageResolve)
	case errors.Is(err, jira.ErrUpdateFailed):
		return string(jira.StageUpdate)
	default:
		return ""
	}
}
