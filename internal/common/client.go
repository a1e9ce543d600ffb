package common

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"trpc.group/trpc-go/trpc-a2a-go/client"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"

	"github.com/tuannvm/jira-estimate/internal/config"
	log "github.com/tuannvm/jira-estimate/internal/logging"
)

// Task states reported by the scanner agent
const (
	StateWorking   protocol.TaskState = "working"
	StateCompleted protocol.TaskState = "completed"
	StateFailed    protocol.TaskState = "failed"
)

// SetupA2AClient creates and configures an A2A client with appropriate authentication
func SetupA2AClient(cfg *config.Config, targetURL string) (*client.A2AClient, error) {
	var (
		a2aClient *client.A2AClient
		err       error
	)

	switch cfg.AuthType {
	case "apikey":
		log.Debugf("Using API key authentication for A2A client (API key length: %d)", len(cfg.APIKey))
		a2aClient, err = client.NewA2AClient(targetURL, client.WithAPIKeyAuth(cfg.APIKey, "X-API-Key"))
	case "jwt":
		log.Debugf("Using JWT authentication for A2A client")
		// Tokens are signed with the shared secret the server provider verifies
		a2aClient, err = client.NewA2AClient(targetURL, client.WithJWTAuth([]byte(cfg.JWTSecret), "", "", 24*time.Hour))
	default:
		log.Warnf("No authentication configured for A2A client")
		a2aClient, err = client.NewA2AClient(targetURL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create A2A client: %w", err)
	}
	return a2aClient, nil
}

// SendTask sends a message as a new task and waits until the task reaches a
// final state, polling every interval.
func SendTask(ctx context.Context, a2aClient *client.A2AClient, message protocol.Message, interval time.Duration) (*protocol.Task, error) {
	params := protocol.SendTaskParams{
		ID:      uuid.NewString(),
		Message: message,
	}
	task, err := a2aClient.SendTasks(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("SendTasks RPC failed: %w", err)
	}

	for !IsFinal(task.Status.State) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
		task, err = a2aClient.GetTasks(ctx, protocol.TaskQueryParams{ID: task.ID})
		if err != nil {
			return nil, fmt.Errorf("GetTasks RPC failed: %w", err)
		}
	}
	return task, nil
}

// IsFinal reports whether a task in this state will not change again
func IsFinal(state protocol.TaskState) bool {
	switch state {
	case StateCompleted, StateFailed, "canceled":
		return true
	}
	return false
}

// ResultText returns the first text of a task's final status message,
// falling back to its artifacts.
func ResultText(task *protocol.Task) (string, bool) {
	if task.Status.Message != nil {
		for _, part := range task.Status.Message.Parts {
			if text, ok := TextOf(part); ok && text != "" {
				return text, true
			}
		}
	}
	for _, artifact := range task.Artifacts {
		for _, part := range artifact.Parts {
			if text, ok := TextOf(part); ok && text != "" {
				return text, true
			}
		}
	}
	return "", false
}
