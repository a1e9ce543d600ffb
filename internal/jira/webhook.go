package jira

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// WebhookPayload represents the standard Jira webhook payload structure
type WebhookPayload struct {
	ID           int        `json:"id"`
	Timestamp    int64      `json:"timestamp"`
	Issue        Issue      `json:"issue"`
	User         User       `json:"user"`
	Changelog    *Changelog `json:"changelog,omitempty"`
	WebhookEvent string     `json:"webhookEvent"`
}

// Issue represents a Jira issue in the webhook
type Issue struct {
	ID     string                 `json:"id"`
	Self   string                 `json:"self"`
	Key    string                 `json:"key"`
	Fields map[string]interface{} `json:"fields"`
}

// User represents a Jira user in the webhook
type User struct {
	Self         string      `json:"self"`
	Name         string      `json:"name"`
	Key          string      `json:"key"`
	EmailAddress string      `json:"emailAddress"`
	DisplayName  string      `json:"displayName"`
	Active       interface{} `json:"active"` // Can be string "true" or boolean true
}

// Changelog represents changes made in a Jira issue update
type Changelog struct {
	ID    json.Number     `json:"id"`
	Items []ChangelogItem `json:"items"`
}

// ChangelogItem represents a single change in a Jira changelog
type ChangelogItem struct {
	Field      string `json:"field"`
	FieldID    string `json:"fieldId"`
	Fieldtype  string `json:"fieldtype"`
	From       string `json:"from"`
	FromString string `json:"fromString"`
	To         string `json:"to"`
	ToString   string `json:"toString"`
}

// IssueEvent is the application's internal view of a Jira webhook
type IssueEvent struct {
	IssueKey   string            `json:"issueKey"`
	Event      string            `json:"event"`      // "created", "updated", "deleted", etc.
	ProjectKey string            `json:"projectKey"` // The key of the project containing the issue
	UserName   string            `json:"userName"`   // The user who triggered the event
	Timestamp  string            `json:"timestamp"`  // When the webhook was triggered
	Changes    map[string]string `json:"changes"`    // Changed field name -> new value
	FieldIDs   []string          `json:"fieldIds"`   // Ids of changed fields, when Jira sends them
}

// TouchesBoard reports whether the event can change what a board card shows
func (e *IssueEvent) TouchesBoard() bool {
	switch e.Event {
	case "created", "deleted":
		return true
	case "updated":
		return len(e.Changes) > 0 || len(e.FieldIDs) > 0
	default:
		return false
	}
}

// TransformWebhook converts a standard Jira webhook payload to an IssueEvent
func TransformWebhook(payload []byte) (*IssueEvent, error) {
	var webhook WebhookPayload
	if err := json.Unmarshal(payload, &webhook); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	if webhook.Issue.Key == "" {
		return nil, fmt.Errorf("webhook payload has no issue key")
	}

	event := &IssueEvent{
		IssueKey: webhook.Issue.Key,
		Event:    eventType(webhook.WebhookEvent),
		UserName: webhook.User.Name,
	}

	// Extract project key from issue key (e.g., "JRA" from "JRA-20002")
	if project, _, ok := strings.Cut(webhook.Issue.Key, "-"); ok {
		event.ProjectKey = project
	}

	if webhook.Timestamp > 0 {
		event.Timestamp = time.UnixMilli(webhook.Timestamp).UTC().Format(time.RFC3339)
	} else {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	if webhook.Changelog != nil && len(webhook.Changelog.Items) > 0 {
		event.Changes = make(map[string]string)
		for _, item := range webhook.Changelog.Items {
			event.Changes[item.Field] = item.ToString
			if item.FieldID != "" {
				event.FieldIDs = append(event.FieldIDs, item.FieldID)
			}
		}
	}

	return event, nil
}

// eventType extracts the simplified event type from the full webhook event
func eventType(webhookEvent string) string {
	switch webhookEvent {
	case "jira:issue_created":
		return "created"
	case "jira:issue_updated":
		return "updated"
	case "jira:issue_deleted":
		return "deleted"
	default:
		// Extract event name after colon if present
		if _, name, ok := strings.Cut(webhookEvent, ":"); ok {
			return name
		}
		return webhookEvent
	}
}
