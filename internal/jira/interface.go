package jira

import (
	"context"
)

// EstimateUpdater persists estimates on the host system
type EstimateUpdater interface {
	UpdateEstimate(ctx context.Context, issueKey string, value *float64) (FieldResolution, error)
}

// IssueClient defines the raw issue operations a Jira client should implement
type IssueClient interface {
	EstimateUpdater
	GetIssueWithEditMeta(ctx context.Context, issueKey string) ([]byte, int, error)
	UpdateFields(ctx context.Context, issueKey string, fields map[string]interface{}) (int, string, error)
	BrowseURL(issueKey string) string
}

var _ IssueClient = (*Client)(nil)
