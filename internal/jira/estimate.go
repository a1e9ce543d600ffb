package jira

import (
	"context"
	"errors"
	"fmt"

	log "github.com/tuannvm/jira-estimate/internal/logging"
)

var (
	// ErrFetchFailed is returned when the issue could not be retrieved
	ErrFetchFailed = errors.New("fetch failed")
	// ErrFieldNotFound is returned when no estimate field could be determined
	ErrFieldNotFound = errors.New("field not found")
	// ErrUpdateFailed is returned when Jira rejected the update
	ErrUpdateFailed = errors.New("update failed")
)

// Stage identifies the step of the update protocol that failed
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageResolve Stage = "resolve"
	StageUpdate  Stage = "update"
)

// UpdateError describes a failed estimate update
type UpdateError struct {
	Stage      Stage
	IssueKey   string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpdateError) Error() string {
	msg := fmt.Sprintf("%s for %s", e.sentinel(), e.IssueKey)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Body != "" {
		msg += ", body: " + e.Body
	}
	if e.Err != nil && e.StatusCode == 0 {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *UpdateError) Unwrap() error { return e.Err }

// Is matches the sentinel error of the failed stage
func (e *UpdateError) Is(target error) bool { return target == e.sentinel() }

func (e *UpdateError) sentinel() error {
	switch e.Stage {
	case StageFetch:
		return ErrFetchFailed
	case StageResolve:
		return ErrFieldNotFound
	default:
		return ErrUpdateFailed
	}
}

// UpdateEstimate persists a new estimate for one issue. The issue is fetched
// with its edit metadata first; the write is only issued once the estimate
// field has been resolved from that response. A nil value clears the field.
func (c *Client) UpdateEstimate(ctx context.Context, issueKey string, value *float64) (FieldResolution, error) {
	raw, status, err := c.GetIssueWithEditMeta(ctx, issueKey)
	if err != nil {
		return FieldResolution{}, &UpdateError{Stage: StageFetch, IssueKey: issueKey, StatusCode: status, Err: err}
	}

	resolution, err := c.resolver.Resolve(raw)
	if err != nil {
		return FieldResolution{}, &UpdateError{Stage: StageResolve, IssueKey: issueKey, Err: err}
	}
	log.Debugf("Resolved estimate field of %s to %s via %s", issueKey, resolution.FieldID, resolution.Strategy)

	status, body, err := c.UpdateFields(ctx, issueKey, map[string]interface{}{
		resolution.FieldID: value,
	})
	if err != nil {
		return resolution, &UpdateError{Stage: StageUpdate, IssueKey: issueKey, StatusCode: status, Body: body, Err: err}
	}

	log.Infof("Updated %s: %s = %s", issueKey, resolution.FieldID, describeValue(value))
	return resolution, nil
}

func describeValue(value *float64) string {
	if value == nil {
		return "null"
	}
	return fmt.Sprintf("%g", *value)
}
