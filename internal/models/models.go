package models

import (
	"math"
	"strconv"
)

// Commands understood by the page scanner agent
const (
	CommandListTickets    = "list_tickets"
	CommandUpdateEstimate = "update_estimate"
)

// IssueType is the coarse work item type shown next to a ticket
type IssueType string

// Known issue types. IssueTypeTask is the default when nothing matches.
const (
	IssueTypeStory   IssueType = "story"
	IssueTypeBug     IssueType = "bug"
	IssueTypeTask    IssueType = "task"
	IssueTypeEpic    IssueType = "epic"
	IssueTypeSubtask IssueType = "subtask"
)

// TicketInfo is the serialized form of a scanned ticket exchanged between
// the page scanner and the control surface. It never carries a DOM reference.
type TicketInfo struct {
	Key       string    `json:"key"`
	Summary   string    `json:"summary"`
	Estimate  *float64  `json:"estimate"` // nil when the ticket is unestimated
	IssueType IssueType `json:"issueType"`
}

// Command is the request sent from the control surface to the page scanner
type Command struct {
	Command  string   `json:"command"`
	IssueKey string   `json:"issueKey,omitempty"`
	Value    *float64 `json:"value"` // nil clears the estimate
}

// ListTicketsResponse is returned for CommandListTickets
type ListTicketsResponse struct {
	Tickets []TicketInfo `json:"tickets"`
}

// UpdateEstimateResponse is returned for CommandUpdateEstimate
type UpdateEstimateResponse struct {
	Success  bool   `json:"success"`
	IssueKey string `json:"issueKey,omitempty"`
	Error    string `json:"error,omitempty"`
	Stage    string `json:"stage,omitempty"` // failed step: fetch, resolve, update or unknown-ticket
}

// Float64Ptr returns a pointer to the given float
func Float64Ptr(f float64) *float64 {
	return &f
}

// FormatEstimate renders an estimate the way badges show it: "2.5d" or "-"
func FormatEstimate(estimate *float64) string {
	if estimate == nil {
		return "-"
	}
	return FormatDays(*estimate)
}

// FormatDays renders a number of days without trailing zeros, e.g. "0.5d"
func FormatDays(days float64) string {
	return strconv.FormatFloat(days, 'f', -1, 64) + "d"
}

// Totals summarizes a ticket list for the status bar
type Totals struct {
	Count       int
	Estimated   int
	Unestimated int
	Total       float64
}

// Summarize computes status bar totals for the given tickets
func Summarize(tickets []TicketInfo) Totals {
	var t Totals
	t.Count = len(tickets)
	for _, ticket := range tickets {
		if ticket.Estimate != nil {
			t.Estimated++
			t.Total += *ticket.Estimate
		}
	}
	t.Unestimated = t.Count - t.Estimated
	// 0.1 + 0.2 should read 0.3d on the status bar
	t.Total = math.Round(t.Total*1e6) / 1e6
	return t
}
