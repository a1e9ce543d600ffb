package models

import (
	"encoding/json"
	"testing"
)

func TestFormatEstimate(t *testing.T) {
	tests := []struct {
		in   *float64
		want string
	}{
		{nil, "-"},
		{Float64Ptr(0), "0d"},
		{Float64Ptr(0.5), "0.5d"},
		{Float64Ptr(3), "3d"},
		{Float64Ptr(1.25), "1.25d"},
	}
	for _, tt := range tests {
		if got := FormatEstimate(tt.in); got != tt.want {
			t.Errorf("FormatEstimate() = %q, want %q", got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	tickets := []TicketInfo{
		{Key: "ABC-1", Estimate: Float64Ptr(1.5)},
		{Key: "ABC-2"},
		{Key: "ABC-3", Estimate: Float64Ptr(0)},
	}
	got := Summarize(tickets)
	if got.Count != 3 || got.Estimated != 2 || got.Unestimated != 1 || got.Total != 1.5 {
		t.Errorf("unexpected totals: %+v", got)
	}

	got = Summarize([]TicketInfo{{Estimate: Float64Ptr(0.1)}, {Estimate: Float64Ptr(0.2)}})
	if FormatDays(got.Total) != "0.3d" {
		t.Errorf("total rendered as %s, want 0.3d", FormatDays(got.Total))
	}

	if got := Summarize(nil); got.Count != 0 || got.Total != 0 {
		t.Errorf("empty list totals: %+v", got)
	}
}

func TestTicketInfoNullEstimate(t *testing.T) {
	// An unestimated ticket must serialize its estimate as an explicit null
	data, err := json.Marshal(TicketInfo{Key: "ABC-1", Summary: "Do it", IssueType: IssueTypeBug})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"key":"ABC-1","summary":"Do it","estimate":null,"issueType":"bug"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}
