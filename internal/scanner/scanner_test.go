package scanner

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannvm/jira-estimate/internal/jira"
	"github.com/tuannvm/jira-estimate/internal/models"
	"github.com/tuannvm/jira-estimate/internal/page"
)

type fakeUpdater struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (f *fakeUpdater) UpdateEstimate(ctx context.Context, issueKey string, value *float64) (jira.FieldResolution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, issueKey)
	if f.err != nil {
		return jira.FieldResolution{}, f.err
	}
	return jira.FieldResolution{FieldID: "customfield_10016", Strategy: jira.StrategyEditMetaName}, nil
}

func newBoardScanner(t *testing.T, updater jira.EstimateUpdater) (*Scanner, *page.StaticSource) {
	t.Helper()
	raw, err := os.ReadFile("testdata/board.html")
	require.NoError(t, err)
	src := page.NewStaticSource(string(raw))
	s := New(src, updater)
	_, err = s.Rescan(context.Background())
	require.NoError(t, err)
	return s, src
}

func estimates(s *Scanner) map[string]*float64 {
	out := make(map[string]*float64)
	for _, t := range s.Tickets() {
		out[t.Key] = t.Estimate
	}
	return out
}

func TestUpdateEstimateRoundTrip(t *testing.T) {
	updater := &fakeUpdater{}
	s, _ := newBoardScanner(t, updater)
	before := estimates(s)

	require.NoError(t, s.UpdateEstimate(context.Background(), "SCRUM-2", models.Float64Ptr(2.5)))

	after := estimates(s)
	require.NotNil(t, after["SCRUM-2"])
	assert.Equal(t, 2.5, *after["SCRUM-2"])
	for key, value := range before {
		if key != "SCRUM-2" {
			assert.Equal(t, value, after[key], key)
		}
	}
	assert.Equal(t, []string{"SCRUM-2"}, updater.calls)
}

func TestUpdateEstimateClear(t *testing.T) {
	s, _ := newBoardScanner(t, &fakeUpdater{})

	require.NoError(t, s.UpdateEstimate(context.Background(), "SCRUM-1", nil))
	ticket, _ := s.Ticket("SCRUM-1")
	assert.Nil(t, ticket.Estimate)
}

func TestUpdateEstimateFailureLeavesRegistry(t *testing.T) {
	updater := &fakeUpdater{err: &jira.UpdateError{Stage: jira.StageUpdate, IssueKey: "SCRUM-1", StatusCode: 400}}
	s, _ := newBoardScanner(t, updater)
	before := estimates(s)

	err := s.UpdateEstimate(context.Background(), "SCRUM-1", models.Float64Ptr(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, jira.ErrUpdateFailed))
	assert.Equal(t, before, estimates(s))
}

func TestUpdateEstimateUnknownTicket(t *testing.T) {
	updater := &fakeUpdater{}
	s, _ := newBoardScanner(t, updater)

	err := s.UpdateEstimate(context.Background(), "NOPE-1", models.Float64Ptr(1))
	assert.ErrorIs(t, err, ErrUnknownTicket)
	assert.Empty(t, updater.calls)
}

func TestListTicketsRescans(t *testing.T) {
	s, src := newBoardScanner(t, &fakeUpdater{})

	src.Set(`<html><body><div class="ghx-issue" data-issue-key="NEW-1"><span class="ghx-estimate">1</span></div></body></html>`)
	tickets, err := s.ListTickets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.TicketInfo{{
		Key:       "NEW-1",
		Summary:   "1",
		Estimate:  models.Float64Ptr(1),
		IssueType: models.IssueTypeTask,
	}}, tickets)
}

func TestElementInvalidatedByRescan(t *testing.T) {
	s, _ := newBoardScanner(t, &fakeUpdater{})
	old, ok := s.Ticket("SCRUM-1")
	require.True(t, ok)

	_, err := s.Rescan(context.Background())
	require.NoError(t, err)

	s.Document().Read(func(snap page.Snapshot) {
		_, ok := snap.Resolve(old.Ref)
		assert.False(t, ok, "references from the previous scan must not resolve")

		el, ok := s.Element(snap, "SCRUM-1")
		require.True(t, ok)
		assert.Equal(t, "10001", el.AttrOr("data-rbd-draggable-id", ""))
	})
}

func TestRescanFetchError(t *testing.T) {
	s := New(page.FileSource{Path: "testdata/missing.html"}, &fakeUpdater{})
	_, err := s.Rescan(context.Background())
	assert.Error(t, err)
	assert.Empty(t, s.Tickets())
}
