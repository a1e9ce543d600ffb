package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannvm/jira-estimate/internal/jira"
	"github.com/tuannvm/jira-estimate/internal/mode"
	"github.com/tuannvm/jira-estimate/internal/models"
	"github.com/tuannvm/jira-estimate/internal/overlay"
	"github.com/tuannvm/jira-estimate/internal/page"
	"github.com/tuannvm/jira-estimate/internal/scanner"
)

type update struct {
	key   string
	value *float64
}

type fakeBackend struct {
	mu      sync.Mutex
	tickets []models.TicketInfo
	listErr error
	fail    map[string]error
	lists   int
	updates []update
	ctxErrs []error
}

func (f *fakeBackend) ListTickets(ctx context.Context) ([]models.TicketInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.TicketInfo, len(f.tickets))
	copy(out, f.tickets)
	return out, nil
}

func (f *fakeBackend) UpdateEstimate(ctx context.Context, issueKey string, value *float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update{issueKey, value})
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return f.fail[issueKey]
}

func (f *fakeBackend) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) Mount() { r.add("mount") }
func (r *recorder) Clear() { r.add("clear") }
func (r *recorder) UpdateTicket(key string) { r.add("badge " + key) }
func (r *recorder) OpenPicker(key string, _ *float64) { r.add("picker " + key) }
func (r *recorder) ClosePicker() { r.add("close-picker") }
func (r *recorder) Toast(message, kind string) { r.add("toast " + kind) }
func (r *recorder) ClearToast() { r.add("clear-toast") }

func board() *fakeBackend {
	return &fakeBackend{
		tickets: []models.TicketInfo{
			{Key: "ABC-1", Summary: "One", Estimate: models.Float64Ptr(1), IssueType: models.IssueTypeStory},
			{Key: "ABC-2", Summary: "Two", IssueType: models.IssueTypeBug},
			{Key: "ABC-3", Summary: "Three", IssueType: models.IssueTypeTask},
		},
		fail: map[string]error{},
	}
}

func newEditor(t *testing.T, b Backend, p Presenter) *Editor {
	t.Helper()
	e := New(b, p, Options{RescanDebounce: 10 * time.Millisecond, BulkPace: time.Millisecond, ToastDuration: time.Hour})
	t.Cleanup(e.Shutdown)
	return e
}

func TestToggle(t *testing.T) {
	b, rec := board(), &recorder{}
	e := newEditor(t, b, rec)
	ctx := context.Background()

	require.NoError(t, e.Toggle(ctx))
	assert.True(t, e.Machine().Is(mode.Active))
	assert.Len(t, e.Tickets(), 3)
	assert.Equal(t, 1, b.listCount())

	require.NoError(t, e.Toggle(ctx))
	assert.True(t, e.Machine().Is(mode.Idle))
	assert.Equal(t, []string{"mount", "clear"}, rec.calls)
}

func TestCancel(t *testing.T) {
	rec := &recorder{}
	e := newEditor(t, board(), rec)

	assert.ErrorIs(t, e.Cancel(), mode.ErrInvalidTransition)

	require.NoError(t, e.Toggle(context.Background()))
	require.NoError(t, e.SelectCard("ABC-2"))
	require.NoError(t, e.Cancel())
	assert.Equal(t, mode.Machine{State: mode.Active}, e.Machine())

	require.NoError(t, e.Cancel())
	assert.True(t, e.Machine().Is(mode.Idle))
	assert.Equal(t, []string{"mount", "picker ABC-2", "close-picker", "clear"}, rec.calls)
}

func TestSelectCard(t *testing.T) {
	e := newEditor(t, board(), nil)

	require.NoError(t, e.Toggle(context.Background()))
	assert.ErrorIs(t, e.SelectCard("NOPE-1"), scanner.ErrUnknownTicket)
	assert.True(t, e.Machine().Is(mode.Active))

	require.NoError(t, e.SelectCard("ABC-1"))
	require.NoError(t, e.SelectCard("ABC-2"))
	assert.Equal(t, mode.Machine{State: mode.PickerOpen, PickerKey: "ABC-2"}, e.Machine())

	require.NoError(t, e.ClickOutside())
	assert.True(t, e.Machine().Is(mode.Active))
	assert.ErrorIs(t, e.ClickOutside(), mode.ErrInvalidTransition)
}

func TestChooseValue(t *testing.T) {
	b, rec := board(), &recorder{}
	e := newEditor(t, b, rec)
	require.NoError(t, e.Toggle(context.Background()))
	require.NoError(t, e.SelectCard("ABC-2"))

	require.NoError(t, e.ChooseValue(context.Background(), 2.5))

	assert.True(t, e.Machine().Is(mode.Active))
	require.Len(t, b.updates, 1)
	assert.Equal(t, "ABC-2", b.updates[0].key)
	assert.Equal(t, 2.5, *b.updates[0].value)

	tickets := e.Tickets()
	assert.Equal(t, 2.5, *tickets[1].Estimate)
	assert.Equal(t, 1.0, *tickets[0].Estimate)
	assert.Nil(t, tickets[2].Estimate)

	toast, ok := e.CurrentToast()
	require.True(t, ok)
	assert.Equal(t, "✓ ABC-2 → 2.5d", toast.Message)
	assert.Equal(t, "success", toast.Kind)
	assert.Contains(t, rec.calls, "badge ABC-2")
}

func TestChooseValueWithoutPicker(t *testing.T) {
	b := board()
	e := newEditor(t, b, nil)
	require.NoError(t, e.Toggle(context.Background()))

	assert.ErrorIs(t, e.ChooseValue(context.Background(), 1), mode.ErrInvalidTransition)
	assert.Empty(t, b.updates)
}

func TestChooseValueFailureKeepsEstimate(t *testing.T) {
	b := board()
	b.fail["ABC-1"] = &jira.UpdateError{Stage: jira.StageUpdate, IssueKey: "ABC-1", StatusCode: 500}
	e := newEditor(t, b, nil)
	require.NoError(t, e.Toggle(context.Background()))
	require.NoError(t, e.SelectCard("ABC-1"))

	err := e.ChooseValue(context.Background(), 3)
	assert.ErrorIs(t, err, jira.ErrUpdateFailed)
	assert.True(t, e.Machine().Is(mode.Active))
	assert.Equal(t, 1.0, *e.Tickets()[0].Estimate)

	toast, ok := e.CurrentToast()
	require.True(t, ok)
	assert.Equal(t, "error", toast.Kind)
}

func TestSubmitCustom(t *testing.T) {
	b := board()
	e := newEditor(t, b, nil)
	require.NoError(t, e.Toggle(context.Background()))
	require.NoError(t, e.SelectCard("ABC-3"))

	err := e.SubmitCustom(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Equal(t, mode.Machine{State: mode.PickerOpen, PickerKey: "ABC-3"}, e.Machine())
	assert.Empty(t, b.updates, "invalid input must not reach the network")

	require.NoError(t, e.SubmitCustom(context.Background(), " 0.75 "))
	require.Len(t, b.updates, 1)
	assert.Equal(t, 0.75, *b.updates[0].value)

	require.NoError(t, e.SelectCard("ABC-1"))
	require.NoError(t, e.SubmitCustom(context.Background(), "none"))
	assert.Nil(t, b.updates[1].value)
	assert.Nil(t, e.Tickets()[0].Estimate)
}

func TestUpdateSurvivesCancelledContext(t *testing.T) {
	b := board()
	e := newEditor(t, b, nil)
	require.NoError(t, e.Toggle(context.Background()))
	require.NoError(t, e.SelectCard("ABC-2"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.ChooseValue(ctx, 1))
	assert.Equal(t, []error{nil}, b.ctxErrs)
}

func TestEmptyPage(t *testing.T) {
	e := newEditor(t, &fakeBackend{}, nil)

	require.NoError(t, e.Toggle(context.Background()))
	assert.True(t, e.Machine().Is(mode.Active))
	assert.Empty(t, e.Tickets())
	assert.NoError(t, e.LastError())
	assert.Equal(t, models.Totals{}, e.Totals())
}

func TestToggleWithScanFailure(t *testing.T) {
	rec := &recorder{}
	e := newEditor(t, &fakeBackend{listErr: errors.New("page unavailable")}, rec)

	require.NoError(t, e.Toggle(context.Background()))
	assert.True(t, e.Machine().Is(mode.Active))
	assert.Error(t, e.LastError())
	assert.Equal(t, []string{"mount"}, rec.calls)
}

func TestRefreshDropsVanishedPicker(t *testing.T) {
	b := board()
	e := newEditor(t, b, nil)
	require.NoError(t, e.Toggle(context.Background()))
	require.NoError(t, e.SelectCard("ABC-3"))

	b.mu.Lock()
	b.tickets = b.tickets[:2]
	b.mu.Unlock()
	require.NoError(t, e.Refresh(context.Background()))
	assert.Equal(t, mode.Machine{State: mode.Active}, e.Machine())
}

func TestScheduleRescanCoalesces(t *testing.T) {
	b := board()
	e := newEditor(t, b, nil)

	for i := 0; i < 5; i++ {
		e.ScheduleRescan()
	}
	assert.Eventually(t, func() bool { return b.listCount() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, b.listCount())
	assert.Len(t, e.Tickets(), 3)
}

func TestToastExpires(t *testing.T) {
	b := board()
	e := New(b, nil, Options{ToastDuration: 10 * time.Millisecond})
	defer e.Shutdown()
	require.NoError(t, e.Refresh(context.Background()))

	require.NoError(t, e.SetEstimate(context.Background(), "ABC-1", models.Float64Ptr(2)))
	_, ok := e.CurrentToast()
	assert.True(t, ok)
	assert.Eventually(t, func() bool {
		_, ok := e.CurrentToast()
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in      string
		want    *float64
		wantErr bool
	}{
		{"2.5", models.Float64Ptr(2.5), false},
		{" 3 ", models.Float64Ptr(3), false},
		{"0", models.Float64Ptr(0), false},
		{"1.5d", models.Float64Ptr(1.5), false},
		{"none", nil, false},
		{"-", nil, false},
		{"", nil, true},
		{"-1", nil, true},
		{"abc", nil, true},
		{"NaN", nil, true},
		{"Inf", nil, true},
		{"3 pts", nil, true},
	}
	for _, tt := range tests {
		got, err := ParseValue(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidValue, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

// acceptAll is a Jira stand-in that accepts every write
type acceptAll struct{}

func (acceptAll) UpdateEstimate(ctx context.Context, issueKey string, value *float64) (jira.FieldResolution, error) {
	return jira.FieldResolution{FieldID: "customfield_10016"}, nil
}

func TestEditorDrivesOverlay(t *testing.T) {
	src := page.NewStaticSource(`<html><head></head><body>
		<div class="ghx-issue" data-issue-key="ABC-1"><span class="ghx-summary">One</span></div>
		<div class="ghx-issue" data-issue-key="ABC-2"><span class="ghx-summary">Two</span></div>
	</body></html>`)
	s := scanner.New(src, acceptAll{})
	ov := overlay.New(s.Document(), s, nil)
	e := newEditor(t, s, ov)

	require.NoError(t, e.Toggle(context.Background()))
	require.NoError(t, e.SelectCard("ABC-1"))
	require.NoError(t, e.SelectCard("ABC-2"))
	assert.Equal(t, []string{"ABC-2"}, ov.OpenPickers())

	require.NoError(t, e.ChooseValue(context.Background(), 0.5))
	assert.Empty(t, ov.OpenPickers())
	ticket, _ := s.Ticket("ABC-2")
	assert.Equal(t, 0.5, *ticket.Estimate)

	require.NoError(t, e.Toggle(context.Background()))
	html, err := s.Document().HTML()
	require.NoError(t, err)
	assert.NotContains(t, html, page.OwnedAttr)
	assert.NotContains(t, html, overlay.ClassActive)
}

func TestIdleEditLeavesNoMarkers(t *testing.T) {
	src := page.NewStaticSource(`<html><head></head><body>
		<div class="ghx-issue" data-issue-key="ABC-1"><span class="ghx-summary">One</span></div>
	</body></html>`)
	s := scanner.New(src, acceptAll{})
	ov := overlay.New(s.Document(), s, nil)
	e := New(s, ov, Options{ToastDuration: 10 * time.Millisecond})
	defer e.Shutdown()
	ctx := context.Background()

	require.NoError(t, e.Toggle(ctx))
	require.NoError(t, e.Toggle(ctx))
	before, err := s.Document().HTML()
	require.NoError(t, err)

	require.NoError(t, e.SetEstimate(ctx, "ABC-1", models.Float64Ptr(1)))
	ticket, _ := s.Ticket("ABC-1")
	assert.Equal(t, 1.0, *ticket.Estimate)
	_, ok := e.CurrentToast()
	assert.True(t, ok, "the toast is still reported to the control surface")

	after, err := s.Document().HTML()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.NotContains(t, after, page.OwnedAttr)

	// The expiring toast must not touch the page either
	assert.Eventually(t, func() bool {
		_, ok := e.CurrentToast()
		return !ok
	}, time.Second, 5*time.Millisecond)
	after, err = s.Document().HTML()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestIdleEditSkipsPresenter(t *testing.T) {
	rec := &recorder{}
	e := newEditor(t, board(), rec)
	require.NoError(t, e.Refresh(context.Background()))

	require.NoError(t, e.SetEstimate(context.Background(), "ABC-2", models.Float64Ptr(1)))
	assert.Empty(t, rec.calls)
	assert.Equal(t, 1.0, *e.Tickets()[1].Estimate)
}
