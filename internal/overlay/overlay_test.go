package overlay

import (
	"context"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannvm/jira-estimate/internal/jira"
	"github.com/tuannvm/jira-estimate/internal/models"
	"github.com/tuannvm/jira-estimate/internal/page"
	"github.com/tuannvm/jira-estimate/internal/scanner"
)

const board = `<html><head></head><body>
<div class="ghx-issue" data-issue-key="ABC-1"><div class="ghx-issue-content"><span class="ghx-summary">First</span><span class="ghx-estimate">2</span></div></div>
<div class="ghx-issue" data-issue-key="ABC-2"><div class="ghx-issue-content"><span class="ghx-summary">Second</span></div></div>
<div data-testid="platform-board-kit.ui.card.card"><a href="/browse/ABC-3">ABC-3</a> Third</div>
</body></html>`

var presets = []float64{0.1, 0.2, 0.5, 1, 1.5, 2, 3}

type acceptAll struct{}

func (acceptAll) UpdateEstimate(ctx context.Context, issueKey string, value *float64) (jira.FieldResolution, error) {
	return jira.FieldResolution{FieldID: "customfield_10016"}, nil
}

func setup(t *testing.T) (*Overlay, *scanner.Scanner) {
	t.Helper()
	s := scanner.New(page.NewStaticSource(board), acceptAll{})
	_, err := s.Rescan(context.Background())
	require.NoError(t, err)
	return New(s.Document(), s, presets), s
}

func find(o *Overlay, selector string) (out []*goquery.Selection) {
	o.doc.Read(func(snap page.Snapshot) {
		snap.Find(selector).Each(func(_ int, s *goquery.Selection) {
			out = append(out, s)
		})
	})
	return out
}

func TestMountRendersMarkers(t *testing.T) {
	o, _ := setup(t)
	o.Mount()

	body := find(o, "body")[0]
	assert.True(t, body.HasClass(ClassActive))
	assert.Len(t, find(o, "."+ClassFAB), 1)

	badges := find(o, "."+ClassBadge)
	require.Len(t, badges, 3)
	assert.Equal(t, "2d", badges[0].Text())
	assert.True(t, badges[0].HasClass("has-value"))
	assert.Equal(t, "-", badges[1].Text())
	assert.True(t, badges[1].HasClass("no-value"))
	assert.Equal(t, "ghx-issue-content", badges[0].Parent().AttrOr("class", ""))
	assert.Equal(t, "ABC-3", badges[2].AttrOr("data-issue-key", ""))

	bar := find(o, "."+ClassStatusBar)
	require.Len(t, bar, 1)
	assert.Equal(t, "3 tickets", bar[0].Find(".jee-ticket-count").Text())
	assert.Equal(t, "2d", bar[0].Find(".jee-total-estimate").Text())
	assert.Equal(t, "2 unestimated", bar[0].Find(".jee-unestimated-count").Text())
}

func TestMountTwiceDoesNotDuplicate(t *testing.T) {
	o, _ := setup(t)
	o.Mount()
	o.Mount()

	assert.Len(t, find(o, "."+ClassBadge), 3)
	assert.Len(t, find(o, "."+ClassStatusBar), 1)
	assert.Len(t, find(o, "."+ClassFAB), 1)
}

func TestPickerExclusivity(t *testing.T) {
	o, _ := setup(t)
	o.Mount()

	o.OpenPicker("ABC-1", models.Float64Ptr(2))
	assert.Equal(t, []string{"ABC-1"}, o.OpenPickers())

	o.OpenPicker("ABC-2", nil)
	assert.Equal(t, []string{"ABC-2"}, o.OpenPickers())

	o.ClosePicker()
	assert.Empty(t, o.OpenPickers())
}

func TestPickerPresets(t *testing.T) {
	o, _ := setup(t)
	o.OpenPicker("ABC-1", models.Float64Ptr(0.5))

	buttons := find(o, "."+ClassPicker+"-btn")
	require.Len(t, buttons, len(presets))
	var values []string
	for _, b := range buttons {
		values = append(values, b.AttrOr("data-value", ""))
	}
	assert.Equal(t, []string{"0.1", "0.2", "0.5", "1", "1.5", "2", "3"}, values)
	assert.True(t, buttons[2].HasClass("active"))
	assert.Len(t, find(o, "."+ClassPicker+" input."+ClassPicker+"-input"), 1)
}

func TestClearLeavesNoResidue(t *testing.T) {
	o, s := setup(t)
	before, err := s.Document().HTML()
	require.NoError(t, err)

	o.Mount()
	o.OpenPicker("ABC-3", nil)
	o.Toast("✓ ABC-3 → 1d", ToastSuccess)
	o.Clear()

	after, err := s.Document().HTML()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, find(o, "["+page.OwnedAttr+"]"))
}

func TestUpdateTicket(t *testing.T) {
	o, s := setup(t)
	o.Mount()

	require.NoError(t, s.UpdateEstimate(context.Background(), "ABC-2", models.Float64Ptr(1.5)))
	o.UpdateTicket("ABC-2")

	badge := find(o, "."+ClassBadge+`[data-issue-key="ABC-2"]`)
	require.Len(t, badge, 1)
	assert.Equal(t, "1.5d", badge[0].Text())
	assert.True(t, badge[0].HasClass("has-value"))
	assert.False(t, badge[0].HasClass("no-value"))

	bar := find(o, "."+ClassStatusBar)
	require.Len(t, bar, 1)
	assert.Equal(t, "3.5d", bar[0].Find(".jee-total-estimate").Text())
	assert.Equal(t, "1 unestimated", bar[0].Find(".jee-unestimated-count").Text())
}

func TestToastReplacesPrevious(t *testing.T) {
	o, _ := setup(t)
	o.Toast("first", ToastSuccess)
	o.Toast("<b>second</b>", ToastError)

	toasts := find(o, "."+ClassToast)
	require.Len(t, toasts, 1)
	assert.Equal(t, "<b>second</b>", toasts[0].Text())
	assert.True(t, toasts[0].HasClass(ToastError))

	o.ClearToast()
	assert.Empty(t, find(o, "."+ClassToast))
}

func TestMarkersAreNotScanned(t *testing.T) {
	o, s := setup(t)
	o.Mount()
	o.OpenPicker("ABC-2", nil)

	assert.Equal(t, 3, s.Scan())
	ticket, ok := s.Ticket("ABC-2")
	require.True(t, ok)
	assert.Nil(t, ticket.Estimate)
}

func TestUpdateTicketWithoutMountAddsNothing(t *testing.T) {
	o, s := setup(t)
	before, err := s.Document().HTML()
	require.NoError(t, err)

	require.NoError(t, s.UpdateEstimate(context.Background(), "ABC-1", models.Float64Ptr(1)))
	o.UpdateTicket("ABC-1")

	after, err := s.Document().HTML()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, find(o, "."+ClassBadge))
}

type liveRecorder struct {
	markers []page.Marker
	class   string
	active  bool
	renders int
}

func (l *liveRecorder) Render(ctx context.Context, markers []page.Marker, bodyClass string, active bool) error {
	l.markers, l.class, l.active = markers, bodyClass, active
	l.renders++
	return nil
}

func (l *liveRecorder) badgeKeys() []string {
	var keys []string
	for _, m := range l.markers {
		if m.IssueKey != "" {
			keys = append(keys, m.IssueKey)
		}
	}
	return keys
}

func TestMirrorFollowsOverlay(t *testing.T) {
	o, _ := setup(t)
	live := &liveRecorder{}
	o.Mirror(live)

	o.Mount()
	assert.True(t, live.active)
	assert.Equal(t, ClassActive, live.class)
	assert.Equal(t, []string{"ABC-1", "ABC-2", "ABC-3"}, live.badgeKeys())
	assert.Len(t, live.markers, 6, "three badges, action button, status bar and hint")

	o.OpenPicker("ABC-2", nil)
	last := live.markers[len(live.markers)-1]
	assert.Empty(t, last.IssueKey, "the picker is attached to the body")
	assert.Contains(t, last.HTML, ClassPicker)
	assert.Contains(t, last.HTML, page.OwnedAttr)

	o.Clear()
	assert.False(t, live.active)
	assert.Empty(t, live.markers)
	assert.Equal(t, 3, live.renders)
}
