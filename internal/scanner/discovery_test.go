package scanner

import (
	"os"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannvm/jira-estimate/internal/models"
	"github.com/tuannvm/jira-estimate/internal/page"
)

func loadBoard(t *testing.T) *page.Document {
	t.Helper()
	raw, err := os.ReadFile("testdata/board.html")
	require.NoError(t, err)
	doc, err := page.Parse(string(raw))
	require.NoError(t, err)
	return doc
}

func discover(doc *page.Document) *Registry {
	var reg *Registry
	doc.Read(func(s page.Snapshot) { reg = Discover(s) })
	return reg
}

// card parses a fragment and returns its first element
func card(t *testing.T, fragment string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + fragment + "</body></html>"))
	require.NoError(t, err)
	return doc.Find("body").Children().First()
}

func keys(reg *Registry) []string {
	var out []string
	for _, t := range reg.Tickets() {
		out = append(out, t.Key)
	}
	return out
}

func TestDiscoverBoard(t *testing.T) {
	reg := discover(loadBoard(t))

	assert.Equal(t, []string{"SCRUM-1", "SCRUM-2", "SCRUM-3", "OPS-12", "LNK-7"}, keys(reg))

	tests := []struct {
		key       string
		summary   string
		issueType models.IssueType
		estimate  *float64
		source    string
	}{
		{"SCRUM-1", "Build the login form", models.IssueTypeStory, models.Float64Ptr(2.5), KeySourceLink},
		{"SCRUM-2", "Crash on empty password", models.IssueTypeBug, nil, KeySourceLink},
		{"SCRUM-3", "Write the session middleware", models.IssueTypeSubtask, models.Float64Ptr(0.5), KeySourceLink},
		{"OPS-12", "Rotate TLS certificates", models.IssueTypeTask, models.Float64Ptr(3), KeySourceAttribute},
		{"LNK-7", "Fix flaky checkout test", models.IssueTypeTask, nil, KeySourceLink},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			ticket, ok := reg.Get(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.summary, ticket.Summary)
			assert.Equal(t, tt.issueType, ticket.IssueType)
			assert.Equal(t, tt.estimate, ticket.Estimate)
			assert.Equal(t, tt.source, ticket.KeySource)
			assert.False(t, ticket.Ref.IsZero())
		})
	}
}

func TestDiscoverIsIdempotent(t *testing.T) {
	doc := loadBoard(t)
	first := discover(doc)
	second := discover(doc)

	assert.Equal(t, first.Len(), second.Len())
	assert.Equal(t, first.Infos(), second.Infos())
}

func TestDiscoverEmptyPage(t *testing.T) {
	doc, err := page.Parse("<html><body><p>Nothing to see here</p></body></html>")
	require.NoError(t, err)

	reg := discover(doc)
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, reg.Infos())
	assert.NotNil(t, reg.Infos(), "an empty page serializes as an empty list")
}

func TestDiscoverIgnoresOwnedMarkers(t *testing.T) {
	doc, err := page.Parse(`<html><body>
		<div class="ghx-issue" data-issue-key="ABC-1"><span class="ghx-summary">Plain</span>
			<div data-jee-owned="true" class="jee-card-estimate-badge has-value">9d</div>
		</div>
		<div data-jee-owned="true" class="jee-estimate-picker" data-issue-key="ZZZ-9"></div>
	</body></html>`)
	require.NoError(t, err)

	reg := discover(doc)
	assert.Equal(t, []string{"ABC-1"}, keys(reg))
	ticket, _ := reg.Get("ABC-1")
	assert.Nil(t, ticket.Estimate, "badge text must not be read back as an estimate")
}

func TestDiscoverFirstDiscoveryWins(t *testing.T) {
	doc, err := page.Parse(`<html><body>
		<div class="ghx-issue" data-issue-key="ABC-1"><span class="ghx-summary">Board card</span></div>
		<div data-issue-key="ABC-1"><span class="ghx-summary">Detail panel</span></div>
	</body></html>`)
	require.NoError(t, err)

	reg := discover(doc)
	require.Equal(t, 1, reg.Len())
	ticket, _ := reg.Get("ABC-1")
	assert.Equal(t, "Board card", ticket.Summary)
}

func TestExtractKeyPriority(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		wantKey  string
		wantFrom string
	}{
		{
			name:     "attribute is trusted as is",
			html:     `<div data-issue-key="not-a-key"><a href="/browse/ABC-1">ABC-1</a></div>`,
			wantKey:  "not-a-key",
			wantFrom: KeySourceAttribute,
		},
		{
			name:     "link before text",
			html:     `<div>Blocked by XYZ-9 <a href="https://x.atlassian.net/browse/ABC-2?focus=1">open</a></div>`,
			wantKey:  "ABC-2",
			wantFrom: KeySourceLink,
		},
		{
			name:     "key element must match exactly",
			html:     `<div><span data-testid="card.issue-key">DEF-3</span> mentions GHI-4</div>`,
			wantKey:  "DEF-3",
			wantFrom: KeySourceKeyElement,
		},
		{
			name:     "key element with extra text falls through to text",
			html:     `<div><span class="ghx-key"><a>Key: DEF-3</a></span></div>`,
			wantKey:  "DEF-3",
			wantFrom: KeySourceText,
		},
		{
			name:     "text scan",
			html:     `<div>Follow-up for AB2-17 and CD-1</div>`,
			wantKey:  "AB2-17",
			wantFrom: KeySourceText,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, from, ok := ExtractKey(card(t, tt.html))
			require.True(t, ok)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantFrom, from)
		})
	}

	_, _, ok := ExtractKey(card(t, `<div>lowercase abc-1 and A-1</div>`))
	assert.False(t, ok)
}

func TestStructuralKeysNeverUseTextScan(t *testing.T) {
	reg := discover(loadBoard(t))
	for _, ticket := range reg.Tickets() {
		assert.NotEqual(t, KeySourceText, ticket.KeySource, ticket.Key)
	}
}

func TestKeyStrategiesInIsolation(t *testing.T) {
	el := card(t, `<div><a href="/browse/LINK-1">x</a><span data-testid="issue-key">ELEM-2</span> TEXT-3</div>`)

	got := make(map[string]string)
	for _, s := range KeyStrategies {
		if key, ok := s.Extract(el); ok {
			got[s.Name] = key
		}
	}
	assert.Equal(t, map[string]string{
		KeySourceLink:       "LINK-1",
		KeySourceKeyElement: "ELEM-2",
		KeySourceText:       "ELEM-2",
	}, got)
}

func TestExtractSummary(t *testing.T) {
	assert.Equal(t, "Ship it",
		ExtractSummary(card(t, `<div><span data-testid="card.summary">  Ship
			it </span></div>`), "A-1"))

	assert.Equal(t, "Refactor the parser",
		ExtractSummary(card(t, `<div><a href="/browse/AB-1">AB-1</a> Refactor the parser</div>`), "AB-1"))

	assert.Equal(t, "AB-1",
		ExtractSummary(card(t, `<div><a href="/browse/AB-1">AB-1</a></div>`), "AB-1"))

	long := strings.Repeat("é", 150)
	got := ExtractSummary(card(t, `<div class="ghx-summary">`+long+`</div><div></div>`), "AB-1")
	assert.Equal(t, 100, len([]rune(got)))
}

func TestExtractIssueType(t *testing.T) {
	tests := []struct {
		html string
		want models.IssueType
	}{
		{`<div><img alt="Story"></div>`, models.IssueTypeStory},
		{`<div><img alt="Bug"></div>`, models.IssueTypeBug},
		{`<div><img alt="Epic"></div>`, models.IssueTypeEpic},
		{`<div><img alt="Sub-task"></div>`, models.IssueTypeSubtask},
		{`<div><img alt="Subtask"></div>`, models.IssueTypeSubtask},
		{`<div><span class="ghx-type" title="Bug"></span></div>`, models.IssueTypeBug},
		{`<div><span data-testid="card.issue-type">Epic</span></div>`, models.IssueTypeEpic},
		{`<div class="ghx-issue story-card"></div>`, models.IssueTypeStory},
		{`<div><img alt="avatar"></div>`, models.IssueTypeTask},
		{`<div></div>`, models.IssueTypeTask},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractIssueType(card(t, tt.html)), tt.html)
	}
}
