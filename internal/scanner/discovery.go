package scanner

import (
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	log "github.com/tuannvm/jira-estimate/internal/logging"
	"github.com/tuannvm/jira-estimate/internal/page"
)

// CardSelectors are the card discovery passes, in priority order
var CardSelectors = []string{
	// Board view cards
	`[data-testid="platform-board-kit.ui.card.card"]`,
	`[data-testid="software-board.board-container.board.card-container.card"]`,
	// Backlog rows
	`[data-testid="software-backlog.backlog-content.backlog-list-row"]`,
	`[data-testid="platform-board-kit.ui.swimlane.swimlane-content"] [data-testid*="card"]`,
	// Classic boards and lists
	".ghx-issue, .js-issue",
	`[data-testid*="issue-line-card"], [data-testid*="card"]`,
	"[data-rbd-draggable-id]",
	// Anything carrying an identifier attribute
	"[data-issue-key]",
}

const (
	browseLinks    = `a[href*="/browse/"]`
	linkContainers = "[data-testid], .ghx-issue, [data-rbd-draggable-id]"
)

// Discover scans a page snapshot for cards and builds a fresh registry.
// A page without cards yields an empty registry.
func Discover(s page.Snapshot) *Registry {
	reg := NewRegistry()
	claimed := make(map[*html.Node]bool)

	for _, selector := range CardSelectors {
		s.Find(selector).Not(page.OwnedSelector).Each(func(_ int, card *goquery.Selection) {
			node := card.Get(0)
			if claimed[node] {
				return
			}
			claimed[node] = true
			addCard(s, reg, card)
		})
	}

	s.Find(browseLinks).Not(page.OwnedSelector).Each(func(_ int, link *goquery.Selection) {
		key, ok := KeyFromHref(link.AttrOr("href", ""))
		if !ok || reg.Has(key) {
			return
		}
		card := link.Closest(linkContainers)
		if card.Length() == 0 {
			card = link.Parent()
		}
		reg.Add(buildTicket(s, card, key, KeySourceLink))
	})

	log.Debugf("Discovered %d tickets in generation %d", reg.Len(), s.Generation)
	return reg
}

func addCard(s page.Snapshot, reg *Registry, card *goquery.Selection) {
	key, source, ok := ExtractKey(card)
	if !ok || reg.Has(key) {
		return
	}
	reg.Add(buildTicket(s, card, key, source))
}

func buildTicket(s page.Snapshot, card *goquery.Selection, key, source string) Ticket {
	return Ticket{
		Key:       key,
		Summary:   ExtractSummary(card, key),
		IssueType: ExtractIssueType(card),
		Estimate:  ExtractEstimate(card),
		KeySource: source,
		Ref:       s.RefOf(card),
	}
}
