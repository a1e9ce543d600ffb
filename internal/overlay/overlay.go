// Package overlay inserts and removes the editor's own marker elements in the
// board page: action button, status bar, card badges, picker and toasts.
package overlay

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	log "github.com/tuannvm/jira-estimate/internal/logging"
	"github.com/tuannvm/jira-estimate/internal/models"
	"github.com/tuannvm/jira-estimate/internal/page"
	"github.com/tuannvm/jira-estimate/internal/scanner"
)

// Class names of the marker elements
const (
	ClassActive    = "jee-estimate-mode-active"
	ClassFAB       = "jee-fab"
	ClassStatusBar = "jee-status-bar"
	ClassBadge     = "jee-card-estimate-badge"
	ClassPicker    = "jee-estimate-picker"
	ClassToast     = "jee-toast"
	ClassHint      = "jee-keyboard-hint"
)

// Toast kinds
const (
	ToastSuccess = "success"
	ToastError   = "error"
)

// Cards gives the overlay access to the scanned tickets and their elements
type Cards interface {
	Tickets() []scanner.Ticket
	Element(snap page.Snapshot, issueKey string) (*goquery.Selection, bool)
}

// Overlay renders markers into a page document
type Overlay struct {
	doc     *page.Document
	cards   Cards
	presets []float64
	live    page.LiveView
}

// New creates an overlay over doc using the given picker presets
func New(doc *page.Document, cards Cards, presets []float64) *Overlay {
	return &Overlay{doc: doc, cards: cards, presets: presets}
}

// Mirror also shows every later change in a live page
func (o *Overlay) Mirror(v page.LiveView) {
	o.live = v
}

// Mount shows the active mode markers for the scanned tickets. Any markers
// from a previous mount are replaced.
func (o *Overlay) Mount() {
	tickets := o.cards.Tickets()
	o.doc.Write(func(snap page.Snapshot) {
		removeOwned(snap, "."+ClassFAB+", ."+ClassStatusBar+", ."+ClassBadge+", ."+ClassHint)

		body := snap.Find("body")
		body.AddClass(ClassActive)
		body.AppendHtml(owned("button", ClassFAB+" active", `title="Toggle Estimate Mode (Alt+E)"`, "⏱"))
		body.AppendHtml(statusBar(summarize(tickets)))
		body.AppendHtml(owned("div", ClassHint, "", "Press <kbd>Alt</kbd>+<kbd>E</kbd> to toggle"))

		for _, t := range tickets {
			o.appendBadge(snap, t.Key, t.Estimate)
		}
	})
	o.publish()
}

// UpdateTicket refreshes the badge of one ticket and the status bar totals.
// Nothing is added when the overlay is not mounted.
func (o *Overlay) UpdateTicket(issueKey string) {
	tickets := o.cards.Tickets()
	var estimate *float64
	for _, t := range tickets {
		if t.Key == issueKey {
			estimate = t.Estimate
		}
	}
	o.doc.Write(func(snap page.Snapshot) {
		badge := snap.Find(fmt.Sprintf(".%s[data-issue-key=%q]", ClassBadge, issueKey))
		if badge.Length() > 0 {
			setBadge(badge, estimate)
		}
		if bar := snap.Find("." + ClassStatusBar); bar.Length() > 0 {
			bar.ReplaceWithHtml(statusBar(summarize(tickets)))
		}
	})
	o.publish()
}

// OpenPicker shows the value picker for one ticket, closing any other picker
func (o *Overlay) OpenPicker(issueKey string, current *float64) {
	o.doc.Write(func(snap page.Snapshot) {
		snap.Find("." + ClassPicker).Remove()

		var b strings.Builder
		fmt.Fprintf(&b, `<div %s="true" class="%s visible" data-issue-key="%s">`, page.OwnedAttr, ClassPicker, html.EscapeString(issueKey))
		fmt.Fprintf(&b, `<div class="%s-header"><span class="%s-title">Estimate (days)</span><span class="%s-key">%s</span></div>`,
			ClassPicker, ClassPicker, ClassPicker, html.EscapeString(issueKey))
		fmt.Fprintf(&b, `<div class="%s-buttons">`, ClassPicker)
		for _, v := range o.presets {
			class := ClassPicker + "-btn"
			if current != nil && *current == v {
				class += " active"
			}
			value := strconv.FormatFloat(v, 'f', -1, 64)
			fmt.Fprintf(&b, `<button class="%s" data-value="%s">%s</button>`, class, value, value)
		}
		b.WriteString(`</div>`)
		fmt.Fprintf(&b, `<div class="%s-custom"><input type="number" class="%s-input" placeholder="Custom" step="0.1" min="0"><button class="%s-set">Set</button></div>`,
			ClassPicker, ClassPicker, ClassPicker)
		b.WriteString(`</div>`)

		snap.Find("body").AppendHtml(b.String())
	})
	o.publish()
}

// ClosePicker removes the picker if one is open
func (o *Overlay) ClosePicker() {
	o.doc.Write(func(snap page.Snapshot) {
		snap.Find("." + ClassPicker).Remove()
	})
	o.publish()
}

// Toast shows a transient notification, replacing the previous one
func (o *Overlay) Toast(message, kind string) {
	o.doc.Write(func(snap page.Snapshot) {
		snap.Find("." + ClassToast).Remove()
		class := ClassToast
		if kind != "" {
			class += " " + kind
		}
		snap.Find("body").AppendHtml(owned("div", class, "", html.EscapeString(message)))
	})
	o.publish()
}

// ClearToast removes the notification
func (o *Overlay) ClearToast() {
	o.doc.Write(func(snap page.Snapshot) {
		snap.Find("." + ClassToast).Remove()
	})
	o.publish()
}

// Clear removes every marker element and the mode class
func (o *Overlay) Clear() {
	o.doc.Write(func(snap page.Snapshot) {
		snap.Find("[" + page.OwnedAttr + "]").Remove()
		body := snap.Find("body")
		body.RemoveClass(ClassActive)
		if class, ok := body.Attr("class"); ok && strings.TrimSpace(class) == "" {
			body.RemoveAttr("class")
		}
	})
	o.publish()
}

// OpenPickers returns the issue keys of the pickers in the page
func (o *Overlay) OpenPickers() []string {
	var keys []string
	o.doc.Read(func(snap page.Snapshot) {
		snap.Find("." + ClassPicker).Each(func(_ int, s *goquery.Selection) {
			keys = append(keys, s.AttrOr("data-issue-key", ""))
		})
	})
	return keys
}

// publish sends the top level markers of the document to the live view
func (o *Overlay) publish() {
	if o.live == nil {
		return
	}
	var (
		markers []page.Marker
		active  bool
	)
	ownedSel := "[" + page.OwnedAttr + "]"
	o.doc.Read(func(snap page.Snapshot) {
		active = snap.Find("body").HasClass(ClassActive)
		snap.Find(ownedSel).Each(func(_ int, s *goquery.Selection) {
			if s.ParentsFiltered(ownedSel).Length() > 0 {
				return
			}
			markup, err := goquery.OuterHtml(s)
			if err != nil {
				return
			}
			m := page.Marker{HTML: markup}
			if s.HasClass(ClassBadge) {
				m.IssueKey = s.AttrOr("data-issue-key", "")
			}
			markers = append(markers, m)
		})
	})
	if err := o.live.Render(context.Background(), markers, ClassActive, active); err != nil {
		log.Warnf("Failed to show markers in the page: %v", err)
	}
}

func (o *Overlay) appendBadge(snap page.Snapshot, issueKey string, estimate *float64) {
	el, ok := o.cards.Element(snap, issueKey)
	if !ok {
		return
	}
	container := el.Find(".ghx-issue-content").First()
	if container.Length() == 0 {
		container = el
	}
	class, text := badgeState(estimate)
	container.AppendHtml(owned("div", ClassBadge+" "+class,
		fmt.Sprintf(`data-issue-key="%s"`, html.EscapeString(issueKey)), text))
}

func setBadge(badge *goquery.Selection, estimate *float64) {
	class, text := badgeState(estimate)
	badge.RemoveClass("has-value", "no-value").AddClass(class).SetText(text)
}

func badgeState(estimate *float64) (class, text string) {
	if estimate == nil {
		return "no-value", models.FormatEstimate(nil)
	}
	return "has-value", models.FormatEstimate(estimate)
}

func statusBar(t models.Totals) string {
	noun := "tickets"
	if t.Count == 1 {
		noun = "ticket"
	}
	inner := fmt.Sprintf(`<div class="jee-status-item"><span class="jee-ticket-count">%d %s</span></div>`+
		`<div class="jee-status-divider"></div>`+
		`<div class="jee-status-item"><strong class="jee-total-estimate">%s</strong> total</div>`+
		`<div class="jee-status-divider"></div>`+
		`<div class="jee-status-item"><span class="jee-unestimated-count">%d unestimated</span></div>`+
		`<button class="jee-status-close" title="Close (Esc)">✕</button>`,
		t.Count, noun, models.FormatDays(t.Total), t.Unestimated)
	return owned("div", ClassStatusBar+" visible", "", inner)
}

func summarize(tickets []scanner.Ticket) models.Totals {
	infos := make([]models.TicketInfo, 0, len(tickets))
	for _, t := range tickets {
		infos = append(infos, t.Info())
	}
	return models.Summarize(infos)
}

func removeOwned(snap page.Snapshot, selector string) {
	snap.Find(selector).Filter("[" + page.OwnedAttr + "]").Remove()
}

// owned renders an element tagged as belonging to the overlay
func owned(tag, class, attrs, inner string) string {
	if attrs != "" {
		attrs = " " + attrs
	}
	return fmt.Sprintf(`<%s %s="true" class="%s"%s>%s</%s>`, tag, page.OwnedAttr, class, attrs, inner, tag)
}
