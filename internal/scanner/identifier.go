package scanner

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	keyPattern         = regexp.MustCompile(`[A-Z][A-Z0-9]+-\d+`)
	anchoredKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]+-\d+$`)
)

// Names of the identifier strategies, recorded as Ticket.KeySource
const (
	KeySourceAttribute  = "attribute"
	KeySourceLink       = "browse-link"
	KeySourceKeyElement = "key-element"
	KeySourceText       = "text"
)

// KeyStrategy extracts an issue key from a card element
type KeyStrategy struct {
	Name    string
	Extract func(card *goquery.Selection) (string, bool)
}

// KeyStrategies are tried in order; the first success wins. Structured
// signals come before the free text scan.
var KeyStrategies = []KeyStrategy{
	{Name: KeySourceAttribute, Extract: keyFromAttribute},
	{Name: KeySourceLink, Extract: keyFromLink},
	{Name: KeySourceKeyElement, Extract: keyFromKeyElement},
	{Name: KeySourceText, Extract: keyFromText},
}

// ExtractKey returns the issue key of a card and the strategy that found it
func ExtractKey(card *goquery.Selection) (key, source string, ok bool) {
	for _, strategy := range KeyStrategies {
		if key, ok := strategy.Extract(card); ok {
			return key, strategy.Name, true
		}
	}
	return "", "", false
}

// keyFromAttribute trusts data-issue-key as is
func keyFromAttribute(card *goquery.Selection) (string, bool) {
	key, ok := card.Attr("data-issue-key")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

func keyFromLink(card *goquery.Selection) (string, bool) {
	link := find(card, `a[href*="/browse/"]`).First()
	if link.Length() == 0 {
		return "", false
	}
	return KeyFromHref(link.AttrOr("href", ""))
}

// KeyFromHref extracts the first issue key from a link target
func KeyFromHref(href string) (string, bool) {
	key := keyPattern.FindString(href)
	return key, key != ""
}

func keyFromKeyElement(card *goquery.Selection) (string, bool) {
	el := find(card, `.ghx-key a, [data-testid*="issue-key"]`).First()
	if el.Length() == 0 {
		return "", false
	}
	text := strings.TrimSpace(el.Text())
	if !anchoredKeyPattern.MatchString(text) {
		return "", false
	}
	return text, true
}

func keyFromText(card *goquery.Selection) (string, bool) {
	key := keyPattern.FindString(hostText(card, ""))
	return key, key != ""
}
