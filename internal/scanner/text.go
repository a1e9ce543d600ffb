package scanner

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/tuannvm/jira-estimate/internal/page"
)

// find returns the matches of selector below sel that the overlay does not own
func find(sel *goquery.Selection, selector string) *goquery.Selection {
	return sel.Find(selector).Not(page.OwnedSelector)
}

// hostText returns the text of sel without overlay markers and without the
// subtrees matching exclude.
func hostText(sel *goquery.Selection, exclude string) string {
	if sel.Length() == 0 {
		return ""
	}
	skip := make(map[*html.Node]bool)
	if exclude != "" {
		for _, n := range sel.Find(exclude).Nodes {
			skip[n] = true
		}
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			if skip[n] || isOwned(n) {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(sel.Get(0))
	return b.String()
}

func isOwned(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key == page.OwnedAttr {
			return true
		}
	}
	return false
}

var leadingFloat = regexp.MustCompile(`^[+-]?(?:Infinity|(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][+-]?[0-9]+)?)`)

// parseLeadingFloat parses the longest numeric prefix of s after leading
// whitespace, so "3 pts" yields 3 and "pts" yields nothing.
func parseLeadingFloat(s string) (float64, bool) {
	m := leadingFloat.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	if strings.HasSuffix(m, "Infinity") {
		m = strings.TrimSuffix(m, "Infinity") + "Inf"
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// collapseSpace folds runs of whitespace into single spaces
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
