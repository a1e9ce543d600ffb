package scanner

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Accepted estimate ranges. Unstructured leaves get the tighter bound.
const (
	MaxStructuredEstimate = 100
	MaxLeafEstimate       = 21
)

// EstimateSelectors host estimate-like badges, most specific first
var EstimateSelectors = []string{
	".ghx-estimate",
	".ghx-statistic-badge",
	`[data-testid*="story-point"]`,
	`[data-testid*="estimate"]`,
	`[data-tooltip*="Story Points"]`,
	`[data-field-id*="customfield"]`,
	".aui-badge",
	`[class*="storypoint"]`,
	`[class*="estimate"]`,
}

// EstimateStrategy reads an estimate from a card element
type EstimateStrategy struct {
	Name    string
	Extract func(card *goquery.Selection) (float64, bool)
}

// EstimateStrategies are tried in order; the first success wins
var EstimateStrategies = []EstimateStrategy{
	{Name: "badge-selector", Extract: estimateFromSelectors},
	{Name: "styled-leaf", Extract: estimateFromStyledLeaf},
}

// ExtractEstimate returns the estimate shown on a card, or nil when the card
// is unestimated. Values outside the accepted range count as absent.
func ExtractEstimate(card *goquery.Selection) *float64 {
	for _, strategy := range EstimateStrategies {
		if v, ok := strategy.Extract(card); ok {
			return &v
		}
	}
	return nil
}

func estimateFromSelectors(card *goquery.Selection) (float64, bool) {
	for _, selector := range EstimateSelectors {
		el := find(card, selector).First()
		if el.Length() == 0 {
			continue
		}
		v, ok := parseLeadingFloat(hostText(el, ""))
		if ok && v >= 0 && v <= MaxStructuredEstimate {
			return v, true
		}
	}
	return 0, false
}

var plainNumber = regexp.MustCompile(`^[0-9]+\.?[0-9]*$`)

func estimateFromStyledLeaf(card *goquery.Selection) (float64, bool) {
	var (
		value float64
		found bool
	)
	find(card, "*").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if el.Children().Length() > 0 {
			return true
		}
		text := strings.TrimSpace(el.Text())
		if !plainNumber.MatchString(text) {
			return true
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil || v < 0 || v > MaxLeafEstimate {
			return true
		}
		if !hasEstimateStyle(el) {
			return true
		}
		value, found = v, true
		return false
	})
	return value, found
}

// hasEstimateStyle reports whether a numeric leaf sits in an estimate
// container or is rendered bold.
func hasEstimateStyle(leaf *goquery.Selection) bool {
	parent := leaf.Parent()
	if parent.Length() > 0 {
		if parent.HasClass("ghx-stat-1") || parent.HasClass("ghx-estimate") ||
			strings.Contains(parent.AttrOr("class", ""), "statistic") {
			return true
		}
	}
	return isBold(leaf) || (parent.Length() > 0 && isBold(parent))
}

var fontWeight = regexp.MustCompile(`(?i)font-weight\s*:\s*([a-z0-9]+)`)

func isBold(el *goquery.Selection) bool {
	switch goquery.NodeName(el) {
	case "b", "strong":
		return true
	}
	m := fontWeight.FindStringSubmatch(el.AttrOr("style", ""))
	if m == nil {
		return false
	}
	switch weight := strings.ToLower(m[1]); weight {
	case "bold", "bolder":
		return true
	default:
		n, err := strconv.Atoi(weight)
		return err == nil && n >= 600
	}
}
