package scanner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tuannvm/jira-estimate/internal/models"
)

// MaxSummaryLength is the summary length limit, in runes
const MaxSummaryLength = 100

// SummarySelectors locate the summary element of a card
var SummarySelectors = []string{
	`[data-testid*="summary"]`,
	".ghx-summary",
	".ghx-inner",
	`[data-testid*="issue-field-summary"]`,
}

const keyElements = `a[href*="/browse/"], [data-testid*="issue-key"]`

// ExtractSummary returns the card summary. Without a summary element the card
// text minus its key elements is used, and the key itself when that is empty.
func ExtractSummary(card *goquery.Selection, key string) string {
	for _, selector := range SummarySelectors {
		if el := find(card, selector).First(); el.Length() > 0 {
			if text := collapseSpace(hostText(el, "")); text != "" {
				return truncate(text, MaxSummaryLength)
			}
		}
	}
	if text := collapseSpace(hostText(card, keyElements)); text != "" {
		return truncate(text, MaxSummaryLength)
	}
	return key
}

const typeElements = `[data-testid*="issue-type"], .ghx-type, [class*="issue-type"]`

// typeOrder lists the issue types by match priority. Subtask precedes task
// since "subtask" contains "task".
var typeOrder = []models.IssueType{
	models.IssueTypeStory,
	models.IssueTypeBug,
	models.IssueTypeSubtask,
	models.IssueTypeTask,
	models.IssueTypeEpic,
}

// ExtractIssueType classifies a card from its type icon or type element
func ExtractIssueType(card *goquery.Selection) models.IssueType {
	if img := find(card, "img[alt]").First(); img.Length() > 0 {
		if t, ok := matchIssueType(img.AttrOr("alt", "")); ok {
			return t
		}
	}

	text := card.AttrOr("class", "")
	if el := find(card, typeElements).First(); el.Length() > 0 {
		text = strings.Join([]string{
			el.Text(), el.AttrOr("title", ""), el.AttrOr("aria-label", ""), el.AttrOr("class", ""),
		}, " ")
	}
	if t, ok := matchIssueType(text); ok {
		return t
	}
	return models.IssueTypeTask
}

func matchIssueType(text string) (models.IssueType, bool) {
	text = strings.ReplaceAll(strings.ToLower(text), "sub-task", "subtask")
	for _, t := range typeOrder {
		if strings.Contains(text, string(t)) {
			return t, true
		}
	}
	return "", false
}
