package jira

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Strategy names recorded on a FieldResolution
const (
	StrategyEditMetaName  = "editmeta-name"
	StrategyCommonFieldID = "common-field-id"
	StrategyNumericCustom = "numeric-custom-field"
	StrategyDefaultField  = "default-field"
)

// DefaultNameHints are the lower-case substrings that identify an estimate
// field by its display name
var DefaultNameHints = []string{"story point", "estimate", "points"}

// FieldResolution records which field stores the estimate for one issue and
// which strategy found it
type FieldResolution struct {
	FieldID  string `json:"fieldId"`
	Strategy string `json:"strategy"`
}

// FieldStrategy is one step of the resolution chain. Resolve returns false
// when the strategy has no opinion.
type FieldStrategy struct {
	Name    string
	Resolve func(issue gjson.Result) (string, bool)
}

// FieldResolver tries its strategies in order; the first match wins
type FieldResolver struct {
	Strategies []FieldStrategy
}

// NewFieldResolver builds the standard chain: edit metadata names, known
// common ids, any numeric custom field and, if allowed, a fixed default id.
func NewFieldResolver(commonIDs []string, defaultID string, allowDefault bool) *FieldResolver {
	strategies := []FieldStrategy{
		EditMetaNameStrategy(DefaultNameHints...),
		CommonFieldStrategy(commonIDs),
		NumericCustomFieldStrategy("customfield_"),
	}
	if allowDefault && defaultID != "" {
		strategies = append(strategies, DefaultFieldStrategy(defaultID))
	}
	return &FieldResolver{Strategies: strategies}
}

// Resolve determines the estimate field of the raw issue representation
func (r *FieldResolver) Resolve(raw []byte) (FieldResolution, error) {
	if !gjson.ValidBytes(raw) {
		return FieldResolution{}, fmt.Errorf("%w: issue representation is not valid JSON", ErrFieldNotFound)
	}
	issue := gjson.ParseBytes(raw)
	for _, s := range r.Strategies {
		if id, ok := s.Resolve(issue); ok {
			return FieldResolution{FieldID: id, Strategy: s.Name}, nil
		}
	}
	return FieldResolution{}, ErrFieldNotFound
}

// EditMetaNameStrategy matches editable fields whose display name contains
// one of the hints, case-insensitively
func EditMetaNameStrategy(hints ...string) FieldStrategy {
	return FieldStrategy{
		Name: StrategyEditMetaName,
		Resolve: func(issue gjson.Result) (string, bool) {
			var found string
			issue.Get("editmeta.fields").ForEach(func(key, meta gjson.Result) bool {
				name := strings.ToLower(meta.Get("name").String())
				for _, hint := range hints {
					if strings.Contains(name, hint) {
						found = key.String()
						return false
					}
				}
				return true
			})
			return found, found != ""
		},
	}
}

// CommonFieldStrategy returns the first of ids present in the issue's fields
func CommonFieldStrategy(ids []string) FieldStrategy {
	return FieldStrategy{
		Name: StrategyCommonFieldID,
		Resolve: func(issue gjson.Result) (string, bool) {
			present := make(map[string]bool)
			issue.Get("fields").ForEach(func(key, _ gjson.Result) bool {
				present[key.String()] = true
				return true
			})
			for _, id := range ids {
				if present[id] {
					return id, true
				}
			}
			return "", false
		},
	}
}

// NumericCustomFieldStrategy returns the first field with the given prefix
// whose current value is a number
func NumericCustomFieldStrategy(prefix string) FieldStrategy {
	return FieldStrategy{
		Name: StrategyNumericCustom,
		Resolve: func(issue gjson.Result) (string, bool) {
			var found string
			issue.Get("fields").ForEach(func(key, value gjson.Result) bool {
				if strings.HasPrefix(key.String(), prefix) && value.Type == gjson.Number {
					found = key.String()
					return false
				}
				return true
			})
			return found, found != ""
		},
	}
}

// DefaultFieldStrategy always returns id, whether or not the issue has it
func DefaultFieldStrategy(id string) FieldStrategy {
	return FieldStrategy{
		Name: StrategyDefaultField,
		Resolve: func(gjson.Result) (string, bool) {
			return id, true
		},
	}
}
