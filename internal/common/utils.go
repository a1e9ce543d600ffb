package common

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/tidwall/gjson"
)

var (
	objectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	arrayPattern  = regexp.MustCompile(`(?s)\[.*\]`)
)

// StringPtr returns a pointer to the given string
func StringPtr(s string) *string {
	return &s
}

// ExtractJSON extracts JSON content from a text string
// It looks for content between { and } or [ and ] brackets
func ExtractJSON(text string) (string, error) {
	if match := objectPattern.FindString(text); match != "" && gjson.Valid(match) {
		return match, nil
	}
	if match := arrayPattern.FindString(text); match != "" && gjson.Valid(match) {
		return match, nil
	}
	return "", fmt.Errorf("no valid JSON found in text")
}

// ReturnJSONError writes a JSON error response with the given status code and message
func ReturnJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    statusCode,
			"message": message,
		},
	}
	_ = json.NewEncoder(w).Encode(errorResponse)
}

// WriteJSON writes v as a JSON response
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
