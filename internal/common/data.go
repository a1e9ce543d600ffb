package common

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"

	log "github.com/tuannvm/jira-estimate/internal/logging"
	"github.com/tuannvm/jira-estimate/internal/models"
)

// ExtractCommand extracts a scanner command from a message. DataParts are
// tried before TextParts; a TextPart may wrap the JSON object in other text.
func ExtractCommand(message protocol.Message) (models.Command, error) {
	if len(message.Parts) == 0 {
		return models.Command{}, fmt.Errorf("message has no parts")
	}

	for _, part := range message.Parts {
		var dp *protocol.DataPart
		switch v := part.(type) {
		case protocol.DataPart:
			dp = &v
		case *protocol.DataPart:
			dp = v
		}
		if dp == nil || dp.Data == nil {
			continue
		}
		raw, err := json.Marshal(dp.Data)
		if err != nil {
			log.Debugf("Failed to marshal DataPart.Data: %v", err)
			continue
		}
		if cmd, err := ParseCommand(string(raw)); err == nil {
			return cmd, nil
		}
	}

	for _, part := range message.Parts {
		text, ok := TextOf(part)
		if !ok || text == "" {
			continue
		}
		payload, err := ExtractJSON(text)
		if err != nil {
			continue
		}
		if cmd, err := ParseCommand(payload); err == nil {
			return cmd, nil
		}
	}

	return models.Command{}, fmt.Errorf("could not extract a command from message")
}

// ParseCommand reads a command from a JSON object. The issue key may be sent
// as issueKey, issue_key, ticketId or key; a missing or null value clears the
// estimate.
func ParseCommand(payload string) (models.Command, error) {
	if !gjson.Valid(payload) {
		return models.Command{}, fmt.Errorf("invalid JSON payload")
	}
	doc := gjson.Parse(payload)
	if !doc.IsObject() {
		return models.Command{}, fmt.Errorf("command payload is not an object")
	}

	cmd := models.Command{
		Command:  strings.ToLower(strings.TrimSpace(firstString(doc, "command", "type", "action"))),
		IssueKey: strings.TrimSpace(firstString(doc, "issueKey", "issue_key", "ticketId", "key")),
	}
	if cmd.Command == "" {
		return models.Command{}, fmt.Errorf("no command found in payload")
	}

	switch value := doc.Get("value"); value.Type {
	case gjson.Number:
		cmd.Value = models.Float64Ptr(value.Float())
	case gjson.Null:
	default:
		return models.Command{}, fmt.Errorf("estimate value must be a number or null, got %s", value.Raw)
	}
	return cmd, nil
}

// CommandMessage wraps a command in a message the scanner agent understands
func CommandMessage(cmd models.Command) (protocol.Message, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return protocol.Message{}, fmt.Errorf("failed to marshal command: %w", err)
	}
	return protocol.Message{
		Parts: []protocol.Part{protocol.NewTextPart(string(data))},
	}, nil
}

// TextOf returns the text of a TextPart, given by value or pointer
func TextOf(part protocol.Part) (string, bool) {
	switch v := part.(type) {
	case protocol.TextPart:
		return v.Text, true
	case *protocol.TextPart:
		if v == nil {
			return "", false
		}
		return v.Text, true
	}
	return "", false
}

func firstString(doc gjson.Result, paths ...string) string {
	for _, path := range paths {
		if r := doc.Get(path); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}
