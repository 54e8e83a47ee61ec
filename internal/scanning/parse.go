package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports a model response that did not match the expected
// line-item schema. It is terminal for the frame: retrying the same
// malformed answer is pointless, so the caller records a warning instead.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing model response: %s", e.Reason)
}

// parseLineItems parses the JSON list response from the model. Models
// sometimes wrap the list in markdown fences or surround it with prose, so
// the list is located by its outermost brackets before unmarshaling.
// Entries without a name carry no usable information and are dropped.
func parseLineItems(text string) ([]LineItem, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "[")
	if startIdx == -1 {
		return nil, &ParseError{Reason: "no JSON list found in response"}
	}
	endIdx := strings.LastIndex(text, "]")
	if endIdx == -1 || endIdx < startIdx {
		return nil, &ParseError{Reason: "invalid JSON list in response"}
	}
	text = text[startIdx : endIdx+1]

	var raw []LineItem
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("unmarshaling json: %v", err)}
	}

	items := make([]LineItem, 0, len(raw))
	for _, item := range raw {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
