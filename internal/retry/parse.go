package retry

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JSON decodes a JSON body into T, tolerating a surrounding ```json fence.
func JSON[T any](body string) (T, error) {
	var v T
	cleaned := StripFence(body)
	if cleaned == "" {
		return v, ErrEmptyBody
	}
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return v, fmt.Errorf("decode json body: %w", err)
	}
	return v, nil
}

// StripFence removes a markdown code fence and its language tag.
func StripFence(body string) string {
	s := strings.TrimSpace(body)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
