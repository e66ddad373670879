package extraction

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fenceOpener = regexp.MustCompile("^```[A-Za-z0-9_+-]*")
	fenceCloser = "```"
)

// StripCodeFence removes a leading Markdown fence (with or without a language
// tag) and a trailing bare fence, plus surrounding whitespace.
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if loc := fenceOpener.FindStringIndex(s); loc != nil {
		s = s[loc[1]:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, fenceCloser)
	return strings.TrimSpace(s)
}

// Normalize turns raw model text into a list of candidate items.
// It accepts a bare JSON array or an object whose "items" field is an array.
// Every other input, including invalid JSON, yields ok == false.
func Normalize(raw string) (candidates []any, ok bool) {
	var parsed any
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &parsed); err != nil {
		return nil, false
	}

	switch v := parsed.(type) {
	case []any:
		return v, true
	case map[string]any:
		items, isArray := v["items"].([]any)
		if !isArray {
			return nil, false
		}
		return items, true
	default:
		return nil, false
	}
}
