package extraction

import (
	"math"
	"strings"

	"github.com/AnTengye/keydates/model"
)

// Sanitize maps untrusted candidates onto typed date events.
// Only the known fields are read; everything else is dropped. Each candidate
// is handled on its own and output order follows input order.
func Sanitize(candidates []any, fallbackSourceFile string) []model.DateEvent {
	events := make([]model.DateEvent, 0, len(candidates))
	for _, c := range candidates {
		events = append(events, sanitizeItem(c, fallbackSourceFile))
	}
	return events
}

func sanitizeItem(candidate any, fallbackSourceFile string) model.DateEvent {
	// Non-object candidates behave like an empty object.
	item, _ := candidate.(map[string]any)

	ev := model.DateEvent{
		DateText:   stringOr(item["date_text"], ""),
		DateISO:    trimmedOrNil(item["date_iso"]),
		Type:       model.EventOther,
		Summary:    stringOr(item["summary"], ""),
		SourceFile: fallbackSourceFile,
		Page:       pageOrNil(item["page"]),
		Section:    trimmedOrNil(item["section"]),
		Confidence: numberOrNil(item["confidence"]),
	}

	if t, ok := item["type"].(string); ok && model.EventType(t).Valid() {
		ev.Type = model.EventType(t)
	}
	if src := trimmedOrNil(item["source_file"]); src != nil {
		ev.SourceFile = *src
	}

	return ev
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}

func trimmedOrNil(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func numberOrNil(v any) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}

// pageOrNil accepts integral JSON numbers only.
func pageOrNil(v any) *int {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return nil
	}
	p := int(f)
	return &p
}
