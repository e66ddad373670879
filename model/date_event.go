package model

// EventType classifies what a key date means for the document.
type EventType string

// EventType constants
const (
	EventStart    EventType = "start"
	EventEnd      EventType = "end"
	EventDeadline EventType = "deadline"
	EventSign     EventType = "sign"
	EventPayment  EventType = "payment"
	EventOther    EventType = "other"
)

// EventTypes lists every recognized event type in schema order.
var EventTypes = []EventType{EventStart, EventEnd, EventDeadline, EventSign, EventPayment, EventOther}

// Valid reports whether t is one of the recognized event types.
func (t EventType) Valid() bool {
	switch t {
	case EventStart, EventEnd, EventDeadline, EventSign, EventPayment, EventOther:
		return true
	}
	return false
}

// DateEvent is a single sanitized date-bearing fact extracted from a document.
// Nullable fields are pointers so they serialize as JSON null.
type DateEvent struct {
	DateText   string    `json:"date_text"`
	DateISO    *string   `json:"date_iso"`
	Type       EventType `json:"type"`
	Summary    string    `json:"summary"`
	SourceFile string    `json:"source_file"`
	Page       *int      `json:"page"`
	Section    *string   `json:"section"`
	Confidence *float64  `json:"confidence"`
}

// ExtractionResult is the payload returned for one uploaded document.
type ExtractionResult struct {
	SourceFile string      `json:"source_file"`
	Items      []DateEvent `json:"items"`
}

// NewExtractionResult builds a result whose Items is never nil.
func NewExtractionResult(sourceFile string, items []DateEvent) *ExtractionResult {
	if items == nil {
		items = []DateEvent{}
	}
	return &ExtractionResult{SourceFile: sourceFile, Items: items}
}
