package extraction

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaDescription is the output contract shown to the model in both the
// extraction and the repair prompt.
const SchemaDescription = `{"items":[{"date_text":"string","date_iso":"string|null","type":"start|end|deadline|sign|payment|other","summary":"string","source_file":"string","page":number|null,"section":"string|null","confidence":number|null}]}`

// dateEventSchema is the strict JSON Schema for one candidate item.
// Sanitize stays lenient; this schema only measures how far the model drifted.
const dateEventSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["date_text", "type"],
  "properties": {
    "date_text":   {"type": "string"},
    "date_iso":    {"type": ["string", "null"]},
    "type":        {"enum": ["start", "end", "deadline", "sign", "payment", "other"]},
    "summary":     {"type": "string"},
    "source_file": {"type": "string"},
    "page":        {"type": ["integer", "null"]},
    "section":     {"type": ["string", "null"]},
    "confidence":  {"type": ["number", "null"]}
  }
}`

func compileItemSchema() *jsonschema.Schema {
	return jsonschema.MustCompileString("date_event.json", dateEventSchema)
}

// DriftReport summarizes candidates that did not match the strict item schema.
type DriftReport struct {
	Total        int
	NonConformed int
	FirstError   string
}

// checkDrift validates each candidate against the strict schema.
func checkDrift(schema *jsonschema.Schema, candidates []any) DriftReport {
	report := DriftReport{Total: len(candidates)}
	for i, c := range candidates {
		if err := schema.Validate(c); err != nil {
			report.NonConformed++
			if report.FirstError == "" {
				report.FirstError = fmt.Sprintf("item %d: %v", i, err)
			}
		}
	}
	return report
}
