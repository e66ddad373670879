// Package extraction turns untrusted model output into typed key-date events.
//
// A run makes at most two model calls: the extraction call and, only when its
// output cannot be normalized, one repair call that sees nothing but the
// previous output and the schema. If repair fails too the run ends with an
// empty list instead of an error.
package extraction

import (
	"context"
	"time"

	"github.com/AnTengye/keydates/model"
	"github.com/AnTengye/keydates/pkg/logger"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Default limits
const (
	DefaultDocCharLimit  = 12000
	DefaultMaxPageHints  = 8
	DefaultPageHintChars = 800
)

// Config holds the fixed values a Pipeline is built with.
type Config struct {
	DocCharLimit  int
	MaxPageHints  int
	PageHintChars int
	// Instruction replaces the default extraction instruction when non-empty.
	Instruction string
}

func (c *Config) defaults() {
	if c.DocCharLimit <= 0 {
		c.DocCharLimit = DefaultDocCharLimit
	}
	if c.MaxPageHints <= 0 {
		c.MaxPageHints = DefaultMaxPageHints
	}
	if c.PageHintChars <= 0 {
		c.PageHintChars = DefaultPageHintChars
	}
}

// ModelClient sends chat messages to a model and returns the raw text reply.
type ModelClient interface {
	Complete(ctx context.Context, messages []model.ChatMessage) (string, error)
}

// State is a step of the extraction state machine.
type State int

// States of a run. Done and Empty are terminal.
const (
	StateFirstAttempt State = iota
	StateRepairing
	StateDone
	StateEmpty
)

func (s State) String() string {
	switch s {
	case StateFirstAttempt:
		return "first_attempt"
	case StateRepairing:
		return "repairing"
	case StateDone:
		return "done"
	case StateEmpty:
		return "empty"
	}
	return "unknown"
}

// Outcome is the result of one run.
type Outcome struct {
	Items    []model.DateEvent
	Final    State
	Repaired bool // a repair call was issued
	Calls    int
}

// Pipeline runs extraction with a single repair fallback.
type Pipeline struct {
	client  ModelClient
	prompts *PromptBuilder
	schema  *jsonschema.Schema
}

// New creates a Pipeline.
func New(client ModelClient, cfg Config) *Pipeline {
	return &Pipeline{
		client:  client,
		prompts: NewPromptBuilder(cfg),
		schema:  compileItemSchema(),
	}
}

// Run extracts date events from doc. The only error it returns comes from
// the first model call; malformed output and repair failures end in an
// empty, non-nil list.
func (p *Pipeline) Run(ctx context.Context, doc model.Document) (*Outcome, error) {
	start := time.Now()
	// Issued model calls are not cancelled mid-flight; the HTTP client timeout bounds them.
	callCtx := context.WithoutCancel(ctx)

	out := &Outcome{}
	var raw string
	state := StateFirstAttempt

	for {
		switch state {
		case StateFirstAttempt:
			var err error
			out.Calls++
			raw, err = p.client.Complete(callCtx, p.prompts.Build(doc))
			if err != nil {
				logger.Error(ctx, "extraction.first_attempt.failed", "error", err)
				return nil, err
			}
			if items, ok := p.validate(ctx, raw, doc.SourceFile); ok {
				out.Items = items
				state = StateDone
				continue
			}
			logger.Warn(ctx, "extraction.first_attempt.unusable", "raw_bytes", len(raw))
			state = StateRepairing

		case StateRepairing:
			out.Repaired = true
			out.Calls++
			repaired, err := p.client.Complete(callCtx, p.prompts.BuildRepair(raw))
			if err != nil {
				logger.Warn(ctx, "extraction.repair.failed", "error", err)
				state = StateEmpty
				continue
			}
			if items, ok := p.validate(ctx, repaired, doc.SourceFile); ok {
				out.Items = items
				state = StateDone
				continue
			}
			logger.Warn(ctx, "extraction.repair.unusable", "raw_bytes", len(repaired))
			state = StateEmpty

		case StateDone:
			out.Final = state
			logger.Info(ctx, "extraction.done",
				"items", len(out.Items),
				"repaired", out.Repaired,
				"calls", out.Calls,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return out, nil

		case StateEmpty:
			out.Final = state
			out.Items = []model.DateEvent{}
			logger.Info(ctx, "extraction.empty",
				"calls", out.Calls,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return out, nil
		}
	}
}

// validate normalizes and sanitizes raw output. ok is false only when the
// output has no usable structure; an empty list is a valid answer.
func (p *Pipeline) validate(ctx context.Context, raw, sourceFile string) ([]model.DateEvent, bool) {
	candidates, ok := Normalize(raw)
	if !ok {
		return nil, false
	}
	if drift := checkDrift(p.schema, candidates); drift.NonConformed > 0 {
		logger.Warn(ctx, "extraction.schema_drift",
			"total", drift.Total,
			"non_conforming", drift.NonConformed,
			"first_error", drift.FirstError,
		)
	}
	return Sanitize(candidates, sourceFile), true
}
