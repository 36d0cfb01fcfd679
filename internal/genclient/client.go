// File: internal/genclient/client.go

// Package genclient turns form fields into realistic values by way of a
// generative text backend. A single batch request covers every field of a
// form; per-field requests exist as a fallback for fields the batch missed.
package genclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot-cli/api/schemas"
)

// Client wraps a TextCompleter with prompt construction, reply parsing and
// usage accounting. Safe for concurrent use.
type Client struct {
	completer schemas.TextCompleter
	logger    *zap.Logger
	tracker   *usageTracker
}

// Option customizes a Client.
type Option func(*Client)

// WithClock injects a time source for the usage window. Tests only.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.tracker = newUsageTracker(now) }
}

// New creates a Client backed by the given completer.
func New(completer schemas.TextCompleter, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		completer: completer,
		logger:    logger.Named("genclient"),
		tracker:   newUsageTracker(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateBatch requests values for every field in one round trip. The
// returned map holds only fields the backend actually answered for; callers
// fill the gaps through other means. A failed batch yields an empty map,
// never an error, so resolution can degrade instead of aborting.
func (c *Client) GenerateBatch(ctx context.Context, req schemas.GenerationRequest) schemas.GenerationResponse {
	if len(req.Fields) == 0 {
		return schemas.GenerationResponse{}
	}

	prompt := buildBatchPrompt(req)
	start := time.Now()
	raw, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		c.tracker.recordCall(true, 0, len(prompt), time.Since(start), true)
		c.logger.Warn("Batch generation failed, falling back to per-field resolution",
			zap.Int("fields", len(req.Fields)),
			zap.Error(err))
		return schemas.GenerationResponse{}
	}

	parsed, err := ExtractJSONObject(raw)
	if err != nil {
		c.tracker.recordCall(true, 0, len(prompt), time.Since(start), true)
		c.logger.Warn("Batch generation returned unparseable output",
			zap.Int("fields", len(req.Fields)),
			zap.Error(err))
		return schemas.GenerationResponse{}
	}

	// Keep only values for fields we actually asked about.
	out := make(schemas.GenerationResponse, len(req.Fields))
	for _, f := range req.Fields {
		if v, ok := parsed[f.FieldID]; ok && strings.TrimSpace(v) != "" {
			out[f.FieldID] = strings.TrimSpace(v)
		}
	}

	c.tracker.recordCall(true, len(req.Fields)-1, len(prompt), time.Since(start), false)
	c.logger.Info("Batch generation complete",
		zap.Int("requested", len(req.Fields)),
		zap.Int("answered", len(out)),
		zap.Duration("duration", time.Since(start)))
	return out
}

// GenerateOne requests a value for a single field.
func (c *Client) GenerateOne(ctx context.Context, field schemas.GenerationField, formContext string) (string, error) {
	prompt := buildSinglePrompt(field, formContext)
	start := time.Now()
	raw, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		c.tracker.recordCall(false, 0, len(prompt), time.Since(start), true)
		return "", fmt.Errorf("generation failed for field %q: %w", field.FieldID, err)
	}
	c.tracker.recordCall(false, 0, len(prompt), time.Since(start), false)

	value := CleanScalar(raw)
	if value == "" {
		return "", fmt.Errorf("backend returned an empty value for field %q", field.FieldID)
	}
	return value, nil
}

// Metrics returns a snapshot of backend usage.
func (c *Client) Metrics() UsageMetrics {
	return c.tracker.snapshot()
}

// CallHistory returns the per-call records accumulated so far.
func (c *Client) CallHistory() []CallRecord {
	return c.tracker.callHistory()
}

func buildBatchPrompt(req schemas.GenerationRequest) string {
	var b strings.Builder
	b.WriteString("You are filling out a web form with realistic test data.\n")
	if req.FormContext != "" {
		b.WriteString("Form context: ")
		b.WriteString(req.FormContext)
		b.WriteString("\n")
	}
	for _, instr := range req.PageInstructions {
		b.WriteString("Page instruction: ")
		b.WriteString(instr)
		b.WriteString("\n")
	}
	b.WriteString("\nGenerate a plausible value for each field below. When a field lists ")
	b.WriteString("options, answer with exactly one of them.\n")
	b.WriteString("Fields:\n")
	for _, f := range req.Fields {
		fmt.Fprintf(&b, "- id=%q type=%q context=%q", f.FieldID, f.SemanticHint, f.ContextText)
		if len(f.Options) > 0 {
			fmt.Fprintf(&b, " options=[%s]", strings.Join(f.Options, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nRespond with ONLY a JSON object mapping each field id to its value, ")
	b.WriteString("for example: {\"field_id\": \"value\"}. No commentary, no markdown.\n")
	return b.String()
}

func buildSinglePrompt(field schemas.GenerationField, formContext string) string {
	var b strings.Builder
	b.WriteString("You are filling out a web form with realistic test data.\n")
	if formContext != "" {
		b.WriteString("Form context: ")
		b.WriteString(formContext)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Generate one plausible value for a %q field described as: %s\n",
		field.SemanticHint, field.ContextText)
	if len(field.Options) > 0 {
		fmt.Fprintf(&b, "Answer with exactly one of: %s\n", strings.Join(field.Options, ", "))
	}
	b.WriteString("Respond with ONLY the value itself. No quotes, no commentary.\n")
	return b.String()
}
