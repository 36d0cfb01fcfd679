// File: internal/resolver/resolver.go

// Package resolver decides what value every field of a form receives. It
// walks a fixed chain of sources, from explicit user input down to hardcoded
// fallbacks, and guarantees that every field ends up with exactly one entry.
package resolver

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/formpilot-cli/api/schemas"
	"github.com/xkilldash9x/formpilot-cli/internal/classifier"
)

// singleRegenConcurrency bounds the fan-out of per-field fallback requests.
const singleRegenConcurrency = 4

// generator is the slice of the generative client the pipeline needs.
type generator interface {
	GenerateBatch(ctx context.Context, req schemas.GenerationRequest) schemas.GenerationResponse
	GenerateOne(ctx context.Context, field schemas.GenerationField, formContext string) (string, error)
}

// Resolver runs the value resolution pipeline.
type Resolver struct {
	gen            generator
	logger         *zap.Logger
	rng            *rand.Rand
	attachmentPath string
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithRand injects a seeded random source. Tests only.
func WithRand(rng *rand.Rand) Option {
	return func(r *Resolver) { r.rng = rng }
}

// WithAttachmentPath overrides the sentinel path used for file inputs.
func WithAttachmentPath(path string) Option {
	return func(r *Resolver) {
		if path != "" {
			r.attachmentPath = path
		}
	}
}

// New creates a Resolver. gen may be nil, in which case the generative tiers
// are skipped entirely and resolution is fully deterministic.
func New(gen generator, logger *zap.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		gen:            gen,
		logger:         logger.Named("resolver"),
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		attachmentPath: "test_file.txt",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve produces a value for every field of the form.
//
// Sources are consulted in order: explicit values, page credentials, batch
// generation, per-field generation, type rules, and a final fallback. Later
// sources never overwrite earlier ones.
func (r *Resolver) Resolve(ctx context.Context, form schemas.FormSchema, explicit map[string]string, pageCtx *schemas.PageContext) (schemas.ResolvedValueMap, error) {
	return r.resolveInto(ctx, form, explicit, pageCtx, nil)
}

func (r *Resolver) resolveInto(ctx context.Context, form schemas.FormSchema, explicit map[string]string, pageCtx *schemas.PageContext, pre schemas.ResolvedValueMap) (schemas.ResolvedValueMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	types := classifier.ClassifyForm(form)
	out := make(schemas.ResolvedValueMap, len(form.Fields))
	var pending []schemas.FieldSchema

	for _, f := range form.Fields {
		if v, ok := pre[f.ID]; ok {
			out[f.ID] = v
			continue
		}
		if v, ok := explicitValue(f, explicit); ok {
			out[f.ID] = schemas.ResolvedValue{FieldID: f.ID, Value: v, Source: schemas.SourceExplicit}
			continue
		}
		if v, ok := credentialValue(f, pageCtx); ok {
			out[f.ID] = schemas.ResolvedValue{FieldID: f.ID, Value: v, Source: schemas.SourceCredential}
			continue
		}
		pending = append(pending, f)
	}

	// Everything unresolved so far goes to the backend in one batch,
	// option sets included so it can state a preference among them.
	if r.gen != nil && len(pending) > 0 {
		r.runGenerativeTiers(ctx, pending, types, pageCtx, out)
	}

	// Type rules catch whatever is still unresolved.
	for _, f := range pending {
		if _, done := out[f.ID]; done {
			continue
		}
		if v, ok := r.ruleValue(f, types[f.ID]); ok {
			out[f.ID] = schemas.ResolvedValue{FieldID: f.ID, Value: v, Source: schemas.SourceRuleBased}
		}
	}

	// Last resort: optional fields stay empty, required ones get filler text
	// sized to their constraints.
	for _, f := range form.Fields {
		if _, done := out[f.ID]; done {
			continue
		}
		v := ""
		if f.Required {
			v = fitLength("N/A", f.Constraints)
		}
		out[f.ID] = schemas.ResolvedValue{FieldID: f.ID, Value: v, Source: schemas.SourceFallback}
	}

	r.logger.Debug("Resolution complete",
		zap.Int("fields", len(form.Fields)),
		zap.Int("pre_resolved", len(pre)))
	return out, nil
}

// runGenerativeTiers fills out via one batch call, then fans out per-field
// requests for anything the batch missed. Per-field failures are tolerated;
// the rule tier will cover them.
func (r *Resolver) runGenerativeTiers(ctx context.Context, fields []schemas.FieldSchema, types map[string]schemas.SemanticType, pageCtx *schemas.PageContext, out schemas.ResolvedValueMap) {
	req := schemas.GenerationRequest{FormContext: formContext(fields)}
	if pageCtx != nil {
		req.PageInstructions = pageCtx.Instructions
	}
	for _, f := range fields {
		req.Fields = append(req.Fields, generationField(f, types[f.ID]))
	}

	batch := r.gen.GenerateBatch(ctx, req)
	var missed []schemas.FieldSchema
	for _, f := range fields {
		if v, ok := batch[f.ID]; ok {
			out[f.ID] = schemas.ResolvedValue{
				FieldID: f.ID,
				Value:   fitLength(v, f.Constraints),
				Source:  schemas.SourceBatchGenerated,
			}
		} else {
			missed = append(missed, f)
		}
	}
	if len(missed) == 0 {
		return
	}

	r.logger.Debug("Batch left fields unanswered, regenerating individually",
		zap.Int("missed", len(missed)))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(singleRegenConcurrency)
	for _, f := range missed {
		f := f
		g.Go(func() error {
			v, err := r.gen.GenerateOne(gctx, generationField(f, types[f.ID]), req.FormContext)
			if err != nil {
				r.logger.Debug("Per-field generation failed", zap.String("field", f.ID), zap.Error(err))
				return nil
			}
			mu.Lock()
			out[f.ID] = schemas.ResolvedValue{
				FieldID: f.ID,
				Value:   fitLength(v, f.Constraints),
				Source:  schemas.SourceSingleGenerated,
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
}

func explicitValue(f schemas.FieldSchema, explicit map[string]string) (string, bool) {
	if explicit == nil {
		return "", false
	}
	if v, ok := explicit[f.ID]; ok {
		return v, true
	}
	if f.Name != "" {
		if v, ok := explicit[f.Name]; ok {
			return v, true
		}
	}
	return "", false
}

func credentialValue(f schemas.FieldSchema, pageCtx *schemas.PageContext) (string, bool) {
	if pageCtx == nil || !pageCtx.HasCredentials {
		return "", false
	}
	// Password check runs first; fields like "user_pass" match both keyword
	// sets and must take the password credential.
	if classifier.IsPasswordField(f) {
		if v := pageCtx.CredentialFor("password"); v != "" {
			return v, true
		}
		return "", false
	}
	if classifier.IsUsernameField(f) {
		if v := pageCtx.CredentialFor("username"); v != "" {
			return v, true
		}
	}
	return "", false
}

// generationField shapes one field for the backend request.
func generationField(f schemas.FieldSchema, st schemas.SemanticType) schemas.GenerationField {
	gf := schemas.GenerationField{
		FieldID:      f.ID,
		SemanticHint: string(st),
		ContextText:  contextText(f),
	}
	for _, o := range f.Options {
		if v := strings.TrimSpace(o.Text); v != "" {
			gf.Options = append(gf.Options, v)
		} else if o.Value != "" {
			gf.Options = append(gf.Options, o.Value)
		}
	}
	return gf
}

// formContext summarizes the form for prompt construction.
func formContext(fields []schemas.FieldSchema) string {
	labels := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Label != "" {
			labels = append(labels, f.Label)
		}
	}
	if len(labels) == 0 {
		return "web form"
	}
	return "form with fields: " + strings.Join(labels, "; ")
}
