// File: internal/filler/executor.go

// Package filler applies resolved values to a live page. One failing field
// never aborts the pass; failures are collected and reported so partially
// filled forms remain inspectable.
package filler

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot-cli/api/schemas"
	"github.com/xkilldash9x/formpilot-cli/internal/classifier"
	"github.com/xkilldash9x/formpilot-cli/internal/optionmatch"
)

// Executor drives field-by-field fill execution against a UIDriver.
type Executor struct {
	driver       schemas.UIDriver
	logger       *zap.Logger
	fieldTimeout time.Duration
	submitWait   time.Duration
	fileExists   func(string) bool
}

// Option customizes an Executor.
type Option func(*Executor)

// WithFieldTimeout bounds each per-field driver interaction.
func WithFieldTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.fieldTimeout = d
		}
	}
}

// WithSubmitWait sets the settle time after clicking submit.
func WithSubmitWait(d time.Duration) Option {
	return func(e *Executor) { e.submitWait = d }
}

// WithFileCheck injects the attachment existence probe. Tests only.
func WithFileCheck(fn func(string) bool) Option {
	return func(e *Executor) { e.fileExists = fn }
}

// New creates an Executor bound to a driver.
func New(driver schemas.UIDriver, logger *zap.Logger, opts ...Option) *Executor {
	e := &Executor{
		driver:       driver,
		logger:       logger.Named("filler"),
		fieldTimeout: 10 * time.Second,
		submitWait:   3 * time.Second,
		fileExists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fill applies every resolved value to the page. Fields are processed in
// form order; a failure is recorded and the pass moves on. Nothing filled
// before a failure is rolled back.
func (e *Executor) Fill(ctx context.Context, form schemas.FormSchema, values schemas.ResolvedValueMap) *schemas.FillReport {
	report := &schemas.FillReport{TotalFields: len(form.Fields)}

	for _, f := range form.Fields {
		rv, ok := values[f.ID]
		if !ok {
			report.Errors = append(report.Errors, schemas.FieldError{
				FieldID:  f.ID,
				Selector: f.Selector,
				Reason:   "no resolved value",
			})
			continue
		}

		skipped, err := e.applyField(ctx, f, rv)
		switch {
		case err != nil:
			e.logger.Warn("Field fill failed",
				zap.String("field", f.ID),
				zap.String("selector", f.Selector),
				zap.Error(err))
			report.Errors = append(report.Errors, schemas.FieldError{
				FieldID:  f.ID,
				Selector: f.Selector,
				Reason:   err.Error(),
			})
		case skipped:
			report.SkippedCount++
		default:
			report.FilledCount++
		}
	}

	e.logger.Info("Fill pass complete",
		zap.Int("total", report.TotalFields),
		zap.Int("filled", report.FilledCount),
		zap.Int("skipped", report.SkippedCount),
		zap.Int("errors", len(report.Errors)))
	return report
}

// applyField writes one value through the driver. The returned bool reports
// that the field was deliberately left alone.
func (e *Executor) applyField(ctx context.Context, f schemas.FieldSchema, rv schemas.ResolvedValue) (bool, error) {
	// Optional fields the pipeline could not serve stay untouched so the
	// page's own defaults survive.
	if rv.Value == "" && rv.Source == schemas.SourceFallback {
		return true, nil
	}

	fctx, cancel := context.WithTimeout(ctx, e.fieldTimeout)
	defer cancel()

	switch classifier.Classify(f) {
	case schemas.TypeCheckbox:
		return false, e.driver.SetChecked(fctx, f.Selector, CheckboxTruthy(rv.Value))

	case schemas.TypeSelect:
		o, err := e.matchOption(f, rv.Value)
		if err != nil {
			return false, err
		}
		return false, e.driver.SelectOption(fctx, f.Selector, o.Value)

	case schemas.TypeRadio:
		// Setting .value on a radio input does not check it; the matched
		// group member is checked by name+value instead.
		o, err := e.matchOption(f, rv.Value)
		if err != nil {
			return false, err
		}
		return false, e.driver.SetChecked(fctx, radioSelector(f, o), true)

	case schemas.TypeFile:
		if !e.fileExists(rv.Value) {
			e.logger.Debug("Attachment path does not exist, skipping upload",
				zap.String("field", f.ID),
				zap.String("path", rv.Value))
			return true, nil
		}
		return false, e.driver.AttachFile(fctx, f.Selector, rv.Value)

	case schemas.TypeDate:
		return false, e.driver.Fill(fctx, f.Selector, NormalizeDate(rv.Value))

	case schemas.TypeTime:
		return false, e.driver.Fill(fctx, f.Selector, NormalizeTime(rv.Value))

	default:
		return false, e.driver.Fill(fctx, f.Selector, rv.Value)
	}
}

// matchOption resolves the desired value against the field's option set,
// falling back to a category default when nothing matches.
func (e *Executor) matchOption(f schemas.FieldSchema, desired string) (schemas.Option, error) {
	o, ok := optionmatch.Match(desired, f.Options)
	if !ok {
		o, ok = optionmatch.DefaultFor(f.Label+" "+f.Name, f.Options)
		if !ok {
			return schemas.Option{}, fmt.Errorf("no option matches %q", desired)
		}
		e.logger.Debug("No option matched resolved value, using default",
			zap.String("field", f.ID),
			zap.String("wanted", desired),
			zap.String("picked", o.Value))
	}
	return o, nil
}

// radioSelector addresses the group member carrying the matched value. Radio
// options share a name; the field's own selector points at a single input.
func radioSelector(f schemas.FieldSchema, o schemas.Option) string {
	if f.Name == "" {
		return f.Selector
	}
	return fmt.Sprintf(`input[type="radio"][name=%q][value=%q]`, f.Name, o.Value)
}

// Submit clicks the form's submit control and waits for the page to settle.
func (e *Executor) Submit(ctx context.Context, form schemas.FormSchema) error {
	if form.SubmitSelector == "" {
		return fmt.Errorf("form has no submit selector")
	}

	sctx, cancel := context.WithTimeout(ctx, e.fieldTimeout)
	defer cancel()

	visible, err := e.driver.WaitVisible(sctx, form.SubmitSelector, e.fieldTimeout)
	if err != nil {
		return fmt.Errorf("waiting for submit control: %w", err)
	}
	if !visible {
		return fmt.Errorf("submit control %q never became visible", form.SubmitSelector)
	}
	if err := e.driver.Click(sctx, form.SubmitSelector); err != nil {
		return fmt.Errorf("clicking submit: %w", err)
	}

	if e.submitWait > 0 {
		select {
		case <-time.After(e.submitWait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
