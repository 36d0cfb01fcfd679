// File: internal/orchestrator/orchestrator.go

// Package orchestrator sequences a fill run: authenticate, scan for forms,
// analyze the page, resolve values, execute the fill, optionally submit.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot-cli/api/schemas"
	"github.com/xkilldash9x/formpilot-cli/internal/filler"
	"github.com/xkilldash9x/formpilot-cli/internal/resolver"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// authenticator is the slice of the auth gate the orchestrator needs.
type authenticator interface {
	EnsureAuthenticated(ctx context.Context, driver schemas.UIDriver, targetURL string) error
}

// FormResult is the outcome for one form on the page.
type FormResult struct {
	FormIndex int                      `json:"form_index"`
	Values    schemas.ResolvedValueMap `json:"values"`
	Report    *schemas.FillReport      `json:"report"`
	Submitted bool                     `json:"submitted"`
}

// RunResult is the outcome of one fill run against one URL.
type RunResult struct {
	RunID string       `json:"run_id"`
	URL   string       `json:"url"`
	Forms []FormResult `json:"forms"`
}

// Succeeded reports whether every form filled cleanly.
func (r *RunResult) Succeeded() bool {
	for _, f := range r.Forms {
		if !f.Report.Succeeded() {
			return false
		}
	}
	return true
}

// Orchestrator owns one driver and runs fill passes through it.
type Orchestrator struct {
	driver   schemas.UIDriver
	scanner  schemas.FormScanner
	analyzer schemas.PageAnalyzer
	resolver *resolver.Resolver
	executor *filler.Executor
	gate     authenticator
	logger   *zap.Logger

	submit          bool
	invalidScenario string
	appSelector     string
	appWaitTimeout  time.Duration
}

// Params bundles the orchestrator's collaborators.
type Params struct {
	Driver   schemas.UIDriver
	Scanner  schemas.FormScanner
	Analyzer schemas.PageAnalyzer
	Resolver *resolver.Resolver
	Executor *filler.Executor
	Gate     authenticator // optional
	Logger   *zap.Logger

	Submit          bool
	InvalidScenario string

	// AppReadySelector, when set, must become visible after navigation
	// before any form is scanned. Low-code app pages render their form
	// container asynchronously, long after the page load event.
	AppReadySelector string
	AppReadyTimeout  time.Duration
}

// New assembles an Orchestrator.
func New(p Params) (*Orchestrator, error) {
	if p.Driver == nil || p.Scanner == nil || p.Resolver == nil || p.Executor == nil {
		return nil, fmt.Errorf("driver, scanner, resolver and executor are all required")
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	appTimeout := p.AppReadyTimeout
	if appTimeout <= 0 {
		appTimeout = 30 * time.Second
	}
	return &Orchestrator{
		driver:          p.Driver,
		scanner:         p.Scanner,
		analyzer:        p.Analyzer,
		resolver:        p.Resolver,
		executor:        p.Executor,
		gate:            p.Gate,
		logger:          logger.Named("orchestrator"),
		submit:          p.Submit,
		invalidScenario: p.InvalidScenario,
		appSelector:     p.AppReadySelector,
		appWaitTimeout:  appTimeout,
	}, nil
}

// Run fills every form found at targetURL. A page without forms is a valid
// (empty) result, not an error.
func (o *Orchestrator) Run(ctx context.Context, targetURL string, explicit map[string]string) (*RunResult, error) {
	result := &RunResult{RunID: uuid.NewString(), URL: targetURL}
	log := o.logger.With(zap.String("run_id", result.RunID), zap.String("url", targetURL))

	if o.gate != nil {
		if err := o.gate.EnsureAuthenticated(ctx, o.driver, targetURL); err != nil {
			return nil, fmt.Errorf("authentication: %w", err)
		}
	} else if err := o.driver.Navigate(ctx, targetURL); err != nil {
		return nil, fmt.Errorf("navigation: %w", err)
	}

	if o.appSelector != "" {
		visible, err := o.driver.WaitVisible(ctx, o.appSelector, o.appWaitTimeout)
		if err != nil {
			return nil, fmt.Errorf("waiting for app container %q: %w", o.appSelector, err)
		}
		if !visible {
			return nil, fmt.Errorf("app container %q did not appear within %s", o.appSelector, o.appWaitTimeout)
		}
		log.Debug("App container ready", zap.String("selector", o.appSelector))
	}

	forms, err := o.scanner.ScanForms(ctx, o.driver)
	if err != nil {
		return nil, fmt.Errorf("scanning forms: %w", err)
	}
	if len(forms) == 0 {
		log.Warn("No forms detected on page")
		return result, nil
	}

	var pageCtx *schemas.PageContext
	if o.analyzer != nil {
		pageCtx, err = o.analyzer.AnalyzePage(ctx, o.driver)
		if err != nil {
			log.Warn("Page analysis failed, resolving without page context", zap.Error(err))
			pageCtx = nil
		}
	}

	for i, form := range forms {
		formResult, err := o.runForm(ctx, i, form, explicit, pageCtx, log)
		if err != nil {
			return nil, err
		}
		result.Forms = append(result.Forms, formResult)
	}
	return result, nil
}

func (o *Orchestrator) runForm(ctx context.Context, index int, form schemas.FormSchema, explicit map[string]string, pageCtx *schemas.PageContext, log *zap.Logger) (FormResult, error) {
	var (
		values schemas.ResolvedValueMap
		err    error
	)
	if o.invalidScenario != "" {
		values, err = o.resolver.ResolveInvalid(ctx, form, o.invalidScenario, explicit, pageCtx)
	} else {
		values, err = o.resolver.Resolve(ctx, form, explicit, pageCtx)
	}
	if err != nil {
		return FormResult{}, fmt.Errorf("resolving form %d: %w", index, err)
	}

	report := o.executor.Fill(ctx, form, values)
	fr := FormResult{FormIndex: index, Values: values, Report: report}

	if o.submit && report.Succeeded() {
		if err := o.executor.Submit(ctx, form); err != nil {
			log.Warn("Submit failed", zap.Int("form", index), zap.Error(err))
		} else {
			fr.Submitted = true
		}
	} else if o.submit {
		log.Warn("Skipping submit, fill pass had errors",
			zap.Int("form", index),
			zap.Int("errors", len(report.Errors)))
	}
	return fr, nil
}

// FileScanner loads form schemas from a JSON file instead of probing the
// live DOM; useful when an external scan already produced the schema.
type FileScanner struct {
	Path string
}

// ScanForms reads the schema file. It accepts either a single form object
// or an array of forms.
func (s *FileScanner) ScanForms(_ context.Context, _ schemas.UIDriver) ([]schemas.FormSchema, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}

	var forms []schemas.FormSchema
	if err := json.Unmarshal(data, &forms); err == nil {
		return forms, nil
	}
	var single schemas.FormSchema
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("parsing schema file %s: %w", s.Path, err)
	}
	return []schemas.FormSchema{single}, nil
}

// StaticContext is a PageAnalyzer that returns a fixed page context.
type StaticContext struct {
	Context *schemas.PageContext
}

// AnalyzePage returns the configured context as-is.
func (s *StaticContext) AnalyzePage(_ context.Context, _ schemas.UIDriver) (*schemas.PageContext, error) {
	return s.Context, nil
}
