package schemas

import (
	"context"
	"time"
)

// UIDriver abstracts the browser automation layer. Implementations must be
// safe to call from a single goroutine; callers serialize access.
type UIDriver interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Fill(ctx context.Context, selector, value string) error
	SelectOption(ctx context.Context, selector, value string) error
	SetChecked(ctx context.Context, selector string, checked bool) error
	Click(ctx context.Context, selector string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	AttachFile(ctx context.Context, selector, path string) error
	StorageState(ctx context.Context) ([]byte, error)
	RestoreStorageState(ctx context.Context, state []byte) error
	Close(ctx context.Context) error
}

// TextCompleter is the minimal surface of a generative text backend.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// FormScanner produces form schemas for the page a driver is on.
type FormScanner interface {
	ScanForms(ctx context.Context, d UIDriver) ([]FormSchema, error)
}

// PageAnalyzer extracts page-level context relevant to resolution.
type PageAnalyzer interface {
	AnalyzePage(ctx context.Context, d UIDriver) (*PageContext, error)
}
