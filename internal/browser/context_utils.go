// File: internal/browser/context_utils.go
package browser

import (
	"context"
)

// CombineContext creates a new context derived from ctx1 (primary/master
// context) that is canceled when *either* ctx1 or ctx2 (secondary/operational
// context) is canceled. It inherits values from ctx1, which is crucial for
// chromedp operations: ctx1 carries the CDP connection info, ctx2 carries the
// operational deadline.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)

	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
