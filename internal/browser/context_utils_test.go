// File: internal/browser/context_utils_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCombineContext verifies the behavior of CombineContext.
func TestCombineContext(t *testing.T) {
	type ctxKey string
	const key ctxKey = "testKey"
	const value = "testValue"

	t.Run("InheritsValuesFromPrimary", func(t *testing.T) {
		ctx1 := context.WithValue(context.Background(), key, value)
		ctx2 := context.Background()

		combinedCtx, cancel := CombineContext(ctx1, ctx2)
		defer cancel()

		assert.Equal(t, value, combinedCtx.Value(key), "Combined context should inherit values from ctx1")
		assert.Nil(t, combinedCtx.Err(), "Context should not be done yet")
	})

	t.Run("CancelledByPrimary", func(t *testing.T) {
		ctx1, cancel1 := context.WithCancel(context.Background())
		ctx2 := context.Background()

		combinedCtx, cancelCombined := CombineContext(ctx1, ctx2)
		defer cancelCombined()

		cancel1()

		assert.Eventually(t, func() bool {
			return combinedCtx.Err() != nil
		}, 100*time.Millisecond, 10*time.Millisecond, "Combined context should be cancelled when ctx1 is cancelled")
		assert.ErrorIs(t, combinedCtx.Err(), context.Canceled)
	})

	t.Run("CancelledBySecondary", func(t *testing.T) {
		ctx1 := context.Background()
		ctx2, cancel2 := context.WithCancel(context.Background())

		combinedCtx, cancelCombined := CombineContext(ctx1, ctx2)
		defer cancelCombined()

		cancel2()

		assert.Eventually(t, func() bool {
			return combinedCtx.Err() != nil
		}, 100*time.Millisecond, 10*time.Millisecond, "Combined context should be cancelled when ctx2 is cancelled")
		assert.ErrorIs(t, combinedCtx.Err(), context.Canceled)
	})

	t.Run("DeadlineFromPrimary", func(t *testing.T) {
		deadline := time.Now().Add(50 * time.Millisecond)
		ctx1, cancel1 := context.WithDeadline(context.Background(), deadline)
		defer cancel1()
		ctx2 := context.Background()

		combinedCtx, cancelCombined := CombineContext(ctx1, ctx2)
		defer cancelCombined()

		combinedDeadline, ok := combinedCtx.Deadline()
		require.True(t, ok, "Combined context should have a deadline")
		assert.InDelta(t, deadline.UnixNano(), combinedDeadline.UnixNano(), float64(10*time.Millisecond.Nanoseconds()))

		<-combinedCtx.Done()
		assert.ErrorIs(t, combinedCtx.Err(), context.DeadlineExceeded)
	})

	t.Run("DeadlineFromSecondary", func(t *testing.T) {
		ctx1, cancel1 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel1()

		deadline2 := time.Now().Add(50 * time.Millisecond)
		ctx2, cancel2 := context.WithDeadline(context.Background(), deadline2)
		defer cancel2()

		combinedCtx, cancelCombined := CombineContext(ctx1, ctx2)
		defer cancelCombined()

		<-combinedCtx.Done()

		assert.ErrorIs(t, ctx2.Err(), context.DeadlineExceeded, "ctx2 should have exceeded deadline")
		// The combined context is built with WithCancel(ctx1), so when the
		// internal goroutine fires, the error is Canceled, not DeadlineExceeded.
		assert.ErrorIs(t, combinedCtx.Err(), context.Canceled)
	})

	t.Run("ExplicitCancellation", func(t *testing.T) {
		combinedCtx, cancelCombined := CombineContext(context.Background(), context.Background())
		cancelCombined()

		assert.ErrorIs(t, combinedCtx.Err(), context.Canceled)
	})
}
