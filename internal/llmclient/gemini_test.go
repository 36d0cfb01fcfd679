// File: internal/llmclient/gemini_test.go
package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/formpilot-cli/internal/config"
)

// -- Test Setup Helpers --

func getValidLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		APIKey:            "test-api-key",
		Model:             "gemini-2.5-flash",
		Endpoint:          "https://generativelanguage.googleapis.com/v1beta/models",
		APITimeout:        10 * time.Second,
		Temperature:       0.7,
		TopP:              0.95,
		TopK:              40,
		MaxTokens:         4096,
		RequestsPerMinute: 6000, // effectively unthrottled in tests
	}
}

// setupGeminiClient rigs up a GeminiClient pointed at a mock HTTP server.
// It returns the client, the mock server, and a log observer.
func setupGeminiClient(t *testing.T, handler http.HandlerFunc) (*GeminiClient, *httptest.Server, *observer.ObservedLogs) {
	t.Helper()
	if handler == nil {
		handler = func(w http.ResponseWriter, r *http.Request) {
			t.Log("Warning: Unexpected HTTP request in test.")
			w.WriteHeader(http.StatusNotFound)
		}
	}
	server := httptest.NewServer(handler)

	loggerCore, observedLogs := observer.New(zap.InfoLevel)
	logger := zap.New(loggerCore)

	cfg := getValidLLMConfig()
	cfg.Endpoint = server.URL

	client, err := NewGeminiClient(cfg, logger)
	require.NoError(t, err, "NewGeminiClient initialization failed")

	// Ensure tests fail fast on unexpected hangs
	client.httpClient.Timeout = 5 * time.Second

	t.Cleanup(server.Close)
	return client, server, observedLogs
}

func successPayload(text string) geminiResponsePayload {
	return geminiResponsePayload{
		Candidates: []struct {
			Content      geminiContent `json:"content"`
			FinishReason string        `json:"finishReason"`
		}{
			{
				Content:      geminiContent{Parts: []geminiPart{{Text: text}}},
				FinishReason: "STOP",
			},
		},
	}
}

// -- Test Cases: Initialization --

func TestNewGeminiClient_Success(t *testing.T) {
	cfg := getValidLLMConfig()
	client, err := NewGeminiClient(cfg, zap.NewNop())

	require.NoError(t, err)
	require.NotNil(t, client)

	assert.Equal(t, cfg.APIKey, client.apiKey)
	assert.Equal(t, cfg.APITimeout, client.httpClient.Timeout)
	assert.Equal(t,
		"https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent",
		client.endpoint)
	assert.NotNil(t, client.backoffFactory, "Backoff factory should be initialized")
}

func TestNewGeminiClient_Failure_MissingAPIKey(t *testing.T) {
	cfg := getValidLLMConfig()
	cfg.APIKey = ""

	client, err := NewGeminiClient(cfg, zap.NewNop())

	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "API Key is required")
}

// -- Test Cases: Complete - Success --

func TestComplete_Success(t *testing.T) {
	expectedResponseText := "This is the generated content."

	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "test-api-key", r.Header.Get("x-goog-api-key"))

		body, _ := io.ReadAll(r.Body)
		var payload geminiRequestPayload
		err := json.Unmarshal(body, &payload)
		require.NoError(t, err, "Server received invalid JSON payload")
		require.Len(t, payload.Contents, 1)
		assert.Equal(t, "user", payload.Contents[0].Role)
		assert.Equal(t, "Generate a value.", payload.Contents[0].Parts[0].Text)

		resp := successPayload(expectedResponseText)
		resp.UsageMetadata.PromptTokenCount = 100
		resp.UsageMetadata.CandidatesTokenCount = 50
		resp.UsageMetadata.TotalTokenCount = 150

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}

	client, _, observedLogs := setupGeminiClient(t, handler)

	response, err := client.Complete(context.Background(), "Generate a value.")

	assert.NoError(t, err)
	assert.Equal(t, expectedResponseText, response)

	require.Equal(t, 1, observedLogs.Len(), "Expected one log entry for successful generation")
	logEntry := observedLogs.All()[0]
	assert.Equal(t, "LLM generation complete (Gemini)", logEntry.Message)
	assert.Equal(t, int64(100), logEntry.ContextMap()["prompt_tokens"])
	assert.Equal(t, int64(50), logEntry.ContextMap()["completion_tokens"])
}

// -- Test Cases: Complete - Error Handling & Retries --

func TestComplete_RetryOnTransientErrors(t *testing.T) {
	var attemptCounter int32
	expectedAttempts := 3

	handler := func(w http.ResponseWriter, r *http.Request) {
		attempt := atomic.AddInt32(&attemptCounter, 1)
		if int(attempt) < expectedAttempts {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Service temporarily unavailable."))
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(successPayload("Success after retry"))
	}

	client, _, observedLogs := setupGeminiClient(t, handler)
	client.backoffFactory = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 10 * time.Millisecond
		b.MaxElapsedTime = 5 * time.Second
		return b
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	response, err := client.Complete(ctx, "prompt")

	assert.NoError(t, err)
	assert.Equal(t, "Success after retry", response)
	assert.Equal(t, int32(expectedAttempts), atomic.LoadInt32(&attemptCounter))

	errorLogs := observedLogs.FilterLevelExact(zap.ErrorLevel)
	assert.Equal(t, expectedAttempts-1, errorLogs.Len(), "Expected ERROR logs for the failed attempts")
}

func TestComplete_NoRetryOnPermanentErrors(t *testing.T) {
	var attemptCounter int32

	handler := func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attemptCounter, 1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("API Key Invalid"))
	}

	client, _, observedLogs := setupGeminiClient(t, handler)

	response, err := client.Complete(context.Background(), "prompt")

	assert.Error(t, err)
	assert.Empty(t, response)
	assert.Contains(t, err.Error(), "gemini API error: status 403")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attemptCounter), "Permanent errors must not trigger retries")

	errorLogs := observedLogs.FilterLevelExact(zap.ErrorLevel)
	require.Equal(t, 1, errorLogs.Len())
	assert.Equal(t, "Gemini API returned error status", errorLogs.All()[0].Message)
}

func TestComplete_Failure_SafetyBlock(t *testing.T) {
	var attemptCounter int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attemptCounter, 1)
		resp := geminiResponsePayload{
			Candidates: []struct {
				Content      geminiContent `json:"content"`
				FinishReason string        `json:"finishReason"`
			}{
				{Content: geminiContent{Parts: []geminiPart{}}, FinishReason: "SAFETY"},
			},
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}

	client, _, _ := setupGeminiClient(t, handler)

	response, err := client.Complete(context.Background(), "prompt")

	assert.Error(t, err)
	assert.Empty(t, response)
	assert.Contains(t, err.Error(), "gemini API blocked the request (Reason: SAFETY)")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attemptCounter), "Safety blocks must not trigger retries")
}

func TestComplete_Failure_NoCandidates(t *testing.T) {
	var attemptCounter int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attemptCounter, 1)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(geminiResponsePayload{})
	}

	client, _, _ := setupGeminiClient(t, handler)

	response, err := client.Complete(context.Background(), "prompt")

	assert.Error(t, err)
	assert.Empty(t, response)
	assert.Contains(t, err.Error(), "gemini API returned no candidates")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attemptCounter))
}

func TestComplete_Failure_InvalidJSONResponse(t *testing.T) {
	var attemptCounter int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attemptCounter, 1)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{invalid json:"))
	}

	client, _, _ := setupGeminiClient(t, handler)

	response, err := client.Complete(context.Background(), "prompt")

	assert.Error(t, err)
	assert.Empty(t, response)
	assert.Contains(t, err.Error(), "failed to decode response payload")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attemptCounter))
}

func TestComplete_ContextCancellation(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests) // transient, forces retry loop
	}

	client, _, _ := setupGeminiClient(t, handler)
	client.backoffFactory = func() backoff.BackOff {
		return backoff.NewConstantBackOff(10 * time.Second)
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	startTime := time.Now()
	response, err := client.Complete(ctx, "prompt")
	duration := time.Since(startTime)

	assert.Error(t, err)
	assert.Empty(t, response)
	assert.True(t, errors.Is(err, context.Canceled), "Error should be context.Canceled, but got: %v", err)
	assert.Less(t, duration, 1*time.Second, "Operation should abort quickly upon cancellation")
}
