package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fjacquet/bill-csv/internal/literal"
	"fjacquet/bill-csv/internal/logging"
	"fjacquet/bill-csv/internal/models"
	"fjacquet/bill-csv/internal/parsererror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Invoice 1001329 Office Chair $1,100.00")

	assert.True(t, strings.HasPrefix(prompt, "Extract all the following values : "))
	assert.Contains(t, prompt, "from: Invoice 1001329 Office Chair $1,100.00\n")
	assert.Contains(t, prompt, "remove any dollar symbols")
	for _, key := range models.SchemaKeys {
		assert.Contains(t, prompt, key)
	}
	assert.NotContains(t, prompt, pagesPlaceholder)
}

func TestBuildPrompt_ExampleUsesSchemaKeys(t *testing.T) {
	prompt := BuildPrompt("")
	start := strings.Index(prompt, "{")
	require.GreaterOrEqual(t, start, 0)

	example, err := literal.ParseMapping(strings.TrimSpace(prompt[start:]))
	require.NoError(t, err)
	assert.Equal(t, models.SchemaKeys, example.Keys())
}

func TestBuildPrompt_TextContainingPlaceholder(t *testing.T) {
	prompt := BuildPrompt("see {pages}")
	assert.Contains(t, prompt, "from: see {pages}\n")
}

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIClient(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1/",
		Model:   "gpt-3.5-turbo",
		Timeout: 5 * time.Second,
	}, logging.NewMockLogger())
}

func TestOpenAIClient_Complete(t *testing.T) {
	var got chatRequest
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"{'AMOUNT': '$1,100.00'}\n"}}]}`)
	})

	out, err := client.Complete(context.Background(), "the prompt")
	require.NoError(t, err)

	assert.Equal(t, "{'AMOUNT': '$1,100.00'}\n", out)
	assert.Equal(t, "gpt-3.5-turbo", got.Model)
	assert.Equal(t, float32(0), got.Temperature)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "the prompt", got.Messages[0].Content)
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		retryable  bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":"slow down"}`, wantStatus: 429, retryable: true},
		{name: "server error", status: http.StatusBadGateway, body: "bad gateway", wantStatus: 502, retryable: true},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":"invalid key"}`, wantStatus: 401, retryable: false},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, wantStatus: 200, retryable: false},
		{name: "malformed body", status: http.StatusOK, body: `not json`, wantStatus: 200, retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, tt.body)
			})

			_, err := client.Complete(context.Background(), "p")
			require.Error(t, err)

			var remote *parsererror.RemoteServiceError
			require.ErrorAs(t, err, &remote)
			assert.Equal(t, ProviderOpenAI, remote.Provider)
			assert.Equal(t, tt.wantStatus, remote.StatusCode)
			assert.Equal(t, tt.retryable, remote.Retryable())
			assert.Equal(t, models.FailureRemoteService, parsererror.KindOf(err))
		})
	}
}

func TestOpenAIClient_MissingAPIKey(t *testing.T) {
	called := false
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	client.cfg.APIKey = ""

	_, err := client.Complete(context.Background(), "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, parsererror.ErrMissingAPIKey)
	assert.False(t, called)
}

func TestOpenAIClient_Deadline(t *testing.T) {
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, "p")
	require.Error(t, err)
	assert.Equal(t, models.FailureTimeout, parsererror.KindOf(err))
}

func TestNewOpenAIClient_Defaults(t *testing.T) {
	client := NewOpenAIClient(OpenAIConfig{APIKey: "k"}, nil)
	assert.Equal(t, defaultOpenAIBaseURL, client.cfg.BaseURL)
	assert.Equal(t, 60*time.Second, client.http.Timeout)
}

func TestGeminiClient_MissingAPIKey(t *testing.T) {
	client := NewGeminiClient(GeminiConfig{Model: "gemini-1.5-flash"}, logging.NewMockLogger())

	_, err := client.Complete(context.Background(), "p")
	require.Error(t, err)

	var remote *parsererror.RemoteServiceError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, ProviderGemini, remote.Provider)
	assert.ErrorIs(t, err, parsererror.ErrMissingAPIKey)
	assert.False(t, remote.Retryable())
	assert.NoError(t, client.Close())
}

func TestStatusCode(t *testing.T) {
	wrapped := fmt.Errorf("generate: %w", &googleapi.Error{Code: 429, Message: "quota"})
	assert.Equal(t, 429, statusCode(wrapped))
	assert.Equal(t, 0, statusCode(errors.New("dial tcp: refused")))
}

func TestRecordExtractor_Extract(t *testing.T) {
	completer := NewMockCompleter("{'AMOUNT': '5'}", nil)
	extractor := NewRecordExtractor(completer, ExtractorConfig{Provider: ProviderOpenAI}, logging.NewMockLogger())

	out, err := extractor.Extract(context.Background(), "page text")
	require.NoError(t, err)

	assert.Equal(t, "{'AMOUNT': '5'}", out)
	require.Len(t, completer.Prompts(), 1)
	assert.Equal(t, BuildPrompt("page text"), completer.Prompts()[0])
}

func TestRecordExtractor_Retries(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		failures   int
		failure    error
		wantCalls  int
		wantErr    bool
	}{
		{name: "no retry by default", maxRetries: 0, failures: 1, failure: &parsererror.RemoteServiceError{Provider: "openai", StatusCode: 503}, wantCalls: 1, wantErr: true},
		{name: "recovers after transient failures", maxRetries: 2, failures: 2, failure: &parsererror.RemoteServiceError{Provider: "openai", StatusCode: 503}, wantCalls: 3, wantErr: false},
		{name: "gives up after max retries", maxRetries: 2, failures: 5, failure: &parsererror.RemoteServiceError{Provider: "openai", StatusCode: 429}, wantCalls: 3, wantErr: true},
		{name: "permanent failure is not retried", maxRetries: 3, failures: 5, failure: &parsererror.RemoteServiceError{Provider: "openai", StatusCode: 400}, wantCalls: 1, wantErr: true},
		{name: "untyped errors are retried", maxRetries: 1, failures: 1, failure: errors.New("connection reset"), wantCalls: 2, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			completer := &MockCompleter{Fn: func(ctx context.Context, prompt string) (string, error) {
				calls++
				if calls <= tt.failures {
					return "", tt.failure
				}
				return "{}", nil
			}}
			logger := logging.NewMockLogger()
			extractor := NewRecordExtractor(completer, ExtractorConfig{
				Provider:     ProviderOpenAI,
				MaxRetries:   tt.maxRetries,
				RetryBackoff: time.Millisecond,
			}, logger)

			out, err := extractor.Extract(context.Background(), "text")

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				require.Error(t, err)
				var remote *parsererror.RemoteServiceError
				assert.ErrorAs(t, err, &remote)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "{}", out)
			assert.Len(t, logger.GetEntriesByLevel("WARN"), tt.failures)
		})
	}
}

func TestRecordExtractor_WrapsUntypedErrors(t *testing.T) {
	extractor := NewRecordExtractor(NewMockCompleter("", errors.New("boom")), ExtractorConfig{Provider: ProviderGemini}, logging.NewMockLogger())

	_, err := extractor.Extract(context.Background(), "text")

	var remote *parsererror.RemoteServiceError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, ProviderGemini, remote.Provider)
	assert.EqualError(t, remote.Err, "boom")
}

func TestRecordExtractor_RateLimitRespectsDeadline(t *testing.T) {
	completer := NewMockCompleter("{}", nil)
	extractor := NewRecordExtractor(completer, ExtractorConfig{Provider: ProviderOpenAI, RequestsPerMinute: 1}, logging.NewMockLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := extractor.Extract(ctx, "first")
	require.NoError(t, err)

	_, err = extractor.Extract(ctx, "second")
	require.Error(t, err)
	assert.Equal(t, models.FailureTimeout, parsererror.KindOf(err))
	assert.Equal(t, 1, completer.Calls())
}

func TestRecordExtractor_CanceledContext(t *testing.T) {
	completer := NewMockCompleter("{}", nil)
	extractor := NewRecordExtractor(completer, ExtractorConfig{Provider: ProviderOpenAI, MaxRetries: 3}, logging.NewMockLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := extractor.Extract(ctx, "text")
	require.Error(t, err)
	assert.Equal(t, models.FailureCanceled, parsererror.KindOf(err))
	assert.Equal(t, 1, completer.Calls())
}
