package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fjacquet/bill-csv/internal/logging"
	"fjacquet/bill-csv/internal/parsererror"

	"github.com/google/uuid"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIConfig configures the chat-completions client.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// OpenAIClient implements Completer with the OpenAI chat-completions API.
type OpenAIClient struct {
	cfg    OpenAIConfig
	http   *http.Client
	logger logging.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float32       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewOpenAIClient creates a client, filling in the default endpoint and timeout.
func NewOpenAIClient(cfg OpenAIConfig, logger logging.Logger) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	return &OpenAIClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Complete sends the prompt as a single user message and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", &parsererror.RemoteServiceError{Provider: ProviderOpenAI, Err: parsererror.ErrMissingAPIKey}
	}

	reqID := uuid.New().String()
	start := time.Now()
	log := c.logger.WithFields(
		logging.Field{Key: logging.FieldRequestID, Value: reqID},
		logging.Field{Key: logging.FieldProvider, Value: ProviderOpenAI},
		logging.Field{Key: logging.FieldModel, Value: c.cfg.Model},
	)

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("X-Request-ID", reqID)

	log.Debug("Sending completion request")

	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).Warn("Completion request failed")
		return "", &parsererror.RemoteServiceError{Provider: ProviderOpenAI, Err: fmt.Errorf("send request: %w", err)}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close response body")
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &parsererror.RemoteServiceError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	log = log.WithFields(
		logging.Field{Key: logging.FieldStatus, Value: resp.StatusCode},
		logging.Field{Key: logging.FieldDuration, Value: time.Since(start).Milliseconds()},
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("Completion request rejected")
		return "", &parsererror.RemoteServiceError{
			Provider:   ProviderOpenAI,
			StatusCode: resp.StatusCode,
			Err:        errors.New(snippet(string(raw), 200)),
		}
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", &parsererror.RemoteServiceError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(cr.Choices) == 0 {
		return "", &parsererror.RemoteServiceError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Err: errors.New("no choices in response")}
	}

	content := cr.Choices[0].Message.Content
	log.WithFields(logging.Field{Key: logging.FieldTextLength, Value: len(content)}).Debug("Completion received")
	return content, nil
}
