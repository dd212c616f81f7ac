package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fjacquet/bill-csv/internal/logging"
	"fjacquet/bill-csv/internal/parsererror"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
}

// GeminiClient implements Completer with the Google Gemini API.
// The underlying client is created on first use and reused afterwards.
type GeminiClient struct {
	cfg    GeminiConfig
	logger logging.Logger

	mu     sync.Mutex
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiClient creates a Gemini completer.
func NewGeminiClient(cfg GeminiConfig, logger logging.Logger) *GeminiClient {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	return &GeminiClient{cfg: cfg, logger: logger}
}

func (c *GeminiClient) ensureModel(ctx context.Context) (*genai.GenerativeModel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.model != nil {
		return c.model, nil
	}
	if c.cfg.APIKey == "" {
		return nil, parsererror.ErrMissingAPIKey
	}

	// The client outlives the request that created it.
	client, err := genai.NewClient(context.WithoutCancel(ctx), option.WithAPIKey(c.cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := client.GenerativeModel(c.cfg.Model)
	model.SetTemperature(c.cfg.Temperature)

	c.client = client
	c.model = model
	return model, nil
}

// Complete sends the prompt and returns the text parts of the first candidate.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	model, err := c.ensureModel(ctx)
	if err != nil {
		return "", &parsererror.RemoteServiceError{Provider: ProviderGemini, Err: err}
	}

	start := time.Now()
	log := c.logger.WithFields(
		logging.Field{Key: logging.FieldProvider, Value: ProviderGemini},
		logging.Field{Key: logging.FieldModel, Value: c.cfg.Model},
	)
	log.Debug("Sending completion request")

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		log.WithError(err).Warn("Completion request failed")
		return "", &parsererror.RemoteServiceError{Provider: ProviderGemini, StatusCode: statusCode(err), Err: err}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &parsererror.RemoteServiceError{Provider: ProviderGemini, Err: errors.New("no candidates in response")}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	log.WithFields(
		logging.Field{Key: logging.FieldDuration, Value: time.Since(start).Milliseconds()},
		logging.Field{Key: logging.FieldTextLength, Value: sb.Len()},
	).Debug("Completion received")
	return sb.String(), nil
}

// Close releases the underlying client, if one was created.
func (c *GeminiClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	c.model = nil
	return err
}

func statusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
