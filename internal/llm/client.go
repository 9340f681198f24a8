package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client talks to an OpenAI-compatible chat-completions endpoint. DeepSeek,
// OpenAI and most gateways expose this protocol; the model identifier is
// passed per call so one client can serve query generation, reflection and
// finalization with different models.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds connection settings for the chat-completions endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults (DeepSeek's public endpoint).
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:  apiKey,
		BaseURL: "https://api.deepseek.com/v1",
		Timeout: 120 * time.Second,
	}
}

// NewClient creates a chat-completions client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate sends a prompt and returns the completion text.
func (c *Client) Generate(ctx context.Context, prompt, modelID string) (string, error) {
	return c.complete(ctx, prompt, modelID, nil)
}

// GenerateStructured requests a JSON object and decodes it into out.
// Providers that ignore response_format tend to wrap JSON in markdown
// fences or prose, so the payload is located before decoding.
func (c *Client) GenerateStructured(ctx context.Context, prompt string, out interface{}, modelID string) error {
	text, err := c.complete(ctx, prompt, modelID, &responseFormat{Type: "json_object"})
	if err != nil {
		return err
	}
	return DecodeStructured(text, out, modelID)
}

func (c *Client) complete(ctx context.Context, prompt, modelID string, format *responseFormat) (string, error) {
	if c.apiKey == "" {
		return "", &Error{Model: modelID, Err: fmt.Errorf("API key not configured")}
	}

	reqBody := chatRequest{
		Model:          modelID,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		Temperature:    0.7,
		ResponseFormat: format,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", &Error{Model: modelID, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &Error{Model: modelID, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Model: modelID, Err: fmt.Errorf("call chat completions: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Model: modelID, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{Model: modelID, Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncateForLog(string(raw), 300))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &Error{Model: modelID, Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.Error != nil {
		return "", &Error{Model: modelID, Err: fmt.Errorf("provider error: %s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return "", &Error{Model: modelID, Err: fmt.Errorf("no completion returned")}
	}

	c.logger.Debug("llm completion",
		zap.String("model", modelID),
		zap.Int("tokens", parsed.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)),
	)

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// DecodeStructured extracts a JSON object from model output and decodes it
// into out. Handles ```json fences and prose around the object.
func DecodeStructured(text string, out interface{}, modelID string) error {
	payload := stripFences(text)
	if start, end := strings.Index(payload, "{"), strings.LastIndex(payload, "}"); start != -1 && end > start {
		payload = payload[start : end+1]
	}
	dec := json.NewDecoder(strings.NewReader(payload))
	if err := dec.Decode(out); err != nil {
		return &SchemaViolation{Model: modelID, Raw: truncateForLog(text, 500), Err: err}
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
