package search

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
	"golang.org/x/time/rate"
)

// TavilyClient implements Gateway against the Tavily search API.
// A token-bucket limiter spaces requests so concurrent research branches
// do not trip provider-side throttling.
type TavilyClient struct {
	apiKey     string
	baseURL    string
	depth      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// TavilyConfig holds connection settings for the Tavily API.
type TavilyConfig struct {
	APIKey      string
	BaseURL     string
	SearchDepth string  // "basic" or "advanced"
	Timeout     time.Duration
	RatePerSec  float64 // sustained requests per second
	Burst       int
}

// DefaultTavilyConfig returns sensible defaults.
func DefaultTavilyConfig(apiKey string) TavilyConfig {
	return TavilyConfig{
		APIKey:      apiKey,
		BaseURL:     "https://api.tavily.com",
		SearchDepth: "basic",
		Timeout:     30 * time.Second,
		RatePerSec:  2,
		Burst:       5,
	}
}

// NewTavilyClient creates a Tavily search client.
func NewTavilyClient(cfg TavilyConfig, logger *zap.Logger) *TavilyClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.SearchDepth == "" {
		cfg.SearchDepth = "basic"
	}
	return &TavilyClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		depth:   cfg.SearchDepth,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		logger:  logger,
	}
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []struct {
		Title      string  `json:"title"`
		URL        string  `json:"url"`
		Content    string  `json:"content"`
		RawContent string  `json:"raw_content"`
		Score      float64 `json:"score"`
	} `json:"results"`
}

// Search runs one query and returns ranked results.
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if c.apiKey == "" {
		return nil, &ProviderError{Query: query, Err: fmt.Errorf("API key not configured")}
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	// Blocks until a token is available or the branch is cancelled.
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &ProviderError{Query: query, Err: fmt.Errorf("rate wait: %w", err)}
	}

	body, err := json.Marshal(tavilyRequest{
		APIKey:      c.apiKey,
		Query:       query,
		MaxResults:  maxResults,
		SearchDepth: c.depth,
	})
	if err != nil {
		return nil, &ProviderError{Query: query, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Query: query, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Query: query, Err: fmt.Errorf("call search API: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Query: query, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &ProviderError{Query: query, RateLimited: true, Err: fmt.Errorf("HTTP 429")}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{Query: query, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ProviderError{Query: query, Err: fmt.Errorf("decode response: %w", err)}
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, Result{
			Title:      r.Title,
			URL:        r.URL,
			Content:    r.Content,
			RawContent: r.RawContent,
		})
	}

	c.logger.Debug("tavily search",
		zap.String("query", query),
		zap.Int("results", len(results)),
		zap.Duration("latency", time.Since(start)),
	)

	return results, nil
}
