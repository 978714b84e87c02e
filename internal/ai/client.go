package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/fundsight/tally/pkg/formatting"
)

// Client is an OpenAI-compatible chat completions client implementing Classifier.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[string]
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a classifier client from the given configuration.
func New(cfg Config, logger *slog.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "ai-classifier",
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.TotalFailures*2 >= counts.Requests
		},
	})

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.TimeoutDuration()},
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60.0), 1),
		logger:  logger.With("system", "ai"),
	}
}

func (c *Client) DetectPeriods(ctx context.Context, text, filename string) (*Detection, error) {
	content, err := c.complete(ctx, detectSystemPrompt, detectUserPrompt(c.truncate(text), filename))
	if err != nil {
		return nil, err
	}

	detection, err := formatting.Parse[Detection](content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClassification, err)
	}

	sanitize(&detection)

	c.logger.Info(
		"periods detected",
		"filename", filename,
		"periods", len(detection.Periods),
		"confidence", detection.Confidence,
	)
	return &detection, nil
}

func (c *Client) ExtractFinancials(ctx context.Context, text string, year, month int) (*Financials, error) {
	content, err := c.complete(ctx, financialsSystemPrompt, financialsUserPrompt(c.truncate(text), year, month))
	if err != nil {
		return nil, err
	}

	fin, err := formatting.Parse[Financials](content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClassification, err)
	}

	c.logger.Info(
		"financials extracted",
		"year", year,
		"month", month,
		"revenue", fin.Revenue,
		"expenses", fin.Expenses,
	)
	return &fin, nil
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
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
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", ErrClassification, err)
	}

	content, err := c.breaker.Execute(func() (string, error) {
		return c.post(ctx, system, user)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrClassification, err)
	}
	return content, nil
}

func (c *Client) post(ctx context.Context, system, user string) (string, error) {
	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("completion status %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}

	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) truncate(text string) string {
	if len(text) <= c.cfg.MaxPromptChars {
		return text
	}

	// Back up to a rune boundary so the cut never leaves a partial
	// multi-byte character at the end of the prompt.
	cut := c.cfg.MaxPromptChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// sanitize clamps confidence scores to [0, 100] and drops periods outside
// the supported calendar range so malformed model output never reaches the
// tag layer.
func sanitize(d *Detection) {
	d.Confidence = clamp(d.Confidence)

	valid := d.Periods[:0]
	for _, p := range d.Periods {
		if p.Year < 1900 || p.Year > 2100 || p.Month < 1 || p.Month > 12 {
			continue
		}
		p.Confidence = clamp(p.Confidence)
		valid = append(valid, p)
	}
	d.Periods = valid

	if d.Tags == nil {
		d.Tags = []string{}
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
