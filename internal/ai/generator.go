// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/mealwise/internal/breaker"
	"github.com/tomtom215/mealwise/internal/models"
	"github.com/tomtom215/mealwise/internal/upstream"
)

// ServiceName labels AI errors, metrics and the breaker.
const ServiceName = "ai"

// Generator turns a prompt into the model's raw text answer.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// HTTPGeneratorConfig configures an HTTPGenerator.
type HTTPGeneratorConfig struct {
	// BaseURL of an OpenAI-compatible API, without the /chat/completions suffix.
	BaseURL string

	APIKey string

	// Model name sent with each request.
	Model string

	// Temperature for sampling. Low values keep rankings stable.
	// Default: 0.2
	Temperature float64

	// HTTPClient overrides the transport. Attempt timeouts come from the
	// caller's context, so the client itself has none by default.
	HTTPClient *http.Client

	Breaker breaker.Config
}

// HTTPGenerator calls an OpenAI-style chat completions endpoint behind a
// circuit breaker.
type HTTPGenerator struct {
	cfg     HTTPGeneratorConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[string]
}

// NewHTTPGenerator creates a generator for cfg.
func NewHTTPGenerator(cfg HTTPGeneratorConfig) *HTTPGenerator {
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.2
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	bc := cfg.Breaker
	if bc.IsSuccessful == nil {
		bc.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, context.Canceled) }
	}
	return &HTTPGenerator{
		cfg:     cfg,
		client:  client,
		breaker: breaker.New[string]("ai-generator", bc),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends prompt and returns the first choice's content. An open
// breaker is reported as a retryable ExternalServiceError.
func (g *HTTPGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := g.breaker.Execute(func() (string, error) {
		return g.do(ctx, prompt)
	})
	if breaker.Rejected(err) {
		return "", &models.ExternalServiceError{Service: ServiceName, Retryable: true, RetryAfter: time.Second, Cause: err}
	}
	return out, err
}

func (g *HTTPGenerator) do(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:    g.cfg.Temperature,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", upstream.TransportError(ServiceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", upstream.StatusError(ServiceName, resp)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", models.NewParseError("chat completion envelope", "", err)
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return "", models.NewParseError("chat completion has no content", "", nil)
	}
	return decoded.Choices[0].Message.Content, nil
}
