// Package ai adapts the Gemini generative-text API to the plain
// prompt-in, text-out contract used by the services.
package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/notekeep/apiserver/config"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("model returned no text")

// GeminiClient wraps the Gemini SDK client and model name.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient constructs a Gemini client from config.
func NewGeminiClient(ctx context.Context, cfg config.AIConfig) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	return &GeminiClient{
		client: client,
		model:  model,
	}, nil
}

// Generate sends a single-turn prompt and returns the response text.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Model returns the configured model name.
func (g *GeminiClient) Model() string {
	return g.model
}
