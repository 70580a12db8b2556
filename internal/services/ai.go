package services

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TextGenerator turns a prompt into model text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AIKind selects a transformation.
type AIKind string

const (
	AISummarize AIKind = "summarize"
	AIImprove   AIKind = "improve"
	AITags      AIKind = "tags"
)

var aiPrompts = map[AIKind]string{
	AISummarize: "Summarize the following note clearly and concisely:",
	AIImprove:   "Improve the grammar and clarity of the following note without changing its meaning:",
	AITags:      "Generate 3-5 relevant short tags for the following note. Return ONLY a comma separated list:",
}

// AIResult is either Text (summarize, improve) or Tags (tags).
type AIResult struct {
	Kind AIKind
	Text string
	Tags []string
}

// Value returns the payload for the response body.
func (r AIResult) Value() any {
	if r.Kind == AITags {
		return r.Tags
	}
	return r.Text
}

// AIService sends note text to the model. Calls are bounded by a timeout
// and never retried.
type AIService struct {
	gen     TextGenerator
	timeout time.Duration
}

func NewAIService(gen TextGenerator, timeout time.Duration) *AIService {
	return &AIService{gen: gen, timeout: timeout}
}

// Transform runs the prompt for kind over content.
func (s *AIService) Transform(ctx context.Context, kind AIKind, content string) (AIResult, error) {
	prompt, ok := aiPrompts[kind]
	if !ok {
		return AIResult{}, invalid(fmt.Sprintf("unknown transformation %q", kind))
	}
	if strings.TrimSpace(content) == "" {
		return AIResult{}, invalid("content is required")
	}

	text, err := s.generate(ctx, prompt+"\n\n"+content)
	if err != nil {
		return AIResult{}, err
	}

	result := AIResult{Kind: kind}
	if kind == AITags {
		result.Tags = SplitTags(text)
	} else {
		result.Text = text
	}
	return result, nil
}

func (s *AIService) Summarize(ctx context.Context, content string) (string, error) {
	res, err := s.Transform(ctx, AISummarize, content)
	return res.Text, err
}

func (s *AIService) Improve(ctx context.Context, content string) (string, error) {
	res, err := s.Transform(ctx, AIImprove, content)
	return res.Text, err
}

func (s *AIService) Tags(ctx context.Context, content string) ([]string, error) {
	res, err := s.Transform(ctx, AITags, content)
	return res.Tags, err
}

// Ping asks the model for a greeting to check the upstream is reachable.
func (s *AIService) Ping(ctx context.Context) (string, error) {
	return s.generate(ctx, "say hello")
}

func (s *AIService) generate(ctx context.Context, prompt string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty response", ErrUpstream)
	}
	return text, nil
}

// SplitTags splits comma separated model output into trimmed, non-empty tags.
func SplitTags(text string) []string {
	return CleanTags(strings.Split(text, ","))
}
