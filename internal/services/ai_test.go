package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAIService_SummarizeUsesPrompt(t *testing.T) {
	gen := &fakeGenerator{reply: "A short summary."}
	svc := NewAIService(gen, time.Second)

	out, err := svc.Summarize(context.Background(), "long note text")
	require.NoError(t, err)
	assert.Equal(t, "A short summary.", out)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Summarize the following note clearly and concisely:")
	assert.Contains(t, gen.prompts[0], "long note text")
}

func TestAIService_Improve(t *testing.T) {
	gen := &fakeGenerator{reply: "Better text."}
	svc := NewAIService(gen, time.Second)

	res, err := svc.Transform(context.Background(), AIImprove, "bad text")
	require.NoError(t, err)
	assert.Equal(t, "Better text.", res.Value())
	assert.Contains(t, gen.prompts[0], "Improve the grammar and clarity")
}

func TestAIService_TagsSplit(t *testing.T) {
	gen := &fakeGenerator{reply: "go, web ,, api"}
	svc := NewAIService(gen, time.Second)

	tags, err := svc.Tags(context.Background(), "note")
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "web", "api"}, tags)
	assert.Contains(t, gen.prompts[0], "Return ONLY a comma separated list:")
}

func TestAIService_Validation(t *testing.T) {
	gen := &fakeGenerator{reply: "x"}
	svc := NewAIService(gen, time.Second)

	_, err := svc.Transform(context.Background(), AIKind("translate"), "text")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Summarize(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrValidation)

	assert.Zero(t, gen.calls())
}

func TestAIService_UpstreamErrorNotRetried(t *testing.T) {
	gen := &fakeGenerator{err: errBoom}
	svc := NewAIService(gen, time.Second)

	_, err := svc.Summarize(context.Background(), "text")
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, 1, gen.calls())
}

func TestAIService_EmptyResponse(t *testing.T) {
	gen := &fakeGenerator{reply: "  "}
	svc := NewAIService(gen, time.Second)

	_, err := svc.Improve(context.Background(), "text")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestAIService_Timeout(t *testing.T) {
	gen := &fakeGenerator{block: true}
	svc := NewAIService(gen, 20*time.Millisecond)

	start := time.Now()
	_, err := svc.Summarize(context.Background(), "text")
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAIService_Ping(t *testing.T) {
	gen := &fakeGenerator{reply: "Hello!"}
	svc := NewAIService(gen, time.Second)

	reply, err := svc.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello!", reply)
	assert.Equal(t, "say hello", gen.prompts[0])
}

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{}, SplitTags(""))
	assert.Equal(t, []string{"one"}, SplitTags("one"))
	assert.Equal(t, []string{"a", "b c"}, SplitTags(" a ,b c, "))
}
