//go:build integration

package llm

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/libdb/internal/prompts"
	"github.com/jonathan/libdb/internal/types"
)

func TestGeminiClassifier_Integration(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client, err := NewClient(ctx, DefaultConfig(), apiKey)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	segments, err := prompts.Analysis("https://github.com/serde-rs/serde", types.Rust.String())
	require.NoError(t, err)

	got, err := NewClassifier(client).Classify(ctx, types.ClassificationRequest{Segments: segments})
	require.NoError(t, err)
	assert.NotEmpty(t, got.Description)
	assert.NotEmpty(t, got.Tags)
}
