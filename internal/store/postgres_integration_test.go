//go:build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/libdb/internal/types"
)

func setupTestDB(t *testing.T) *Postgres {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := Connect(ctx, dbURL)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to DB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPostgres_TopicAndLibrary(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// Unique names keep runs against a shared database independent.
	topic := "topic-" + uuid.NewString()
	ref := types.LibraryReference{Name: "owner/" + uuid.NewString(), Language: types.Rust}

	require.NoError(t, db.AddCatalogTopic(ctx, topic))
	require.NoError(t, db.AddCatalogTopic(ctx, topic))
	require.NoError(t, db.AddTopicLibrary(ctx, topic, ref))
	require.NoError(t, db.AddTopicLibrary(ctx, topic, ref))
	require.NoError(t, db.AppendTopicFailure(ctx, topic, "timeout"))
	require.NoError(t, db.AppendTopicFailure(ctx, topic, "quota"))

	rec, err := db.LoadTopic(ctx, topic)
	require.NoError(t, err)
	assert.Equal(t, []types.LibraryReference{ref}, rec.Libraries)
	assert.Equal(t, []string{"timeout", "quota"}, rec.Failures)

	state, err := db.LoadLibrary(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, types.Unknown{}, state)

	analyzed := types.Analyzed{Repository: "https://github.com/" + ref.Name, Description: "d", Topics: []string{topic, "web"}}
	require.NoError(t, db.SaveLibrary(ctx, ref, types.Failed{Message: "x"}))
	require.NoError(t, db.SaveLibrary(ctx, ref, analyzed))

	state, err = db.LoadLibrary(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, types.Analyzed{Repository: analyzed.Repository, Description: "d", Topics: types.TagSet(analyzed.Topics)}, state)

	require.NoError(t, db.AddCatalogLibrary(ctx, ref))
	catalog, err := db.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Contains(t, catalog.Libraries, ref)
	assert.Contains(t, catalog.Topics, topic)
}
