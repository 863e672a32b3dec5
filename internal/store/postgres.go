package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/libdb/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS catalog_libraries (
	name       TEXT NOT NULL,
	language   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (name, language)
);

CREATE TABLE IF NOT EXISTS catalog_topics (
	name       TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS topic_libraries (
	topic      TEXT NOT NULL,
	name       TEXT NOT NULL,
	language   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (topic, name, language)
);

CREATE TABLE IF NOT EXISTS topic_failures (
	id          BIGSERIAL PRIMARY KEY,
	topic       TEXT NOT NULL,
	message     TEXT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS topic_failures_topic_idx ON topic_failures (topic, id);

CREATE TABLE IF NOT EXISTS libraries (
	name        TEXT NOT NULL,
	language    TEXT NOT NULL,
	state       TEXT NOT NULL,
	repository  TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	topics      JSONB NOT NULL DEFAULT '[]',
	message     TEXT NOT NULL DEFAULT '',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (name, language)
);
`

// Postgres wraps a PostgreSQL connection pool
type Postgres struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database and creates the schema
func Connect(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool
func (db *Postgres) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}

// LoadCatalog reads every registered library and topic
func (db *Postgres) LoadCatalog(ctx context.Context) (CatalogRecord, error) {
	var rec CatalogRecord

	libs, err := db.references(ctx, `SELECT name, language FROM catalog_libraries ORDER BY created_at, name`)
	if err != nil {
		return rec, fmt.Errorf("failed to load catalog libraries: %w", err)
	}
	rec.Libraries = libs

	rows, err := db.pool.Query(ctx, `SELECT name FROM catalog_topics ORDER BY created_at, name`)
	if err != nil {
		return rec, fmt.Errorf("failed to load catalog topics: %w", err)
	}
	topics, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return rec, fmt.Errorf("failed to scan catalog topics: %w", err)
	}
	rec.Topics = topics
	return rec, nil
}

// AddCatalogLibrary registers a library; repeated calls are no-ops
func (db *Postgres) AddCatalogLibrary(ctx context.Context, ref types.LibraryReference) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO catalog_libraries (name, language) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		ref.Name, string(ref.Language),
	)
	if err != nil {
		return fmt.Errorf("failed to add catalog library %s: %w", ref, err)
	}
	return nil
}

// AddCatalogTopic registers a topic; repeated calls are no-ops
func (db *Postgres) AddCatalogTopic(ctx context.Context, name string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO catalog_topics (name) VALUES ($1) ON CONFLICT DO NOTHING`,
		name,
	)
	if err != nil {
		return fmt.Errorf("failed to add catalog topic %s: %w", name, err)
	}
	return nil
}

// LoadTopic reads a topic's libraries and its failures in the order they were recorded
func (db *Postgres) LoadTopic(ctx context.Context, name string) (TopicRecord, error) {
	var rec TopicRecord

	libs, err := db.references(ctx,
		`SELECT name, language FROM topic_libraries WHERE topic = $1 ORDER BY created_at, name`, name)
	if err != nil {
		return rec, fmt.Errorf("failed to load topic %s libraries: %w", name, err)
	}
	rec.Libraries = libs

	rows, err := db.pool.Query(ctx, `SELECT message FROM topic_failures WHERE topic = $1 ORDER BY id`, name)
	if err != nil {
		return rec, fmt.Errorf("failed to load topic %s failures: %w", name, err)
	}
	failures, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return rec, fmt.Errorf("failed to scan topic %s failures: %w", name, err)
	}
	rec.Failures = failures
	return rec, nil
}

// AddTopicLibrary adds a library to a topic; repeated calls are no-ops
func (db *Postgres) AddTopicLibrary(ctx context.Context, name string, ref types.LibraryReference) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO topic_libraries (topic, name, language) VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		name, ref.Name, string(ref.Language),
	)
	if err != nil {
		return fmt.Errorf("failed to add library %s to topic %s: %w", ref, name, err)
	}
	return nil
}

// AppendTopicFailure records one more discovery failure for a topic
func (db *Postgres) AppendTopicFailure(ctx context.Context, name, message string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO topic_failures (topic, message) VALUES ($1, $2)`,
		name, message,
	)
	if err != nil {
		return fmt.Errorf("failed to append failure to topic %s: %w", name, err)
	}
	return nil
}

// LoadLibrary reads a library's state, returning types.Unknown when it was never saved
func (db *Postgres) LoadLibrary(ctx context.Context, ref types.LibraryReference) (types.LibraryState, error) {
	var rec libraryRecord
	var topics []byte
	err := db.pool.QueryRow(ctx,
		`SELECT state, repository, description, topics, message
		 FROM libraries WHERE name = $1 AND language = $2`,
		ref.Name, string(ref.Language),
	).Scan(&rec.State, &rec.Repository, &rec.Description, &topics, &rec.Message)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Unknown{}, nil
		}
		return nil, fmt.Errorf("failed to load library %s: %w", ref, err)
	}
	if err := json.Unmarshal(topics, &rec.Topics); err != nil {
		return nil, fmt.Errorf("failed to parse library %s topics: %w", ref, err)
	}
	return decodeLibrary(rec)
}

// SaveLibrary replaces the stored state of a library
func (db *Postgres) SaveLibrary(ctx context.Context, ref types.LibraryReference, state types.LibraryState) error {
	rec := encodeLibrary(state)
	topics, err := json.Marshal(rec.Topics)
	if err != nil {
		return fmt.Errorf("failed to marshal topics: %w", err)
	}
	if rec.Topics == nil {
		topics = []byte("[]")
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO libraries (name, language, state, repository, description, topics, message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (name, language) DO UPDATE SET
		   state = $3, repository = $4, description = $5, topics = $6, message = $7, updated_at = NOW()`,
		ref.Name, string(ref.Language), rec.State, rec.Repository, rec.Description, topics, rec.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to save library %s: %w", ref, err)
	}
	return nil
}

func (db *Postgres) references(ctx context.Context, query string, args ...any) ([]types.LibraryReference, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.LibraryReference, error) {
		var ref types.LibraryReference
		var language string
		if err := row.Scan(&ref.Name, &language); err != nil {
			return ref, err
		}
		ref.Language = types.Language(language)
		return ref, nil
	})
}
