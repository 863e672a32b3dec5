// Package store provides durable state for the pipeline's entities: the catalog, topic
// records and library records. Drivers are an in-memory map, PostgreSQL and Badger.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonathan/libdb/internal/config"
	"github.com/jonathan/libdb/internal/types"
)

// ErrNotFound is returned by driver lookups for absent keys. Load methods translate it
// into an empty record.
var ErrNotFound = errors.New("record not found")

// CatalogRecord is the persisted catalog
type CatalogRecord struct {
	Libraries []types.LibraryReference `json:"libraries"`
	Topics    []string                 `json:"topics"`
}

// TopicRecord is the persisted state of one topic
type TopicRecord struct {
	Libraries []types.LibraryReference `json:"libraries"`
	Failures  []string                 `json:"failures"`
}

// Store persists entity state. Inserts into sets are idempotent; failure appends are not.
// Missing records load as empty, and a missing library loads as types.Unknown.
type Store interface {
	LoadCatalog(ctx context.Context) (CatalogRecord, error)
	AddCatalogLibrary(ctx context.Context, ref types.LibraryReference) error
	AddCatalogTopic(ctx context.Context, name string) error

	LoadTopic(ctx context.Context, name string) (TopicRecord, error)
	AddTopicLibrary(ctx context.Context, name string, ref types.LibraryReference) error
	AppendTopicFailure(ctx context.Context, name, message string) error

	LoadLibrary(ctx context.Context, ref types.LibraryReference) (types.LibraryState, error)
	SaveLibrary(ctx context.Context, ref types.LibraryReference, state types.LibraryState) error

	Close() error
}

// Open returns the driver selected by cfg
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case "", config.DriverMemory:
		return NewMemory(), nil
	case config.DriverPostgres:
		return Connect(ctx, cfg.DatabaseURL)
	case config.DriverBadger:
		return OpenBadger(cfg.BadgerPath, logger)
	default:
		return nil, fmt.Errorf("unknown store driver: %q", cfg.Driver)
	}
}

// libraryRecord is the flattened form of types.LibraryState used by durable drivers
type libraryRecord struct {
	State       string   `json:"state"`
	Repository  string   `json:"repository,omitempty"`
	Description string   `json:"description,omitempty"`
	Topics      []string `json:"topics,omitempty"`
	Message     string   `json:"message,omitempty"`
}

func encodeLibrary(state types.LibraryState) libraryRecord {
	switch s := state.(type) {
	case types.Analyzed:
		return libraryRecord{
			State:       types.StateAnalyzed,
			Repository:  s.Repository,
			Description: s.Description,
			Topics:      s.Topics,
		}
	case types.Failed:
		return libraryRecord{State: types.StateFailed, Message: s.Message}
	default:
		return libraryRecord{State: types.StateUnknown}
	}
}

func decodeLibrary(rec libraryRecord) (types.LibraryState, error) {
	switch rec.State {
	case types.StateAnalyzed:
		return types.Analyzed{
			Repository:  rec.Repository,
			Description: rec.Description,
			Topics:      types.TagSet(rec.Topics),
		}, nil
	case types.StateFailed:
		return types.Failed{Message: rec.Message}, nil
	case types.StateUnknown, "":
		return types.Unknown{}, nil
	default:
		return nil, fmt.Errorf("unknown library state %q", rec.State)
	}
}

// addUnique appends v to set unless already present
func addUnique[T comparable](set []T, v T) ([]T, bool) {
	for _, existing := range set {
		if existing == v {
			return set, false
		}
	}
	return append(set, v), true
}
