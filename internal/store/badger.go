package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/jonathan/libdb/internal/types"
)

// Key layout. Segments are separated by NUL so topic names and library keys never collide.
const (
	sep                  = "\x00"
	catalogLibraryPrefix = "catalog" + sep + "library" + sep
	catalogTopicPrefix   = "catalog" + sep + "topic" + sep
	topicPrefix          = "topic" + sep
	libraryPrefix        = "library" + sep
	failureSequenceKey   = "seq" + sep + "topic_failure"
)

// Badger stores entity state in an embedded Badger database
type Badger struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *slog.Logger
}

// OpenBadger opens (or creates) a Badger database at path
func OpenBadger(path string, logger *slog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable Badger's internal logging
	opts.SyncWrites = true
	return openBadger(opts, logger)
}

// OpenBadgerInMemory opens a Badger database that lives only in memory
func OpenBadgerInMemory(logger *slog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return openBadger(opts, logger)
}

func openBadger(opts badger.Options, logger *slog.Logger) (*Badger, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	seq, err := db.GetSequence([]byte(failureSequenceKey), 64)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open failure sequence: %w", err)
	}
	if logger != nil {
		logger.Info("Badger database opened", slog.String("path", opts.Dir))
	}
	return &Badger{db: db, seq: seq, logger: logger}, nil
}

// Close releases the failure sequence and closes the database
func (s *Badger) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing badger database")
	}
	if err := s.seq.Release(); err != nil {
		_ = s.db.Close()
		return fmt.Errorf("failed to release sequence: %w", err)
	}
	return s.db.Close()
}

func (s *Badger) LoadCatalog(_ context.Context) (CatalogRecord, error) {
	var rec CatalogRecord
	err := s.db.View(func(txn *badger.Txn) error {
		err := scanKeys(txn, catalogLibraryPrefix, func(suffix string, _ []byte) error {
			ref, err := types.ParseKey(suffix)
			if err != nil {
				return err
			}
			rec.Libraries = append(rec.Libraries, ref)
			return nil
		})
		if err != nil {
			return err
		}
		return scanKeys(txn, catalogTopicPrefix, func(suffix string, _ []byte) error {
			rec.Topics = append(rec.Topics, suffix)
			return nil
		})
	})
	if err != nil {
		return CatalogRecord{}, fmt.Errorf("failed to load catalog: %w", err)
	}
	return rec, nil
}

func (s *Badger) AddCatalogLibrary(_ context.Context, ref types.LibraryReference) error {
	return s.set(catalogLibraryPrefix+ref.Key(), nil)
}

func (s *Badger) AddCatalogTopic(_ context.Context, name string) error {
	return s.set(catalogTopicPrefix+name, nil)
}

func topicLibraryPrefix(name string) string {
	return topicPrefix + name + sep + "library" + sep
}

func topicFailurePrefix(name string) string {
	return topicPrefix + name + sep + "failure" + sep
}

func (s *Badger) LoadTopic(_ context.Context, name string) (TopicRecord, error) {
	var rec TopicRecord
	err := s.db.View(func(txn *badger.Txn) error {
		err := scanKeys(txn, topicLibraryPrefix(name), func(suffix string, _ []byte) error {
			ref, err := types.ParseKey(suffix)
			if err != nil {
				return err
			}
			rec.Libraries = append(rec.Libraries, ref)
			return nil
		})
		if err != nil {
			return err
		}
		// Failure keys end in a big-endian sequence number, so key order is append order.
		return scanKeys(txn, topicFailurePrefix(name), func(_ string, val []byte) error {
			rec.Failures = append(rec.Failures, string(val))
			return nil
		})
	})
	if err != nil {
		return TopicRecord{}, fmt.Errorf("failed to load topic %s: %w", name, err)
	}
	return rec, nil
}

func (s *Badger) AddTopicLibrary(_ context.Context, name string, ref types.LibraryReference) error {
	return s.set(topicLibraryPrefix(name)+ref.Key(), nil)
}

func (s *Badger) AppendTopicFailure(_ context.Context, name, message string) error {
	n, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to allocate failure id: %w", err)
	}
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], n)
	return s.set(topicFailurePrefix(name)+string(id[:]), []byte(message))
}

func (s *Badger) LoadLibrary(_ context.Context, ref types.LibraryReference) (types.LibraryState, error) {
	var rec libraryRecord
	err := s.get(libraryPrefix+ref.Key(), &rec)
	if errors.Is(err, ErrNotFound) {
		return types.Unknown{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load library %s: %w", ref, err)
	}
	return decodeLibrary(rec)
}

func (s *Badger) SaveLibrary(_ context.Context, ref types.LibraryReference, state types.LibraryState) error {
	data, err := json.Marshal(encodeLibrary(state))
	if err != nil {
		return fmt.Errorf("failed to marshal library %s: %w", ref, err)
	}
	return s.set(libraryPrefix+ref.Key(), data)
}

// get retrieves and decodes a JSON value by key
func (s *Badger) get(key string, dest any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}

// set stores a raw value by key
func (s *Badger) set(key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

// scanKeys calls fn for every key under prefix with the remainder of the key and its value
func scanKeys(txn *badger.Txn, prefix string, fn func(suffix string, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		item := it.Item()
		suffix := string(item.Key()[len(prefix):])
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(suffix, val); err != nil {
			return err
		}
	}
	return nil
}
