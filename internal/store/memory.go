package store

import (
	"context"
	"sync"

	"github.com/jonathan/libdb/internal/types"
)

// Memory keeps all state in process. It is the default driver and the one used in tests.
type Memory struct {
	mu        sync.RWMutex
	catalog   CatalogRecord
	topics    map[string]TopicRecord
	libraries map[types.LibraryReference]types.LibraryState
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		topics:    make(map[string]TopicRecord),
		libraries: make(map[types.LibraryReference]types.LibraryState),
	}
}

func (m *Memory) LoadCatalog(_ context.Context) (CatalogRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return CatalogRecord{
		Libraries: append([]types.LibraryReference(nil), m.catalog.Libraries...),
		Topics:    append([]string(nil), m.catalog.Topics...),
	}, nil
}

func (m *Memory) AddCatalogLibrary(_ context.Context, ref types.LibraryReference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog.Libraries, _ = addUnique(m.catalog.Libraries, ref)
	return nil
}

func (m *Memory) AddCatalogTopic(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog.Topics, _ = addUnique(m.catalog.Topics, name)
	return nil
}

func (m *Memory) LoadTopic(_ context.Context, name string) (TopicRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec := m.topics[name]
	return TopicRecord{
		Libraries: append([]types.LibraryReference(nil), rec.Libraries...),
		Failures:  append([]string(nil), rec.Failures...),
	}, nil
}

func (m *Memory) AddTopicLibrary(_ context.Context, name string, ref types.LibraryReference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.topics[name]
	rec.Libraries, _ = addUnique(rec.Libraries, ref)
	m.topics[name] = rec
	return nil
}

func (m *Memory) AppendTopicFailure(_ context.Context, name, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.topics[name]
	rec.Failures = append(rec.Failures, message)
	m.topics[name] = rec
	return nil
}

func (m *Memory) LoadLibrary(_ context.Context, ref types.LibraryReference) (types.LibraryState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if state, ok := m.libraries[ref]; ok {
		return state, nil
	}
	return types.Unknown{}, nil
}

func (m *Memory) SaveLibrary(_ context.Context, ref types.LibraryReference, state types.LibraryState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.libraries[ref] = state
	return nil
}

func (m *Memory) Close() error {
	return nil
}
