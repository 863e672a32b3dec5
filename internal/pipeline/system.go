// Package pipeline implements the library discovery choreography: the Catalog, Topic and
// Library entities, the ephemeral TopicDiscovery and LibraryAnalysis runs, and the Log
// sink, hosted as single-threaded actors.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/do/v2"
	"golang.org/x/sync/semaphore"

	"github.com/jonathan/libdb/internal/actor"
	"github.com/jonathan/libdb/internal/config"
	"github.com/jonathan/libdb/internal/index"
	"github.com/jonathan/libdb/internal/store"
	"github.com/jonathan/libdb/internal/types"
)

type (
	topicRegistry   = actor.Registry[string, topicMsg]
	libraryRegistry = actor.Registry[types.LibraryReference, libraryMsg]
)

// Collaborators are the external capabilities injected into a System. Only the store is
// required to be durable; a nil Store falls back to memory and a nil Index disables search.
type Collaborators struct {
	Classifier Classifier
	Searcher   Searcher
	Store      store.Store
	Index      *index.Index
	// Logger receives local emissions of every entity
	Logger *slog.Logger
	// Aggregate, if set, receives every record sent to the LogSink
	Aggregate slog.Handler
}

// System hosts every entity of the pipeline. Singletons and registries are provided by
// its injector, resolved once at start and shut down with it.
type System struct {
	injector *do.RootScope
	ctx      context.Context
	cancel   context.CancelFunc

	cfg        *config.Config
	logger     *slog.Logger
	tracker    *actor.Tracker
	sem        *semaphore.Weighted
	store      store.Store
	index      *index.Index
	classifier Classifier
	searcher   Searcher

	logs      *LogSink
	catalog   *Catalog
	topics    *topicRegistry
	libraries *libraryRegistry
}

// storeHandle closes the store when the injector shuts down
type storeHandle struct {
	store.Store
}

func (h *storeHandle) Shutdown() error {
	return h.Close()
}

// indexHandle closes the index when the injector shuts down
type indexHandle struct {
	*index.Index
}

func (h *indexHandle) Shutdown() error {
	return h.Close()
}

// New starts a System: the LogSink and Catalog singletons are spawned immediately and the
// search index is rebuilt from the stored catalog.
func New(ctx context.Context, cfg *config.Config, c Collaborators) (*System, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Store == nil {
		c.Store = store.NewMemory()
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &System{
		injector:   do.New(),
		ctx:        runCtx,
		cancel:     cancel,
		cfg:        cfg,
		logger:     c.Logger,
		tracker:    actor.NewTracker(),
		sem:        semaphore.NewWeighted(int64(max(cfg.Pipeline.AnalysisConcurrency, 1))),
		store:      c.Store,
		index:      c.Index,
		classifier: c.Classifier,
		searcher:   c.Searcher,
	}

	do.ProvideValue(s.injector, cfg)
	do.ProvideValue(s.injector, &storeHandle{Store: c.Store})
	if c.Index != nil {
		do.ProvideValue(s.injector, &indexHandle{Index: c.Index})
	}
	do.Provide(s.injector, func(i do.Injector) (*LogSink, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return newLogSink(s.ctx, c.Aggregate, cfg.Log.Retain, s.actorOptions()), nil
	})
	do.Provide(s.injector, func(i do.Injector) (*Catalog, error) {
		sink := do.MustInvoke[*LogSink](i)
		st := do.MustInvoke[*storeHandle](i)
		return newCatalog(s.ctx, st.Store, newLogger("catalog", s.logger, sink), s.actorOptions()), nil
	})
	do.Provide(s.injector, func(i do.Injector) (*topicRegistry, error) {
		return actor.NewRegistry(s.spawnTopic), nil
	})
	do.Provide(s.injector, func(i do.Injector) (*libraryRegistry, error) {
		return actor.NewRegistry(s.spawnLibrary), nil
	})

	var err error
	if s.logs, err = do.Invoke[*LogSink](s.injector); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start log sink: %w", err)
	}
	if s.catalog, err = do.Invoke[*Catalog](s.injector); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start catalog: %w", err)
	}
	s.topics = do.MustInvoke[*topicRegistry](s.injector)
	s.libraries = do.MustInvoke[*libraryRegistry](s.injector)
	if c.Index != nil {
		// Invoked so the injector owns closing it.
		do.MustInvoke[*indexHandle](s.injector)
	}

	if err := s.rehydrateIndex(ctx); err != nil {
		s.logger.Warn("Failed to rebuild search index", slog.Any("error", err))
	}

	s.logger.Info("Pipeline started",
		slog.String("store", fmt.Sprintf("%T", c.Store)),
		slog.Int("analysis_concurrency", cfg.Pipeline.AnalysisConcurrency))
	return s, nil
}

// Config returns the configuration the system was started with
func (s *System) Config() *config.Config {
	return s.cfg
}

// Logs returns the LogSink singleton
func (s *System) Logs() *LogSink {
	return s.logs
}

// Catalog returns the Catalog singleton
func (s *System) Catalog() *Catalog {
	return s.catalog
}

// Topic returns the topic named name, creating it on first reference. Non-canonical names
// fail with ErrTopicNotLowercase.
func (s *System) Topic(name string) (*Topic, error) {
	mb, err := s.topics.Get(name)
	if err != nil {
		return nil, err
	}
	return &Topic{name: name, mb: mb}, nil
}

// Library returns the library with identity ref, creating it on first reference
func (s *System) Library(ref types.LibraryReference) (*Library, error) {
	mb, err := s.libraries.Get(ref)
	if err != nil {
		return nil, err
	}
	return &Library{ref: ref, mb: mb}, nil
}

// LookupTopic returns the topic named name without creating it. It reports false when the
// topic is neither live nor has persisted libraries or failures; such a topic reads as empty.
func (s *System) LookupTopic(ctx context.Context, name string) (*Topic, bool, error) {
	if err := validateTopic(name); err != nil {
		return nil, false, err
	}
	if mb, ok := s.topics.Lookup(name); ok {
		return &Topic{name: name, mb: mb}, true, nil
	}
	record, err := s.store.LoadTopic(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load topic %q: %w", name, err)
	}
	if len(record.Libraries) == 0 && len(record.Failures) == 0 {
		return nil, false, nil
	}
	topic, err := s.Topic(name)
	if err != nil {
		return nil, false, err
	}
	return topic, true, nil
}

// LookupLibrary returns the library with identity ref without creating it. It reports false
// when the library is not live and its persisted state is Unknown.
func (s *System) LookupLibrary(ctx context.Context, ref types.LibraryReference) (*Library, bool, error) {
	if err := validateLibrary(ref); err != nil {
		return nil, false, err
	}
	if mb, ok := s.libraries.Lookup(ref); ok {
		return &Library{ref: ref, mb: mb}, true, nil
	}
	state, err := s.store.LoadLibrary(ctx, ref)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load library %s: %w", ref, err)
	}
	if _, unknown := state.(types.Unknown); unknown {
		return nil, false, nil
	}
	library, err := s.Library(ref)
	if err != nil {
		return nil, false, err
	}
	return library, true, nil
}

// Logger returns a logger attributing records to sender
func (s *System) Logger(sender string) Logger {
	return newLogger(sender, s.logger, s.Logs())
}

// Search queries the full-text index of analysed libraries
func (s *System) Search(ctx context.Context, q string, language types.Language, limit int) ([]types.LibraryReference, error) {
	if s.index == nil {
		return nil, fmt.Errorf("search index is not configured")
	}
	return s.index.Search(ctx, q, language, limit)
}

// Quiesce blocks until every queued message has been handled and every run has finished
func (s *System) Quiesce(ctx context.Context) error {
	return s.tracker.Wait(ctx)
}

// Shutdown waits for in-flight work until ctx is done, then stops every entity and
// releases the store and index. Runs still blocked on a collaborator are cancelled.
func (s *System) Shutdown(ctx context.Context) error {
	err := s.Quiesce(ctx)
	if err != nil {
		s.logger.Warn("Stopping with work in flight", slog.Int("pending", s.tracker.Pending()))
	}
	s.cancel()
	if report := s.injector.Shutdown(); report != nil && !report.Succeed {
		s.logger.Warn("Shutdown reported errors", slog.Any("error", report))
	}
	return err
}

func (s *System) actorOptions() actor.Options {
	return actor.Options{
		Logger:    s.logger,
		Tracker:   s.tracker,
		WarnDepth: s.cfg.Pipeline.MailboxWarn,
	}
}

// callContext bounds one collaborator call by pipeline.call_timeout
func (s *System) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Pipeline.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Pipeline.CallTimeout)
}

// indexLibrary updates the search index. It runs on the calling Library's mailbox, so
// updates for one identity reach the index in the order the Library applied them.
func (s *System) indexLibrary(details types.LibraryDetails) {
	if s.index == nil {
		return
	}
	if err := s.index.Add(details); err != nil {
		s.logger.Error("Failed to index library",
			slog.String("library", details.Reference().String()),
			slog.Any("error", err))
	}
}

// rehydrateIndex indexes every analysed library of the stored catalog
func (s *System) rehydrateIndex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	rec, err := s.store.LoadCatalog(ctx)
	if err != nil {
		return err
	}

	var analysed []types.LibraryDetails
	for _, ref := range rec.Libraries {
		state, err := s.store.LoadLibrary(ctx, ref)
		if err != nil {
			return err
		}
		if a, ok := state.(types.Analyzed); ok {
			analysed = append(analysed, types.LibraryDetails{
				Name:        ref.Name,
				Language:    ref.Language,
				Repository:  a.Repository,
				Description: a.Description,
				Topics:      a.Topics,
			})
		}
	}
	if len(analysed) > 0 {
		s.logger.Info("Rebuilding search index", slog.Int("libraries", len(analysed)))
	}
	return s.index.AddAll(analysed)
}
