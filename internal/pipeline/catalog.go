package pipeline

import (
	"context"
	"sort"

	"github.com/jonathan/libdb/internal/actor"
	"github.com/jonathan/libdb/internal/store"
	"github.com/jonathan/libdb/internal/types"
)

type catalogMsg interface{ isCatalogMsg() }

type registerLibrary struct{ ref types.LibraryReference }

type registerTopic struct{ name string }

type catalogSnapshot struct{ reply chan<- store.CatalogRecord }

func (registerLibrary) isCatalogMsg() {}
func (registerTopic) isCatalogMsg()   {}
func (catalogSnapshot) isCatalogMsg() {}

// Catalog is the singleton index of every known library identity and topic name.
// Both sets only grow; registering a member twice is a no-op.
type Catalog struct {
	mb *actor.Mailbox[catalogMsg]
}

type catalogState struct {
	store     store.Store
	log       Logger
	libraries map[types.LibraryReference]struct{}
	topics    map[string]struct{}
}

func newCatalog(ctx context.Context, st store.Store, log Logger, opts actor.Options) *Catalog {
	state := &catalogState{
		store:     st,
		log:       log,
		libraries: make(map[types.LibraryReference]struct{}),
		topics:    make(map[string]struct{}),
	}
	opts.OnStart = state.load
	return &Catalog{mb: actor.Spawn(ctx, "catalog", state.handle, opts)}
}

// RegisterLibrary adds ref to the catalog without waiting
func (c *Catalog) RegisterLibrary(ref types.LibraryReference) {
	c.mb.Tell(registerLibrary{ref: ref})
}

// RegisterTopic adds a topic name to the catalog without waiting
func (c *Catalog) RegisterTopic(name string) {
	c.mb.Tell(registerTopic{name: name})
}

// Libraries returns a snapshot of every registered library, sorted for output
func (c *Catalog) Libraries(ctx context.Context) ([]types.LibraryReference, error) {
	rec, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return rec.Libraries, nil
}

// Topics returns a snapshot of every registered topic name, sorted for output
func (c *Catalog) Topics(ctx context.Context) ([]string, error) {
	rec, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return rec.Topics, nil
}

func (c *Catalog) snapshot(ctx context.Context) (store.CatalogRecord, error) {
	return actor.Ask(ctx, c.mb, func(reply chan<- store.CatalogRecord) catalogMsg {
		return catalogSnapshot{reply: reply}
	})
}

// Shutdown stops accepting registrations once the queue has drained
func (c *Catalog) Shutdown() error {
	c.mb.Close()
	return nil
}

func (st *catalogState) load(ctx context.Context) {
	rec, err := st.store.LoadCatalog(ctx)
	if err != nil {
		st.log.Errorf("Failed to load catalog: %v", err)
		return
	}
	for _, ref := range rec.Libraries {
		st.libraries[ref] = struct{}{}
	}
	for _, name := range rec.Topics {
		st.topics[name] = struct{}{}
	}
	if len(rec.Libraries) > 0 || len(rec.Topics) > 0 {
		st.log.Debugf("Loaded catalog with %d libraries and %d topics", len(rec.Libraries), len(rec.Topics))
	}
}

func (st *catalogState) handle(ctx context.Context, msg catalogMsg) {
	switch m := msg.(type) {
	case registerLibrary:
		st.log.Infof("Registered library %s", m.ref)
		if _, ok := st.libraries[m.ref]; ok {
			return
		}
		st.libraries[m.ref] = struct{}{}
		if err := st.store.AddCatalogLibrary(ctx, m.ref); err != nil {
			st.log.Errorf("Failed to persist catalog library %s: %v", m.ref, err)
		}
	case registerTopic:
		st.log.Infof("Registered topic %q", m.name)
		if _, ok := st.topics[m.name]; ok {
			return
		}
		st.topics[m.name] = struct{}{}
		if err := st.store.AddCatalogTopic(ctx, m.name); err != nil {
			st.log.Errorf("Failed to persist catalog topic %q: %v", m.name, err)
		}
	case catalogSnapshot:
		m.reply <- st.snapshot()
	}
}

func (st *catalogState) snapshot() store.CatalogRecord {
	rec := store.CatalogRecord{
		Libraries: make([]types.LibraryReference, 0, len(st.libraries)),
		Topics:    make([]string, 0, len(st.topics)),
	}
	for ref := range st.libraries {
		rec.Libraries = append(rec.Libraries, ref)
	}
	for name := range st.topics {
		rec.Topics = append(rec.Topics, name)
	}
	types.SortReferences(rec.Libraries)
	sort.Strings(rec.Topics)
	return rec
}
