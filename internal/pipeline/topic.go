package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/libdb/internal/actor"
	"github.com/jonathan/libdb/internal/types"
)

type topicMsg interface{ isTopicMsg() }

type discoverLibraries struct{}

type addLibrary struct{ ref types.LibraryReference }

type recordFailure struct {
	message string
	ack     chan<- struct{}
}

type topicLibraries struct {
	reply chan<- topicResult
}

type topicResult struct {
	libraries []types.LibraryReference
	failures  []string
}

func (discoverLibraries) isTopicMsg() {}
func (addLibrary) isTopicMsg()        {}
func (recordFailure) isTopicMsg()     {}
func (topicLibraries) isTopicMsg()    {}

// Topic is a handle to the entity owning one topic's library set and discovery failures
type Topic struct {
	name string
	mb   *actor.Mailbox[topicMsg]
}

type topicState struct {
	name      string
	sys       *System
	log       Logger
	libraries map[types.LibraryReference]struct{}
	failures  []string
}

// validateTopic enforces the canonical form of topic names
func validateTopic(name string) error {
	if name == "" {
		return ErrEmptyTopic
	}
	if name != strings.ToLower(name) {
		return fmt.Errorf("%w: %q", ErrTopicNotLowercase, name)
	}
	return nil
}

// spawnTopic is the topic registry factory. A valid topic is registered with the catalog
// as part of its construction.
func (s *System) spawnTopic(name string) (*actor.Mailbox[topicMsg], error) {
	if err := validateTopic(name); err != nil {
		return nil, err
	}
	state := &topicState{
		name:      name,
		sys:       s,
		log:       s.Logger("topic:" + name),
		libraries: make(map[types.LibraryReference]struct{}),
	}
	opts := s.actorOptions()
	opts.OnStart = state.load
	mb := actor.Spawn(s.ctx, "topic:"+name, state.handle, opts)

	s.Catalog().RegisterTopic(name)
	return mb, nil
}

// Name returns the canonical topic name
func (t *Topic) Name() string {
	return t.name
}

// DiscoverLibraries starts a discovery run for the topic without waiting for it
func (t *Topic) DiscoverLibraries() {
	t.mb.Tell(discoverLibraries{})
}

// Add inserts ref into the topic's library set without waiting
func (t *Topic) Add(ref types.LibraryReference) {
	t.mb.Tell(addLibrary{ref: ref})
}

// RecordFailure appends a discovery failure without waiting
func (t *Topic) RecordFailure(message string) {
	t.mb.Tell(recordFailure{message: message})
}

// recordFailureAndWait appends a discovery failure and waits until it has been recorded
func (t *Topic) recordFailureAndWait(ctx context.Context, message string) error {
	_, err := actor.Ask(ctx, t.mb, func(reply chan<- struct{}) topicMsg {
		return recordFailure{message: message, ack: reply}
	})
	return err
}

// Libraries returns the topic's libraries, sorted for output. If any discovery failure
// has been recorded it returns *DiscoveryFailures with every failure instead, withholding
// the libraries found so far.
func (t *Topic) Libraries(ctx context.Context) ([]types.LibraryReference, error) {
	res, err := actor.Ask(ctx, t.mb, func(reply chan<- topicResult) topicMsg {
		return topicLibraries{reply: reply}
	})
	if err != nil {
		return nil, err
	}
	if len(res.failures) > 0 {
		return nil, &DiscoveryFailures{Topic: t.name, Failures: res.failures}
	}
	return res.libraries, nil
}

func (st *topicState) load(ctx context.Context) {
	rec, err := st.sys.store.LoadTopic(ctx, st.name)
	if err != nil {
		st.log.Errorf("Failed to load topic: %v", err)
		return
	}
	for _, ref := range rec.Libraries {
		st.libraries[ref] = struct{}{}
	}
	st.failures = append(st.failures, rec.Failures...)
}

func (st *topicState) handle(ctx context.Context, msg topicMsg) {
	switch m := msg.(type) {
	case discoverLibraries:
		st.sys.startDiscovery(st.name)
	case addLibrary:
		if _, ok := st.libraries[m.ref]; ok {
			return
		}
		st.libraries[m.ref] = struct{}{}
		st.log.Infof("Added library %s", m.ref)
		if err := st.sys.store.AddTopicLibrary(ctx, st.name, m.ref); err != nil {
			st.log.Errorf("Failed to persist library %s: %v", m.ref, err)
		}
	case recordFailure:
		st.failures = append(st.failures, m.message)
		st.log.Warnf("Discovery failed: %s", m.message)
		if err := st.sys.store.AppendTopicFailure(ctx, st.name, m.message); err != nil {
			st.log.Errorf("Failed to persist discovery failure: %v", err)
		}
		if m.ack != nil {
			m.ack <- struct{}{}
		}
	case topicLibraries:
		res := topicResult{failures: append([]string(nil), st.failures...)}
		res.libraries = make([]types.LibraryReference, 0, len(st.libraries))
		for ref := range st.libraries {
			res.libraries = append(res.libraries, ref)
		}
		types.SortReferences(res.libraries)
		m.reply <- res
	}
}
