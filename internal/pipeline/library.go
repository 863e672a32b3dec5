package pipeline

import (
	"context"
	"fmt"

	"github.com/jonathan/libdb/internal/actor"
	"github.com/jonathan/libdb/internal/types"
)

type libraryMsg interface{ isLibraryMsg() }

type analysisSucceeded struct {
	repository  string
	description string
	topics      []string
	ack         chan<- struct{}
}

type analysisFailed struct {
	message string
	ack     chan<- struct{}
}

type libraryDetails struct {
	reply chan<- types.LibraryState
}

func (analysisSucceeded) isLibraryMsg() {}
func (analysisFailed) isLibraryMsg()    {}
func (libraryDetails) isLibraryMsg()    {}

// Library is a handle to the entity owning the latest analysis outcome of one library
type Library struct {
	ref types.LibraryReference
	mb  *actor.Mailbox[libraryMsg]
}

type libraryState struct {
	ref   types.LibraryReference
	sys   *System
	log   Logger
	state types.LibraryState
}

func validateLibrary(ref types.LibraryReference) error {
	if ref.Name == "" || !ref.Language.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidLibrary, ref)
	}
	return nil
}

// spawnLibrary is the library registry factory
func (s *System) spawnLibrary(ref types.LibraryReference) (*actor.Mailbox[libraryMsg], error) {
	if err := validateLibrary(ref); err != nil {
		return nil, err
	}
	sender := "library:" + ref.Key()
	state := &libraryState{
		ref:   ref,
		sys:   s,
		log:   s.Logger(sender),
		state: types.Unknown{},
	}
	opts := s.actorOptions()
	opts.OnStart = state.load
	return actor.Spawn(s.ctx, sender, state.handle, opts), nil
}

// Reference returns the identity of the library
func (l *Library) Reference() types.LibraryReference {
	return l.ref
}

// AnalysisSucceeded records a successful analysis and waits until it has been applied
func (l *Library) AnalysisSucceeded(ctx context.Context, repository, description string, topics []string) error {
	_, err := actor.Ask(ctx, l.mb, func(reply chan<- struct{}) libraryMsg {
		return analysisSucceeded{repository: repository, description: description, topics: topics, ack: reply}
	})
	return err
}

// AnalysisFailed records a failed analysis and waits until it has been applied
func (l *Library) AnalysisFailed(ctx context.Context, message string) error {
	_, err := actor.Ask(ctx, l.mb, func(reply chan<- struct{}) libraryMsg {
		return analysisFailed{message: message, ack: reply}
	})
	return err
}

// State returns the current state of the library
func (l *Library) State(ctx context.Context) (types.LibraryState, error) {
	return actor.Ask(ctx, l.mb, func(reply chan<- types.LibraryState) libraryMsg {
		return libraryDetails{reply: reply}
	})
}

// Details returns the analysed library. It returns ErrNotYetAnalysed if no analysis has
// completed and *AnalysisFailure if the latest one failed. Reading never starts an analysis.
func (l *Library) Details(ctx context.Context) (types.LibraryDetails, error) {
	state, err := l.State(ctx)
	if err != nil {
		return types.LibraryDetails{}, err
	}
	switch s := state.(type) {
	case types.Analyzed:
		return types.LibraryDetails{
			Name:        l.ref.Name,
			Language:    l.ref.Language,
			Repository:  s.Repository,
			Description: s.Description,
			Topics:      s.Topics,
		}, nil
	case types.Failed:
		return types.LibraryDetails{}, &AnalysisFailure{Library: l.ref, Message: s.Message}
	case types.Unknown:
		return types.LibraryDetails{}, ErrNotYetAnalysed
	default:
		return types.LibraryDetails{}, fmt.Errorf("unexpected library state %T", state)
	}
}

func (st *libraryState) load(ctx context.Context) {
	state, err := st.sys.store.LoadLibrary(ctx, st.ref)
	if err != nil {
		st.log.Errorf("Failed to load library state: %v", err)
		return
	}
	st.state = state
}

func (st *libraryState) handle(ctx context.Context, msg libraryMsg) {
	switch m := msg.(type) {
	case analysisSucceeded:
		st.succeed(ctx, m)
		if m.ack != nil {
			m.ack <- struct{}{}
		}
	case analysisFailed:
		st.state = types.Failed{Message: m.message}
		st.log.Warnf("Analysis failed: %s", m.message)
		st.save(ctx)
		if m.ack != nil {
			m.ack <- struct{}{}
		}
	case libraryDetails:
		m.reply <- st.state
	}
}

// succeed notifies every named topic, moves to Analyzed and registers with the catalog
func (st *libraryState) succeed(ctx context.Context, m analysisSucceeded) {
	topics := types.TagSet(m.topics)
	for _, name := range topics {
		topic, err := st.sys.Topic(name)
		if err != nil {
			st.log.Warnf("Skipping topic %q: %v", name, err)
			continue
		}
		topic.Add(st.ref)
	}

	analyzed := types.Analyzed{
		Repository:  m.repository,
		Description: m.description,
		Topics:      topics,
	}
	st.state = analyzed
	st.log.Infof("Analysed with topics %v", topics)
	st.save(ctx)

	st.sys.Catalog().RegisterLibrary(st.ref)
	st.sys.indexLibrary(types.LibraryDetails{
		Name:        st.ref.Name,
		Language:    st.ref.Language,
		Repository:  analyzed.Repository,
		Description: analyzed.Description,
		Topics:      analyzed.Topics,
	})
}

func (st *libraryState) save(ctx context.Context) {
	if err := st.sys.store.SaveLibrary(ctx, st.ref, st.state); err != nil {
		st.log.Errorf("Failed to persist library state: %v", err)
	}
}
