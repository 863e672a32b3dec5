package pipeline

import (
	"context"
	"fmt"
	"iter"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/libdb/internal/research"
	"github.com/jonathan/libdb/internal/types"
)

// Searcher is the search collaborator. Search yields pages in order; an empty page
// signals that the results are exhausted.
type Searcher interface {
	Search(ctx context.Context, params types.SearchParams) iter.Seq2[[]types.SearchResult, error]
}

// discoveryHit is one search result together with the language it was searched for
type discoveryHit struct {
	language types.Language
	result   types.SearchResult
}

// discoveryQuery builds the search query for one topic and language
func discoveryQuery(topic string, language types.Language) string {
	return fmt.Sprintf("%s library for %s", topic, language)
}

// startDiscovery spawns one discovery run for topic. The caller does not wait for it.
func (s *System) startDiscovery(topic string) {
	runID := uuid.NewString()
	sender := "discovery:" + topic
	s.tracker.Go(s.logger, sender, func() {
		s.runDiscovery(topic, runID, s.Logger(sender))
	})
}

// runDiscovery searches every language and dispatches one analysis per hit. If any search
// fails, nothing is dispatched and the failure is recorded on the topic once.
func (s *System) runDiscovery(topic, runID string, log Logger) {
	log.Infof("Starting discovery run %s", runID)

	hits, err := s.collectHits(s.ctx, topic, log)
	if err != nil {
		if s.ctx.Err() != nil {
			log.Warnf("Discovery run %s cancelled: %v", runID, err)
			return
		}
		log.Errorf("Discovery run %s failed: %v", runID, err)

		t, terr := s.Topic(topic)
		if terr != nil {
			log.Errorf("Failed to resolve topic: %v", terr)
			return
		}
		if rerr := t.recordFailureAndWait(s.ctx, err.Error()); rerr != nil {
			log.Errorf("Failed to record discovery failure: %v", rerr)
		}
		return
	}

	host := s.cfg.Search.HostingDomain
	dispatched := 0
	for _, h := range hits {
		name, ok := research.RepositoryName(h.result.URL, host)
		if !ok {
			log.Warnf("Skipping %s: not a repository on %s", h.result.URL, host)
			continue
		}
		ref := types.LibraryReference{Name: name, Language: h.language}
		s.startAnalysis(ref, research.CanonicalRepository(h.result.URL, host), topic)
		dispatched++
	}
	log.Infof("Discovery run %s dispatched %d analyses from %d results", runID, dispatched, len(hits))
}

// collectHits searches every language concurrently and pages each search until an empty
// page. The first failing search cancels the others and discards everything collected.
func (s *System) collectHits(ctx context.Context, topic string, log Logger) ([]discoveryHit, error) {
	if s.searcher == nil {
		return nil, fmt.Errorf("search is not configured")
	}
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	perLanguage := make([][]discoveryHit, len(types.Languages))
	g, gCtx := errgroup.WithContext(ctx)
	for i, language := range types.Languages {
		g.Go(func() error {
			params := types.SearchParams{
				Query:          discoveryQuery(topic, language),
				IncludeDomains: []string{s.cfg.Search.HostingDomain},
			}
			for page, err := range s.searcher.Search(gCtx, params) {
				if err != nil {
					return fmt.Errorf("failed to search %s libraries: %w", language, err)
				}
				log.Tracef("Got %s page with %d results", language, len(page))
				if len(page) == 0 {
					break
				}
				for _, result := range page {
					perLanguage[i] = append(perLanguage[i], discoveryHit{language: language, result: result})
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var hits []discoveryHit
	for _, h := range perLanguage {
		hits = append(hits, h...)
	}
	return hits, nil
}
