package pipeline

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jonathan/libdb/internal/config"
	"github.com/jonathan/libdb/internal/llm"
	"github.com/jonathan/libdb/internal/logging"
	"github.com/jonathan/libdb/internal/types"
)

// fakeClassifier answers with a raw JSON body per repository, decoded the same way the
// Gemini-backed classifier decodes real answers
type fakeClassifier struct {
	mu       sync.Mutex
	answers  map[string]string
	errs     map[string]error
	fallback string
	requests []types.ClassificationRequest
}

func newFakeClassifier(fallback string) *fakeClassifier {
	return &fakeClassifier{
		answers:  make(map[string]string),
		errs:     make(map[string]error),
		fallback: fallback,
	}
}

func (f *fakeClassifier) answer(repository, raw string) *fakeClassifier {
	f.answers[repository] = raw
	return f
}

func (f *fakeClassifier) fail(repository string, err error) *fakeClassifier {
	f.errs[repository] = err
	return f
}

func (f *fakeClassifier) Classify(_ context.Context, req types.ClassificationRequest) (types.Classification, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	prompt := strings.Join(req.Segments, "\n")
	for repository, err := range f.errs {
		if strings.Contains(prompt, repository) {
			return types.Classification{}, err
		}
	}
	for repository, raw := range f.answers {
		if strings.Contains(prompt, repository) {
			return llm.ParseClassification(raw)
		}
	}
	return llm.ParseClassification(f.fallback)
}

func (f *fakeClassifier) calls() []types.ClassificationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.ClassificationRequest(nil), f.requests...)
}

// fakeSearcher serves canned pages per language. A page list without a trailing empty
// page exhausts the sequence instead. err, if set, is yielded after the pages.
type fakeSearcher struct {
	mu      sync.Mutex
	pages   map[types.Language][][]types.SearchResult
	errs    map[types.Language]error
	queries []types.SearchParams
	fetched map[types.Language]int
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{
		pages:   make(map[types.Language][][]types.SearchResult),
		errs:    make(map[types.Language]error),
		fetched: make(map[types.Language]int),
	}
}

func (f *fakeSearcher) Search(_ context.Context, params types.SearchParams) iter.Seq2[[]types.SearchResult, error] {
	f.mu.Lock()
	f.queries = append(f.queries, params)
	f.mu.Unlock()

	language := types.JavaScript
	if strings.HasSuffix(params.Query, "for Rust") {
		language = types.Rust
	}
	return func(yield func([]types.SearchResult, error) bool) {
		for _, page := range f.pages[language] {
			f.mu.Lock()
			f.fetched[language]++
			f.mu.Unlock()
			if !yield(page, nil) {
				return
			}
		}
		if err := f.errs[language]; err != nil {
			yield(nil, err)
		}
	}
}

func (f *fakeSearcher) fetchedPages(language types.Language) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetched[language]
}

func results(urls ...string) []types.SearchResult {
	out := make([]types.SearchResult, 0, len(urls))
	for _, u := range urls {
		out = append(out, types.SearchResult{URL: u})
	}
	return out
}

var errQuota = errors.New("quota exceeded")

const webAnswer = `{"description":"A web library","tags":["web"]}`

func newTestSystem(t *testing.T, c Collaborators) *System {
	t.Helper()
	if c.Logger == nil {
		c.Logger = logging.Discard()
	}
	sys, err := New(context.Background(), config.Default(), c)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sys.Shutdown(ctx)
	})
	return sys
}

func quiesce(t *testing.T, sys *System) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sys.Quiesce(ctx))
}
