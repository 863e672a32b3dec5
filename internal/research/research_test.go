package research

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/jonathan/libdb/internal/types"
)

type item struct {
	Link  string `json:"link"`
	Title string `json:"title"`
}

// newTestSearch serves pages keyed by start offset; missing offsets return no items
func newTestSearch(t *testing.T, pages map[int][]item, fail map[int]bool) (*CustomSearch, func() []url.Values) {
	t.Helper()
	var mu sync.Mutex
	var requests []url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		h := r.URL.Query()
		mu.Lock()
		requests = append(requests, h)
		mu.Unlock()

		if fail[start] {
			http.Error(w, `{"error":{"code":500,"message":"backend error"}}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"items": pages[start]})
	}))
	t.Cleanup(server.Close)

	s, err := NewCustomSearch(context.Background(), "key", "cx", 2, 10,
		option.WithEndpoint(server.URL+"/"), option.WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return s, func() []url.Values {
		mu.Lock()
		defer mu.Unlock()
		return append([]url.Values(nil), requests...)
	}
}

func collect(t *testing.T, s *CustomSearch, params types.SearchParams) ([][]types.SearchResult, error) {
	t.Helper()
	var pages [][]types.SearchResult
	for page, err := range s.Search(context.Background(), params) {
		if err != nil {
			return pages, err
		}
		pages = append(pages, page)
		if len(page) == 0 {
			break
		}
	}
	return pages, nil
}

func TestCustomSearch_PagesUntilEmpty(t *testing.T) {
	s, requests := newTestSearch(t, map[int][]item{
		1: {{Link: "https://github.com/a/one"}, {Link: "https://github.com/a/two"}},
		3: {{Link: "https://github.com/a/three"}},
	}, nil)

	pages, err := collect(t, s, types.SearchParams{Query: "web library for Rust", IncludeDomains: []string{"github.com"}})
	require.NoError(t, err)

	require.Len(t, pages, 3)
	assert.Len(t, pages[0], 2)
	assert.Equal(t, "https://github.com/a/three", pages[1][0].URL)
	assert.Empty(t, pages[2])

	req := requests()[0]
	assert.Equal(t, "web library for Rust", req.Get("q"))
	assert.Equal(t, "github.com", req.Get("siteSearch"))
	assert.Equal(t, "i", req.Get("siteSearchFilter"))
	assert.Equal(t, "cx", req.Get("cx"))
	assert.Empty(t, req.Get("searchType"))
}

func TestCustomSearch_FailedPageEndsSequence(t *testing.T) {
	s, _ := newTestSearch(t, map[int][]item{
		1: {{Link: "https://github.com/a/one"}, {Link: "https://github.com/a/two"}},
	}, map[int]bool{3: true})

	pages, err := collect(t, s, types.SearchParams{Query: "q"})
	require.Error(t, err)
	assert.Len(t, pages, 1)

	var searchErr *SearchError
	require.True(t, errors.As(err, &searchErr))
	assert.Equal(t, "q", searchErr.Query)
}

func TestCustomSearch_StopsAtPageLimit(t *testing.T) {
	full := []item{{Link: "https://github.com/a/x"}, {Link: "https://github.com/a/y"}}
	pages := map[int][]item{}
	for start := 1; start <= 100; start += 2 {
		pages[start] = full
	}
	s, requests := newTestSearch(t, pages, nil)

	got, err := collect(t, s, types.SearchParams{Query: "q"})
	require.NoError(t, err)
	// maxPages is 10: ten full pages then the terminating empty page
	assert.Len(t, got, 11)
	assert.Empty(t, got[10])
	assert.Len(t, requests(), 10)
}

func TestNewCustomSearch_RequiresCredentials(t *testing.T) {
	_, err := NewCustomSearch(context.Background(), "", "", 10, 10)
	assert.Error(t, err)
}
