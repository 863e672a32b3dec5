// Package research provides the search collaborator used by topic discovery: a paged
// Google Custom Search client and helpers that turn hit URLs into repository identities.
package research

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/jonathan/libdb/internal/types"
)

// maxResults is the deepest result offset the Custom Search API serves
const maxResults = 100

// CustomSearch runs paged queries against a Programmable Search Engine
type CustomSearch struct {
	svc      *customsearch.Service
	cx       string
	pageSize int
	maxPages int
}

// NewCustomSearch creates a new CustomSearch instance
func NewCustomSearch(ctx context.Context, apiKey, cx string, pageSize, maxPages int, opts ...option.ClientOption) (*CustomSearch, error) {
	if apiKey == "" || cx == "" {
		return nil, fmt.Errorf("search API key and engine id are required")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	if pageSize <= 0 || pageSize > 10 {
		pageSize = 10
	}
	if maxPages <= 0 {
		maxPages = maxResults / pageSize
	}
	return &CustomSearch{
		svc:      svc,
		cx:       cx,
		pageSize: pageSize,
		maxPages: maxPages,
	}, nil
}

// Search returns the lazy page sequence of a query. Each iteration fetches one page; an
// empty page means the results are exhausted. A failed fetch yields a *SearchError and ends
// the sequence.
func (s *CustomSearch) Search(ctx context.Context, params types.SearchParams) iter.Seq2[[]types.SearchResult, error] {
	return func(yield func([]types.SearchResult, error) bool) {
		for page := 0; ; page++ {
			start := int64(page*s.pageSize + 1)
			if page >= s.maxPages || start+int64(s.pageSize)-1 > maxResults {
				yield(nil, nil)
				return
			}

			results, err := s.fetch(ctx, params, start)
			if err != nil {
				yield(nil, &SearchError{Query: params.Query, Message: fmt.Sprintf("page %d failed", page+1), Cause: err})
				return
			}
			if !yield(results, nil) || len(results) == 0 {
				return
			}
		}
	}
}

func (s *CustomSearch) fetch(ctx context.Context, params types.SearchParams, start int64) ([]types.SearchResult, error) {
	query := params.Query
	call := s.svc.Cse.List().Cx(s.cx).Start(start).Num(int64(s.pageSize)).Context(ctx)

	switch len(params.IncludeDomains) {
	case 0:
	case 1:
		call = call.SiteSearch(params.IncludeDomains[0]).SiteSearchFilter("i")
	default:
		sites := make([]string, 0, len(params.IncludeDomains))
		for _, d := range params.IncludeDomains {
			sites = append(sites, "site:"+d)
		}
		query = query + " (" + strings.Join(sites, " OR ") + ")"
	}
	if params.IncludeImages {
		call = call.SearchType("image")
	}

	resp, err := call.Q(query).Do()
	if err != nil {
		return nil, err
	}

	results := make([]types.SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item == nil || item.Link == "" {
			continue
		}
		results = append(results, types.SearchResult{
			URL:     item.Link,
			Title:   item.Title,
			Snippet: item.Snippet,
		})
	}
	return results, nil
}
