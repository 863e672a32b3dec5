// Package index provides full-text search over analysed libraries using Bleve.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/jonathan/libdb/internal/types"
)

// DefaultLimit caps a search when the caller does not
const DefaultLimit = 20

// Index is an in-memory Bleve index of analysed libraries keyed by LibraryReference.Key.
// All methods are safe for concurrent use.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	logger *slog.Logger
}

// document is the indexed form of a library. Field names match buildMapping.
type document struct {
	Name        string   `json:"name"`
	Language    string   `json:"language"`
	Description string   `json:"description"`
	Topics      []string `json:"topics"`
}

// New creates an empty in-memory index
func New(logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}
	return &Index{index: idx, logger: logger}, nil
}

// buildMapping indexes names by their path segments, descriptions with English stemming
// and languages and topics as exact keywords.
func buildMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	doc := bleve.NewDocumentMapping()

	name := bleve.NewTextFieldMapping()
	name.Analyzer = simple.Name
	name.Store = true
	doc.AddFieldMappingsAt("name", name)

	language := bleve.NewTextFieldMapping()
	language.Analyzer = keyword.Name
	language.Store = true
	doc.AddFieldMappingsAt("language", language)

	description := bleve.NewTextFieldMapping()
	description.Analyzer = en.AnalyzerName
	description.Store = false
	doc.AddFieldMappingsAt("description", description)

	topics := bleve.NewTextFieldMapping()
	topics.Analyzer = keyword.Name
	topics.Store = true
	doc.AddFieldMappingsAt("topics", topics)

	indexMapping.AddDocumentMapping("_default", doc)
	return indexMapping
}

// Add indexes or replaces the document for details
func (i *Index) Add(details types.LibraryDetails) error {
	i.mu.RLock()
	defer i.mu.RUnlock()

	ref := details.Reference()
	doc := document{
		Name:        details.Name,
		Language:    string(details.Language),
		Description: details.Description,
		Topics:      details.Topics,
	}
	if err := i.index.Index(ref.Key(), doc); err != nil {
		return fmt.Errorf("failed to index %s: %w", ref, err)
	}
	return nil
}

// AddAll indexes many libraries in one batch
func (i *Index) AddAll(all []types.LibraryDetails) error {
	if len(all) == 0 {
		return nil
	}
	i.mu.RLock()
	defer i.mu.RUnlock()

	batch := i.index.NewBatch()
	for _, details := range all {
		doc := document{
			Name:        details.Name,
			Language:    string(details.Language),
			Description: details.Description,
			Topics:      details.Topics,
		}
		if err := batch.Index(details.Reference().Key(), doc); err != nil {
			return fmt.Errorf("failed to batch index %s: %w", details.Reference(), err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to commit index batch: %w", err)
	}
	return nil
}

// Count returns the number of indexed libraries
func (i *Index) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}

// Search returns the references best matching q, optionally restricted to one language.
// An empty query matches nothing.
func (i *Index) Search(ctx context.Context, q string, language types.Language, limit int) ([]types.LibraryReference, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []types.LibraryReference{}, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(buildQuery(q, language), limit, 0, false)
	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	refs := make([]types.LibraryReference, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ref, err := types.ParseKey(hit.ID)
		if err != nil {
			i.logger.Warn("skipping malformed index entry", slog.String("id", hit.ID), slog.Any("error", err))
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// Close releases the index
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}

func buildQuery(q string, language types.Language) query.Query {
	nameMatch := bleve.NewMatchQuery(q)
	nameMatch.SetField("name")
	nameMatch.SetBoost(3.0)

	descMatch := bleve.NewMatchQuery(q)
	descMatch.SetField("description")

	topicTerm := bleve.NewTermQuery(strings.ToLower(q))
	topicTerm.SetField("topics")
	topicTerm.SetBoost(2.0)

	fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
	fuzzy.SetFuzziness(1)
	fuzzy.SetField("name")
	fuzzy.SetBoost(0.8)

	text := bleve.NewDisjunctionQuery(nameMatch, descMatch, topicTerm, fuzzy)
	if language == "" {
		return text
	}

	lang := bleve.NewTermQuery(string(language))
	lang.SetField("language")
	return bleve.NewConjunctionQuery(text, lang)
}
