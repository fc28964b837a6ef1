// Package search keeps a full-text index of document titles, types and
// bodies for the dashboard search box.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/dharsanguruparan/SignDesk/internal/model"
	"github.com/dharsanguruparan/SignDesk/internal/store"
)

// Index wraps a Bleve search index
type Index struct {
	index bleve.Index
}

// IndexedDocument is the searchable projection of a document.
type IndexedDocument struct {
	ID      string
	Title   string
	Type    string
	Content string
	Status  string
}

// Hit is one search result.
type Hit struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	Score     float64             `json:"score"`
	Fragments map[string][]string `json:"fragments,omitempty"`
}

// Open opens or creates the index at path. An empty path keeps the index in
// memory; it is rebuilt from the store on start either way.
func Open(path string) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create memory index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return &Index{index: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = "en"

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("ID", keyword)
	doc.AddFieldMappingsAt("Title", title)
	doc.AddFieldMappingsAt("Type", text)
	doc.AddFieldMappingsAt("Content", text)
	doc.AddFieldMappingsAt("Status", keyword)

	m := bleve.NewIndexMapping()
	m.AddDocumentMapping("_default", doc)
	return m
}

func (i *Index) Close() error {
	return i.index.Close()
}

// Put adds or replaces doc in the index.
func (i *Index) Put(doc *model.Document) error {
	return i.index.Index(doc.ID, project(doc))
}

func (i *Index) Delete(id string) error {
	return i.index.Delete(id)
}

// Search matches q against title, type and content. Title matches are
// boosted; a trailing partial word matches by prefix.
func (i *Index) Search(q string, limit int) ([]Hit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	var clauses []query.Query
	for field, boost := range map[string]float64{"Title": 3, "Type": 2, "Content": 1} {
		m := bleve.NewMatchQuery(q)
		m.SetField(field)
		m.SetFuzziness(1)
		m.SetBoost(boost)
		clauses = append(clauses, m)
	}
	words := strings.Fields(strings.ToLower(q))
	for _, field := range []string{"Title", "Type"} {
		p := bleve.NewPrefixQuery(words[len(words)-1])
		p.SetField(field)
		clauses = append(clauses, p)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(clauses...), limit, 0, false)
	req.Highlight = bleve.NewHighlight()
	req.Fields = []string{"Title"}

	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score, Fragments: h.Fragments}
		if title, ok := h.Fields["Title"].(string); ok {
			hit.Title = title
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Rebuild indexes every document the store holds in one batch.
func (i *Index) Rebuild(ctx context.Context, s store.Store) error {
	docs, err := s.List(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	batch := i.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, project(doc)); err != nil {
			return fmt.Errorf("batch index %s: %w", doc.ID, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Count returns the number of documents in the index
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}

func project(doc *model.Document) *IndexedDocument {
	return &IndexedDocument{
		ID:      doc.ID,
		Title:   doc.Title,
		Type:    doc.Type,
		Content: doc.Content,
		Status:  string(doc.Status),
	}
}
