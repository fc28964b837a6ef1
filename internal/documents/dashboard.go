package documents

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/SignDesk/internal/model"
)

// Stats summarizes the dashboard.
type Stats struct {
	Total    int                  `json:"total"`
	ByStatus map[model.Status]int `json:"byStatus"`
	ByBadge  map[string]int       `json:"byBadge"`
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	docs, err := s.store.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{
		Total:    len(docs),
		ByStatus: map[model.Status]int{},
		ByBadge:  map[string]int{},
	}
	for _, d := range docs {
		st.ByStatus[d.Status]++
		st.ByBadge[d.Status.Badge()]++
	}
	return st, nil
}

// Search returns documents whose title or type contains q (case-insensitive)
// or that the full-text index matches, in store order.
func (s *Service) Search(ctx context.Context, q string) ([]*model.Document, error) {
	docs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return docs, nil
	}

	hits := map[string]bool{}
	if s.index != nil {
		found, err := s.index.Search(q, len(docs)+1)
		if err != nil {
			s.logger.Warn("index search failed, using substring match only", zap.Error(err))
		}
		for _, h := range found {
			hits[h.ID] = true
		}
	}

	needle := strings.ToLower(q)
	out := make([]*model.Document, 0, len(docs))
	for _, d := range docs {
		if hits[d.ID] ||
			strings.Contains(strings.ToLower(d.Title), needle) ||
			strings.Contains(strings.ToLower(d.Type), needle) {
			out = append(out, d)
		}
	}
	return out, nil
}
