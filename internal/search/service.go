package search

import (
	"go.uber.org/zap"

	"lexshelf/api/internal/library"
)

const (
	BackendMeili = "meilisearch"
	BackendLocal = "local"
)

// Service is the facade that tries Meilisearch first and falls back to the
// in-memory tree.
type Service struct {
	meili  *Meili
	local  Searcher
	logger *zap.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, local Searcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{meili: meili, local: local, logger: logger.Named("search")}
}

// Search tries Meilisearch if healthy, otherwise falls back to the local
// matcher. An empty query returns no results.
func (s *Service) Search(q Query) Response {
	resp := Response{Results: []Result{}, Query: q.Text}
	if q.Text == "" {
		return resp
	}

	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			resp.Results, resp.Total, resp.Backend = nonNil(results), total, BackendMeili
			return resp
		}
		s.logger.Warn("meilisearch error, falling back to local search", zap.Error(err))
	}

	results, total, err := s.local.Search(q)
	if err != nil {
		s.logger.Error("local search failed", zap.Error(err))
		return resp
	}
	resp.Results, resp.Total, resp.Backend = nonNil(results), total, BackendLocal
	return resp
}

// Reindex mirrors doc into Meilisearch. It is a no-op without Meilisearch.
func (s *Service) Reindex(doc *library.Document) {
	if s.meili == nil {
		return
	}
	if err := s.meili.Sync(Records(doc)); err != nil {
		s.logger.Warn("reindex deferred", zap.Error(err))
	}
}

// Close releases the Meilisearch health monitor.
func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
