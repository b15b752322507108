package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"

	"lexshelf/api/internal/library"
)

const idxNodes = "lexshelf_nodes"

var errUnhealthy = errors.New("meilisearch unhealthy")

// Meili implements Searcher via Meilisearch and mirrors the tree into a
// single nodes index.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
	logger  *zap.Logger

	mu      sync.Mutex
	indexed map[string]struct{}
	latest  []NodeRecord
	stale   bool
}

// NewMeili creates a Meilisearch client and configures the index. An
// unreachable server is not an error; the health loop keeps probing.
func NewMeili(url, apiKey string, logger *zap.Logger) *Meili {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Meili{
		client:  meili.New(url, meili.WithAPIKey(apiKey)),
		done:    make(chan struct{}),
		logger:  logger.Named("meili"),
		indexed: make(map[string]struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		m.logger.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxNodes,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debug("create index (may already exist)", zap.String("index", idxNodes), zap.Error(err))
	}

	index := m.client.Index(idxNodes)
	filterable := []interface{}{"kind", "categoryId", "parentId"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn("update filterable attributes", zap.Error(err))
	}
	searchable := []string{"name", "content"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("update searchable attributes", zap.Error(err))
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()
				m.resync()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Sync makes the index mirror records: every record is upserted and ids
// indexed earlier but absent now are deleted. When the server is down the
// records are kept and pushed after recovery.
func (m *Meili) Sync(records []NodeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = records
	if !m.healthy.Load() {
		m.stale = true
		return errUnhealthy
	}
	return m.pushLocked()
}

func (m *Meili) resync() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stale {
		return
	}
	if err := m.pushLocked(); err != nil {
		m.logger.Warn("resync after recovery failed", zap.Error(err))
	}
}

func (m *Meili) pushLocked() error {
	index := m.client.Index(idxNodes)
	current := make(map[string]struct{}, len(m.latest))
	for _, r := range m.latest {
		current[r.ID] = struct{}{}
	}
	if len(m.latest) > 0 {
		if _, err := index.AddDocuments(m.latest, nil); err != nil {
			m.stale = true
			return fmt.Errorf("index nodes: %w", err)
		}
	}
	for id := range m.indexed {
		if _, ok := current[id]; ok {
			continue
		}
		if _, err := index.DeleteDocument(id, nil); err != nil {
			m.stale = true
			return fmt.Errorf("delete node %s: %w", id, err)
		}
	}
	m.indexed = current
	m.stale = false
	return nil
}

// Search queries the nodes index.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, errUnhealthy
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	sr := &meili.SearchRequest{
		IndexUID:              idxNodes,
		Query:                 q.Text,
		Limit:                 limit,
		Offset:                int64(q.Offset),
		AttributesToHighlight: []string{"name", "content"},
		AttributesToCrop:      []string{"content"},
		CropLength:            24,
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
		ShowRankingScore:      true,
	}
	if filters := buildFilters(q); len(filters) > 0 {
		sr.Filter = filters
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{sr},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, res := range resp.Results {
		total += int(res.EstimatedTotalHits)
		for _, hit := range res.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

func buildFilters(q Query) []string {
	var filters []string
	if q.Kind != "" {
		filters = append(filters, fmt.Sprintf("kind = %q", string(q.Kind)))
	}
	if q.CategoryID != "" {
		filters = append(filters, fmt.Sprintf("categoryId = %q", q.CategoryID))
	}
	return filters
}

func hitToResult(hit meili.Hit) Result {
	return Result{
		Kind:       library.Kind(decodeString(hit, "kind")),
		ID:         decodeString(hit, "id"),
		Name:       firstNonBlank(decodeFormattedString(hit, "name"), decodeString(hit, "name")),
		Snippet:    firstNonBlank(decodeFormattedString(hit, "content"), decodeString(hit, "content")),
		CategoryID: decodeString(hit, "categoryId"),
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]any
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	value, _ := formatted[key].(string)
	return strings.TrimSpace(value)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
