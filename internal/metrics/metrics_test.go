package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMutationCounts(t *testing.T) {
	c := NewCollector("lexshelf")
	c.Mutation("create_category", nil)
	c.Mutation("create_category", nil)
	c.Mutation("create_category", errors.New("boom"))

	body := scrape(t, c)
	require.Contains(t, body, `lexshelf_library_mutations_total{operation="create_category",status="ok"} 2`)
	require.Contains(t, body, `lexshelf_library_mutations_total{operation="create_category",status="error"} 1`)
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector("lexshelf")
	b := NewCollector("lexshelf")
	a.BlobsStored.Inc()
	require.Contains(t, scrape(t, a), "lexshelf_blobs_stored_total 1")
	require.Contains(t, scrape(t, b), "lexshelf_blobs_stored_total 0")
}

func TestHandlerServesRegistry(t *testing.T) {
	c := NewCollector("lexshelf")
	c.Submissions.Inc()
	require.Contains(t, scrape(t, c), "lexshelf_submissions_received_total 1")
}

func TestEventsByType(t *testing.T) {
	c := NewCollector("lexshelf")
	c.Events.WithLabelValues("tree.changed").Inc()
	c.Events.WithLabelValues("tree.changed").Inc()
	require.Contains(t, scrape(t, c), `lexshelf_events_published_total{type="tree.changed"} 2`)
}
