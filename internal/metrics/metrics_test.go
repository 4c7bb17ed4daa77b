package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector(t *testing.T) {
	t.Run("catalog calls", func(t *testing.T) {
		c := NewCollector()
		c.ObserveCatalogCall("artist", true, 10*time.Millisecond)
		c.ObserveCatalogCall("artist", false, 10*time.Millisecond)
		c.ObserveCatalogCall("artist", true, 10*time.Millisecond)

		if got := testutil.ToFloat64(c.catalogCalls.WithLabelValues("artist", "success")); got != 2 {
			t.Errorf("expected 2 successes, got %v", got)
		}
		if got := testutil.ToFloat64(c.catalogCalls.WithLabelValues("artist", "failure")); got != 1 {
			t.Errorf("expected 1 failure, got %v", got)
		}
	})

	t.Run("tick outcome", func(t *testing.T) {
		c := NewCollector()
		c.RecordTick(4, 1, 3, time.Second)

		if got := testutil.ToFloat64(c.tickItems.WithLabelValues("completed")); got != 4 {
			t.Errorf("expected 4 completed, got %v", got)
		}
		if got := testutil.ToFloat64(c.tickRemaining); got != 3 {
			t.Errorf("expected remaining gauge 3, got %v", got)
		}
	})

	t.Run("pool sources", func(t *testing.T) {
		c := NewCollector()
		c.RecordPool("stage2", 20, map[string]int{"top-track": 12, "embedding": 8})

		if got := testutil.ToFloat64(c.candidateSource.WithLabelValues("embedding")); got != 8 {
			t.Errorf("expected 8 embedding candidates, got %v", got)
		}
	})

	t.Run("nil collector is inert", func(t *testing.T) {
		var c *Collector
		c.ObserveCatalogCall("artist", true, 0)
		c.RecordTick(1, 1, 1, 0)
		c.RecordBackfill(1, 1)
		c.RecordHealing("track_details", true)
		c.RecordPool("stage1", 1, nil)
	})

	t.Run("handler exposes metrics", func(t *testing.T) {
		c := NewCollector()
		c.RecordHealing("track_details", true)

		rec := httptest.NewRecorder()
		c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "jukebox_healing_actions_total") {
			t.Error("expected healing metric in output")
		}
	})
}
