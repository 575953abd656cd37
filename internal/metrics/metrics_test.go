package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, p *Provider) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rr.Code)
	}
	return rr.Body.String()
}

func TestProvider_ExposesSearchMetrics(t *testing.T) {
	p := Init(Config{Version: "test"})

	p.ObservePage(true, 4, false)
	p.ObservePage(false, 2, true)
	p.ObserveCursorRejected("signature")
	p.ObserveSourceQuery(3 * time.Millisecond)
	p.ObserveSync("upstream", 10, nil)
	p.ObserveSync("upstream", 0, errors.New("down"))
	p.ObserveSummaryCache(true)

	body := scrape(t, p)

	for _, want := range []string{
		`app_build_info{version="test"} 1`,
		`datacube_search_pages_total{last="false",page="first"} 1`,
		`datacube_search_pages_total{last="true",page="next"} 1`,
		`datacube_search_page_records_count 2`,
		`datacube_search_cursor_rejected_total{reason="signature"} 1`,
		`datacube_record_source_query_seconds_count 1`,
		`datacube_sync_datasets_total{outcome="ok",provider="upstream"} 10`,
		`datacube_summary_cache_results_total{outcome="hit"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestProvider_NilIsNoop(t *testing.T) {
	var p *Provider
	p.ObservePage(true, 1, true)
	p.ObserveCursorRejected("x")
	p.ObserveSourceQuery(time.Second)
	p.ObserveHTTP("GET", "/stac", 200, time.Second)
	p.ObserveSync("a", 1, nil)
	p.ObserveSummaryCache(false)
}
