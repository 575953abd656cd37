package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/app/service"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/infra/memory"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/metrics"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/search"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/stac"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/transport/httpserver/dto"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/transport/httpserver/middleware"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/validator"
)

const testBaseURL = "http://explorer.test"

type stubProvider struct {
	name string
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) FetchProducts(ctx context.Context) ([]*domain.Product, error) {
	return nil, nil
}

func (p *stubProvider) FetchDatasets(ctx context.Context) ([]*domain.Dataset, error) {
	return nil, nil
}

func (p *stubProvider) HealthCheck(ctx context.Context) error { return nil }

type downPinger struct{}

func (downPinger) Ping(ctx context.Context) error { return errors.New("connection refused") }

func darwin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Australia/Darwin")
	require.NoError(t, err)
	return loc
}

func newTestServer(t *testing.T, source middleware.Pinger) *Server {
	t.Helper()
	return newTestServerWithMax(t, source, 20)
}

func newTestServerWithMax(t *testing.T, source middleware.Pinger, maxLimit int) *Server {
	t.Helper()

	store := memory.NewStore()
	require.NoError(t, memory.SeedFixture(context.Background(), store))
	if source == nil {
		source = store
	}

	logger := zap.NewNop()
	m := metrics.Init(metrics.Config{Enabled: true})
	loc := darwin(t)

	resolver := search.NewResolver(store, search.ResolverConfig{DefaultLimit: 4, MaxLimit: maxLimit, Location: loc})
	codec, err := search.NewCursorCodec("test-secret", 0)
	require.NoError(t, err)
	links := stac.NewLinks(testBaseURL)

	searchSvc := service.NewSearchService(
		store,
		store,
		resolver,
		search.NewPaginator(store, codec, resolver, m, logger),
		stac.NewFormatter(links, logger),
		links,
		service.NewSummaryService(store, nil, 0, m, logger),
		service.CatalogInfo{Title: "Explorer", Description: "Test catalog"},
		logger,
	)
	overviewSvc := service.NewOverviewService(store, store, nil, service.OverviewConfig{Location: loc}, logger)
	syncSvc := service.NewSyncService(store, []domain.IndexProvider{&stubProvider{name: "dea"}}, logger)

	return NewServer(
		ServerConfig{
			BodyLimit:   1024 * 1024,
			BaseURL:     testBaseURL,
			Location:    loc,
			MetricsPath: "/metrics",
		},
		searchSvc,
		overviewSvc,
		syncSvc,
		source,
		validator.New(),
		m,
		logger,
	)
}

type featureCollection struct {
	Type     string `json:"type"`
	Features []struct {
		ID         string `json:"id"`
		Collection string `json:"collection"`
	} `json:"features"`
	Links   []stac.Link        `json:"links"`
	Context stac.SearchContext `json:"context"`
}

func (fc featureCollection) next() (string, bool) {
	for _, l := range fc.Links {
		if l.Rel == "next" {
			return l.Href, true
		}
	}
	return "", false
}

func do(t *testing.T, s *Server, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.App.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, body
}

func get(t *testing.T, s *Server, target string) (*http.Response, []byte) {
	t.Helper()
	return do(t, s, httptest.NewRequest(http.MethodGet, target, nil))
}

func decodeError(t *testing.T, body []byte) dto.ErrorResponse {
	t.Helper()
	var e dto.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e), string(body))
	return e
}

func searchURL(q url.Values) string {
	return "/stac/search?" + q.Encode()
}

func TestSearch_FollowsNextLinks(t *testing.T) {
	s := newTestServer(t, nil)

	target := searchURL(url.Values{"bbox": {memory.FixtureBBox}, "time": {memory.FixtureTime}})
	seen := map[string]bool{}
	pages := 0
	for {
		resp, body := get(t, s, target)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.Contains(t, resp.Header.Get("Content-Type"), "application/geo+json")

		var fc featureCollection
		require.NoError(t, json.Unmarshal(body, &fc))
		assert.Equal(t, "FeatureCollection", fc.Type)
		assert.Equal(t, len(fc.Features), fc.Context.Returned)
		for _, f := range fc.Features {
			assert.False(t, seen[f.ID], "duplicate item %s", f.ID)
			seen[f.ID] = true
		}
		pages++

		next, ok := fc.next()
		if !ok {
			break
		}
		u, err := url.Parse(next)
		require.NoError(t, err)
		assert.Equal(t, []string{"cursor"}, keys(u.Query()))
		target = u.RequestURI()
	}

	assert.Len(t, seen, memory.FixtureMatching)
	assert.Equal(t, 17, pages)
}

func TestSearch_Post(t *testing.T) {
	s := newTestServer(t, nil)

	body := `{"bbox":[114,-33,153,-10],"time":"` + memory.FixtureTime + `","limit":20}`
	req := httptest.NewRequest(http.MethodPost, "/stac/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, raw := do(t, s, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var fc featureCollection
	require.NoError(t, json.Unmarshal(raw, &fc))
	assert.Equal(t, 20, fc.Context.Limit)
	assert.Len(t, fc.Features, 20)

	next, ok := fc.next()
	require.True(t, ok)
	cursor, err := url.Parse(next)
	require.NoError(t, err)

	cont := `{"cursor":"` + cursor.Query().Get("cursor") + `"}`
	req = httptest.NewRequest(http.MethodPost, "/stac/search", strings.NewReader(cont))
	req.Header.Set("Content-Type", "application/json")
	resp, raw = do(t, s, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	require.NoError(t, json.Unmarshal(raw, &fc))
	assert.Len(t, fc.Features, 20)
}

func TestSearch_UnfilteredAtDefaultPageSize(t *testing.T) {
	s := newTestServer(t, nil)

	target := "/stac/search"
	seen := map[string]bool{}
	pages := 0
	for {
		resp, body := get(t, s, target)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var fc featureCollection
		require.NoError(t, json.Unmarshal(body, &fc))
		assert.Equal(t, 4, fc.Context.Limit)
		for _, f := range fc.Features {
			assert.False(t, seen[f.ID], "duplicate item %s", f.ID)
			seen[f.ID] = true
		}
		pages++

		next, ok := fc.next()
		if !ok {
			break
		}
		require.Less(t, pages, 200, "pagination does not terminate")
		u, err := url.Parse(next)
		require.NoError(t, err)
		target = u.RequestURI()
	}

	assert.Len(t, seen, memory.FixtureTotal)
	assert.Equal(t, 99, pages)
}

func TestSearch_BBoxWithoutRecords(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := get(t, s, searchURL(url.Values{"bbox": {"-170,-40,-160,-30"}}))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var fc featureCollection
	require.NoError(t, json.Unmarshal(body, &fc))
	assert.NotNil(t, fc.Features)
	assert.Empty(t, fc.Features)
	_, ok := fc.next()
	assert.False(t, ok)
}

func TestSearch_FirstPageIsRepeatable(t *testing.T) {
	s := newTestServer(t, nil)
	target := searchURL(url.Values{"bbox": {memory.FixtureBBox}, "time": {memory.FixtureTime}})

	resp, first := get(t, s, target)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(first))
	resp, again := get(t, s, target)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(again))

	assert.JSONEq(t, string(first), string(again))
}

func TestSearch_StaleCursor(t *testing.T) {
	issuer := newTestServer(t, nil)

	resp, body := get(t, issuer, searchURL(url.Values{"limit": {"20"}}))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var fc featureCollection
	require.NoError(t, json.Unmarshal(body, &fc))
	next, ok := fc.next()
	require.True(t, ok)
	u, err := url.Parse(next)
	require.NoError(t, err)

	// Same secret, lower page size ceiling: the cursor no longer revalidates.
	narrowed := newTestServerWithMax(t, nil, 10)
	resp, body = get(t, narrowed, u.RequestURI())
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))

	e := decodeError(t, body)
	assert.Equal(t, dto.CodeInvalidCursor, e.Code)
	assert.Contains(t, e.Error, search.MaxPageSizeMessage)
	assert.Contains(t, e.Error, "restart pagination")
}

func TestSearch_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name     string
		method   string
		target   string
		body     string
		wantCode int
		wantErr  string
		contains string
	}{
		{
			name:     "limit above maximum",
			target:   searchURL(url.Values{"limit": {"21"}}),
			wantCode: http.StatusBadRequest,
			wantErr:  dto.CodeInvalidFilter,
			contains: search.MaxPageSizeMessage,
		},
		{
			name:     "limit not a number",
			target:   searchURL(url.Values{"limit": {"many"}}),
			wantCode: http.StatusBadRequest,
			wantErr:  dto.CodeInvalidFilter,
		},
		{
			name:     "malformed bbox",
			target:   searchURL(url.Values{"bbox": {"a,b,c,d"}}),
			wantCode: http.StatusBadRequest,
			wantErr:  dto.CodeInvalidFilter,
		},
		{
			name:     "unknown product",
			target:   searchURL(url.Values{"product": {"nope"}}),
			wantCode: http.StatusNotFound,
			wantErr:  dto.CodeNotFound,
		},
		{
			name:     "garbage cursor",
			target:   searchURL(url.Values{"cursor": {"not-a-cursor"}}),
			wantCode: http.StatusBadRequest,
			wantErr:  dto.CodeInvalidCursor,
			contains: "restart pagination",
		},
		{
			name:     "post bbox with three values",
			method:   http.MethodPost,
			target:   "/stac/search",
			body:     `{"bbox":[1,2,3]}`,
			wantCode: http.StatusBadRequest,
			wantErr:  dto.CodeValidation,
		},
		{
			name:     "post malformed json",
			method:   http.MethodPost,
			target:   "/stac/search",
			body:     `{"bbox":`,
			wantCode: http.StatusBadRequest,
			wantErr:  dto.CodeInvalidParams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			var body io.Reader
			if tt.body != "" {
				body = bytes.NewBufferString(tt.body)
			}
			req := httptest.NewRequest(method, tt.target, body)
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, raw := do(t, s, req)
			assert.Equal(t, tt.wantCode, resp.StatusCode, string(raw))
			e := decodeError(t, raw)
			assert.Equal(t, tt.wantErr, e.Code)
			if tt.contains != "" {
				assert.Contains(t, e.Error, tt.contains)
			}
		})
	}
}

func TestStac_BrowseEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := get(t, s, "/stac")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cat stac.Catalog
	require.NoError(t, json.Unmarshal(body, &cat))
	assert.Len(t, cat.Links, 4)

	resp, body = get(t, s, "/stac/collections")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var list stac.CollectionList
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Collections, 3)
	assert.Equal(t, "high_tide_comp_20p", list.Collections[0].ID)

	resp, body = get(t, s, "/stac/collections/wofs_albers")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var col map[string]any
	require.NoError(t, json.Unmarshal(body, &col))
	assert.Equal(t, "wofs_albers", col["id"])
	assert.Contains(t, col, "extent")

	resp, body = get(t, s, "/stac/collections/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, dto.CodeNotFound, decodeError(t, body).Code)

	resp, body = get(t, s, "/stac/collections/wofs_albers/items?limit=5")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var fc featureCollection
	require.NoError(t, json.Unmarshal(body, &fc))
	assert.Len(t, fc.Features, 5)
	for _, f := range fc.Features {
		assert.Equal(t, "wofs_albers", f.Collection)
	}
	next, ok := fc.next()
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(next, testBaseURL+"/stac/collections/wofs_albers/items?cursor="))
}

func TestStac_Item(t *testing.T) {
	s := newTestServer(t, nil)
	ds := memory.FixtureDatasets()[0]

	resp, body := get(t, s, "/stac/collections/"+ds.Product+"/items/"+ds.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/geo+json")
	var item map[string]any
	require.NoError(t, json.Unmarshal(body, &item))
	assert.Equal(t, ds.ID, item["id"])

	other := "wofs_albers"
	if ds.Product == other {
		other = "ls8_nbar_scene"
	}
	resp, body = get(t, s, "/stac/collections/"+other+"/items/"+ds.ID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, decodeError(t, body).Error, "Perhaps you meant collection "+ds.Product)

	resp, _ = get(t, s, "/stac/collections/"+ds.Product+"/items/00000000-0000-0000-0000-000000000000")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDatasets_Redirect(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name     string
		target   string
		wantTime string
	}{
		{"product only", "/api/datasets/wofs_albers", ""},
		{"year", "/api/datasets/wofs_albers/2017", "2016-12-31T14:30:00Z/2017-12-31T14:30:00Z"},
		{"month", "/api/datasets/wofs_albers/2017/04", "2017-03-31T14:30:00Z/2017-04-30T14:30:00Z"},
		{"day", "/api/datasets/wofs_albers/2017/04/16", "2017-04-15T14:30:00Z/2017-04-16T14:30:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := get(t, s, tt.target)
			require.Equal(t, http.StatusFound, resp.StatusCode)

			loc, err := url.Parse(resp.Header.Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, "/stac/search", loc.Path)
			assert.Equal(t, "wofs_albers", loc.Query().Get("product"))
			assert.Equal(t, tt.wantTime, loc.Query().Get("time"))
		})
	}

	resp, _ := get(t, s, "/api/datasets/wofs_albers/2017?bbox=114,-33,153,-10&limit=7&collections=other")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "114,-33,153,-10", loc.Query().Get("bbox"))
	assert.Equal(t, "7", loc.Query().Get("limit"))
	assert.Empty(t, loc.Query().Get("collections"))

	for _, bad := range []string{"/api/datasets/wofs_albers/2017/13", "/api/datasets/wofs_albers/twenty"} {
		resp, body := get(t, s, bad)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, bad)
		assert.Equal(t, dto.CodeInvalidParams, decodeError(t, body).Code)
	}
}

func TestOverview_Footprint(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := get(t, s, "/api/footprint/ls8_nbar_scene")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/geo+json")

	f, err := geojson.UnmarshalFeature(body)
	require.NoError(t, err)
	assert.Equal(t, "ls8_nbar_scene", f.ID)
	assert.EqualValues(t, memory.FixtureTotal/3, f.Properties["dataset_count"])
	mp, ok := f.Geometry.(orb.MultiPolygon)
	require.True(t, ok, "geometry is %T", f.Geometry)
	assert.Len(t, mp, memory.FixtureTotal/3)
	assert.Len(t, f.BBox, 4)
	assert.NotContains(t, f.Properties, "period")

	resp, body = get(t, s, "/api/footprint/ls8_nbar_scene/2017/04/16")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	f, err = geojson.UnmarshalFeature(body)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"start": "2017-04-15T14:30:00Z",
		"end":   "2017-04-16T14:30:00Z",
	}, f.Properties["period"])
}

func TestOverview_EmptyPeriod(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := get(t, s, "/api/footprint/wofs_albers/2001")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"geometry":null`)

	resp, body = get(t, s, "/api/regions/wofs_albers/2001")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fc, err := geojson.UnmarshalFeatureCollection(body)
	require.NoError(t, err)
	assert.Empty(t, fc.Features)
}

func TestOverview_Regions(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := get(t, s, "/api/regions/wofs_albers")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/geo+json")

	fc, err := geojson.UnmarshalFeatureCollection(body)
	require.NoError(t, err)
	require.NotEmpty(t, fc.Features)

	total := 0
	for _, f := range fc.Features {
		assert.Equal(t, f.ID, f.Properties["region_code"])
		assert.NotNil(t, f.Geometry, "region %v", f.ID)
		total += int(f.Properties.MustFloat64("count"))
	}
	assert.Equal(t, memory.FixtureTotal/3, total)
}

func TestOverview_Timeline(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := get(t, s, "/api/timeline/ls8_nbar_scene/2017/04")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var tl dto.TimelineResponse
	require.NoError(t, json.Unmarshal(body, &tl))
	assert.Equal(t, "ls8_nbar_scene", tl.Product)
	assert.Equal(t, "day", tl.Period)
	require.NotZero(t, tl.TotalCount)
	require.NotNil(t, tl.TimeRange)

	total := 0
	for day, n := range tl.Series {
		assert.True(t, strings.HasPrefix(day, "2017-04-"), day)
		total += n
	}
	assert.Equal(t, tl.TotalCount, total)

	// The footprint of the same period counts the same datasets.
	_, body = get(t, s, "/api/footprint/ls8_nbar_scene/2017/04")
	f, err := geojson.UnmarshalFeature(body)
	require.NoError(t, err)
	assert.EqualValues(t, tl.TotalCount, f.Properties["dataset_count"])
}

func TestOverview_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		target     string
		wantStatus int
		wantCode   string
	}{
		{"/api/footprint/landsat_9000", http.StatusNotFound, dto.CodeNotFound},
		{"/api/regions/landsat_9000/2017", http.StatusNotFound, dto.CodeNotFound},
		{"/api/timeline/landsat_9000", http.StatusNotFound, dto.CodeNotFound},
		{"/api/timeline/wofs_albers/2017/13", http.StatusBadRequest, dto.CodeInvalidParams},
		{"/api/footprint/wofs_albers/2017/02/31", http.StatusBadRequest, dto.CodeInvalidParams},
		{"/api/regions/wofs_albers/year", http.StatusBadRequest, dto.CodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			resp, body := get(t, s, tt.target)
			assert.Equal(t, tt.wantStatus, resp.StatusCode, string(body))
			assert.Equal(t, tt.wantCode, decodeError(t, body).Code)
		})
	}
}

func TestAdmin_Endpoints(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := get(t, s, "/api/v1/admin/providers")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var providers dto.ProvidersResponse
	require.NoError(t, json.Unmarshal(body, &providers))
	assert.Equal(t, []string{"dea"}, providers.Providers)

	resp, body = do(t, s, httptest.NewRequest(http.MethodPost, "/api/v1/admin/sync", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sync dto.SyncResponse
	require.NoError(t, json.Unmarshal(body, &sync))
	assert.Equal(t, 1, sync.Summary.ProvidersOK)

	resp, _ = do(t, s, httptest.NewRequest(http.MethodPost, "/api/v1/admin/sync/dea", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, s, httptest.NewRequest(http.MethodPost, "/api/v1/admin/sync/unknown", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "PROVIDER_NOT_FOUND", decodeError(t, body).Code)
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	resp, _ := get(t, s, "/livez")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = get(t, s, "/readyz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := get(t, s, "/nowhere")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, dto.CodeNotFound, decodeError(t, body).Code)

	get(t, s, "/stac")
	resp, body = get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `http_requests_total{method="GET",route="/stac`)

	down := newTestServer(t, downPinger{})
	resp, _ = get(t, down, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp, _ = get(t, down, "/livez")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func keys(q url.Values) []string {
	out := make([]string, 0, len(q))
	for k := range q {
		out = append(out, k)
	}
	return out
}
