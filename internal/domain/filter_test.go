package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
)

func TestSortKey_Less(t *testing.T) {
	t0 := time.Date(2017, 4, 20, 1, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		a, b     SortKey
		expected bool
	}{
		{"earlier time", SortKey{t0, "b"}, SortKey{t0.Add(time.Second), "a"}, true},
		{"later time", SortKey{t0.Add(time.Second), "a"}, SortKey{t0, "b"}, false},
		{"tie broken by id", SortKey{t0, "a"}, SortKey{t0, "b"}, true},
		{"equal keys", SortKey{t0, "a"}, SortKey{t0, "a"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Less(tt.b); got != tt.expected {
				t.Errorf("Less() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBBox_Intersects(t *testing.T) {
	query := BBox{MinX: 114, MinY: -33, MaxX: 153, MaxY: -10}

	tests := []struct {
		name     string
		box      BBox
		expected bool
	}{
		{"inside", BBox{120, -30, 121, -29}, true},
		{"overlapping edge", BBox{150, -12, 160, -5}, true},
		{"touching corner", BBox{153, -10, 154, -9}, true},
		{"west of query", BBox{100, -30, 113.9, -29}, false},
		{"north of query", BBox{120, -9, 121, -8}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := query.Intersects(tt.box); got != tt.expected {
				t.Errorf("Intersects() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTimeRange_ContainsIsHalfOpen(t *testing.T) {
	start := time.Date(2017, 4, 16, 0, 0, 0, 0, time.UTC)
	r := TimeRange{Start: start, End: start.Add(24 * time.Hour)}

	if !r.Contains(start) {
		t.Error("expected start to be contained")
	}
	if r.Contains(r.End) {
		t.Error("expected end to be excluded")
	}
	if r.Contains(start.Add(-time.Nanosecond)) {
		t.Error("expected instant before start to be excluded")
	}
}

func TestFilter_Matches(t *testing.T) {
	t0 := time.Date(2017, 4, 20, 1, 0, 0, 0, time.UTC)
	ds := &Dataset{
		ID:         "a",
		Product:    "ls8_nbar_scene",
		CenterTime: t0,
		BBox:       BBox{120, -30, 121, -29},
	}

	tests := []struct {
		name     string
		filter   Filter
		expected bool
	}{
		{"empty filter", Filter{}, true},
		{"product match", Filter{Product: "ls8_nbar_scene"}, true},
		{"product mismatch", Filter{Product: "wofs_albers"}, false},
		{"time match", Filter{Time: &TimeRange{t0, t0.Add(time.Second)}}, true},
		{"time end exclusive", Filter{Time: &TimeRange{t0.Add(-time.Second), t0}}, false},
		{"bbox mismatch", Filter{BBox: &BBox{0, 0, 1, 1}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(ds); got != tt.expected {
				t.Errorf("Matches() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestFilter_MatchesWithoutFootprint(t *testing.T) {
	ds := &Dataset{ID: "a", Product: "ls8_nbar_scene", CenterTime: time.Now()}

	tests := []struct {
		name     string
		filter   Filter
		expected bool
	}{
		{"no bbox", Filter{Product: "ls8_nbar_scene"}, true},
		{"bbox around origin", Filter{BBox: &BBox{-1, -1, 1, 1}}, false},
		{"whole world", Filter{BBox: &BBox{-180, -90, 180, 90}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(ds); got != tt.expected {
				t.Errorf("Matches() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDataset_Normalize(t *testing.T) {
	ds := &Dataset{
		CenterTime: time.Date(2017, 4, 20, 1, 0, 0, 123456789, time.FixedZone("ACST", 34200)),
		Geometry:   orb.Polygon{{{120, -30}, {121, -30}, {121, -29}, {120, -29}, {120, -30}}},
	}
	ds.Normalize()

	if ds.CenterTime.Nanosecond() != 123456000 {
		t.Errorf("expected microsecond truncation, got %d ns", ds.CenterTime.Nanosecond())
	}
	if ds.CenterTime.Location() != time.UTC {
		t.Errorf("expected UTC, got %s", ds.CenterTime.Location())
	}
	if ds.BBox != (BBox{120, -30, 121, -29}) {
		t.Errorf("unexpected bbox %+v", ds.BBox)
	}
}

func TestFilterError_NotFoundUnwraps(t *testing.T) {
	err := error(&FilterError{Kind: FilterNotFound, Field: "product", Message: "unknown product"})

	if !errors.Is(err, ErrNotFound) {
		t.Error("expected not-found filter error to match ErrNotFound")
	}
	if !IsClientError(err) {
		t.Error("expected filter error to be a client error")
	}
	if IsClientError(&SourceError{Op: "query", Err: errors.New("boom")}) {
		t.Error("expected source error not to be a client error")
	}
}
