package dto

import (
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
)

// TimeRangeResponse is a closed-open interval in RFC 3339.
type TimeRangeResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// TimelineResponse counts a product's datasets per day or month.
type TimelineResponse struct {
	Product    string             `json:"product"`
	Period     string             `json:"period"`
	TotalCount int                `json:"total_count"`
	TimeRange  *TimeRangeResponse `json:"time_range,omitempty"`
	Series     map[string]int     `json:"series"`
}

// FootprintFeature renders the footprint of an overview as one feature.
// Geometry is null when no dataset had a usable footprint.
func FootprintFeature(ov *domain.Overview) *geojson.Feature {
	f := geojson.NewFeature(ov.Footprint)
	f.ID = ov.Product
	f.Properties["product"] = ov.Product
	f.Properties["dataset_count"] = ov.DatasetCount
	f.Properties["footprint_count"] = ov.FootprintCount
	if ov.TimeEarliest != nil {
		f.Properties["time_earliest"] = formatTime(*ov.TimeEarliest)
		f.Properties["time_latest"] = formatTime(*ov.TimeLatest)
	}
	if ov.Period != nil {
		f.Properties["period"] = timeRange(*ov.Period)
	}
	if ov.BBox != nil {
		f.BBox = geojson.BBox(ov.BBox.Array())
	}
	return f
}

// RegionsCollection renders one feature per region code.
func RegionsCollection(ov *domain.Overview) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range ov.Regions {
		f := geojson.NewFeature(r.Footprint)
		f.ID = r.Code
		f.Properties["region_code"] = r.Code
		f.Properties["count"] = r.Count
		if r.BBox != nil {
			f.BBox = geojson.BBox(r.BBox.Array())
		}
		fc.Append(f)
	}
	return fc
}

// FromTimeline renders the timeline of an overview.
func FromTimeline(ov *domain.Overview) TimelineResponse {
	resp := TimelineResponse{
		Product:    ov.Product,
		Period:     ov.TimelinePeriod,
		TotalCount: ov.DatasetCount,
		Series:     make(map[string]int, len(ov.Timeline)),
	}
	if ov.TimeEarliest != nil {
		resp.TimeRange = &TimeRangeResponse{
			Start: formatTime(*ov.TimeEarliest),
			End:   formatTime(*ov.TimeLatest),
		}
	}
	for _, b := range ov.Timeline {
		resp.Series[b.Date] = b.Count
	}
	return resp
}

func timeRange(r domain.TimeRange) TimeRangeResponse {
	return TimeRangeResponse{Start: formatTime(r.Start), End: formatTime(r.End)}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
