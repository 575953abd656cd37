package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// Timeline bucket widths.
const (
	TimelineDay   = "day"
	TimelineMonth = "month"
)

// Overview aggregates the datasets of a product over a period.
type Overview struct {
	Product string
	Period  *TimeRange // nil covers all time

	DatasetCount   int
	FootprintCount int
	TimeEarliest   *time.Time
	TimeLatest     *time.Time
	BBox           *BBox

	// Footprint is nil when no dataset has a publishable footprint.
	Footprint orb.Geometry

	// Regions are ordered by code.
	Regions []RegionOverview

	TimelinePeriod string
	Timeline       []TimelineBucket
}

// RegionOverview counts the datasets sharing a region code.
type RegionOverview struct {
	Code      string
	Count     int
	BBox      *BBox
	Footprint orb.Geometry
}

// TimelineBucket counts datasets whose center time falls on Date, a day
// (2006-01-02) or a month (2006-01) in the grouping time zone.
type TimelineBucket struct {
	Date  string
	Count int
}
