package search

import (
	"strings"
	"time"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
)

// Bounds substituted for open ("..") interval ends.
var (
	OpenStart = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	OpenEnd   = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

type granularity int

const (
	grainInstant granularity = iota
	grainDay
	grainMonth
	grainYear
)

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
}

var localLayouts = []struct {
	layout string
	grain  granularity
}{
	{"2006-01-02T15:04:05.999999999", grainInstant},
	{"2006-01-02 15:04:05.999999999", grainInstant},
	{"2006-01-02T15:04", grainInstant},
	{"2006-01-02", grainDay},
	{"2006-01", grainMonth},
	{"2006", grainYear},
}

// ParseTimeRange parses a single instant or a "start/end" interval.
//
// A single date (or an instant at midnight) covers the whole day, a month
// or year covers the whole period, and any other instant covers one
// second. Interval ends are taken literally and the end is exclusive.
// Values without a UTC offset are read in loc.
func ParseTimeRange(s string, loc *time.Location) (domain.TimeRange, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "/")

	switch len(parts) {
	case 1:
		t, grain, err := parseInstant(parts[0], loc)
		if err != nil {
			return domain.TimeRange{}, err
		}
		return expand(t, grain), nil

	case 2:
		start, end := OpenStart, OpenEnd
		if parts[0] == ".." && parts[1] == ".." {
			return domain.TimeRange{}, domain.InvalidFilter("time", "interval %q has no bounds", s)
		}
		if parts[0] != ".." {
			t, _, err := parseInstant(parts[0], loc)
			if err != nil {
				return domain.TimeRange{}, err
			}
			start = t
		}
		if parts[1] != ".." {
			t, _, err := parseInstant(parts[1], loc)
			if err != nil {
				return domain.TimeRange{}, err
			}
			end = t
		}
		if start.After(end) {
			return domain.TimeRange{}, domain.InvalidFilter("time", "start %s is after end %s",
				start.Format(time.RFC3339), end.Format(time.RFC3339))
		}
		return domain.TimeRange{Start: start.UTC(), End: end.UTC()}, nil

	default:
		return domain.TimeRange{}, domain.InvalidFilter("time", "expected an instant or start/end, got %q", s)
	}
}

// FormatTimeRange renders a range the way ParseTimeRange reads it back.
func FormatTimeRange(r domain.TimeRange) string {
	start, end := "..", ".."
	if !r.Start.Equal(OpenStart) {
		start = r.Start.UTC().Format(time.RFC3339Nano)
	}
	if !r.End.Equal(OpenEnd) {
		end = r.End.UTC().Format(time.RFC3339Nano)
	}
	return start + "/" + end
}

func parseInstant(s string, loc *time.Location) (time.Time, granularity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, 0, domain.InvalidFilter("time", "empty time value")
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, grainInstant, nil
		}
	}
	for _, l := range localLayouts {
		if t, err := time.ParseInLocation(l.layout, s, loc); err == nil {
			return t, l.grain, nil
		}
	}

	return time.Time{}, 0, domain.InvalidFilter("time", "cannot parse %q as a date or ISO 8601 instant", s)
}

func expand(t time.Time, grain granularity) domain.TimeRange {
	var end time.Time
	switch grain {
	case grainYear:
		end = t.AddDate(1, 0, 0)
	case grainMonth:
		end = t.AddDate(0, 1, 0)
	case grainDay:
		end = t.AddDate(0, 0, 1)
	default:
		if isMidnight(t) {
			end = t.AddDate(0, 0, 1)
		} else {
			end = t.Add(time.Second)
		}
	}
	return domain.TimeRange{Start: t.UTC(), End: end.UTC()}
}

func isMidnight(t time.Time) bool {
	h, m, sec := t.Clock()
	return h == 0 && m == 0 && sec == 0 && t.Nanosecond() == 0
}
