package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
)

func TestParseTimeRange(t *testing.T) {
	darwin, err := time.LoadLocation("Australia/Darwin")
	require.NoError(t, err)

	utc := func(y int, m time.Month, d, hh, mm, ss int) time.Time {
		return time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
	}

	tests := []struct {
		name  string
		input string
		loc   *time.Location
		start time.Time
		end   time.Time
	}{
		{
			name:  "explicit interval",
			input: "1986-04-16T01:12:16/2097-05-10T00:24:21",
			loc:   time.UTC,
			start: utc(1986, 4, 16, 1, 12, 16),
			end:   utc(2097, 5, 10, 0, 24, 21),
		},
		{
			name:  "instant is one second",
			input: "1986-04-16T01:12:16",
			loc:   time.UTC,
			start: utc(1986, 4, 16, 1, 12, 16),
			end:   utc(1986, 4, 16, 1, 12, 17),
		},
		{
			name:  "date is whole day",
			input: "1986-04-16",
			loc:   time.UTC,
			start: utc(1986, 4, 16, 0, 0, 0),
			end:   utc(1986, 4, 17, 0, 0, 0),
		},
		{
			name:  "midnight instant is whole day",
			input: "1986-04-16T00:00:00Z",
			loc:   time.UTC,
			start: utc(1986, 4, 16, 0, 0, 0),
			end:   utc(1986, 4, 17, 0, 0, 0),
		},
		{
			name:  "date in grouping zone",
			input: "2017-04-16",
			loc:   darwin,
			start: utc(2017, 4, 15, 14, 30, 0),
			end:   utc(2017, 4, 16, 14, 30, 0),
		},
		{
			name:  "explicit offset wins over grouping zone",
			input: "2017-04-16T10:00:00+10:00",
			loc:   darwin,
			start: utc(2017, 4, 16, 0, 0, 0),
			end:   utc(2017, 4, 16, 0, 0, 1),
		},
		{
			name:  "month",
			input: "2017-02",
			loc:   time.UTC,
			start: utc(2017, 2, 1, 0, 0, 0),
			end:   utc(2017, 3, 1, 0, 0, 0),
		},
		{
			name:  "year",
			input: "2017",
			loc:   time.UTC,
			start: utc(2017, 1, 1, 0, 0, 0),
			end:   utc(2018, 1, 1, 0, 0, 0),
		},
		{
			name:  "open start",
			input: "../2017-05-10T00:24:21Z",
			loc:   time.UTC,
			start: OpenStart,
			end:   utc(2017, 5, 10, 0, 24, 21),
		},
		{
			name:  "open end",
			input: "2017-05-10T00:24:21Z/..",
			loc:   time.UTC,
			start: utc(2017, 5, 10, 0, 24, 21),
			end:   OpenEnd,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimeRange(tt.input, tt.loc)
			require.NoError(t, err)
			assert.True(t, tt.start.Equal(got.Start), "start: want %s, got %s", tt.start, got.Start)
			assert.True(t, tt.end.Equal(got.End), "end: want %s, got %s", tt.end, got.End)
		})
	}
}

func TestParseTimeRange_Invalid(t *testing.T) {
	for _, input := range []string{
		"",
		"not-a-date",
		"2017-05-10/2017-04-16",
		"../..",
		"2017-01-01/2017-02-01/2017-03-01",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseTimeRange(input, time.UTC)
			var fe *domain.FilterError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, domain.FilterInvalid, fe.Kind)
		})
	}
}

func TestFormatTimeRange_RoundTrips(t *testing.T) {
	for _, input := range []string{
		"2017-04-16T01:12:16Z/2017-05-10T00:24:21Z",
		"../2017-05-10T00:24:21Z",
		"2017-04-16T01:12:16Z/..",
	} {
		r, err := ParseTimeRange(input, time.UTC)
		require.NoError(t, err)

		again, err := ParseTimeRange(FormatTimeRange(r), time.UTC)
		require.NoError(t, err)
		assert.Equal(t, r, again)
	}
}
