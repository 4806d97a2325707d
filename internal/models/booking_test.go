package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Helper function to create a date
func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalizeDate(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Stockholm")
	assert.NoError(t, err)

	raw := time.Date(2024, 7, 1, 23, 45, 12, 0, loc)
	got := NormalizeDate(raw)

	assert.Equal(t, day(2024, 7, 1), got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestDateRange_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		r     DateRange
		valid bool
	}{
		{
			name:  "start before end",
			r:     DateRange{Start: day(2024, 7, 1), End: day(2024, 7, 10)},
			valid: true,
		},
		{
			name:  "single day",
			r:     DateRange{Start: day(2024, 8, 1), End: day(2024, 8, 1)},
			valid: true,
		},
		{
			name:  "start after end",
			r:     DateRange{Start: day(2024, 7, 10), End: day(2024, 7, 1)},
			valid: false,
		},
		{
			name: "time components ignored",
			r: DateRange{
				Start: time.Date(2024, 7, 1, 23, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 7, 1, 1, 0, 0, 0, time.UTC),
			},
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.r.IsValid())
		})
	}
}

func TestDateRange_Overlaps(t *testing.T) {
	tests := []struct {
		name    string
		a       DateRange
		b       DateRange
		overlap bool
	}{
		{
			name:    "disjoint ranges",
			a:       DateRange{Start: day(2024, 7, 1), End: day(2024, 7, 10)},
			b:       DateRange{Start: day(2024, 7, 11), End: day(2024, 7, 20)},
			overlap: false,
		},
		{
			name:    "shared boundary day counts",
			a:       DateRange{Start: day(2024, 7, 1), End: day(2024, 7, 10)},
			b:       DateRange{Start: day(2024, 7, 10), End: day(2024, 7, 15)},
			overlap: true,
		},
		{
			name:    "candidate inside existing",
			a:       DateRange{Start: day(2024, 7, 1), End: day(2024, 7, 20)},
			b:       DateRange{Start: day(2024, 7, 5), End: day(2024, 7, 7)},
			overlap: true,
		},
		{
			name:    "candidate contains existing",
			a:       DateRange{Start: day(2024, 7, 5), End: day(2024, 7, 7)},
			b:       DateRange{Start: day(2024, 7, 1), End: day(2024, 7, 20)},
			overlap: true,
		},
		{
			name:    "single day against itself",
			a:       DateRange{Start: day(2024, 8, 1), End: day(2024, 8, 1)},
			b:       DateRange{Start: day(2024, 8, 1), End: day(2024, 8, 1)},
			overlap: true,
		},
		{
			name:    "single day just outside",
			a:       DateRange{Start: day(2024, 8, 1), End: day(2024, 8, 1)},
			b:       DateRange{Start: day(2024, 8, 2), End: day(2024, 8, 2)},
			overlap: false,
		},
		{
			name: "differing time components still overlap",
			a: DateRange{
				Start: time.Date(2024, 7, 10, 18, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 7, 10, 18, 0, 0, 0, time.UTC),
			},
			b:       DateRange{Start: day(2024, 7, 1), End: day(2024, 7, 10)},
			overlap: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.overlap, tt.a.Overlaps(tt.b))
			// Overlap is symmetric.
			assert.Equal(t, tt.overlap, tt.b.Overlaps(tt.a))
		})
	}
}

func TestDateRange_Contains(t *testing.T) {
	r := DateRange{Start: day(2024, 7, 1), End: day(2024, 7, 10)}

	assert.True(t, r.Contains(day(2024, 7, 1)))
	assert.True(t, r.Contains(day(2024, 7, 10)))
	assert.True(t, r.Contains(time.Date(2024, 7, 5, 13, 30, 0, 0, time.UTC)))
	assert.False(t, r.Contains(day(2024, 6, 30)))
	assert.False(t, r.Contains(day(2024, 7, 11)))
}

func TestDateRange_Days(t *testing.T) {
	assert.Equal(t, 1, DateRange{Start: day(2024, 8, 1), End: day(2024, 8, 1)}.Days())
	assert.Equal(t, 10, DateRange{Start: day(2024, 7, 1), End: day(2024, 7, 10)}.Days())
}

func TestBooking_IsPast(t *testing.T) {
	b := Booking{StartDate: day(2024, 7, 1), EndDate: day(2024, 7, 10)}

	assert.False(t, b.IsPast(day(2024, 7, 10)))
	assert.True(t, b.IsPast(day(2024, 7, 11)))
}

func TestUser_IsManager(t *testing.T) {
	assert.False(t, (&User{}).IsManager())
	assert.True(t, (&User{IsAdmin: true}).IsManager())
	assert.True(t, (&User{IsSuperUser: true}).IsManager())
}
