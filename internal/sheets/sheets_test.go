package sheets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stuga/internal/models"
)

func TestCalendarValues(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2024, 7, d, 0, 0, 0, 0, time.UTC)
	}
	created := time.Date(2024, 6, 20, 10, 30, 0, 0, time.UTC)

	bookings := []models.Booking{
		{Name: "Anna", StartDate: day(1), EndDate: day(10), ArrivalTime: "15:00", Guests: 3, CreatedAt: created},
		{Name: "Erik", StartDate: day(10), EndDate: day(15), Guests: 1, IsDoubleBooking: true, CreatedAt: created},
	}

	values := calendarValues(bookings)
	require.Len(t, values, 3, "header plus two bookings")

	assert.Equal(t, "Who", values[0][0])
	assert.Equal(t, "Anna", values[1][0])
	assert.Equal(t, "2024-07-01", values[1][1])
	assert.Equal(t, "15:00", values[1][3])
	assert.Equal(t, "", values[1][6])
	assert.Equal(t, "yes", values[2][6])
	assert.Equal(t, "2024-06-20 10:30:00", values[2][7])
}

func TestCalendarValues_Empty(t *testing.T) {
	values := calendarValues(nil)
	require.Len(t, values, 1, "header only")
}
