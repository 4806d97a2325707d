package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stuga/internal/models"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func booking(id, name string, start, end time.Time) models.Booking {
	return models.Booking{ID: id, Name: name, StartDate: start, EndDate: end}
}

func TestFindConflict(t *testing.T) {
	anna := booking("b1", "Anna", day(2024, 7, 1), day(2024, 7, 10))

	tests := []struct {
		name      string
		candidate models.DateRange
		existing  []models.Booking
		wantID    string
	}{
		{
			name:      "shared boundary day conflicts",
			candidate: models.DateRange{Start: day(2024, 7, 10), End: day(2024, 7, 15)},
			existing:  []models.Booking{anna},
			wantID:    "b1",
		},
		{
			name:      "adjacent day after is free",
			candidate: models.DateRange{Start: day(2024, 7, 11), End: day(2024, 7, 20)},
			existing:  []models.Booking{anna},
			wantID:    "",
		},
		{
			name:      "single day against empty list",
			candidate: models.DateRange{Start: day(2024, 8, 1), End: day(2024, 8, 1)},
			existing:  nil,
			wantID:    "",
		},
		{
			name:      "single day inside existing stay",
			candidate: models.DateRange{Start: day(2024, 7, 5), End: day(2024, 7, 5)},
			existing:  []models.Booking{anna},
			wantID:    "b1",
		},
		{
			name:      "candidate swallows existing stay",
			candidate: models.DateRange{Start: day(2024, 6, 25), End: day(2024, 7, 20)},
			existing:  []models.Booking{anna},
			wantID:    "b1",
		},
		{
			name:      "first overlapping booking wins",
			candidate: models.DateRange{Start: day(2024, 7, 9), End: day(2024, 7, 16)},
			existing: []models.Booking{
				anna,
				booking("b2", "Erik", day(2024, 7, 14), day(2024, 7, 18)),
			},
			wantID: "b1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindConflict(tt.candidate, tt.existing)
			if tt.wantID == "" {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.Equal(t, tt.wantID, got.ID)
			}
		})
	}
}

// Detection must be symmetric: if creating A conflicts against existing B,
// creating B must conflict against existing A.
func TestFindConflict_Symmetry(t *testing.T) {
	pairs := []struct {
		a, b models.Booking
	}{
		{
			a: booking("a", "A", day(2024, 7, 1), day(2024, 7, 10)),
			b: booking("b", "B", day(2024, 7, 10), day(2024, 7, 15)),
		},
		{
			a: booking("a", "A", day(2024, 7, 1), day(2024, 7, 10)),
			b: booking("b", "B", day(2024, 7, 11), day(2024, 7, 20)),
		},
		{
			a: booking("a", "A", day(2024, 8, 1), day(2024, 8, 1)),
			b: booking("b", "B", day(2024, 8, 1), day(2024, 8, 1)),
		},
	}

	for _, p := range pairs {
		forward := FindConflict(p.a.Range(), []models.Booking{p.b})
		backward := FindConflict(p.b.Range(), []models.Booking{p.a})
		assert.Equal(t, forward != nil, backward != nil,
			"asymmetric detection for %v vs %v", p.a.Range(), p.b.Range())
	}
}

func TestFindAllConflicts(t *testing.T) {
	existing := []models.Booking{
		booking("b1", "Anna", day(2024, 7, 1), day(2024, 7, 10)),
		booking("b2", "Erik", day(2024, 7, 14), day(2024, 7, 18)),
		booking("b3", "Maja", day(2024, 8, 1), day(2024, 8, 5)),
	}

	got := FindAllConflicts(models.DateRange{Start: day(2024, 7, 9), End: day(2024, 7, 16)}, existing)
	if assert.Len(t, got, 2) {
		assert.Equal(t, "b1", got[0].ID)
		assert.Equal(t, "b2", got[1].ID)
	}

	assert.Nil(t, FindAllConflicts(models.DateRange{Start: day(2024, 9, 1), End: day(2024, 9, 2)}, existing))
}
