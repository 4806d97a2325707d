// Package conflict implements date-range conflict detection for bookings.
package conflict

import "stuga/internal/models"

// FindConflict returns the first existing booking whose stay overlaps the
// candidate range, or nil when the range is free. Ranges are inclusive on
// both ends, so a stay ending on the day another begins counts as a
// conflict (same-day turnover policy). Zero-length ranges are checked like
// any other.
//
// The caller decides what to do with a conflict; nothing is blocked here.
func FindConflict(candidate models.DateRange, existing []models.Booking) *models.Booking {
	c := candidate.Normalize()
	for i := range existing {
		if c.Overlaps(existing[i].Range()) {
			return &existing[i]
		}
	}
	return nil
}

// FindAllConflicts returns every existing booking overlapping the candidate
// range, in input order. Used to show the full picture when a user is asked
// to confirm a double-booking.
func FindAllConflicts(candidate models.DateRange, existing []models.Booking) []models.Booking {
	c := candidate.Normalize()
	var out []models.Booking
	for i := range existing {
		if c.Overlaps(existing[i].Range()) {
			out = append(out, existing[i])
		}
	}
	return out
}
