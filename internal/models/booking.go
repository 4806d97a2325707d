package models

import "time"

// DateRange is an inclusive calendar-date range describing a stay.
// Start and End are normalized to midnight UTC; a single-day stay has
// Start == End.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NormalizeDate strips the time-of-day and timezone components of t.
// Raw timestamps coming off the wire carry clock times that produce
// false negatives in overlap checks, so every comparison goes through
// this first.
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Normalize returns the range with both ends stripped to calendar dates.
func (r DateRange) Normalize() DateRange {
	return DateRange{Start: NormalizeDate(r.Start), End: NormalizeDate(r.End)}
}

// IsValid reports whether Start <= End after normalization.
func (r DateRange) IsValid() bool {
	n := r.Normalize()
	return !n.Start.After(n.End)
}

// Overlaps reports whether two inclusive ranges share at least one day.
// [s1,e1] and [s2,e2] overlap iff s1 <= e2 && s2 <= e1. A shared boundary
// day counts: same-day turnover is a conflict by policy.
func (r DateRange) Overlaps(other DateRange) bool {
	a, b := r.Normalize(), other.Normalize()
	return !a.Start.After(b.End) && !b.Start.After(a.End)
}

// Contains reports whether the range covers the given calendar date.
func (r DateRange) Contains(date time.Time) bool {
	n := r.Normalize()
	d := NormalizeDate(date)
	return !d.Before(n.Start) && !d.After(n.End)
}

// Days returns the number of calendar days in the range, inclusive.
func (r DateRange) Days() int {
	n := r.Normalize()
	return int(n.End.Sub(n.Start).Hours()/24) + 1
}

// Booking represents a reservation of the house for a date range.
type Booking struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	ArrivalTime     string    `json:"arrival_time,omitempty"`   // advisory, "15:04"
	DepartureTime   string    `json:"departure_time,omitempty"` // advisory, "15:04"
	Guests          int       `json:"guests"`
	UserID          string    `json:"user_id"`
	UserColor       string    `json:"user_color,omitempty"`
	IsDoubleBooking bool      `json:"is_double_booking"`
	Pending         bool      `json:"pending,omitempty"` // local write not yet acknowledged by the remote store
	CreatedAt       time.Time `json:"created_at"`
}

// Range returns the booking's stay as a normalized date range.
func (b *Booking) Range() DateRange {
	return DateRange{Start: b.StartDate, End: b.EndDate}.Normalize()
}

// OverlapsWith checks if this booking's stay overlaps another booking's stay
// under inclusive-date semantics.
func (b *Booking) OverlapsWith(other *Booking) bool {
	return b.Range().Overlaps(other.Range())
}

// ContainsDate checks if the stay covers a specific calendar date.
func (b *Booking) ContainsDate(date time.Time) bool {
	return b.Range().Contains(date)
}

// IsPast reports whether the stay ended before the given date; past
// bookings stay listed but are de-emphasized by clients.
func (b *Booking) IsPast(now time.Time) bool {
	return NormalizeDate(b.EndDate).Before(NormalizeDate(now))
}
