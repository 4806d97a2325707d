// Package access centralizes capability checks so permission logic lives in
// one testable place instead of being scattered through handlers.
package access

import (
	"errors"
	"fmt"

	"stuga/internal/models"
)

// PermissionDeniedError is returned when a user attempts an operation their
// role does not allow.
type PermissionDeniedError struct {
	UserID string
	Action string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s", e.UserID, e.Action)
}

// IsPermissionDenied checks if err is a permission denial.
func IsPermissionDenied(err error) bool {
	var pd *PermissionDeniedError
	return errors.As(err, &pd)
}

// CanDeleteBooking reports whether user may delete the booking. Owners may
// delete their own bookings; admins and super-users may delete any.
func CanDeleteBooking(user *models.User, booking *models.Booking) bool {
	if user == nil || booking == nil {
		return false
	}
	return user.ID == booking.UserID || user.IsManager()
}

// CanManage reports whether user holds an elevated role (admin panel,
// settings, exports).
func CanManage(user *models.User) bool {
	return user != nil && user.IsManager()
}

// CanEditContacts reports whether user may edit the shared contact list.
// Any admin qualifies; regular members are read-only.
func CanEditContacts(user *models.User) bool {
	return user != nil && user.IsAdmin
}

// CheckDeleteBooking returns a PermissionDeniedError when user may not
// delete the booking, nil otherwise.
func CheckDeleteBooking(user *models.User, booking *models.Booking) error {
	if CanDeleteBooking(user, booking) {
		return nil
	}
	userID := ""
	if user != nil {
		userID = user.ID
	}
	return &PermissionDeniedError{UserID: userID, Action: "delete booking"}
}
