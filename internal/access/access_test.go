package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stuga/internal/models"
)

func TestCanDeleteBooking(t *testing.T) {
	booking := &models.Booking{ID: "b1", UserID: "anna"}

	tests := []struct {
		name string
		user *models.User
		want bool
	}{
		{name: "owner", user: &models.User{ID: "anna"}, want: true},
		{name: "other member", user: &models.User{ID: "erik"}, want: false},
		{name: "admin", user: &models.User{ID: "erik", IsAdmin: true}, want: true},
		{name: "super user", user: &models.User{ID: "erik", IsSuperUser: true}, want: true},
		{name: "nil user", user: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanDeleteBooking(tt.user, booking))
		})
	}
}

func TestCheckDeleteBooking(t *testing.T) {
	booking := &models.Booking{ID: "b1", UserID: "anna"}

	assert.NoError(t, CheckDeleteBooking(&models.User{ID: "anna"}, booking))

	err := CheckDeleteBooking(&models.User{ID: "erik"}, booking)
	assert.Error(t, err)
	assert.True(t, IsPermissionDenied(err))
	assert.Contains(t, err.Error(), "erik")
}

func TestCapabilities(t *testing.T) {
	member := &models.User{ID: "u1"}
	admin := &models.User{ID: "u2", IsAdmin: true}
	super := &models.User{ID: "u3", IsSuperUser: true}

	assert.False(t, CanManage(member))
	assert.True(t, CanManage(admin))
	assert.True(t, CanManage(super))
	assert.False(t, CanManage(nil))

	assert.False(t, CanEditContacts(member))
	assert.True(t, CanEditContacts(admin))
	assert.False(t, CanEditContacts(super))
}
