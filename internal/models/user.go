package models

import "time"

// User is a family member known to the house.
type User struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Color       string    `json:"color,omitempty"` // display color, copied onto bookings at creation time
	IsAdmin     bool      `json:"is_admin"`
	IsSuperUser bool      `json:"is_super_user"`
	ChatID      int64     `json:"chat_id,omitempty"` // Telegram chat for arrival reminders
	CreatedAt   time.Time `json:"created_at"`
}

// IsManager reports whether the user holds an elevated role.
func (u *User) IsManager() bool {
	return u.IsAdmin || u.IsSuperUser
}
