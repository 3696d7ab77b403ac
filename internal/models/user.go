package models

import "time"

// User is an identity known to the system. Users invited by email before
// they ever signed in are placeholders until a sign-in claims them.
type User struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	IdentityKey string    `json:"identity_key" gorm:"uniqueIndex;not null"`
	Email       string    `json:"email" gorm:"uniqueIndex;not null"`
	Name        string    `json:"name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CalendarRef string    `json:"calendar_ref,omitempty"` // "<provider>:<account>", empty when no calendar is linked
	Placeholder bool      `json:"placeholder"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// HasCalendar reports whether an external calendar is linked to the user.
func (u *User) HasCalendar() bool {
	return u != nil && u.CalendarRef != ""
}

// Identity is a verified identity handed over by the sign-in layer.
type Identity struct {
	Key         string
	Email       string
	Name        string
	AvatarURL   string
	CalendarRef string
}
