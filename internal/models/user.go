package models

import "time"

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
	UserStatusPending  UserStatus = "pending"
)

type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	DisplayName  string
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RoleAssignment grants a role at a specific practice location.
// An empty LocationID means the role applies at every location.
type RoleAssignment struct {
	UserID     string
	Role       string
	LocationID string
	CreatedAt  time.Time
}

// CoversLocation reports whether the assignment applies at locationID.
func (a RoleAssignment) CoversLocation(locationID string) bool {
	return a.LocationID == "" || a.LocationID == locationID
}
