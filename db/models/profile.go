package models

import "time"

// Profile represents an application user record.
type Profile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Sanitize returns a copy of the profile without sensitive fields populated.
func (p Profile) Sanitize() Profile {
	p.PasswordHash = ""
	return p
}
