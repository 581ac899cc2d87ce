package models

import "time"

// AuthToken is a persisted selector/validator token. The validator itself
// is never stored, only its MAC.
type AuthToken struct {
	ID           string
	UserID       int64
	Selector     string
	ValidatorMAC string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}
