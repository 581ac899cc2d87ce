package models

import "time"

// User is a row of website_users. ID is assigned by the database and is
// zero until the row has been inserted.
type User struct {
	ID              int64
	Username        string
	Email           string
	DisplayName     string
	Active          bool
	PasswordHash    string
	TwoFactorSecret string
	GPGFingerprint  string
	CreatedAt       time.Time
}

// HasTwoFactor reports whether an encrypted TOTP seed is stored.
func (u *User) HasTwoFactor() bool {
	return u.TwoFactorSecret != ""
}
