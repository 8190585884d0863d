// Package model defines the data structures used throughout the application.
package model

import "time"

// User is one row of the users table.
//
// PasswordDigest carries the bcrypt output and is tagged `json:"-"` so it
// can never leak through an API response, whichever handler encodes the row.
// Bio is nullable in the table and surfaces here as "".
type User struct {
	ID             int64     `json:"user_id"   db:"user_id"`
	Username       string    `json:"username"  db:"username"`
	Email          string    `json:"email"     db:"email"`
	PasswordDigest string    `json:"-"         db:"password_digest"`
	FirstName      string    `json:"firstname" db:"firstname"`
	LastName       string    `json:"lastname"  db:"lastname"`
	Bio            string    `json:"user_bio"  db:"user_bio"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

// PublicUser is the sanitized view returned on login.
type PublicUser struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	ID        int64  `json:"id"`
	Username  string `json:"username"`
}

// Public strips everything but the names and identifiers.
func (u *User) Public() PublicUser {
	return PublicUser{
		FirstName: u.FirstName,
		LastName:  u.LastName,
		ID:        u.ID,
		Username:  u.Username,
	}
}
