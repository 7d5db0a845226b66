package model

import "time"

// User is an account that owns uploaded files and archive jobs.
// PasswordHash is a bcrypt hash and is never serialized.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
