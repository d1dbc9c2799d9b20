package users

import "time"

// User represents an account sourced from the external identity provider.
type User struct {
	ID            int64     `json:"id"`
	ExternalID    string    `json:"external_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Discriminator string    `json:"discriminator"`
	Avatar        string    `json:"avatar"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Profile is the slice of provider data used to create or refresh a User.
type Profile struct {
	ExternalID    string
	Username      string
	Email         string
	Discriminator string
	Avatar        string
}

// Summary is the reduced projection exposed to callers holding only the
// view-level permission.
type Summary struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id"`
	Username   string `json:"username"`
	Avatar     string `json:"avatar"`
}
