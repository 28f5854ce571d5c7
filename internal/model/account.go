// Package model defines domain entities for the application.
package model

import "time"

// Account is a registered user identity. Bookmarks reference it; it holds no
// list of bookmarks itself.
type Account struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"` // argon2id PHC hash, never serialize
	CreatedAt time.Time `json:"created_at"`
}

// AsOwner copies the account the way bookmark stores return an owner:
// without the password hash and with CreatedAt in UTC.
func (a *Account) AsOwner() *Account {
	owner := *a
	owner.Password = ""
	owner.CreatedAt = owner.CreatedAt.UTC()
	return &owner
}
