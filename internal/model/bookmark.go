package model

import (
	"strconv"
	"time"
)

// Bookmark is a URI plus description owned by exactly one Account.
// Owner is always populated by the stores, never reassigned, and never
// carries the password hash (see Account.AsOwner).
type Bookmark struct {
	ID          int64     `json:"id"`
	Owner       *Account  `json:"-"`
	URI         string    `json:"uri"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// OwnerUsername returns the owning account's username, or "" for a bookmark
// without a resolved owner.
func (b *Bookmark) OwnerUsername() string {
	if b == nil || b.Owner == nil {
		return ""
	}
	return b.Owner.Username
}

// BookmarkDraft is a bookmark that has not been persisted yet.
type BookmarkDraft struct {
	Owner       *Account
	URI         string
	Description string
}

// CachedBookmark is a bookmark flattened into a Redis hash. It carries the
// owner as bookmark stores return it, so a cached read equals the stored
// one. Timestamps are Unix nanoseconds in UTC.
type CachedBookmark struct {
	URI            string `redis:"uri"`
	Description    string `redis:"description"`
	CreatedAt      string `redis:"created_at_ns"`
	OwnerID        string `redis:"owner_id"`
	OwnerUsername  string `redis:"owner_username"`
	OwnerCreatedAt string `redis:"owner_created_at_ns"`
}

// NewCachedBookmark flattens a bookmark for storage in a Redis hash.
func NewCachedBookmark(b *Bookmark) *CachedBookmark {
	c := &CachedBookmark{
		URI:         b.URI,
		Description: b.Description,
		CreatedAt:   formatNanos(b.CreatedAt),
	}
	if b.Owner != nil {
		c.OwnerID = strconv.FormatInt(b.Owner.ID, 10)
		c.OwnerUsername = b.Owner.Username
		c.OwnerCreatedAt = formatNanos(b.Owner.CreatedAt)
	}
	return c
}

// ToBookmark rebuilds the bookmark with the given id. Callers check
// Complete first.
func (c *CachedBookmark) ToBookmark(id int64) *Bookmark {
	ownerID, _ := strconv.ParseInt(c.OwnerID, 10, 64)
	return &Bookmark{
		ID:          id,
		URI:         c.URI,
		Description: c.Description,
		CreatedAt:   parseNanos(c.CreatedAt),
		Owner: &Account{
			ID:        ownerID,
			Username:  c.OwnerUsername,
			CreatedAt: parseNanos(c.OwnerCreatedAt),
		},
	}
}

// Complete reports whether the hash has every field ToBookmark needs.
// Entries written in an older layout are incomplete and read as misses.
func (c *CachedBookmark) Complete() bool {
	return c.OwnerID != "" && c.OwnerUsername != "" && c.CreatedAt != "" && c.OwnerCreatedAt != ""
}

func formatNanos(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseNanos(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
