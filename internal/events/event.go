// Package events publishes bookmark lifecycle events to a Redis stream and
// consumes them through a consumer group.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bookmarks/bookmarks/internal/model"
	"github.com/oklog/ulid/v2"
)

// Event types.
const (
	TypeBookmarkCreated = "bookmark.created"
)

// Event is the payload carried on the stream.
type Event struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	BookmarkID int64  `json:"bid"`
	Owner      string `json:"owner"`
	URI        string `json:"uri"`
	OccurredAt int64  `json:"t"` // Unix milliseconds
}

// Time returns OccurredAt as a time.Time.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.OccurredAt).UTC()
}

// NewBookmarkCreated builds the event emitted after a bookmark is stored.
func NewBookmarkCreated(b *model.Bookmark, at time.Time) Event {
	return Event{
		ID:         ulid.Make().String(),
		Type:       TypeBookmarkCreated,
		BookmarkID: b.ID,
		Owner:      b.OwnerUsername(),
		URI:        b.URI,
		OccurredAt: at.UnixMilli(),
	}
}

// Validate checks the fields every event must carry.
func (e Event) Validate() error {
	var errs []error
	if e.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if e.Type != TypeBookmarkCreated {
		errs = append(errs, fmt.Errorf("unknown event type %q", e.Type))
	}
	if e.BookmarkID <= 0 {
		errs = append(errs, errors.New("bid must be positive"))
	}
	if e.Owner == "" {
		errs = append(errs, errors.New("owner is required"))
	}
	if e.OccurredAt <= 0 {
		errs = append(errs, errors.New("t must be set"))
	}
	return errors.Join(errs...)
}

func encode(e Event) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(data), nil
}

func decode(payload string) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return e, e.Validate()
}
