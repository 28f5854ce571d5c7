package events

import (
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bookmarks/bookmarks/internal/model"
)

func TestNewBookmarkCreated(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	b := &model.Bookmark{
		ID:    12,
		Owner: &model.Account{ID: 1, Username: "jlong"},
		URI:   "http://bookmark.com/jlong",
	}

	e := NewBookmarkCreated(b, at)
	if e.Type != TypeBookmarkCreated {
		t.Errorf("Type = %q", e.Type)
	}
	if e.BookmarkID != 12 || e.Owner != "jlong" || e.URI != b.URI {
		t.Errorf("event = %+v", e)
	}
	if !e.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", e.Time(), at)
	}
	if len(e.ID) != 26 {
		t.Errorf("ID %q should be a ULID", e.ID)
	}
	if err := e.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	b := &model.Bookmark{ID: 3, Owner: &model.Account{Username: "dsyer"}, URI: "http://x"}
	e := NewBookmarkCreated(b, time.Now())

	payload, err := encode(e)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(payload, `"type":"bookmark.created"`) {
		t.Errorf("payload = %s", payload)
	}

	got, err := decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != e {
		t.Errorf("decode() = %+v, want %+v", got, e)
	}
}

func TestDecode_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{"not json", "{", "unmarshal"},
		{"unknown type", `{"id":"x","type":"bookmark.deleted","bid":1,"owner":"a","t":1}`, "unknown event type"},
		{"missing owner", `{"id":"x","type":"bookmark.created","bid":1,"t":1}`, "owner is required"},
		{"bad id", `{"id":"x","type":"bookmark.created","bid":0,"owner":"a","t":1}`, "bid must be positive"},
		{"missing time", `{"id":"x","type":"bookmark.created","bid":1,"owner":"a"}`, "t must be set"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decode(tc.payload)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("decode() error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestNewConsumerID_Unique(t *testing.T) {
	t.Parallel()

	a, b := NewConsumerID(), NewConsumerID()
	if a == "" || a == b {
		t.Errorf("consumer IDs should be non-empty and unique: %q %q", a, b)
	}

	pid := "-" + strconv.Itoa(os.Getpid()) + "-"
	if !strings.Contains(a, pid) {
		t.Errorf("consumer ID %q does not carry pid %s", a, pid)
	}
	if _, err := ulid.ParseStrict(a[strings.LastIndex(a, "-")+1:]); err != nil {
		t.Errorf("consumer ID %q does not end in a ULID: %v", a, err)
	}
}
