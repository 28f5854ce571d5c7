// Package memory is an in-process store with the same contract as the
// PostgreSQL repository. It backs tests and local runs without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bookmarks/bookmarks/internal/model"
	"github.com/bookmarks/bookmarks/internal/repository"
)

// Store holds accounts, bookmarks and API keys in maps guarded by one mutex.
type Store struct {
	mu sync.RWMutex

	accountSeq  int64
	bookmarkSeq int64

	accounts  map[string]*model.Account // by username
	bookmarks map[int64]*model.Bookmark
	apiKeys   map[string]*model.APIKey // by id
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		accounts:  make(map[string]*model.Account),
		bookmarks: make(map[int64]*model.Bookmark),
		apiKeys:   make(map[string]*model.APIKey),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// CreateAccount assigns an id and stores the account.
func (s *Store) CreateAccount(_ context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.Username]; ok {
		return repository.ErrUsernameExists
	}
	s.accountSeq++
	account.ID = s.accountSeq
	account.CreatedAt = time.Now().UTC()

	stored := *account
	s.accounts[account.Username] = &stored
	return nil
}

// FindAccountByUsername returns a copy of the account.
func (s *Store) FindAccountByUsername(_ context.Context, username string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[username]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	clone := *account
	return &clone, nil
}

// SaveBookmark assigns the next id and stores the bookmark.
func (s *Store) SaveBookmark(_ context.Context, draft model.BookmarkDraft) (*model.Bookmark, error) {
	if draft.Owner == nil {
		return nil, repository.ErrOwnerRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.bookmarkSeq++
	b := &model.Bookmark{
		ID:          s.bookmarkSeq,
		Owner:       draft.Owner.AsOwner(),
		URI:         draft.URI,
		Description: draft.Description,
		CreatedAt:   time.Now().UTC(),
	}
	s.bookmarks[b.ID] = b
	return cloneBookmark(b), nil
}

// FindBookmarkByID returns a copy of the bookmark.
func (s *Store) FindBookmarkByID(_ context.Context, id int64) (*model.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookmarks[id]
	if !ok {
		return nil, repository.ErrBookmarkNotFound
	}
	return cloneBookmark(b), nil
}

// FindBookmarksByOwnerUsername returns the owner's bookmarks in id order.
func (s *Store) FindBookmarksByOwnerUsername(_ context.Context, username string) ([]*model.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*model.Bookmark{}
	for _, b := range s.bookmarks {
		if b.OwnerUsername() == username {
			out = append(out, cloneBookmark(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateAPIKey stores key. Username is resolved from AccountID.
func (s *Store) CreateAPIKey(_ context.Context, key *model.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *key
	for _, a := range s.accounts {
		if a.ID == key.AccountID {
			stored.Username = a.Username
			break
		}
	}
	s.apiKeys[key.ID] = &stored
	return nil
}

// GetAPIKeyByID returns a copy of the key.
func (s *Store) GetAPIKeyByID(_ context.Context, id string) (*model.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.apiKeys[id]
	if !ok {
		return nil, repository.ErrAPIKeyNotFound
	}
	clone := *key
	return &clone, nil
}

// GetAPIKeysByPrefix returns active keys with the given prefix.
func (s *Store) GetAPIKeysByPrefix(_ context.Context, prefix string) ([]*model.APIKey, error) {
	return s.filterKeys(func(k *model.APIKey) bool {
		return k.KeyPrefix == prefix && !k.IsRevoked()
	}), nil
}

// ListAPIKeysByAccountID returns the account's keys, newest first.
func (s *Store) ListAPIKeysByAccountID(_ context.Context, accountID int64) ([]*model.APIKey, error) {
	keys := s.filterKeys(func(k *model.APIKey) bool { return k.AccountID == accountID })
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.After(keys[j].CreatedAt) })
	return keys, nil
}

// RevokeAPIKey marks an active key revoked.
func (s *Store) RevokeAPIKey(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.apiKeys[id]
	if !ok || key.IsRevoked() {
		return repository.ErrAPIKeyNotFound
	}
	now := time.Now()
	key.RevokedAt = &now
	return nil
}

// UpdateAPIKeyLastUsed sets last_used_at to now.
func (s *Store) UpdateAPIKeyLastUsed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key, ok := s.apiKeys[id]; ok {
		now := time.Now()
		key.LastUsedAt = &now
	}
	return nil
}

func (s *Store) filterKeys(keep func(*model.APIKey) bool) []*model.APIKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.APIKey
	for _, k := range s.apiKeys {
		if keep(k) {
			clone := *k
			out = append(out, &clone)
		}
	}
	return out
}

func cloneBookmark(b *model.Bookmark) *model.Bookmark {
	clone := *b
	if b.Owner != nil {
		owner := *b.Owner
		clone.Owner = &owner
	}
	return &clone
}
