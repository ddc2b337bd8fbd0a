package users

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps users in process memory in insertion order.
type MemoryStore struct {
	mu        sync.RWMutex
	order     []string
	byID      map[string]User
	byDiscord map[string]string
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:      make(map[string]User),
		byDiscord: make(map[string]string),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Insert(ctx context.Context, in CreateInput) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.DiscordID != "" {
		if _, taken := s.byDiscord[in.DiscordID]; taken {
			return User{}, ErrConflict
		}
	}
	u := newUser(uuid.NewString(), in, s.now())
	s.byID[u.ID] = u
	s.order = append(s.order, u.ID)
	if u.DiscordID != "" {
		s.byDiscord[u.DiscordID] = u.ID
	}
	return clone(u), nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return clone(u), nil
}

func (s *MemoryStore) GetByDiscordID(ctx context.Context, discordID string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byDiscord[discordID]
	if !ok {
		return User{}, ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *MemoryStore) UpdateByID(ctx context.Context, id string, in UpdateInput) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	if in.IsEmpty() {
		return clone(u), nil
	}
	in.Apply(&u)
	u.UpdatedAt = s.now()
	s.byID[id] = u
	return clone(u), nil
}

func (s *MemoryStore) DeleteByID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	if u.DiscordID != "" {
		delete(s.byDiscord, u.DiscordID)
	}
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, f Filter, p Page) ([]User, int, error) {
	return s.collect(p, f.Matches)
}

func (s *MemoryStore) Search(ctx context.Context, query string, p Page) ([]User, int, error) {
	return s.collect(p, func(u User) bool { return matchesQuery(u, query) })
}

func (s *MemoryStore) collect(p Page, match func(User) bool) ([]User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := []User{}
	total := 0
	for _, id := range s.order {
		u := s.byID[id]
		if !match(u) {
			continue
		}
		if total >= p.Skip && len(res) < p.Limit {
			res = append(res, clone(u))
		}
		total++
	}
	return res, total, nil
}

// clone detaches the slices and maps of u from the stored copy.
func clone(u User) User {
	u.Roles = append([]string{}, u.Roles...)
	u.MintWallets = copyMap(u.MintWallets)
	return u
}
