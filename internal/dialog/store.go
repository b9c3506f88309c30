package dialog

import (
	"context"
	"sync"
	"time"
)

// Store keeps one dialog state per chat. States expire after ttl so an
// abandoned prompt does not capture a later message.
type Store struct {
	mu    sync.Mutex
	items map[int64]entry
	ttl   time.Duration
	now   func() time.Time
}

type entry struct {
	item    Item
	expires time.Time
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Store{items: map[int64]entry{}, ttl: ttl, now: time.Now}
}

func (s *Store) Get(_ context.Context, chatID int64) *Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[chatID]
	if !ok || s.now().After(e.expires) {
		delete(s.items, chatID)
		return &Item{ChatID: chatID, State: StateIdle, Payload: Payload{}}
	}
	it := e.item
	return &it
}

func (s *Store) Set(_ context.Context, chatID int64, state State, payload Payload) {
	if payload == nil {
		payload = Payload{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[chatID] = entry{
		item:    Item{ChatID: chatID, State: state, Payload: payload},
		expires: s.now().Add(s.ttl),
	}
}

func (s *Store) Reset(_ context.Context, chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, chatID)
}

// GetString reads a string value from the payload.
func GetString(p Payload, key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
