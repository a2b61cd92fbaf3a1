package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/uteshop/uteshop-api/internal/core"
)

type NotificationStore struct {
	mu    sync.RWMutex
	items []core.Notification
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{}
}

func (s *NotificationStore) Create(_ context.Context, n core.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, n)
	return nil
}

func (s *NotificationStore) List(_ context.Context, recipient string, unreadOnly bool, p core.Page) ([]core.Notification, int64, error) {
	s.mu.RLock()
	var out []core.Notification
	for _, n := range s.items {
		if n.Recipient == recipient && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b core.Notification) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return paginate(out, p), int64(len(out)), nil
}

func (s *NotificationStore) CountUnread(_ context.Context, recipient string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, it := range s.items {
		if it.Recipient == recipient && !it.Read {
			n++
		}
	}
	return n, nil
}

func (s *NotificationStore) MarkRead(_ context.Context, recipient, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.items {
		if n.ID == id && n.Recipient == recipient {
			s.items[i].Read = true
			return nil
		}
	}
	return core.ErrNotificationNotFound
}

func (s *NotificationStore) MarkAllRead(_ context.Context, recipient string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i, it := range s.items {
		if it.Recipient == recipient && !it.Read {
			s.items[i].Read = true
			n++
		}
	}
	return n, nil
}

func (s *NotificationStore) DeleteRead(_ context.Context, recipient string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.items)
	s.items = slices.DeleteFunc(s.items, func(n core.Notification) bool {
		return n.Recipient == recipient && n.Read
	})
	return int64(before - len(s.items)), nil
}
