package service

import (
	"sync"
	"time"
)

// NotificationViewModel is the per-account notification state shared by
// everything that handles pushes for that account. One instance per
// signed-in account, created lazily, reused for the account's lifetime.
type NotificationViewModel struct {
	Domain    string
	UserID    string
	CreatedAt time.Time
}

// NotificationRegistry is the keyed cache of notification view models.
// Lookups are serialized through one lock so create-if-absent stays atomic
// when several accounts' pushes arrive concurrently.
type NotificationRegistry struct {
	mu      sync.Mutex
	entries map[string]*NotificationViewModel
}

func NewNotificationRegistry() *NotificationRegistry {
	return &NotificationRegistry{
		entries: make(map[string]*NotificationViewModel),
	}
}

func registryKey(domain, userID string) string {
	return domain + "@" + userID
}

// Dequeue returns the entry for (domain, userID), constructing and inserting
// it on first use. Repeated calls for the same key return the same instance.
func (r *NotificationRegistry) Dequeue(domain, userID string) *NotificationViewModel {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := registryKey(domain, userID)
	if entry, ok := r.entries[key]; ok {
		return entry
	}

	entry := &NotificationViewModel{
		Domain:    domain,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	r.entries[key] = entry
	return entry
}

// Remove evicts the entry when its account signs out.
func (r *NotificationRegistry) Remove(domain, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, registryKey(domain, userID))
}

// Len reports the number of live entries.
func (r *NotificationRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
