package service

import (
	"sync"
	"testing"
)

func TestNotificationRegistry_DequeueReturnsSameInstance(t *testing.T) {
	r := NewNotificationRegistry()

	first := r.Dequeue("mastodon.example", "u1")
	second := r.Dequeue("mastodon.example", "u1")
	if first != second {
		t.Error("repeated Dequeue for the same account must return the same instance")
	}
	if first.Domain != "mastodon.example" || first.UserID != "u1" {
		t.Errorf("entry should carry its key: %+v", first)
	}
}

func TestNotificationRegistry_KeysAreDistinct(t *testing.T) {
	r := NewNotificationRegistry()

	a := r.Dequeue("mastodon.example", "u1")
	b := r.Dequeue("other.example", "u1")
	c := r.Dequeue("mastodon.example", "u2")

	if a == b || a == c || b == c {
		t.Error("different (domain, userID) pairs must get distinct entries")
	}
}

func TestNotificationRegistry_RemoveEvicts(t *testing.T) {
	r := NewNotificationRegistry()

	first := r.Dequeue("mastodon.example", "u1")
	r.Remove("mastodon.example", "u1")
	second := r.Dequeue("mastodon.example", "u1")

	if first == second {
		t.Error("Dequeue after Remove must construct a fresh entry")
	}
}

// Concurrent first-time lookups for the same account must not race the
// create-if-absent step into two instances.
func TestNotificationRegistry_ConcurrentDequeue(t *testing.T) {
	r := NewNotificationRegistry()

	const n = 50
	results := make([]*NotificationViewModel, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Dequeue("mastodon.example", "u1")
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent Dequeue produced more than one instance")
		}
	}
	if r.Len() != 1 {
		t.Errorf("registry should hold exactly one entry, got %d", r.Len())
	}
}
