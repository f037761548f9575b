package utils

import (
	"sync"
	"testing"
)

func TestNewIDUniqueAndSortable(t *testing.T) {
	const count = 1000
	ids := make([]string, count)
	seen := make(map[string]bool, count)
	for i := 0; i < count; i++ {
		id := NewID()
		if len(id) != 26 {
			t.Fatalf("ulid must be 26 chars, got %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
		ids[i] = id
	}
	for i := 1; i < count; i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("monotonic entropy violated: %s after %s", ids[i], ids[i-1])
		}
	}
}

func TestNewIDConcurrent(t *testing.T) {
	const workers = 8
	const perWorker = 100

	var mu sync.Mutex
	seen := make(map[string]bool, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := NewID()
				mu.Lock()
				if seen[id] {
					mu.Unlock()
					t.Errorf("duplicate id %s under concurrency", id)
					return
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

func TestIdempotencyKeyDeterministic(t *testing.T) {
	a := IdempotencyKey("payout", "12", "1", "acc-1")
	b := IdempotencyKey("payout", "12", "1", "acc-1")
	if a != b {
		t.Fatalf("same parts must give the same key: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %d chars", len(a))
	}
}

func TestIdempotencyKeyDistinguishesParts(t *testing.T) {
	keys := []string{
		IdempotencyKey("payout", "12", "1", "acc-1"),
		IdempotencyKey("payout", "12", "2", "acc-1"),
		IdempotencyKey("payout", "12", "1", "acc-2"),
		IdempotencyKey("refund", "12", "1", "acc-1"),
	}
	seen := map[string]bool{}
	for _, k := range keys {
		if seen[k] {
			t.Fatalf("collision for distinct parts: %s", k)
		}
		seen[k] = true
	}
}
