package ids

import (
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestNewSequentialOrdering(t *testing.T) {
	const total = 100
	generated := make([]string, total)
	for i := range generated {
		generated[i] = New()
	}

	for i, id := range generated {
		if len(id) != 26 {
			t.Fatalf("expected ULID length 26, got %d", len(id))
		}
		if _, err := ulid.Parse(id); err != nil {
			t.Fatalf("expected valid ULID, got %v", err)
		}
		if i > 0 && generated[i-1] >= id {
			t.Fatalf("expected ULIDs to be strictly increasing, %s >= %s", generated[i-1], id)
		}
	}
}

func TestNewConcurrentUniqueness(t *testing.T) {
	const goroutines = 10
	const perGoroutine = 20

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{})
	)

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id := New()
				mu.Lock()
				if _, ok := seen[id]; ok {
					t.Errorf("duplicate ULID generated: %s", id)
				}
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != goroutines*perGoroutine {
		t.Fatalf("expected %d unique ULIDs, got %d", goroutines*perGoroutine, len(seen))
	}
}

func TestValid(t *testing.T) {
	if !Valid(New()) {
		t.Fatal("expected generated id to be valid")
	}
	for _, bad := range []string{"", "justsometext", "01ARZ3NDEKTSV4RRFFQ69G5FA"} {
		if Valid(bad) {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
