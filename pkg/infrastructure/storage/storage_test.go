package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestBloomFilter_TestAndAdd(t *testing.T) {
	filter := NewBloomFilter(Config{
		Size:              1000,
		FalsePositiveRate: 0.01,
	})

	if filter.TestAndAdd(testKey) {
		t.Errorf("Filter should not contain %s initially", testKey)
	}
	if !filter.TestAndAdd(testKey) {
		t.Errorf("Filter should contain %s after first TestAndAdd", testKey)
	}
}

func TestBloomFilter_SaveLoad(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "clients.bloom")

	filter1 := NewBloomFilter(Config{
		Size:              1000,
		FalsePositiveRate: 0.01,
	})

	keys := []string{"aaaa", "bbbb", "cccc"}
	for _, k := range keys {
		filter1.TestAndAdd(k)
	}

	if err := filter1.Save(tmpFile); err != nil {
		t.Fatalf("Failed to save filter: %v", err)
	}

	filter2 := NewBloomFilter(Config{
		Size:              1000,
		FalsePositiveRate: 0.01,
	})
	if err := filter2.Load(tmpFile); err != nil {
		t.Fatalf("Failed to load filter: %v", err)
	}

	for _, k := range keys {
		if !filter2.TestAndAdd(k) {
			t.Errorf("Loaded filter should contain %s", k)
		}
	}
}

func TestBloomFilter_LoadMissingFile(t *testing.T) {
	filter := NewBloomFilter(Config{Size: 10, FalsePositiveRate: 0.01})
	if err := filter.Load(filepath.Join(t.TempDir(), "missing.bloom")); err != nil {
		t.Errorf("Load of a missing file should succeed, got %v", err)
	}
}

func TestFileRateLimitStore_IncrementAndReset(t *testing.T) {
	store, err := NewFileRateLimitStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileRateLimitStore: %v", err)
	}

	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0)
	window := time.Minute

	for i := 1; i <= 3; i++ {
		rec, err := store.Increment(ctx, testKey, start.Add(time.Duration(i)*time.Second), window)
		if err != nil {
			t.Fatalf("Increment: %v", err)
		}
		if rec.Count != i {
			t.Errorf("Count = %d, want %d", rec.Count, i)
		}
		if !rec.WindowStart.Equal(start.Add(time.Second)) {
			t.Errorf("WindowStart = %v, want %v", rec.WindowStart, start.Add(time.Second))
		}
	}

	later := start.Add(2 * time.Minute)
	rec, err := store.Increment(ctx, testKey, later, window)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if rec.Count != 1 || !rec.WindowStart.Equal(later) {
		t.Errorf("after window: Count = %d, WindowStart = %v; want 1, %v", rec.Count, rec.WindowStart, later)
	}
}

func TestFileRateLimitStore_Persists(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	store1, _ := NewFileRateLimitStore(dir)
	if _, err := store1.Increment(context.Background(), testKey, now, time.Minute); err != nil {
		t.Fatalf("Increment: %v", err)
	}

	store2, _ := NewFileRateLimitStore(dir)
	rec, err := store2.Increment(context.Background(), testKey, now, time.Minute)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if rec.Count != 2 {
		t.Errorf("Count = %d, want 2 after reopening the store", rec.Count)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temporary file %s left behind", e.Name())
		}
	}
}

func TestFileRateLimitStore_CorruptRecordResets(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, testKey+".json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	store, _ := NewFileRateLimitStore(dir)
	rec, err := store.Increment(context.Background(), testKey, time.Now(), time.Minute)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if rec.Count != 1 {
		t.Errorf("Count = %d, want 1", rec.Count)
	}
}

func TestFileRateLimitStore_RejectsMalformedKey(t *testing.T) {
	store, _ := NewFileRateLimitStore(t.TempDir())
	for _, key := range []string{"", "../../etc/passwd", "ABCDEF0123456789", "short"} {
		if _, err := store.Increment(context.Background(), key, time.Now(), time.Minute); err == nil {
			t.Errorf("Increment(%q) should fail", key)
		}
	}
}

func TestFileRateLimitStore_ConcurrentIncrements(t *testing.T) {
	store, _ := NewFileRateLimitStore(t.TempDir())
	now := time.Now()

	const n = 50
	var wg sync.WaitGroup
	counts := make(chan int, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			rec, err := store.Increment(context.Background(), testKey, now, time.Minute)
			if err != nil {
				t.Errorf("Increment: %v", err)
				return
			}
			counts <- rec.Count
		}()
	}
	wg.Wait()
	close(counts)

	seen := make(map[int]bool)
	for c := range counts {
		if seen[c] {
			t.Errorf("count %d observed twice, an increment was lost", c)
		}
		seen[c] = true
	}
	if len(seen) != n {
		t.Errorf("observed %d distinct counts, want %d", len(seen), n)
	}
}

// heldKeys returns the number of keys currently locked or waited on
func heldKeys(l *keyLocks) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func TestKeyLocks_ReleasesEntries(t *testing.T) {
	locks := newKeyLocks()
	unlockA := locks.Lock("a")
	unlockB := locks.Lock("b")
	if n := heldKeys(locks); n != 2 {
		t.Errorf("held keys = %d, want 2", n)
	}
	unlockA()
	unlockB()
	if n := heldKeys(locks); n != 0 {
		t.Errorf("held keys = %d, want 0 after release", n)
	}
}

func TestKeyLocks_IndependentKeys(t *testing.T) {
	locks := newKeyLocks()
	unlockA := locks.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := locks.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("locking key b blocked while key a was held")
	}
}
