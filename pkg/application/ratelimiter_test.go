package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/WangYihang/netcheck/pkg/domain/entity"
	"github.com/WangYihang/netcheck/pkg/infrastructure/storage"
)

const clientKey = "f00dfeedf00dfeedf00dfeedf00dfeed"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T, max int, window time.Duration) (*FixedWindowLimiter, *fakeClock) {
	t.Helper()
	store, err := storage.NewFileRateLimitStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileRateLimitStore: %v", err)
	}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	limiter := NewFixedWindowLimiter(RateLimitConfig{MaxRequests: max, Window: window}, store)
	limiter.now = clock.Now
	return limiter, clock
}

func TestFixedWindowLimiter_WindowSequence(t *testing.T) {
	limiter, clock := newTestLimiter(t, 3, 60*time.Second)
	ctx := context.Background()

	want := []bool{true, true, true, false}
	for i, expected := range want {
		decision, err := limiter.Admit(ctx, clientKey)
		if err != nil {
			t.Fatalf("Admit #%d: %v", i+1, err)
		}
		if decision.Allowed != expected {
			t.Errorf("Admit #%d Allowed = %v, want %v", i+1, decision.Allowed, expected)
		}
		clock.Advance(time.Second)
	}

	clock.Advance(61 * time.Second)
	decision, err := limiter.Admit(ctx, clientKey)
	if err != nil {
		t.Fatalf("Admit after window: %v", err)
	}
	if !decision.Allowed {
		t.Error("Admit after the window elapsed should be allowed")
	}
	if decision.Count != 1 {
		t.Errorf("Count after reset = %d, want 1", decision.Count)
	}
}

func TestFixedWindowLimiter_DeniedAttemptsAreCounted(t *testing.T) {
	limiter, clock := newTestLimiter(t, 1, 60*time.Second)
	ctx := context.Background()

	limiter.Admit(ctx, clientKey)
	for i := 0; i < 3; i++ {
		clock.Advance(10 * time.Second)
		decision, _ := limiter.Admit(ctx, clientKey)
		if decision.Allowed {
			t.Fatalf("attempt %d inside the window was allowed", i+2)
		}
		if decision.Count != i+2 {
			t.Errorf("Count = %d, want %d", decision.Count, i+2)
		}
	}
}

func TestFixedWindowLimiter_RetryAfter(t *testing.T) {
	limiter, clock := newTestLimiter(t, 1, 60*time.Second)
	ctx := context.Background()

	limiter.Admit(ctx, clientKey)
	clock.Advance(15 * time.Second)
	decision, _ := limiter.Admit(ctx, clientKey)
	if decision.RetryAfter != 45*time.Second {
		t.Errorf("RetryAfter = %s, want 45s", decision.RetryAfter)
	}

	clock.Advance(45 * time.Second)
	decision, _ = limiter.Admit(ctx, clientKey)
	if decision.Allowed {
		t.Fatal("exactly at the window boundary the window has not yet elapsed")
	}
	if decision.RetryAfter != time.Second {
		t.Errorf("RetryAfter floor = %s, want 1s", decision.RetryAfter)
	}
}

func TestFixedWindowLimiter_ClientsAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	other := "0000000000000000000000000000beef"
	if d, _ := limiter.Admit(ctx, clientKey); !d.Allowed {
		t.Error("first client should be allowed")
	}
	if d, _ := limiter.Admit(ctx, other); !d.Allowed {
		t.Error("second client should be allowed independently")
	}
}

func TestFixedWindowLimiter_ConcurrentSameClient(t *testing.T) {
	for _, n := range []int{2, 10, 64} {
		limiter, _ := newTestLimiter(t, 1, time.Minute)

		var allowed, denied atomic.Int64
		var wg sync.WaitGroup
		start := make(chan struct{})
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				<-start
				decision, err := limiter.Admit(context.Background(), clientKey)
				if err != nil {
					t.Errorf("Admit: %v", err)
					return
				}
				if decision.Allowed {
					allowed.Add(1)
				} else {
					denied.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		if allowed.Load() != 1 || denied.Load() != int64(n-1) {
			t.Errorf("n=%d: allowed=%d denied=%d, want 1 and %d", n, allowed.Load(), denied.Load(), n-1)
		}
	}
}

type failingStore struct{}

func (failingStore) Increment(ctx context.Context, key string, now time.Time, window time.Duration) (entity.RateLimitRecord, error) {
	return entity.RateLimitRecord{}, errors.New("disk full")
}

func TestFixedWindowLimiter_FailsClosed(t *testing.T) {
	limiter := NewFixedWindowLimiter(RateLimitConfig{MaxRequests: 5, Window: time.Minute}, failingStore{})

	decision, err := limiter.Admit(context.Background(), clientKey)
	if !errors.Is(err, entity.ErrRateLimiterUnavailable) {
		t.Errorf("Admit error = %v, want ErrRateLimiterUnavailable", err)
	}
	if decision.Allowed {
		t.Error("a failing store must deny")
	}
}
