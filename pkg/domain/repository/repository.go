package repository

import (
	"context"
	"time"

	"github.com/WangYihang/netcheck/pkg/domain/entity"
)

// RateLimitStore holds one fixed-window record per client key
type RateLimitStore interface {
	// Increment loads or creates the record for key, resets it when the window
	// has elapsed at now, increments the count and persists it. Calls for the
	// same key are serialized; calls for different keys are independent.
	Increment(ctx context.Context, key string, now time.Time, window time.Duration) (entity.RateLimitRecord, error)
}

// ClientFilter provides approximate first-seen detection of client keys
type ClientFilter interface {
	// TestAndAdd reports whether key was likely seen before, and adds it
	TestAndAdd(key string) bool
	// Save persists the filter state
	Save(filename string) error
	// Load restores the filter state
	Load(filename string) error
}
