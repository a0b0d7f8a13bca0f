package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/WangYihang/netcheck/pkg/domain/entity"
	"github.com/WangYihang/netcheck/pkg/domain/repository"
)

var clientKeyRegex = regexp.MustCompile(`^[a-f0-9]{16,128}$`)

// FileRateLimitStore implements repository.RateLimitStore with one JSON file per client key
type FileRateLimitStore struct {
	dir   string
	locks *keyLocks
}

// record is the on-disk representation of entity.RateLimitRecord
type record struct {
	WindowStart int64 `json:"window_start"`
	Count       int   `json:"count"`
}

// NewFileRateLimitStore creates the state directory if needed and returns a store rooted in it
func NewFileRateLimitStore(dir string) (repository.RateLimitStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileRateLimitStore{
		dir:   dir,
		locks: newKeyLocks(),
	}, nil
}

// Increment implements repository.RateLimitStore
func (s *FileRateLimitStore) Increment(ctx context.Context, key string, now time.Time, window time.Duration) (entity.RateLimitRecord, error) {
	if !clientKeyRegex.MatchString(key) {
		return entity.RateLimitRecord{}, fmt.Errorf("malformed client key")
	}

	unlock := s.locks.Lock(key)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return entity.RateLimitRecord{}, err
	}

	path := s.path(key)
	rec, err := s.load(path)
	if err != nil {
		return entity.RateLimitRecord{}, err
	}

	current := entity.RateLimitRecord{
		ClientKey:   key,
		WindowStart: time.Unix(0, rec.WindowStart),
		Count:       rec.Count,
	}
	if rec.WindowStart == 0 || current.Expired(now, window) {
		current.WindowStart = now
		current.Count = 0
	}
	current.Count++

	if err := s.save(path, record{WindowStart: current.WindowStart.UnixNano(), Count: current.Count}); err != nil {
		return entity.RateLimitRecord{}, err
	}
	return current, nil
}

func (s *FileRateLimitStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// load returns a zero record when the file is missing or unreadable as JSON
func (s *FileRateLimitStore) load(path string) (record, error) {
	var rec record
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return rec, nil
		}
		return rec, fmt.Errorf("failed to read rate limit record: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return record{}, nil
	}
	return rec, nil
}

// save writes through a temp file and a rename so readers never observe partial records
func (s *FileRateLimitStore) save(path string, rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create rate limit record: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write rate limit record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write rate limit record: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to commit rate limit record: %w", err)
	}
	return nil
}
