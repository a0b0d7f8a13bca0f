package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/WangYihang/netcheck/pkg/domain/repository"
	"github.com/bits-and-blooms/bloom/v3"
)

// BloomFilter implements repository.ClientFilter using a Bloom filter
type BloomFilter struct {
	filter *bloom.BloomFilter
	size   uint
	fpRate float64
	mu     sync.Mutex
}

// Config holds Bloom filter configuration
type Config struct {
	Size              uint
	FalsePositiveRate float64
}

// NewBloomFilter creates a new Bloom filter
func NewBloomFilter(config Config) repository.ClientFilter {
	return &BloomFilter{
		filter: bloom.NewWithEstimates(config.Size, config.FalsePositiveRate),
		size:   config.Size,
		fpRate: config.FalsePositiveRate,
	}
}

// TestAndAdd checks if the key is in the filter, and adds it if it's not.
// Returns true if the key was likely already in the set.
func (bf *BloomFilter) TestAndAdd(key string) bool {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	return bf.filter.TestAndAdd([]byte(key))
}

// Save persists the filter state
func (bf *BloomFilter) Save(filename string) error {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := bf.filter.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write bloom filter: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filename)
}

// Load restores the filter state
func (bf *BloomFilter) Load(filename string) error {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist yet, that's OK
		}
		return err
	}
	defer file.Close()

	filter := bloom.NewWithEstimates(bf.size, bf.fpRate)
	if _, err := filter.ReadFrom(file); err != nil {
		return fmt.Errorf("failed to read bloom filter: %w", err)
	}
	bf.filter = filter
	return nil
}
