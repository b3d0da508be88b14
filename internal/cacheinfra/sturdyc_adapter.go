package cacheinfra

import (
	"context"
	"errors"
	"strings"

	"github.com/viccon/sturdyc"
)

// SturdycService is the in-process read-through cache. It memoises lookups
// that are cheap to hold in memory and expensive to repeat, such as the
// path to permission code table.
type SturdycService struct {
	client *sturdyc.Client[any]
}

// NewSturdycService validates cfg and builds the sturdyc client. Capacity,
// NumShards, TTL and EvictionPercentage go to sturdyc.New; the rest through
// ToSturdycOptions.
func NewSturdycService(cfg LocalConfig) (*SturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &SturdycService{client: client}, nil
}

// GetOrFetch returns the cached value for key or calls fetchFn and stores its
// result. A fetchFn returning ErrNotFound is remembered as a missing record
// when MissingRecordStorage is on, and ErrNotFound is returned to the caller
// on that and every later call until the entry expires.
func (s *SturdycService) GetOrFetch(ctx context.Context, key string, fetchFn func(context.Context) (any, error)) (any, error) {
	if fetchFn == nil {
		return nil, &ConfigError{Field: "fetchFn", Message: "cannot be nil"}
	}

	value, err := s.client.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		v, err := fetchFn(ctx)
		if errors.Is(err, ErrNotFound) {
			return nil, sturdyc.ErrNotFound
		}
		return v, err
	})
	if errors.Is(err, sturdyc.ErrMissingRecord) || errors.Is(err, sturdyc.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

// Delete removes a single entry.
func (s *SturdycService) Delete(ctx context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// DeleteByPrefix removes every entry whose key starts with prefix.
func (s *SturdycService) DeleteByPrefix(ctx context.Context, prefix string) error {
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
		}
	}
	return nil
}

// InvalidateKeys removes the given entries.
func (s *SturdycService) InvalidateKeys(ctx context.Context, keys []string) error {
	for _, key := range keys {
		s.client.Delete(key)
	}
	return nil
}

// Size returns the number of entries currently held.
func (s *SturdycService) Size() int {
	return s.client.Size()
}
