package database

import (
	"context"
	"errors"
	"fmt"

	"cart-monitor-service/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrCacheUnavailable marks failures talking to the cache. A scan that
	// returns it must be treated as failed as a whole.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrEntryVanished is returned by LoadFields when the key was removed
	// after it was scanned.
	ErrEntryVanished = errors.New("cache entry vanished")
)

const defaultPageSize = 100

// KeyspaceScanner walks the cart keyspace page by page with SCAN.
type KeyspaceScanner struct {
	client   redis.UniversalClient
	pattern  string
	pageSize int64
	log      *zap.Logger
}

func NewKeyspaceScanner(client redis.UniversalClient, pattern string, pageSize int64, log *zap.Logger) *KeyspaceScanner {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &KeyspaceScanner{
		client:   client,
		pattern:  pattern,
		pageSize: pageSize,
		log:      log.With(zap.String("component", "keyspace_scanner")),
	}
}

// Scan calls fn for every hash entry whose key matches pattern, or the
// configured pattern when pattern is empty. Entries are delivered with Type
// and IdleSeconds set; Fields is left empty until LoadFields is called, so
// live carts are never read.
//
// Every call starts from a fresh cursor. If fn returns an error the scan
// stops and that error is returned unchanged.
func (s *KeyspaceScanner) Scan(ctx context.Context, pattern string, fn func(models.CacheEntry) error) error {
	if pattern == "" {
		pattern = s.pattern
	}
	var (
		cursor uint64
		pages  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, s.pageSize).Result()
		if err != nil {
			return s.fail(ctx, fmt.Sprintf("scan cursor %d", cursor), err)
		}
		pages++

		if err := s.visitPage(ctx, keys, fn); err != nil {
			return err
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	s.log.Debug("Keyspace scan finished", zap.Int("pages", pages), zap.String("pattern", pattern))
	return nil
}

func (s *KeyspaceScanner) visitPage(ctx context.Context, keys []string, fn func(models.CacheEntry) error) error {
	if len(keys) == 0 {
		return nil
	}

	// OBJECT IDLETIME and TYPE do not touch the LRU clock.
	pipe := s.client.Pipeline()
	types := make([]*redis.StatusCmd, len(keys))
	idles := make([]*redis.DurationCmd, len(keys))
	for i, key := range keys {
		types[i] = pipe.Type(ctx, key)
		idles[i] = pipe.ObjectIdleTime(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return s.fail(ctx, "inspect page", err)
	}

	for i, key := range keys {
		t, err := types[i].Result()
		if err != nil {
			return s.fail(ctx, "type "+key, err)
		}
		if t != string(models.EntryTypeHash) {
			s.log.Debug("Skipping non-hash key", zap.String("key", key), zap.String("type", t))
			continue
		}
		idle, err := idles[i].Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return s.fail(ctx, "idletime "+key, err)
		}

		entry := models.CacheEntry{
			Key:         key,
			Type:        models.EntryTypeHash,
			IdleSeconds: int64(idle.Seconds()),
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}

// LoadFields fetches every hash field of entry.
func (s *KeyspaceScanner) LoadFields(ctx context.Context, entry *models.CacheEntry) error {
	values, err := s.client.HGetAll(ctx, entry.Key).Result()
	if err != nil {
		return s.fail(ctx, "hgetall "+entry.Key, err)
	}
	if len(values) == 0 {
		return fmt.Errorf("%w: %s", ErrEntryVanished, entry.Key)
	}

	entry.Fields = make(map[string][]byte, len(values))
	for field, value := range values {
		entry.Fields[field] = []byte(value)
	}
	return nil
}

// fail keeps context cancellation distinguishable from cache failures.
func (s *KeyspaceScanner) fail(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	s.log.Error("Cache operation failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrCacheUnavailable, op, err)
}
