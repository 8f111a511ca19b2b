// Package store is an append-only, id-keyed record store with secondary
// indexes, kept in Redis. Every mutation is staged inside a Tx and applied
// in a single MULTI/EXEC so a record and its index tuples never disagree.
package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/park285/onchain-chess/internal/chesserr"
)

const DefaultPrefix = "chess"

type Store struct {
	rdb    *redis.Client
	prefix string
}

// New wraps an existing client. An empty prefix falls back to DefaultPrefix.
func New(rdb *redis.Client, prefix string) *Store {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

// Open dials redisURL and checks the connection.
func Open(ctx context.Context, redisURL, prefix string) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, prefix), nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) keySeq(table string) string { return s.prefix + ":" + table + ":seq" }
func (s *Store) keyRecord(table string, id uint64) string {
	return s.prefix + ":" + table + ":" + strconv.FormatUint(id, 10)
}
func (s *Store) keyIndex(table, index, value string) string {
	return s.prefix + ":" + table + ":idx:" + index + ":" + value
}
func (s *Store) keyList(table string, id uint64, list string) string {
	return s.keyRecord(table, id) + ":" + list
}
func (s *Store) keyAll(table string) string { return s.prefix + ":" + table + ":ids" }
func (s *Store) keyMeta(name string) string { return s.prefix + ":meta:" + name }

// member encodes an id so that lexicographic order equals numeric order.
func member(id uint64) string { return fmt.Sprintf("%020d", id) }

func parseMember(m string) (uint64, error) { return strconv.ParseUint(m, 10, 64) }

// Update runs fn inside a transaction. fn's reads WATCH their keys; its
// writes are buffered and applied atomically only if fn returns nil. A
// concurrent change to any key read by fn aborts with a retryable conflict.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	err := s.rdb.Watch(ctx, func(rtx *redis.Tx) error {
		tx := newTx(ctx, s, rtx)
		if err := fn(tx); err != nil {
			return err
		}
		return tx.commit()
	})
	if errors.Is(err, redis.TxFailedErr) {
		return chesserr.Conflict()
	}
	return err
}

// Meta reads a harness counter such as the last produced block height.
// Missing counters read as zero.
func (s *Store) Meta(ctx context.Context, name string) (uint64, error) {
	raw, err := s.rdb.Get(ctx, s.keyMeta(name)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(raw, 10, 64)
}

func (s *Store) SetMeta(ctx context.Context, name string, v uint64) error {
	return s.rdb.Set(ctx, s.keyMeta(name), strconv.FormatUint(v, 10), 0).Err()
}

// load reads a committed value; a missing key yields (nil, nil).
func (s *Store) load(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return raw, err
}

func (s *Store) rangeIDs(ctx context.Context, key string, after uint64, limit int) ([]uint64, error) {
	lo := "-"
	if after > 0 {
		lo = "(" + member(after)
	}
	members, err := s.rdb.ZRangeByLex(ctx, key, &redis.ZRangeBy{
		Min:    lo,
		Max:    "+",
		Offset: 0,
		Count:  int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(members))
	for _, m := range members {
		id, err := parseMember(m)
		if err != nil {
			return nil, fmt.Errorf("corrupt index member %q in %s: %w", m, key, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}, nil
}
