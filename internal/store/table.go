package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/park285/onchain-chess/internal/chesserr"
)

// AllIndex names the implicit index holding every id of a table.
const AllIndex = "all"

// Reader is implemented by *Store (committed state) and *Tx (committed
// state plus the Tx's own staged writes).
type Reader interface {
	load(ctx context.Context, key string) ([]byte, error)
	store() *Store
}

func (s *Store) store() *Store { return s }
func (tx *Tx) store() *Store   { return tx.s }

// Index files a record under one value. Key returning "" leaves the record
// out of the index.
type Index[T any] struct {
	Name string
	Key  func(*T) string
}

// Table describes how records of type T are identified and indexed.
type Table[T any] struct {
	Name    string
	ID      func(*T) uint64
	SetID   func(*T, uint64)
	Indexes []Index[T]
}

func (t *Table[T]) hasIndex(name string) bool {
	if name == AllIndex {
		return true
	}
	for _, ix := range t.Indexes {
		if ix.Name == name {
			return true
		}
	}
	return false
}

// Get returns the record with id or a NotFound error named after the table.
func Get[T any](ctx context.Context, r Reader, t *Table[T], id uint64) (*T, error) {
	raw, err := r.load(ctx, r.store().keyRecord(t.Name, id))
	if err != nil {
		return nil, fmt.Errorf("load %s %d: %w", t.Name, id, err)
	}
	if raw == nil {
		return nil, chesserr.NotFound(t.Name, id)
	}
	var rec T
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode %s %d: %w", t.Name, id, err)
	}
	return &rec, nil
}

// Put inserts rec when its id is zero, assigning the next id, or replaces
// the stored record otherwise. Index tuples whose value changed are moved
// in the same commit.
func Put[T any](tx *Tx, t *Table[T], rec *T) (uint64, error) {
	s := tx.s
	id := t.ID(rec)
	var old *T
	if id == 0 {
		next, err := tx.nextID(t.Name)
		if err != nil {
			return 0, err
		}
		id = next
		t.SetID(rec, id)
		tx.zadd(s.keyAll(t.Name), member(id))
	} else {
		prev, err := Get(tx.ctx, tx, t, id)
		if err != nil {
			return 0, err
		}
		old = prev
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("encode %s %d: %w", t.Name, id, err)
	}
	tx.set(s.keyRecord(t.Name, id), string(raw))

	m := member(id)
	for _, ix := range t.Indexes {
		cur := ix.Key(rec)
		if old != nil {
			prev := ix.Key(old)
			if prev == cur {
				continue
			}
			if prev != "" {
				tx.zrem(s.keyIndex(t.Name, ix.Name, prev), m)
			}
		}
		if cur != "" {
			tx.zadd(s.keyIndex(t.Name, ix.Name, cur), m)
		}
	}
	return id, nil
}

// Range lists up to limit ids filed under index=value, ascending, strictly
// after the given id. Use AllIndex with an empty value to scan the table.
func Range[T any](ctx context.Context, s *Store, t *Table[T], index, value string, after uint64, limit int) ([]uint64, error) {
	if !t.hasIndex(index) {
		return nil, fmt.Errorf("table %s has no index %q", t.Name, index)
	}
	if limit <= 0 {
		return nil, chesserr.Validation("invalid_limit", "limit must be positive")
	}
	key := s.keyAll(t.Name)
	if index != AllIndex {
		key = s.keyIndex(t.Name, index, value)
	}
	ids, err := s.rangeIDs(ctx, key, after, limit)
	if err != nil {
		return nil, fmt.Errorf("range %s.%s: %w", t.Name, index, err)
	}
	return ids, nil
}

// Load fetches records for ids in one round trip, keeping their order.
func Load[T any](ctx context.Context, s *Store, t *Table[T], ids []uint64) ([]*T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keyRecord(t.Name, id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget %s: %w", t.Name, err)
	}
	out := make([]*T, 0, len(ids))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			return nil, chesserr.NotFound(t.Name, ids[i])
		}
		var rec T
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			return nil, fmt.Errorf("decode %s %d: %w", t.Name, ids[i], err)
		}
		out = append(out, &rec)
	}
	return out, nil
}

// Append stages value at the tail of the named list attached to record id.
// The list lives beside the record, so appending never rewrites the record.
// Nothing is read: appends do not WATCH and never conflict with each other.
func Append[T any](tx *Tx, t *Table[T], id uint64, list, value string) {
	tx.rpush(tx.s.keyList(t.Name, id, list), value)
}

// List returns the committed contents of the named list of record id.
// An absent list is empty.
func List[T any](ctx context.Context, s *Store, t *Table[T], id uint64, list string) ([]string, error) {
	vals, err := s.rdb.LRange(ctx, s.keyList(t.Name, id, list), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s %d %s: %w", t.Name, id, list, err)
	}
	return vals, nil
}
