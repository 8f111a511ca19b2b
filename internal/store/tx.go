package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

type opKind uint8

const (
	opSet opKind = iota + 1
	opZAdd
	opZRem
	opRPush
)

type op struct {
	kind  opKind
	key   string
	value string
}

// Tx buffers writes for one Update call. Reads go to Redis under WATCH
// unless the key was already written in this Tx.
type Tx struct {
	ctx     context.Context
	s       *Store
	rtx     *redis.Tx
	staged  map[string]string
	watched map[string]struct{}
	ops     []op
}

func newTx(ctx context.Context, s *Store, rtx *redis.Tx) *Tx {
	return &Tx{
		ctx:     ctx,
		s:       s,
		rtx:     rtx,
		staged:  make(map[string]string),
		watched: make(map[string]struct{}),
	}
}

func (tx *Tx) watch(key string) error {
	if _, ok := tx.watched[key]; ok {
		return nil
	}
	if err := tx.rtx.Watch(tx.ctx, key).Err(); err != nil {
		return fmt.Errorf("watch %s: %w", key, err)
	}
	tx.watched[key] = struct{}{}
	return nil
}

func (tx *Tx) load(_ context.Context, key string) ([]byte, error) {
	if v, ok := tx.staged[key]; ok {
		return []byte(v), nil
	}
	if err := tx.watch(key); err != nil {
		return nil, err
	}
	raw, err := tx.rtx.Get(tx.ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return raw, err
}

func (tx *Tx) set(key, value string) {
	tx.staged[key] = value
	tx.ops = append(tx.ops, op{kind: opSet, key: key, value: value})
}

func (tx *Tx) zadd(key, m string) { tx.ops = append(tx.ops, op{kind: opZAdd, key: key, value: m}) }
func (tx *Tx) zrem(key, m string) { tx.ops = append(tx.ops, op{kind: opZRem, key: key, value: m}) }
func (tx *Tx) rpush(key, v string) { tx.ops = append(tx.ops, op{kind: opRPush, key: key, value: v}) }

// nextID reserves the next id of table. Ids start at 1.
func (tx *Tx) nextID(table string) (uint64, error) {
	key := tx.s.keySeq(table)
	raw, err := tx.load(tx.ctx, key)
	if err != nil {
		return 0, err
	}
	var cur uint64
	if raw != nil {
		cur, err = strconv.ParseUint(string(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("corrupt sequence %s: %w", key, err)
		}
	}
	next := cur + 1
	tx.set(key, strconv.FormatUint(next, 10))
	return next, nil
}

func (tx *Tx) commit() error {
	if len(tx.ops) == 0 {
		return nil
	}
	_, err := tx.rtx.TxPipelined(tx.ctx, func(pipe redis.Pipeliner) error {
		for _, o := range tx.ops {
			switch o.kind {
			case opSet:
				pipe.Set(tx.ctx, o.key, o.value, 0)
			case opZAdd:
				pipe.ZAdd(tx.ctx, o.key, redis.Z{Score: 0, Member: o.value})
			case opZRem:
				pipe.ZRem(tx.ctx, o.key, o.value)
			case opRPush:
				pipe.RPush(tx.ctx, o.key, o.value)
			}
		}
		return nil
	})
	return err
}
