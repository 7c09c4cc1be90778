package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemStore is an in memory implementation of Interface, intended for tests.
type MemStore struct {
	mu    sync.Mutex
	store map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{
		store: make(map[string][]byte),
	}
}

func (s *MemStore) View(f func(tx ReadOnlyTx) error) error {
	return DoView(s, f)
}

func (s *MemStore) Update(f func(tx Tx) error) error {
	return DoUpdate(s, f)
}

func (s *MemStore) BeginTx() (Tx, error) {
	return s.newTx(), nil
}

func (s *MemStore) BeginReadOnlyTx() (ReadOnlyTx, error) {
	return s.newTx(), nil
}

// newTx takes the store lock; it is released on commit or rollback.
func (s *MemStore) newTx() *memTx {
	s.mu.Lock()
	store := make(map[string][]byte, len(s.store))
	for k, v := range s.store {
		store[k] = v
	}
	return &memTx{
		m:     s,
		store: store,
	}
}

type memTxState int

const (
	unCommitted memTxState = iota
	committed
	rolledback
)

type memTx struct {
	state memTxState
	m     *MemStore
	store map[string][]byte
}

func (t *memTx) Get(key string) (*KeyValue, error) {
	value, ok := t.store[key]
	if !ok {
		return nil, ErrNoKeyExists
	}
	return &KeyValue{Key: key, Value: value}, nil
}

func (t *memTx) Exists(key string) (bool, error) {
	_, ok := t.store[key]
	return ok, nil
}

func (t *memTx) List(prefix string) ([]*KeyValue, error) {
	var kvs []*KeyValue
	for k, v := range t.store {
		if strings.HasPrefix(k, prefix) {
			kvs = append(kvs, &KeyValue{Key: k, Value: v})
		}
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].Key < kvs[j].Key })
	return kvs, nil
}

func (t *memTx) Put(key string, value []byte) error {
	t.store[key] = value
	return nil
}

func (t *memTx) Delete(key string) error {
	delete(t.store, key)
	return nil
}

func (t *memTx) Commit() error {
	if t.state != unCommitted {
		return fmt.Errorf("cannot commit transaction, transaction in state %v", t.state)
	}
	t.m.store = t.store
	t.state = committed
	t.m.mu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.state == unCommitted {
		t.state = rolledback
		t.m.mu.Unlock()
	}
	return nil
}
