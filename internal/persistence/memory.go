package persistence

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// MemoryStore maps a table name to an ordered slice of records. Every access is
// serialized through mu; records are held by value and copied on the way in and out.
// Contents live only as long as the process.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]interface{}
	lastID int64
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]interface{}), now: time.Now}
}

// NextID returns a process-local identifier derived from the current time in
// milliseconds. Two ids minted in the same millisecond are still distinct and
// increasing; ids are not unique across restarts.
func (s *MemoryStore) NextID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return strconv.FormatInt(id, 10)
}

// Collection is a typed view over one table of a MemoryStore.
type Collection[T any] struct {
	store *MemoryStore
	name  string
	clone func(T) T
}

// NewCollection returns a view over table name. clone, when non-nil, deep-copies
// records that carry slices or maps so callers never alias stored state.
func NewCollection[T any](s *MemoryStore, name string, clone func(T) T) *Collection[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Collection[T]{store: s, name: name, clone: clone}
}

func (c *Collection[T]) Insert(rec T) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.tables[c.name] = append(c.store.tables[c.name], c.clone(rec))
}

// InsertUnique appends rec unless an existing record satisfies conflicts.
// The check and the append happen under one lock.
func (c *Collection[T]) InsertUnique(rec T, conflicts func(T) bool) bool {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	for _, v := range c.store.tables[c.name] {
		if conflicts(v.(T)) {
			return false
		}
	}
	c.store.tables[c.name] = append(c.store.tables[c.name], c.clone(rec))
	return true
}

// All returns a copy of every record in insertion order.
func (c *Collection[T]) All() []T {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	rows := c.store.tables[c.name]
	out := make([]T, 0, len(rows))
	for _, v := range rows {
		out = append(out, c.clone(v.(T)))
	}
	return out
}

func (c *Collection[T]) Find(match func(T) bool) (T, bool) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	for _, v := range c.store.tables[c.name] {
		if rec := v.(T); match(rec) {
			return c.clone(rec), true
		}
	}
	var zero T
	return zero, false
}

// Update replaces the first record satisfying match with fn(record) in place.
func (c *Collection[T]) Update(match func(T) bool, fn func(T) T) (T, bool) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	rows := c.store.tables[c.name]
	for i, v := range rows {
		if rec := v.(T); match(rec) {
			updated := c.clone(fn(c.clone(rec)))
			rows[i] = updated
			return c.clone(updated), true
		}
	}
	var zero T
	return zero, false
}

// UpdateUnique is Update with a uniqueness check against every other record,
// made under the same lock. found is false when nothing matched; ok is false
// when the updated record conflicts, in which case nothing is written.
func (c *Collection[T]) UpdateUnique(match func(T) bool, fn func(T) T, conflicts func(updated, other T) bool) (rec T, found, ok bool) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	rows := c.store.tables[c.name]
	for i, v := range rows {
		if !match(v.(T)) {
			continue
		}
		updated := c.clone(fn(c.clone(v.(T))))
		for j, other := range rows {
			if j != i && conflicts(updated, other.(T)) {
				var zero T
				return zero, true, false
			}
		}
		rows[i] = updated
		return c.clone(updated), true, true
	}
	var zero T
	return zero, false, false
}

// Delete removes the first record satisfying match and returns it.
func (c *Collection[T]) Delete(match func(T) bool) (T, bool) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	rows := c.store.tables[c.name]
	for i, v := range rows {
		if rec := v.(T); match(rec) {
			c.store.tables[c.name] = append(rows[:i:i], rows[i+1:]...)
			return rec, true
		}
	}
	var zero T
	return zero, false
}

func (c *Collection[T]) Count() int {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	return len(c.store.tables[c.name])
}

// NewestFirst orders rows by creation time, newest first. Rows created in the
// same instant keep reverse insertion order.
func NewestFirst[T any](rows []T, created func(T) time.Time) []T {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	sort.SliceStable(rows, func(i, j int) bool { return created(rows[i]).After(created(rows[j])) })
	return rows
}
