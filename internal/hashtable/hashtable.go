// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package hashtable implements a keyed map with incremental rehashing:
// growth is split across many mutating calls instead of paying for a full
// resize on the call that crosses the load-factor threshold.
package hashtable

// RehashBudget is the default bound on the number of nodes relocated by a
// single mutating call while a migration is in progress.
const RehashBudget = 256

// MaxLoadFactor is the default size-to-bucket-count ratio that triggers a
// migration of the live sub-table into a bigger one.
const MaxLoadFactor = 16

// initialBuckets is the bucket count of the very first sub-table.
const initialBuckets = 4

// Limits bounds the structural behavior of a Map: how eagerly it migrates
// and how much migration work it does per mutating call. These are
// load-bearing on the hash map's algorithmic invariants, so callers fix them
// at construction time rather than changing them under a live table.
type Limits struct {
	// LoadFactor is the size-to-bucket-count ratio that triggers a
	// migration of the live sub-table into a bigger one.
	LoadFactor int
	// RehashBudget bounds the number of nodes relocated by a single
	// mutating call while a migration is in progress.
	RehashBudget int
}

// DefaultLimits returns the spec's literal constants (load factor 16,
// 256-step migration budget).
func DefaultLimits() Limits {
	return Limits{LoadFactor: MaxLoadFactor, RehashBudget: RehashBudget}
}

type node[K any, V any] struct {
	hash  uint64
	key   K
	value V
	next  *node[K, V]
}

type subTable[K any, V any] struct {
	buckets []*node[K, V]
	mask    uint64
	size    int
}

func (t *subTable[K, V]) init(n uint64) {
	t.buckets = make([]*node[K, V], n)
	t.mask = n - 1
	t.size = 0
}

func (t *subTable[K, V]) insert(nd *node[K, V]) {
	pos := nd.hash & t.mask
	nd.next = t.buckets[pos]
	t.buckets[pos] = nd
}

// find returns the slot holding the matching node, so the caller can unlink
// it in place, and a nil slot pointer if no match exists.
func (t *subTable[K, V]) find(hash uint64, key K, equal func(K, K) bool) **node[K, V] {
	if t.buckets == nil {
		return nil
	}
	from := &t.buckets[hash&t.mask]
	for *from != nil {
		cur := *from
		if cur.hash == hash && equal(cur.key, key) {
			return from
		}
		from = &cur.next
	}
	return nil
}

// Map is a hash map keyed by K, storing V, split across two sub-tables
// ("bigger" and "smaller") so growth never pays for a full rehash in one
// call. Lookup/delete consult both tables; insert always writes into
// "bigger". See spec §4.1.
type Map[K any, V any] struct {
	bigger, smaller subTable[K, V]
	migPtr          uint64
	hash            func(K) uint64
	equal           func(K, K) bool
	limits          Limits
}

// New creates an empty Map using DefaultLimits. hash must be stable for the
// lifetime of any key inserted (the computed hash is cached on insert and
// never recomputed).
func New[K any, V any](hash func(K) uint64, equal func(K, K) bool) *Map[K, V] {
	return NewWithLimits[K, V](hash, equal, DefaultLimits())
}

// NewWithLimits creates an empty Map whose migration pacing is governed by
// limits, e.g. one sourced from a hot-reload-exempt server Config.
func NewWithLimits[K any, V any](hash func(K) uint64, equal func(K, K) bool, limits Limits) *Map[K, V] {
	if limits.LoadFactor <= 0 {
		limits.LoadFactor = MaxLoadFactor
	}
	if limits.RehashBudget <= 0 {
		limits.RehashBudget = RehashBudget
	}
	return &Map[K, V]{hash: hash, equal: equal, limits: limits}
}

// Size returns the total number of entries across both sub-tables.
func (m *Map[K, V]) Size() int {
	return m.bigger.size + m.smaller.size
}

// BiggerSize returns the number of entries in the live sub-table.
func (m *Map[K, V]) BiggerSize() int {
	return m.bigger.size
}

// SmallerSize returns the number of entries remaining in the migrating
// sub-table, zero when no migration is in progress.
func (m *Map[K, V]) SmallerSize() int {
	return m.smaller.size
}

// MigrationCursor returns the current bucket index of an in-progress
// migration, meaningless when SmallerSize is zero.
func (m *Map[K, V]) MigrationCursor() uint64 {
	return m.migPtr
}

func (m *Map[K, V]) helpRehash() {
	nwork := 0
	for nwork < m.limits.RehashBudget && m.smaller.size > 0 {
		from := &m.smaller.buckets[m.migPtr]
		if *from == nil {
			m.migPtr++
			continue
		}
		nd := *from
		*from = nd.next
		m.smaller.size--
		nd.next = nil
		m.bigger.insert(nd)
		m.bigger.size++
		nwork++
	}
	if m.smaller.size == 0 && m.smaller.buckets != nil {
		m.smaller = subTable[K, V]{}
		m.migPtr = 0
	}
}

func (m *Map[K, V]) triggerRehash() {
	m.smaller = m.bigger
	m.bigger = subTable[K, V]{}
	m.bigger.init((m.smaller.mask + 1) * 2)
	m.migPtr = 0
}

// Lookup returns the value stored for key, if any.
func (m *Map[K, V]) Lookup(key K) (V, bool) {
	m.helpRehash()
	h := m.hash(key)
	if from := m.bigger.find(h, key, m.equal); from != nil {
		return (*from).value, true
	}
	if from := m.smaller.find(h, key, m.equal); from != nil {
		return (*from).value, true
	}
	var zero V
	return zero, false
}

// Insert always inserts a new node for key into the live sub-table. It does
// not check for an existing entry; callers that need upsert semantics must
// Lookup first, matching the contract of the original hash map (see
// original_source/hashtable.cpp hm_insert).
func (m *Map[K, V]) Insert(key K, value V) {
	if m.bigger.buckets == nil {
		m.bigger.init(initialBuckets)
	}
	nd := &node[K, V]{hash: m.hash(key), key: key, value: value}
	m.bigger.insert(nd)
	m.bigger.size++

	if m.smaller.buckets == nil {
		threshold := (m.bigger.mask + 1) * uint64(m.limits.LoadFactor)
		if uint64(m.bigger.size) >= threshold {
			m.triggerRehash()
		}
	}
	m.helpRehash()
}

// Delete removes and returns the value for key, if present.
func (m *Map[K, V]) Delete(key K) (V, bool) {
	m.helpRehash()
	h := m.hash(key)
	if from := m.bigger.find(h, key, m.equal); from != nil {
		nd := *from
		*from = nd.next
		m.bigger.size--
		return nd.value, true
	}
	if from := m.smaller.find(h, key, m.equal); from != nil {
		nd := *from
		*from = nd.next
		m.smaller.size--
		return nd.value, true
	}
	var zero V
	return zero, false
}

// ForEach calls fn for every entry in an unspecified order. It stops early
// if fn returns false.
func (m *Map[K, V]) ForEach(fn func(K, V) bool) {
	for _, t := range [2]*subTable[K, V]{&m.bigger, &m.smaller} {
		if t.buckets == nil {
			continue
		}
		for _, head := range t.buckets {
			for nd := head; nd != nil; nd = nd.next {
				if !fn(nd.key, nd.value) {
					return
				}
			}
		}
	}
}

// Clear empties the map, releasing both sub-tables.
func (m *Map[K, V]) Clear() {
	*m = Map[K, V]{hash: m.hash, equal: m.equal, limits: m.limits}
}
