// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package hashtable

import (
	"fmt"
	"testing"
)

func newStringMap() *Map[string, int] {
	return New[string, int](HashString, func(a, b string) bool { return a == b })
}

func TestInsertLookup(t *testing.T) {
	m := newStringMap()
	m.Insert("a", 1)
	m.Insert("b", 2)

	if v, ok := m.Lookup("a"); !ok || v != 1 {
		t.Fatalf("Lookup(a) = %v, %v; want 1, true", v, ok)
	}
	if v, ok := m.Lookup("b"); !ok || v != 2 {
		t.Fatalf("Lookup(b) = %v, %v; want 2, true", v, ok)
	}
	if _, ok := m.Lookup("c"); ok {
		t.Fatalf("Lookup(c) found an entry that was never inserted")
	}
}

func TestDelete(t *testing.T) {
	m := newStringMap()
	m.Insert("a", 1)
	if v, ok := m.Delete("a"); !ok || v != 1 {
		t.Fatalf("Delete(a) = %v, %v; want 1, true", v, ok)
	}
	if _, ok := m.Lookup("a"); ok {
		t.Fatalf("Lookup(a) found an entry after delete")
	}
	if _, ok := m.Delete("a"); ok {
		t.Fatalf("Delete(a) succeeded twice")
	}
}

// TestSizeAcrossRehash drives the map past several rehash triggers and
// checks that size tracks inserts/deletes exactly and that lookup keeps
// working for every live key regardless of migration progress.
func TestSizeAcrossRehash(t *testing.T) {
	m := newStringMap()
	const n = 5000
	for i := 0; i < n; i++ {
		m.Insert(fmt.Sprintf("key-%d", i), i)
	}
	if got := m.Size(); got != n {
		t.Fatalf("Size() = %d; want %d", got, n)
	}
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("key-%d", i)
		if v, ok := m.Lookup(key); !ok || v != i {
			t.Fatalf("Lookup(%s) = %v, %v; want %d, true", key, v, ok, i)
		}
	}
	for i := 0; i < n; i++ {
		if _, ok := m.Delete(fmt.Sprintf("key-%d", i)); !ok {
			t.Fatalf("Delete(key-%d) failed", i)
		}
	}
	if got := m.Size(); got != 0 {
		t.Fatalf("Size() after full delete = %d; want 0", got)
	}
}

func TestForEachVisitsEverything(t *testing.T) {
	m := newStringMap()
	want := map[string]int{"a": 1, "b": 2, "c": 3}
	for k, v := range want {
		m.Insert(k, v)
	}
	got := make(map[string]int)
	m.ForEach(func(k string, v int) bool {
		got[k] = v
		return true
	})
	if len(got) != len(want) {
		t.Fatalf("ForEach visited %d entries; want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("ForEach: got[%s] = %d; want %d", k, got[k], v)
		}
	}
}

func TestClear(t *testing.T) {
	m := newStringMap()
	m.Insert("a", 1)
	m.Clear()
	if m.Size() != 0 {
		t.Fatalf("Size() after Clear = %d; want 0", m.Size())
	}
	if _, ok := m.Lookup("a"); ok {
		t.Fatalf("Lookup(a) found an entry after Clear")
	}
}

func TestHashBytesMatchesHashString(t *testing.T) {
	s := "the quick brown fox"
	if HashBytes([]byte(s)) != HashString(s) {
		t.Fatalf("HashBytes and HashString disagree on %q", s)
	}
}

// TestMigrationStepBudget checks that no single Insert call migrates more
// than RehashBudget nodes out of the smaller sub-table.
func TestMigrationStepBudget(t *testing.T) {
	m := newStringMap()
	const n = 2048
	for i := 0; i < n; i++ {
		m.Insert(fmt.Sprintf("key-%d", i), i)
	}

	for i := 0; m.smaller.size > 0 && i < n; i++ {
		before := m.smaller.size
		m.Insert(fmt.Sprintf("extra-%d", i), -1)
		moved := before - m.smaller.size
		if moved > RehashBudget {
			t.Fatalf("migrated %d nodes in one call; want <= %d", moved, RehashBudget)
		}
	}
}

func TestHashKnownVector(t *testing.T) {
	// h starts at 0x811C9DC5; inserting a single zero byte gives
	// (0x811C9DC5 + 0) * 0x01000193 mod 2^32.
	got := HashBytes([]byte{0})
	h := uint32(0x811C9DC5)
	want := uint64(h * 0x01000193)
	if got != want {
		t.Fatalf("HashBytes([0]) = %#x; want %#x", got, want)
	}
}
