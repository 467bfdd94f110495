// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package sortedset

import "testing"

func TestUpsertNewAndExisting(t *testing.T) {
	s := New()
	if !s.Upsert("a", 1.5) {
		t.Fatalf("first Upsert(a) should report newly added")
	}
	if s.Upsert("a", 1.5) {
		t.Fatalf("Upsert(a) with unchanged score should not report newly added")
	}
	if s.Upsert("a", 2.0) {
		t.Fatalf("Upsert(a) with changed score should not report newly added")
	}
	score, ok := s.Score("a")
	if !ok || score != 2.0 {
		t.Fatalf("Score(a) = %v, %v; want 2.0, true", score, ok)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d; want 1", s.Len())
	}
}

func TestDelete(t *testing.T) {
	s := New()
	s.Upsert("a", 1)
	if !s.Delete("a") {
		t.Fatalf("Delete(a) should report removal")
	}
	if s.Delete("a") {
		t.Fatalf("Delete(a) should not report removal twice")
	}
	if _, ok := s.Score("a"); ok {
		t.Fatalf("Score(a) found an entry after delete")
	}
}

// literal scenario from the end-to-end spec examples.
func TestSeekGEPagination(t *testing.T) {
	s := New()
	s.Upsert("a", 1)
	s.Upsert("b", 2)
	s.Upsert("c", 3)

	got := s.SeekGE(0, "", 0, 10)
	want := []Pair{{"a", 1}, {"b", 2}, {"c", 3}}
	assertPairs(t, got, want)

	got = s.SeekGE(2, "b", 1, 10)
	assertPairs(t, got, []Pair{{"c", 3}})
}

func TestSeekGENegativeOffsetShiftsBackward(t *testing.T) {
	s := New()
	s.Upsert("a", 1)
	s.Upsert("b", 2)
	s.Upsert("c", 3)

	got := s.SeekGE(3, "c", -1, 10)
	want := []Pair{{"b", 2}, {"c", 3}}
	assertPairs(t, got, want)

	if got := s.SeekGE(1, "a", -1, 10); got != nil {
		t.Fatalf("SeekGE with offset before the first element = %v; want nil", got)
	}
}

func TestSeekGEPaginatesWithoutGapsOrRepeats(t *testing.T) {
	s := New()
	names := []string{"a", "b", "c", "d", "e", "f", "g"}
	for i, n := range names {
		s.Upsert(n, float64(i))
	}

	var collected []Pair
	const page = 3
	var skip int64
	for {
		got := s.SeekGE(0, "", skip, page)
		if len(got) == 0 {
			break
		}
		collected = append(collected, got...)
		skip += int64(len(got))
	}

	if len(collected) != len(names) {
		t.Fatalf("paginated collection has %d entries; want %d", len(collected), len(names))
	}
	for i, p := range collected {
		if p.Name != names[i] {
			t.Fatalf("collected[%d] = %s; want %s", i, p.Name, names[i])
		}
	}
}

func TestScoreTieBreaksOnName(t *testing.T) {
	s := New()
	s.Upsert("zebra", 1)
	s.Upsert("ant", 1)
	s.Upsert("bee", 1)

	got := s.SeekGE(0, "", 0, 10)
	want := []Pair{{"ant", 1}, {"bee", 1}, {"zebra", 1}}
	assertPairs(t, got, want)
}

func assertPairs(t *testing.T, got, want []Pair) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %v; want %v", i, got[i], want[i])
		}
	}
}
