// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package sortedset implements a set of (name, score) pairs indexed two
// ways at once: by name for point lookups and by (score, name) for ordered
// rank navigation. See spec §4.3.
package sortedset

import (
	"github.com/aristanetworks/kvstore/internal/avltree"
	"github.com/aristanetworks/kvstore/internal/hashtable"
)

// entry is the payload shared by both indexes. Its tree node back-pointer
// lets Delete and Offset operate directly on a looked-up element without a
// second descent.
type entry struct {
	name  string
	score float64
	node  *avltree.Node[*entry]
}

// less implements the (score, name) total order used by the rank index:
// score is primary, ties break on byte-wise name comparison, and on a
// common prefix the shorter name sorts first.
func less(a, b *entry) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.name < b.name
}

// Set is a sorted set of distinct names, each carrying a float64 score.
// The zero value is not usable; construct with New.
type Set struct {
	byName *hashtable.Map[string, *entry]
	byRank *avltree.Tree[*entry]
	limits hashtable.Limits
}

// New creates an empty Set whose name index uses hashtable.DefaultLimits.
func New() *Set {
	return NewWithLimits(hashtable.DefaultLimits())
}

// NewWithLimits creates an empty Set whose name index migrates according to
// limits, e.g. one sourced from a hot-reload-exempt server Config.
func NewWithLimits(limits hashtable.Limits) *Set {
	return &Set{
		byName: hashtable.NewWithLimits[string, *entry](hashtable.HashString,
			func(a, b string) bool { return a == b }, limits),
		byRank: avltree.New(less),
		limits: limits,
	}
}

// Len returns the number of elements in the set.
func (s *Set) Len() int {
	return s.byRank.Len()
}

// Score returns the score of name, if present.
func (s *Set) Score(name string) (float64, bool) {
	e, ok := s.byName.Lookup(name)
	if !ok {
		return 0, false
	}
	return e.score, true
}

// Upsert inserts name with score, or updates its score if already present.
// It reports whether name was newly added.
func (s *Set) Upsert(name string, score float64) bool {
	if e, ok := s.byName.Lookup(name); ok {
		if e.score == score {
			return false
		}
		s.byRank.Delete(e.node)
		e.score = score
		e.node = s.byRank.Insert(e)
		return false
	}
	e := &entry{name: name, score: score}
	e.node = s.byRank.Insert(e)
	s.byName.Insert(name, e)
	return true
}

// Delete removes name from the set, reporting whether it was present.
func (s *Set) Delete(name string) bool {
	e, ok := s.byName.Delete(name)
	if !ok {
		return false
	}
	s.byRank.Delete(e.node)
	return true
}

// Pair is a (name, score) result from a range query.
type Pair struct {
	Name  string
	Score float64
}

// SeekGE returns up to limit elements starting from the first element whose
// (score, name) is not less than (score, name), honoring offset: the first
// `skip` matches beyond the seek point are skipped before results are
// collected. This mirrors the squery command's seek+offset+limit contract
// (spec §4.4).
func (s *Set) SeekGE(score float64, name string, skip, limit int64) []Pair {
	target := &entry{name: name, score: score}
	n := s.byRank.SeekGE(func(v *entry) bool { return less(v, target) })
	if n == nil {
		return nil
	}
	if skip != 0 {
		n = avltree.Offset(n, skip)
		if n == nil {
			return nil
		}
	}

	var out []Pair
	for n != nil && (limit < 0 || int64(len(out)) < limit) {
		out = append(out, Pair{Name: n.Value.name, Score: n.Value.score})
		n = avltree.Offset(n, 1)
	}
	return out
}

// Clear empties the set.
func (s *Set) Clear() {
	s.byName.Clear()
	s.byRank = avltree.New(less)
}
