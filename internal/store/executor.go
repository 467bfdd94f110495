// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package store

import (
	"strconv"

	"github.com/aristanetworks/kvstore/internal/metrics"
	"github.com/aristanetworks/kvstore/internal/protocol"
	"github.com/aristanetworks/kvstore/internal/sortedset"
)

// Execute dispatches one parsed command array onto w. args[0] is the
// command name; the rest are its arguments. See spec §4.4.
func (s *ServerState) Execute(args [][]byte, w *protocol.Writer) {
	if len(args) == 0 {
		s.errReply(w, protocol.ErrUnknown, "unknown command.")
		return
	}

	if s.Metrics != nil {
		s.Metrics.CommandsTotal.WithLabelValues(string(args[0])).Inc()
	}
	tr := metrics.CommandTrace(string(args[0]))
	defer tr.Finish()

	switch string(args[0]) {
	case "get":
		s.cmdGet(args, w)
	case "set":
		s.cmdSet(args, w)
	case "del":
		s.cmdDel(args, w)
	case "keys":
		s.cmdKeys(args, w)
	case "sadd":
		s.cmdSadd(args, w)
	case "srem":
		s.cmdSrem(args, w)
	case "sscore":
		s.cmdSscore(args, w)
	case "squery":
		s.cmdSquery(args, w)
	default:
		s.errReply(w, protocol.ErrUnknown, "unknown command.")
	}
}

func (s *ServerState) errReply(w *protocol.Writer, code uint32, msg string) {
	if s.Metrics != nil {
		s.Metrics.ErrorsTotal.WithLabelValues(strconv.FormatUint(uint64(code), 10)).Inc()
	}
	w.Err(code, msg)
}

func (s *ServerState) cmdGet(args [][]byte, w *protocol.Writer) {
	if len(args) != 2 {
		s.errReply(w, protocol.ErrUnknown, "unknown command.")
		return
	}
	e, ok := s.keyspace.Lookup(string(args[1]))
	if !ok {
		w.Nil()
		return
	}
	if e.typ != typeStr {
		s.errReply(w, protocol.ErrBadTyp, "not a string value")
		return
	}
	w.Str(e.str)
}

func (s *ServerState) cmdSet(args [][]byte, w *protocol.Writer) {
	if len(args) != 3 {
		s.errReply(w, protocol.ErrUnknown, "unknown command.")
		return
	}
	key, value := string(args[1]), string(args[2])
	if e, ok := s.keyspace.Lookup(key); ok && e.typ != typeStr {
		s.errReply(w, protocol.ErrBadTyp, "not a string value")
		return
	}
	s.keyspace.Delete(key)
	s.keyspace.Insert(key, &entry{typ: typeStr, str: value})
	w.Nil()
	s.emitAudit("set", key, "", nil)
}

func (s *ServerState) cmdDel(args [][]byte, w *protocol.Writer) {
	if len(args) != 2 {
		s.errReply(w, protocol.ErrUnknown, "unknown command.")
		return
	}
	key := string(args[1])
	if _, ok := s.keyspace.Delete(key); ok {
		w.Int(1)
		s.emitAudit("del", key, "", nil)
		return
	}
	w.Int(0)
}

func (s *ServerState) cmdKeys(args [][]byte, w *protocol.Writer) {
	if len(args) != 1 {
		s.errReply(w, protocol.ErrUnknown, "unknown command.")
		return
	}
	keys := s.sortedKeys()
	w.Arr(uint32(len(keys)), func(w *protocol.Writer) {
		for _, k := range keys {
			w.Str(k)
		}
	})
}

// lookupOrCreateSSet returns the sorted set stored at key, creating and
// inserting an empty one if key is absent. It reports a type error if key
// holds a non-sset entry.
func (s *ServerState) lookupOrCreateSSet(key string) (*sortedset.Set, bool) {
	if e, ok := s.keyspace.Lookup(key); ok {
		if e.typ != typeSSet {
			return nil, false
		}
		return e.sset, true
	}
	set := sortedset.NewWithLimits(s.limits)
	s.keyspace.Insert(key, &entry{typ: typeSSet, sset: set})
	return set, true
}

// lookupSSet returns the sorted set stored at key without creating one. A
// missing key behaves as an empty, read-only sorted set (spec's
// empty-sset-sentinel design note): emptySet is shared and never mutated.
func (s *ServerState) lookupSSet(key string) (set *sortedset.Set, ok, present bool) {
	e, found := s.keyspace.Lookup(key)
	if !found {
		return emptySet, true, false
	}
	if e.typ != typeSSet {
		return nil, false, true
	}
	return e.sset, true, true
}

var emptySet = sortedset.New()

func (s *ServerState) cmdSadd(args [][]byte, w *protocol.Writer) {
	if len(args) != 4 {
		s.errReply(w, protocol.ErrUnknown, "unknown command.")
		return
	}
	key, name := string(args[1]), string(args[3])
	score, err := parseScore(args[2])
	if err != nil {
		s.errReply(w, protocol.ErrBadArg, "score must be a finite number")
		return
	}
	set, ok := s.lookupOrCreateSSet(key)
	if !ok {
		s.errReply(w, protocol.ErrBadTyp, "not a sorted set value")
		return
	}
	prev, existed := set.Score(name)
	added := set.Upsert(name, score)
	if added {
		w.Int(1)
	} else {
		w.Int(0)
	}
	if !existed || prev != score {
		s.emitAudit("sadd", key, name, &score)
	}
}

func (s *ServerState) cmdSrem(args [][]byte, w *protocol.Writer) {
	if len(args) != 3 {
		s.errReply(w, protocol.ErrUnknown, "unknown command.")
		return
	}
	key, name := string(args[1]), string(args[2])
	set, ok, present := s.lookupSSet(key)
	if !ok {
		s.errReply(w, protocol.ErrBadTyp, "not a sorted set value")
		return
	}
	if !present {
		w.Int(0)
		return
	}
	if set.Delete(name) {
		w.Int(1)
		s.emitAudit("srem", key, name, nil)
		return
	}
	w.Int(0)
}

func (s *ServerState) cmdSscore(args [][]byte, w *protocol.Writer) {
	if len(args) != 3 {
		s.errReply(w, protocol.ErrUnknown, "unknown command.")
		return
	}
	key, name := string(args[1]), string(args[2])
	set, ok, _ := s.lookupSSet(key)
	if !ok {
		s.errReply(w, protocol.ErrBadTyp, "not a sorted set value")
		return
	}
	score, found := set.Score(name)
	if !found {
		w.Nil()
		return
	}
	w.Dbl(score)
}

func (s *ServerState) cmdSquery(args [][]byte, w *protocol.Writer) {
	if len(args) != 6 {
		s.errReply(w, protocol.ErrUnknown, "unknown command.")
		return
	}
	key, name := string(args[1]), string(args[3])
	score, err := parseScore(args[2])
	if err != nil {
		s.errReply(w, protocol.ErrBadArg, "score must be a finite number")
		return
	}
	offset, err := parseInt(args[4])
	if err != nil {
		s.errReply(w, protocol.ErrBadArg, "offset must be an integer")
		return
	}
	limit, err := parseInt(args[5])
	if err != nil {
		s.errReply(w, protocol.ErrBadArg, "limit must be an integer")
		return
	}

	set, ok, _ := s.lookupSSet(key)
	if !ok {
		s.errReply(w, protocol.ErrBadTyp, "not a sorted set value")
		return
	}

	if limit <= 0 {
		w.Arr(0, func(*protocol.Writer) {})
		return
	}

	pairs := set.SeekGE(score, name, offset, limit)
	w.Arr(uint32(len(pairs)*2), func(w *protocol.Writer) {
		for _, p := range pairs {
			w.Str(p.Name)
			w.Dbl(p.Score)
		}
	})
}

func parseScore(b []byte) (float64, error) {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return 0, err
	}
	if f != f { // NaN
		return 0, strconv.ErrSyntax
	}
	return f, nil
}

func parseInt(b []byte) (int64, error) {
	return strconv.ParseInt(string(b), 10, 64)
}
