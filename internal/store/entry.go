// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package store owns the keyspace and executes parsed commands against it.
// See spec §3 (data model) and §4.4 (command executor).
package store

import "github.com/aristanetworks/kvstore/internal/sortedset"

// entryType tags the payload an Entry carries.
type entryType int

const (
	typeStr entryType = iota
	typeSSet
)

// entry is one keyspace record: a key, a type tag, and exactly one of the
// two payload fields populated, matching the type tag.
type entry struct {
	typ   entryType
	str   string
	sset  *sortedset.Set
}
