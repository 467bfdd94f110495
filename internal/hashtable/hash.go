// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package hashtable

// HashBytes is the 32-bit FNV-like hash mandated for keyspace keys and
// sorted-set names (spec §6), zero-extended to 64 bits. The exact function
// only needs to be stable within a single run (hashes are cached on
// insert), but the constants below are kept bit-for-bit compatible with
// the reference implementation.
func HashBytes(b []byte) uint64 {
	var h uint32 = 0x811C9DC5
	for _, c := range b {
		h = (h + uint32(c)) * 0x01000193
	}
	return uint64(h)
}

// HashString is HashBytes over a string's bytes without an intermediate
// allocation.
func HashString(s string) uint64 {
	var h uint32 = 0x811C9DC5
	for i := 0; i < len(s); i++ {
		h = (h + uint32(s[i])) * 0x01000193
	}
	return uint64(h)
}
