// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Value is a decoded tagged response, used by tests and the CLI client to
// verify round-tripping without re-implementing the wire format twice.
type Value struct {
	Tag  Tag
	Code uint32
	Str  string
	Int  int64
	Dbl  float64
	Arr  []Value
}

// DecodeValue reads one tagged value from the front of buf, returning the
// value and the number of bytes consumed.
func DecodeValue(buf []byte) (Value, int, error) {
	if len(buf) < 1 {
		return Value{}, 0, fmt.Errorf("protocol: empty value")
	}
	tag := Tag(buf[0])
	pos := 1
	switch tag {
	case TagNil:
		return Value{Tag: tag}, pos, nil
	case TagErr:
		if len(buf) < pos+8 {
			return Value{}, 0, fmt.Errorf("protocol: truncated ERR")
		}
		code := binary.LittleEndian.Uint32(buf[pos:])
		pos += 4
		n := int(binary.LittleEndian.Uint32(buf[pos:]))
		pos += 4
		if len(buf) < pos+n {
			return Value{}, 0, fmt.Errorf("protocol: truncated ERR message")
		}
		msg := string(buf[pos : pos+n])
		pos += n
		return Value{Tag: tag, Code: code, Str: msg}, pos, nil
	case TagStr:
		if len(buf) < pos+4 {
			return Value{}, 0, fmt.Errorf("protocol: truncated STR")
		}
		n := int(binary.LittleEndian.Uint32(buf[pos:]))
		pos += 4
		if len(buf) < pos+n {
			return Value{}, 0, fmt.Errorf("protocol: truncated STR body")
		}
		s := string(buf[pos : pos+n])
		pos += n
		return Value{Tag: tag, Str: s}, pos, nil
	case TagInt:
		if len(buf) < pos+8 {
			return Value{}, 0, fmt.Errorf("protocol: truncated INT")
		}
		v := int64(binary.LittleEndian.Uint64(buf[pos:]))
		pos += 8
		return Value{Tag: tag, Int: v}, pos, nil
	case TagDbl:
		if len(buf) < pos+8 {
			return Value{}, 0, fmt.Errorf("protocol: truncated DBL")
		}
		v := math.Float64frombits(binary.LittleEndian.Uint64(buf[pos:]))
		pos += 8
		return Value{Tag: tag, Dbl: v}, pos, nil
	case TagArr:
		if len(buf) < pos+4 {
			return Value{}, 0, fmt.Errorf("protocol: truncated ARR")
		}
		n := int(binary.LittleEndian.Uint32(buf[pos:]))
		pos += 4
		items := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			v, used, err := DecodeValue(buf[pos:])
			if err != nil {
				return Value{}, 0, err
			}
			items = append(items, v)
			pos += used
		}
		return Value{Tag: tag, Arr: items}, pos, nil
	default:
		return Value{}, 0, fmt.Errorf("protocol: unknown tag %d", tag)
	}
}
