// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package protocol implements the length-prefixed binary wire format: request
// framing/parsing and a tagged, recursive response encoding. See spec §4.5.
package protocol

import (
	"encoding/binary"
	"errors"
	"math"
)

// Limits enforced on the wire, per spec §4.5/§6.
const (
	MaxMessageBytes = 32 * 1024 * 1024
	MaxArgs         = 200000
)

// ErrFraming is returned by ParseRequest when the incoming bytes violate the
// framing contract (oversized length, oversized arg count, or trailing
// bytes). Callers must treat it as fatal for the connection: close without a
// reply, per spec §7.
var ErrFraming = errors.New("protocol: framing violation")

// ParseRequest attempts to decode one request from the front of buf,
// enforcing the default MaxMessageBytes cap. See ParseRequestWithLimit.
func ParseRequest(buf []byte) (args [][]byte, consumed int, err error) {
	return ParseRequestWithLimit(buf, MaxMessageBytes)
}

// ParseRequestWithLimit attempts to decode one request from the front of
// buf, enforcing maxMessageBytes as the cap on the request's length prefix
// (spec §4.8 makes this configurable; callers that don't care use
// ParseRequest). It returns the parsed argument list, the number of bytes
// consumed from buf, and an error.
//
// Three outcomes:
//   - args != nil, err == nil: one full request was parsed; the caller pops
//     consumed bytes from its incoming buffer.
//   - args == nil, err == nil: not enough bytes yet: try again once more
//     data arrives.
//   - err == ErrFraming: the stream is invalid; the caller must close the
//     connection without replying.
func ParseRequestWithLimit(buf []byte, maxMessageBytes int) (args [][]byte, consumed int, err error) {
	if len(buf) < 4 {
		return nil, 0, nil
	}
	l := binary.LittleEndian.Uint32(buf[0:4])
	if l > uint32(maxMessageBytes) {
		return nil, 0, ErrFraming
	}
	total := 4 + int(l)
	if len(buf) < total {
		return nil, 0, nil
	}
	body := buf[4:total]

	if len(body) < 4 {
		return nil, 0, ErrFraming
	}
	n := binary.LittleEndian.Uint32(body[0:4])
	if n > MaxArgs {
		return nil, 0, ErrFraming
	}
	body = body[4:]

	out := make([][]byte, 0, n)
	for i := uint32(0); i < n; i++ {
		if len(body) < 4 {
			return nil, 0, ErrFraming
		}
		argLen := binary.LittleEndian.Uint32(body[0:4])
		body = body[4:]
		if uint64(len(body)) < uint64(argLen) {
			return nil, 0, ErrFraming
		}
		out = append(out, body[:argLen])
		body = body[argLen:]
	}
	if len(body) != 0 {
		return nil, 0, ErrFraming
	}
	return out, total, nil
}

// Tag identifies the shape of a response value.
type Tag byte

// Wire tags, fixed by spec §4.5.
const (
	TagNil Tag = 0
	TagErr Tag = 1
	TagStr Tag = 2
	TagInt Tag = 3
	TagDbl Tag = 4
	TagArr Tag = 5
)

// Error codes carried in an ERR value's u32 code field, per spec §7.
const (
	ErrUnknown = 1
	ErrTooBig  = 2
	ErrBadTyp  = 3
	ErrBadArg  = 4
)

// Writer accumulates one tagged response body. Zero value is ready to use
// and enforces the default MaxMessageBytes cap; use NewWriterWithLimit for
// a configured cap.
type Writer struct {
	buf      []byte
	maxBytes int
}

// NewWriter returns an empty Writer that enforces the default
// MaxMessageBytes cap.
func NewWriter() *Writer {
	return NewWriterWithLimit(MaxMessageBytes)
}

// NewWriterWithLimit returns an empty Writer whose Finish truncates an
// oversized body to ERR(TOO_BIG) at maxMessageBytes instead of the default
// (spec §4.8 makes this configurable).
func NewWriterWithLimit(maxMessageBytes int) *Writer {
	return &Writer{maxBytes: maxMessageBytes}
}

// Nil appends a NIL value.
func (w *Writer) Nil() {
	w.buf = append(w.buf, byte(TagNil))
}

// Err appends an ERR value with the given code and message.
func (w *Writer) Err(code uint32, msg string) {
	w.buf = append(w.buf, byte(TagErr))
	w.buf = appendU32(w.buf, code)
	w.buf = appendU32(w.buf, uint32(len(msg)))
	w.buf = append(w.buf, msg...)
}

// Str appends a STR value.
func (w *Writer) Str(s string) {
	w.buf = append(w.buf, byte(TagStr))
	w.buf = appendU32(w.buf, uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// Int appends an INT value.
func (w *Writer) Int(v int64) {
	w.buf = append(w.buf, byte(TagInt))
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	w.buf = append(w.buf, b[:]...)
}

// Dbl appends a DBL value.
func (w *Writer) Dbl(v float64) {
	w.buf = append(w.buf, byte(TagDbl))
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	w.buf = append(w.buf, b[:]...)
}

// ArrHeader reserves space for an array tag and count, deferring the count
// until the children are known. The returned token must be passed to
// CloseArr after writing exactly that many child values.
type ArrHeader struct {
	lenOffset int
}

// BeginArr reserves the ARR tag and a placeholder count.
func (w *Writer) BeginArr() ArrHeader {
	w.buf = append(w.buf, byte(TagArr))
	h := ArrHeader{lenOffset: len(w.buf)}
	w.buf = appendU32(w.buf, 0)
	return h
}

// EndArr backpatches the reserved count for h with n, the number of values
// written since BeginArr returned h.
func (w *Writer) EndArr(h ArrHeader, n uint32) {
	binary.LittleEndian.PutUint32(w.buf[h.lenOffset:h.lenOffset+4], n)
}

// Arr writes a complete ARR value in one call for the common case where the
// element count is known up front.
func (w *Writer) Arr(n uint32, fn func(*Writer)) {
	h := w.BeginArr()
	fn(w)
	w.EndArr(h, n)
}

// Finish returns the framed message: a 4-byte little-endian length prefix
// followed by the accumulated body. If the body exceeds w's configured cap,
// the whole response is replaced by a framed ERR(TOO_BIG) reply instead
// (spec §4.5/§7).
func (w *Writer) Finish() []byte {
	maxBytes := w.maxBytes
	if maxBytes <= 0 {
		maxBytes = MaxMessageBytes
	}
	body := w.buf
	if len(body) > maxBytes {
		tb := NewWriter()
		tb.Err(ErrTooBig, "response too big.")
		body = tb.buf
	}
	out := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(body)))
	copy(out[4:], body)
	return out
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}
