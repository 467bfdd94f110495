// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package protocol

import (
	"encoding/binary"
	"testing"
)

func encodeRequest(args ...string) []byte {
	body := appendU32(nil, uint32(len(args)))
	for _, a := range args {
		body = appendU32(body, uint32(len(a)))
		body = append(body, a...)
	}
	return append(appendU32(nil, uint32(len(body))), body...)
}

func TestParseRequestRoundTrip(t *testing.T) {
	frame := encodeRequest("set", "foo", "bar")
	args, consumed, err := ParseRequest(frame)
	if err != nil {
		t.Fatalf("ParseRequest returned error: %v", err)
	}
	if consumed != len(frame) {
		t.Fatalf("consumed = %d; want %d", consumed, len(frame))
	}
	want := []string{"set", "foo", "bar"}
	if len(args) != len(want) {
		t.Fatalf("got %d args; want %d", len(args), len(want))
	}
	for i, w := range want {
		if string(args[i]) != w {
			t.Fatalf("args[%d] = %q; want %q", i, args[i], w)
		}
	}
}

func TestParseRequestNeedsMoreData(t *testing.T) {
	frame := encodeRequest("get", "foo")
	args, consumed, err := ParseRequest(frame[:len(frame)-1])
	if err != nil {
		t.Fatalf("ParseRequest returned error on truncated input: %v", err)
	}
	if args != nil || consumed != 0 {
		t.Fatalf("ParseRequest on truncated input = %v, %d; want nil, 0", args, consumed)
	}
}

func TestParseRequestMultipleInOneBuffer(t *testing.T) {
	buf := append(encodeRequest("get", "a"), encodeRequest("get", "b")...)

	args1, n1, err := ParseRequest(buf)
	if err != nil || args1 == nil {
		t.Fatalf("first ParseRequest failed: %v, %v", args1, err)
	}
	buf = buf[n1:]
	args2, n2, err := ParseRequest(buf)
	if err != nil || args2 == nil {
		t.Fatalf("second ParseRequest failed: %v, %v", args2, err)
	}
	if string(args1[1]) != "a" || string(args2[1]) != "b" {
		t.Fatalf("requests decoded out of order: %q, %q", args1[1], args2[1])
	}
	if n2 != len(buf) {
		t.Fatalf("second consumed = %d; want %d (buffer fully drained)", n2, len(buf))
	}
}

func TestParseRequestRejectsOversizedLength(t *testing.T) {
	var frame [4]byte
	binary.LittleEndian.PutUint32(frame[:], MaxMessageBytes+1)
	_, _, err := ParseRequest(frame[:])
	if err != ErrFraming {
		t.Fatalf("ParseRequest with oversized length = %v; want ErrFraming", err)
	}
}

func TestParseRequestRejectsTrailingBytes(t *testing.T) {
	frame := encodeRequest("get", "a")
	frame = append(frame, 0xFF)
	// Bump the length prefix to cover the trailing byte so parsing
	// attempts to consume it as part of the body.
	binary.LittleEndian.PutUint32(frame[0:4], binary.LittleEndian.Uint32(frame[0:4])+1)
	_, _, err := ParseRequest(frame)
	if err != ErrFraming {
		t.Fatalf("ParseRequest with trailing bytes = %v; want ErrFraming", err)
	}
}

func TestWriterRoundTripsEveryTag(t *testing.T) {
	w := NewWriter()
	w.Nil()
	w.Err(ErrBadArg, "bad")
	w.Str("hello")
	w.Int(-42)
	w.Dbl(3.5)
	w.Arr(2, func(w *Writer) {
		w.Str("x")
		w.Int(1)
	})
	frame := w.Finish()

	bodyLen := binary.LittleEndian.Uint32(frame[0:4])
	body := frame[4:]
	if int(bodyLen) != len(body) {
		t.Fatalf("frame length prefix = %d; body is %d bytes", bodyLen, len(body))
	}

	pos := 0
	nilVal, n, err := DecodeValue(body[pos:])
	must(t, err)
	pos += n
	if nilVal.Tag != TagNil {
		t.Fatalf("value 1 tag = %v; want TagNil", nilVal.Tag)
	}

	errVal, n, err := DecodeValue(body[pos:])
	must(t, err)
	pos += n
	if errVal.Tag != TagErr || errVal.Code != ErrBadArg || errVal.Str != "bad" {
		t.Fatalf("value 2 = %+v; want ERR(%d, bad)", errVal, ErrBadArg)
	}

	strVal, n, err := DecodeValue(body[pos:])
	must(t, err)
	pos += n
	if strVal.Tag != TagStr || strVal.Str != "hello" {
		t.Fatalf("value 3 = %+v; want STR(hello)", strVal)
	}

	intVal, n, err := DecodeValue(body[pos:])
	must(t, err)
	pos += n
	if intVal.Tag != TagInt || intVal.Int != -42 {
		t.Fatalf("value 4 = %+v; want INT(-42)", intVal)
	}

	dblVal, n, err := DecodeValue(body[pos:])
	must(t, err)
	pos += n
	if dblVal.Tag != TagDbl || dblVal.Dbl != 3.5 {
		t.Fatalf("value 5 = %+v; want DBL(3.5)", dblVal)
	}

	arrVal, n, err := DecodeValue(body[pos:])
	must(t, err)
	pos += n
	if arrVal.Tag != TagArr || len(arrVal.Arr) != 2 {
		t.Fatalf("value 6 = %+v; want ARR of length 2", arrVal)
	}
	if arrVal.Arr[0].Str != "x" || arrVal.Arr[1].Int != 1 {
		t.Fatalf("array contents = %+v; want [STR(x), INT(1)]", arrVal.Arr)
	}
	if pos != len(body) {
		t.Fatalf("decoded %d of %d body bytes", pos, len(body))
	}
}

func TestWriterTruncatesOversizedBody(t *testing.T) {
	w := NewWriter()
	w.Str(string(make([]byte, MaxMessageBytes+1)))
	frame := w.Finish()

	body := frame[4:]
	val, _, err := DecodeValue(body)
	must(t, err)
	if val.Tag != TagErr || val.Code != ErrTooBig {
		t.Fatalf("oversized response decoded as %+v; want ERR(TOO_BIG)", val)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
