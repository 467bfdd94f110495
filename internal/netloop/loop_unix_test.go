// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

//go:build linux || darwin
// +build linux darwin

package netloop

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/aristanetworks/kvstore/internal/logger"
	"github.com/aristanetworks/kvstore/internal/store"
)

func encodeRequest(args ...string) []byte {
	body := appendU32(nil, uint32(len(args)))
	for _, a := range args {
		body = appendU32(body, uint32(len(a)))
		body = append(body, a...)
	}
	return append(appendU32(nil, uint32(len(body))), body...)
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

// TestLoopServesOneRequest drives a real TCP round trip through the
// readiness-driven loop: a client connects, sends one framed "set/get"
// pair, and reads back the framed tagged replies.
func TestLoopServesOneRequest(t *testing.T) {
	loop, err := Listen("127.0.0.1:0", logger.Discard{})
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer loop.Close()

	addr, err := loop.Addr()
	if err != nil {
		t.Fatalf("Addr failed: %v", err)
	}

	state := store.New(logger.Discard{}, nil, nil)
	go loop.Run(state)

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write(encodeRequest("set", "foo", "bar")); err != nil {
		t.Fatalf("write set failed: %v", err)
	}
	readFramedResponse(t, conn)

	if _, err := conn.Write(encodeRequest("get", "foo")); err != nil {
		t.Fatalf("write get failed: %v", err)
	}
	body := readFramedResponse(t, conn)
	// STR tag (2), u32 length 3, "bar".
	if len(body) < 1 || body[0] != 2 {
		t.Fatalf("get reply first byte = %v; want STR tag", body)
	}
}

func readFramedResponse(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var lenBuf [4]byte
	if _, err := readFullConn(conn, lenBuf[:]); err != nil {
		t.Fatalf("read length prefix failed: %v", err)
	}
	l := binary.LittleEndian.Uint32(lenBuf[:])
	body := make([]byte, l)
	if _, err := readFullConn(conn, body); err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	return body
}

func readFullConn(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
