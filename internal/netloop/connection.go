// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package netloop implements the single-threaded, readiness-driven
// connection loop: one goroutine, no locks, suspension only at poll. See
// spec §4.6 and §5.
package netloop

// Connection is one accepted client socket. It is owned exclusively by the
// Loop goroutine that created it; nothing else may touch its buffers.
type Connection struct {
	fd int

	wantRead  bool
	wantWrite bool
	wantClose bool

	incoming []byte
	outgoing []byte
}

func newConnection(fd int) *Connection {
	return &Connection{fd: fd, wantRead: true}
}

// pollEvents returns the poll(2) event mask this connection should be
// registered for, per spec §4.6: readable when wantRead, writable when
// wantWrite. The error bits are not included; Run adds them to every
// connection.
func (c *Connection) pollEvents() int16 {
	var ev int16
	if c.wantRead {
		ev |= pollIn
	}
	if c.wantWrite {
		ev |= pollOut
	}
	return ev
}
