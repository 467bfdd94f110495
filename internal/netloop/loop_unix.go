// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

//go:build linux || darwin
// +build linux darwin

package netloop

import (
	"fmt"
	"net"

	"github.com/aristanetworks/kvstore/internal/logger"
	"github.com/aristanetworks/kvstore/internal/protocol"
	"github.com/aristanetworks/kvstore/internal/store"
	"golang.org/x/sys/unix"
)

const (
	pollIn  = int16(unix.POLLIN)
	pollOut = int16(unix.POLLOUT)
	pollErr = int16(unix.POLLERR | unix.POLLHUP | unix.POLLNVAL)

	readChunk = 64 * 1024
)

// Loop owns the listening socket and every accepted Connection, all
// manipulated from a single goroutine: Run returns only when poll(2) fails.
type Loop struct {
	listenFd        int
	conns           map[int]*Connection
	log             logger.Logger
	maxMessageBytes int
}

// Listen creates a non-blocking TCP listener on addr (host:port, host may be
// empty for all interfaces) with SO_REUSEADDR set, per spec §6, enforcing
// the default protocol.MaxMessageBytes cap. See ListenWithLimit.
func Listen(addr string, log logger.Logger) (*Loop, error) {
	return ListenWithLimit(addr, log, protocol.MaxMessageBytes)
}

// ListenWithLimit is Listen with a configured request/response size cap
// (spec §4.8). Failures here are the OS-level startup failures spec §7
// calls fatal; the caller is expected to log and abort.
func ListenWithLimit(addr string, log logger.Logger, maxMessageBytes int) (*Loop, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("netloop: resolve %s: %w", addr, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("netloop: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netloop: setsockopt SO_REUSEADDR: %w", err)
	}

	var sa unix.SockaddrInet4
	sa.Port = tcpAddr.Port
	if ip := tcpAddr.IP.To4(); ip != nil {
		copy(sa.Addr[:], ip)
	}
	if err := unix.Bind(fd, &sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netloop: bind: %w", err)
	}
	if err := unix.Listen(fd, 1024); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netloop: listen: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netloop: set listener non-blocking: %w", err)
	}

	return &Loop{
		listenFd:        fd,
		conns:           make(map[int]*Connection),
		log:             log,
		maxMessageBytes: maxMessageBytes,
	}, nil
}

// Close releases the listening socket and every open connection.
func (l *Loop) Close() {
	for fd := range l.conns {
		unix.Close(fd)
	}
	unix.Close(l.listenFd)
}

// Addr returns the address the listener is bound to, resolving an
// ephemeral port (":0") to the one the kernel actually assigned.
func (l *Loop) Addr() (string, error) {
	sa, err := unix.Getsockname(l.listenFd)
	if err != nil {
		return "", err
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return "", fmt.Errorf("netloop: unexpected sockaddr type %T", sa)
	}
	ip := net.IP(in4.Addr[:])
	return fmt.Sprintf("%s:%d", ip, in4.Port), nil
}

// Run polls the listening socket and every open connection, dispatching
// commands to state, until a poll(2) failure occurs. Per spec §5, apart from
// the one-shot seed import that runs before it, this is the only place the
// keyspace is mutated.
func (l *Loop) Run(state *store.ServerState) error {
	for {
		fds := make([]unix.PollFd, 0, len(l.conns)+1)
		fds = append(fds, unix.PollFd{Fd: int32(l.listenFd), Events: pollIn})
		order := make([]int, 0, len(l.conns))
		for fd, c := range l.conns {
			order = append(order, fd)
			fds = append(fds, unix.PollFd{Fd: int32(fd), Events: c.pollEvents() | pollErr})
		}

		_, err := unix.Poll(fds, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("netloop: poll: %w", err)
		}

		if fds[0].Revents&pollIn != 0 {
			l.accept()
		}

		for i, fd := range order {
			pfd := fds[i+1]
			c := l.conns[fd]
			if c == nil {
				continue
			}
			if pfd.Revents&pollErr != 0 {
				c.wantClose = true
			} else {
				if pfd.Revents&pollIn != 0 {
					l.handleReadable(state, c)
				}
				if pfd.Revents&pollOut != 0 {
					l.handleWritable(c)
				}
			}
			if c.wantClose {
				l.teardown(c)
			}
		}

		if state.Metrics != nil {
			state.Metrics.OpenConnections.Set(float64(len(l.conns)))
			state.Metrics.KeyspaceSize.Set(float64(state.KeyspaceSize()))
			bigger, smaller, cursor := state.HashMapStats()
			state.Metrics.BiggerSize.Set(float64(bigger))
			state.Metrics.SmallerSize.Set(float64(smaller))
			state.Metrics.MigrationCursor.Set(float64(cursor))
		}
	}
}

func (l *Loop) accept() {
	for {
		fd, _, err := unix.Accept(l.listenFd)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			if l.log != nil {
				l.log.Errorf("netloop: accept: %v", err)
			}
			return
		}
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fd)
			continue
		}
		l.conns[fd] = newConnection(fd)
	}
}

func (l *Loop) handleReadable(state *store.ServerState, c *Connection) {
	buf := make([]byte, readChunk)
	for {
		n, err := unix.Read(c.fd, buf)
		if err != nil {
			if err == unix.EAGAIN {
				break
			}
			c.wantClose = true
			return
		}
		if n == 0 {
			c.wantClose = true
			return
		}
		c.incoming = append(c.incoming, buf[:n]...)
		if n < len(buf) {
			break
		}
	}

	for {
		args, consumed, err := protocol.ParseRequestWithLimit(c.incoming, l.maxMessageBytes)
		if err == protocol.ErrFraming {
			c.wantClose = true
			return
		}
		if args == nil {
			break
		}
		w := protocol.NewWriterWithLimit(l.maxMessageBytes)
		state.Execute(args, w)
		c.outgoing = append(c.outgoing, w.Finish()...)
		c.incoming = c.incoming[consumed:]
	}

	if len(c.outgoing) > 0 {
		c.wantWrite = true
		c.wantRead = false
		l.handleWritable(c)
	}
}

func (l *Loop) handleWritable(c *Connection) {
	for len(c.outgoing) > 0 {
		n, err := unix.Write(c.fd, c.outgoing)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			c.wantClose = true
			return
		}
		c.outgoing = c.outgoing[n:]
	}
	c.wantWrite = false
	c.wantRead = true
}

func (l *Loop) teardown(c *Connection) {
	unix.Close(c.fd)
	delete(l.conns, c.fd)
}
