// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// kvcli is a standalone client: it connects to a kvstore server, sends one
// request built from its argv, reads and prints the one reply, then exits.
// See original_source/client.cpp and spec §4.13.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/aristanetworks/glog"
	"github.com/aristanetworks/kvstore/internal/protocol"
	"github.com/cenkalti/backoff/v4"
)

func main() {
	addr := flag.String("addr", "localhost:1234", "kvstore server `address`")
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: kvcli [-addr host:port] command [args...]")
		os.Exit(1)
	}

	conn, err := dialWithBackoff(*addr)
	if err != nil {
		glog.Fatalf("kvcli: could not connect to %s: %v", *addr, err)
	}
	defer conn.Close()

	if err := sendRequest(conn, args); err != nil {
		glog.Fatalf("kvcli: send failed: %v", err)
	}
	val, err := readResponse(conn)
	if err != nil {
		glog.Fatalf("kvcli: read failed: %v", err)
	}
	printValue(val, 0)
}

// dialWithBackoff retries transient connection refusals (e.g. the server is
// still starting up) with exponential backoff, giving up once 10 seconds
// have elapsed.
func dialWithBackoff(addr string) (net.Conn, error) {
	var conn net.Conn
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second

	op := func() error {
		c, err := net.Dial("tcp", addr)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return conn, nil
}

func sendRequest(conn net.Conn, args []string) error {
	body := make([]byte, 0, 64)
	body = appendU32(body, uint32(len(args)))
	for _, a := range args {
		body = appendU32(body, uint32(len(a)))
		body = append(body, a...)
	}
	frame := make([]byte, 0, 4+len(body))
	frame = appendU32(frame, uint32(len(body)))
	frame = append(frame, body...)
	_, err := conn.Write(frame)
	return err
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func readResponse(conn net.Conn) (protocol.Value, error) {
	var lenBuf [4]byte
	if _, err := readFull(conn, lenBuf[:]); err != nil {
		return protocol.Value{}, err
	}
	l := binary.LittleEndian.Uint32(lenBuf[:])
	body := make([]byte, l)
	if _, err := readFull(conn, body); err != nil {
		return protocol.Value{}, err
	}
	val, _, err := protocol.DecodeValue(body)
	return val, err
}

func readFull(conn net.Conn, buf []byte) (int, error) {
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

func printValue(v protocol.Value, indent int) {
	pad := ""
	for i := 0; i < indent; i++ {
		pad += "  "
	}
	switch v.Tag {
	case protocol.TagNil:
		fmt.Println(pad + "(nil)")
	case protocol.TagErr:
		fmt.Printf("%s(err %d) %s\n", pad, v.Code, v.Str)
	case protocol.TagStr:
		fmt.Printf("%s(str) %q\n", pad, v.Str)
	case protocol.TagInt:
		fmt.Printf("%s(int) %d\n", pad, v.Int)
	case protocol.TagDbl:
		fmt.Printf("%s(dbl) %g\n", pad, v.Dbl)
	case protocol.TagArr:
		fmt.Printf("%s(arr) len %d\n", pad, len(v.Arr))
		for _, item := range v.Arr {
			printValue(item, indent+1)
		}
	}
}
