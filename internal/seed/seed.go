// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package seed performs a one-shot import of string keys from an external
// Redis instance into the in-memory keyspace at startup. It is a cold-start
// convenience, not a standing replication link: the Redis connection is
// closed before the listener starts accepting connections.
package seed

import (
	"fmt"

	"github.com/aristanetworks/kvstore/internal/logger"
	"github.com/garyburd/redigo/redis"
)

// Keyspace is the subset of ServerState seed needs, kept narrow so this
// package doesn't import internal/store.
type Keyspace interface {
	SetString(key, value string)
}

// Import dials addr, SCANs the full Redis keyspace once, and copies every
// string-typed key into ks. Non-string Redis keys (hashes, sets, lists) are
// skipped; they have no analog in this server's data model.
func Import(addr string, ks Keyspace, log logger.Logger) error {
	conn, err := redis.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("seed: failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	var cursor int64
	imported := 0
	for {
		reply, err := redis.Values(conn.Do("SCAN", cursor))
		if err != nil {
			return fmt.Errorf("seed: SCAN failed: %w", err)
		}
		var keys []string
		if _, err := redis.Scan(reply, &cursor, &keys); err != nil {
			return fmt.Errorf("seed: malformed SCAN reply: %w", err)
		}

		for _, key := range keys {
			typ, err := redis.String(conn.Do("TYPE", key))
			if err != nil || typ != "string" {
				continue
			}
			value, err := redis.String(conn.Do("GET", key))
			if err != nil {
				continue
			}
			ks.SetString(key, value)
			imported++
		}

		if cursor == 0 {
			break
		}
	}
	if log != nil {
		log.Infof("seed: imported %d string keys from %s", imported, addr)
	}
	return nil
}
