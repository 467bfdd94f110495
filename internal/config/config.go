// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package config composes command-line flags with an optional YAML file,
// the way the teacher's cmd/ocprometheus composes gNMI/Prometheus flags with
// a metric-mapping file. A subset of fields is safe to hot-reload via
// fsnotify; structural fields that bear on hash-map/AVL invariants are read
// once at startup.
package config

import (
	"flag"
	"io/ioutil"
	"path/filepath"

	"github.com/aristanetworks/fsnotify"
	"github.com/aristanetworks/kvstore/internal/logger"
	yaml "gopkg.in/yaml.v2"
)

// Config holds every tunable of the server. Fields under "structural" below
// are read once at startup and never touched by mergeReloadable; fields
// under "reloadable" may change on SIGHUP-equivalent file events.
type Config struct {
	// Structural: load-bearing on data-plane invariants, not reloadable.
	Addr                string `yaml:"addr"`
	MaxMessageBytes      int    `yaml:"max_message_bytes"`
	RehashLoadFactor     int    `yaml:"rehash_load_factor"`
	MigrationStepBudget  int    `yaml:"migration_step_budget"`
	MetricsAddr          string `yaml:"metrics_addr"`

	// Reloadable.
	LogVerbosity int    `yaml:"log_verbosity"`
	KafkaAddrs   string `yaml:"kafka_addrs"`
	KafkaTopic   string `yaml:"kafka_topic"`
	SplunkURLs   string `yaml:"splunk_urls"`
	SplunkToken  string `yaml:"splunk_token"`
	SplunkIndex  string `yaml:"splunk_index"`

	// Optional one-shot/periodic integrations, read once at startup.
	SeedRedisAddr string `yaml:"seed_redis_addr"`
	InfluxAddr    string `yaml:"influx_addr"`
	InfluxDB      string `yaml:"influx_db"`

	configPath string
}

// Default returns a Config populated with the spec's literal defaults
// (port 1234, 32 MiB cap, load factor 16, 256-step migration budget).
func Default() *Config {
	return &Config{
		Addr:                ":1234",
		MaxMessageBytes:     32 * 1024 * 1024,
		RehashLoadFactor:    16,
		MigrationStepBudget: 256,
		MetricsAddr:         ":9090",
	}
}

// RegisterFlags binds c's fields to flag.CommandLine. Call before
// flag.Parse.
func (c *Config) RegisterFlags() {
	flag.StringVar(&c.Addr, "addr", c.Addr, "TCP `address` for the data-plane listener")
	flag.IntVar(&c.MaxMessageBytes, "max-message-bytes", c.MaxMessageBytes,
		"Maximum request/response body size in bytes")
	flag.IntVar(&c.RehashLoadFactor, "rehash-threshold", c.RehashLoadFactor,
		"Load factor that triggers a hash-map migration")
	flag.IntVar(&c.MigrationStepBudget, "migration-step-budget", c.MigrationStepBudget,
		"Maximum buckets migrated per mutating call")
	flag.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "`address` for /debug and /metrics")
	flag.IntVar(&c.LogVerbosity, "log-verbosity", c.LogVerbosity, "glog V() level for Info logs")
	flag.StringVar(&c.KafkaAddrs, "audit-kafka-addrs", c.KafkaAddrs,
		"Comma-separated Kafka broker addresses for audit events")
	flag.StringVar(&c.KafkaTopic, "audit-kafka-topic", c.KafkaTopic, "Kafka topic for audit events")
	flag.StringVar(&c.SplunkURLs, "audit-splunk-urls", c.SplunkURLs,
		"Comma-separated Splunk HEC URLs for audit events")
	flag.StringVar(&c.SplunkToken, "audit-splunk-token", c.SplunkToken, "Splunk HEC auth token")
	flag.StringVar(&c.SplunkIndex, "audit-splunk-index", c.SplunkIndex, "Splunk index for audit events")
	flag.StringVar(&c.SeedRedisAddr, "seed-redis", c.SeedRedisAddr,
		"Redis `address` to import string keys from once at startup")
	flag.StringVar(&c.InfluxAddr, "influx-addr", c.InfluxAddr, "InfluxDB HTTP `address` for periodic stats")
	flag.StringVar(&c.InfluxDB, "influx-db", c.InfluxDB, "InfluxDB database name for periodic stats")
	flag.StringVar(&c.configPath, "config", "", "optional YAML config `file` for the reloadable fields")
}

// LoadFile reads the YAML file at c.configPath, if set, and applies it with
// mergeReloadable: every reloadable field that is non-zero in the file
// replaces the value in c, including one set by a flag. The file's other
// fields are not applied; they come from the flags alone.
func (c *Config) LoadFile() error {
	if c.configPath == "" {
		return nil
	}
	return c.mergeFile(c.configPath)
}

func (c *Config) mergeFile(path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	var fromFile Config
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return err
	}
	c.mergeReloadable(&fromFile)
	return nil
}

// mergeReloadable copies only the fields documented as reloadable from src
// into c. Structural fields present in src are ignored; nothing is logged
// about them.
func (c *Config) mergeReloadable(src *Config) {
	if src.LogVerbosity != 0 {
		c.LogVerbosity = src.LogVerbosity
	}
	if src.KafkaAddrs != "" {
		c.KafkaAddrs = src.KafkaAddrs
	}
	if src.KafkaTopic != "" {
		c.KafkaTopic = src.KafkaTopic
	}
	if src.SplunkURLs != "" {
		c.SplunkURLs = src.SplunkURLs
	}
	if src.SplunkToken != "" {
		c.SplunkToken = src.SplunkToken
	}
	if src.SplunkIndex != "" {
		c.SplunkIndex = src.SplunkIndex
	}
}

// WatchFile starts an fsnotify watch on c.configPath and calls onReload
// after every reloadable field update. It returns immediately; the watch
// runs on its own goroutine until done is closed. A no-op if configPath is
// unset.
func (c *Config) WatchFile(log logger.Logger, done <-chan struct{}, onReload func()) error {
	if c.configPath == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(c.configPath)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-done:
				return
			case ev := <-watcher.Events:
				if ev.Name != c.configPath {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := c.mergeFile(c.configPath); err != nil {
					log.Errorf("config: reload of %s failed: %v", c.configPath, err)
					continue
				}
				log.Infof("config: reloaded reloadable fields from %s", c.configPath)
				onReload()
			}
		}
	}()
	return nil
}
