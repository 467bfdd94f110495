// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package logger

import "github.com/aristanetworks/glog"

// Glog adapts github.com/aristanetworks/glog to the Logger interface.
type Glog struct {
	// InfoLevel gates Info/Infof behind glog.V; default 0 means always on.
	InfoLevel glog.Level
}

func (g *Glog) Info(args ...interface{}) {
	glog.V(g.InfoLevel).Info(args...)
}

func (g *Glog) Infof(format string, args ...interface{}) {
	glog.V(g.InfoLevel).Infof(format, args...)
}

func (g *Glog) Error(args ...interface{}) {
	glog.Error(args...)
}

func (g *Glog) Errorf(format string, args ...interface{}) {
	glog.Errorf(format, args...)
}

func (g *Glog) Fatal(args ...interface{}) {
	glog.Fatal(args...)
}

func (g *Glog) Fatalf(format string, args ...interface{}) {
	glog.Fatalf(format, args...)
}
