// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package notifysocket implements the receiving side of the systemd
// NOTIFY_SOCKET convention for process_type=notify entities: a unix
// datagram socket the child writes "READY=1" to once it considers itself
// started. go-systemd's daemon package only implements the sending half
// (a process announcing readiness to its own parent); there is no
// upstream receiver counterpart to depend on, so this one is grounded
// directly on the wire protocol systemd documents (NUL/newline-separated
// "KEY=VALUE" datagrams).
package notifysocket

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/DataDog/agent-process-manager/pkg/util/log"
)

const readyState = "READY=1"

// Listener owns one ephemeral unix datagram socket for a single spawn
// attempt. Path is what the caller must export as NOTIFY_SOCKET in the
// child's environment.
type Listener struct {
	Path string

	conn  *net.UnixConn
	ready chan struct{}

	closeOnce sync.Once
}

// createSeq numbers Create calls within this process.
var createSeq atomic.Uint64

// Create binds a fresh datagram socket under dir named for processName,
// unique per call so concurrent/successive spawns of the same entity never
// collide.
func Create(dir, processName string) (*Listener, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf(".procmgr-notify-%s-%d-%d.sock", processName, os.Getpid(), createSeq.Add(1)))
	_ = os.Remove(path)

	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return nil, fmt.Errorf("notifysocket: listen %s: %w", path, err)
	}

	l := &Listener{Path: path, conn: conn, ready: make(chan struct{})}
	go l.serve()
	return l, nil
}

// Ready signals once the child has sent READY=1. The channel is closed
// after the first readiness datagram; later ones are ignored.
func (l *Listener) Ready() <-chan struct{} {
	return l.ready
}

func (l *Listener) serve() {
	buf := make([]byte, 4096)
	for {
		n, _, err := l.conn.ReadFromUnix(buf)
		if err != nil {
			return
		}
		if containsState(buf[:n], readyState) {
			l.closeOnce.Do(func() { close(l.ready) })
		}
	}
}

// containsState checks for a "READY=1" token on its own line/NUL segment,
// the same framing sd_notify(3) uses.
func containsState(payload []byte, want string) bool {
	for _, field := range strings.FieldsFunc(string(payload), func(r rune) bool { return r == '\n' || r == 0 }) {
		if strings.TrimSpace(field) == want {
			return true
		}
	}
	return false
}

// Close tears down the socket and removes its path. Safe to call more than
// once.
func (l *Listener) Close() {
	if l == nil {
		return
	}
	if l.conn != nil {
		_ = l.conn.Close()
	}
	if err := os.Remove(l.Path); err != nil && !os.IsNotExist(err) {
		log.Debugf("notifysocket: remove %s: %v", l.Path, err)
	}
}
