// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package procfs reads /proc/<pid> inputs for the language detector and
// service-name extractor under a zero-trust posture: every read is
// size-capped, refuses non-regular files, and limits itself to the size
// observed at the metadata check to close the stat-then-read TOCTOU window.
package procfs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultMaxReadSize bounds any single /proc read unless the caller asks
// for a smaller cap; it exists to stop a crafted or swapped device file
// from blowing up memory.
const DefaultMaxReadSize = 1 << 20 // 1 MiB

// errNotRegular is wrapped into the error returned when the target of a
// capped read is not a regular file (a FIFO or device node presented in
// place of a /proc entry, for instance).
var errNotRegular = fmt.Errorf("procfs: not a regular file")

// ReadCapped verifies path is a regular file (both before opening it, so a
// FIFO is never opened, and again on the opened descriptor) and reads at
// most min(maxSize, the size observed by that second stat) bytes; a stat
// size of zero, as /proc pseudo-files report, reads up to maxSize. Capping
// the read to the size seen at stat time — rather than trusting the cap
// alone — means a file that grows between stat and read cannot be used to
// read past what was observed as safe.
func ReadCapped(path string, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxReadSize
	}
	if pre, err := os.Stat(path); err != nil {
		return nil, err
	} else if !pre.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", errNotRegular, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", errNotRegular, path)
	}

	limit := fi.Size()
	if limit <= 0 || limit > maxSize {
		limit = maxSize
	}
	buf, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Cmdline reads /proc/<pid>/cmdline and splits it on the NUL separators the
// kernel uses between argv entries, dropping a single trailing empty
// element left by the final separator.
func Cmdline(pid int) ([]string, error) {
	raw, err := ReadCapped(cmdlinePath(pid), DefaultMaxReadSize)
	if err != nil {
		return nil, err
	}
	return splitCmdline(raw), nil
}

func splitCmdline(raw []byte) []string {
	raw = bytes.TrimRight(raw, "\x00")
	if len(raw) == 0 {
		return nil
	}
	parts := bytes.Split(raw, []byte{0})
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = string(p)
	}
	return out
}

// Exe resolves the /proc/<pid>/exe symlink to the executable's path on the
// host filesystem. It does not stat or read the target.
func Exe(pid int) (string, error) {
	return os.Readlink(exePath(pid))
}

// OpenFDLinks lists /proc/<pid>/fd and resolves each descriptor's symlink
// target, returning a map of fd number to target. Unresolvable descriptors
// (raced closure) are skipped rather than failing the whole scan.
func OpenFDLinks(pid int) (map[int]string, error) {
	dir := fdDir(pid)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make(map[int]string, len(entries))
	for _, e := range entries {
		fd, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		target, err := os.Readlink(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		out[fd] = target
	}
	return out, nil
}

// MemfdInjectorPath scans a process's open file descriptors for the tracer
// injector's language-hint memfd, matching the link target exactly or
// followed by a space (kernel fd-generation suffix) or "(deleted)".
func MemfdInjectorPath(pid int) (string, bool) {
	const marker = "/memfd:dd_language_detected"
	links, err := OpenFDLinks(pid)
	if err != nil {
		return "", false
	}
	for fd, target := range links {
		if target == marker ||
			strings.HasPrefix(target, marker+" ") ||
			strings.HasPrefix(target, marker+"(deleted)") {
			return filepath.Join(fdDir(pid), strconv.Itoa(fd)), true
		}
	}
	return "", false
}

// Maps reads /proc/<pid>/maps. The file is pseudo-infinite in principle
// (grows with the process's mapping count) so the read is capped the same
// as every other procfs input; a process with more mappings than the cap
// covers simply yields a partial (and for DotNet detection, still useful)
// view rather than an unbounded allocation.
func Maps(pid int) ([]byte, error) {
	return ReadCapped(mapsPath(pid), DefaultMaxReadSize)
}

func cmdlinePath(pid int) string { return fmt.Sprintf("/proc/%d/cmdline", pid) }
func exePath(pid int) string     { return fmt.Sprintf("/proc/%d/exe", pid) }
func fdDir(pid int) string       { return fmt.Sprintf("/proc/%d/fd", pid) }
func mapsPath(pid int) string    { return fmt.Sprintf("/proc/%d/maps", pid) }
