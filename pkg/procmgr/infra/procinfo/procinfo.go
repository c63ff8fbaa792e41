// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package procinfo wires pkg/procfs's capped /proc reads into
// pkg/languagedetection and pkg/servicename, giving both packages their
// production view onto a live pid without either one touching /proc
// directly.
package procinfo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/DataDog/agent-process-manager/pkg/languagedetection"
	"github.com/DataDog/agent-process-manager/pkg/procfs"
	"github.com/DataDog/agent-process-manager/pkg/servicename"
)

// DetectLanguage gathers a pid's argv, resolved executable path, and any
// injector memfd hint, then runs the language detector against them.
func DetectLanguage(pid int) languagedetection.Language {
	args, err := procfs.Cmdline(pid)
	if err != nil {
		args = nil
	}
	exePath, err := procfs.Exe(pid)
	if err != nil {
		exePath = ""
	}
	var openFiles languagedetection.OpenFilesInfo
	if memfdPath, ok := procfs.MemfdInjectorPath(pid); ok {
		openFiles.MemfdPath = memfdPath
	}
	return languagedetection.Detect(pid, exePath, args, openFiles)
}

// RootFS implements servicename.Filesystem rooted at /proc/<pid>/root: the
// kernel's own view of the target's mount namespace, resolved without the
// caller needing CAP_SYS_PTRACE tricks or a chroot of its own.
type RootFS struct {
	root string
}

// NewRootFS returns a servicename.Filesystem rooted at pid's procfs root
// symlink.
func NewRootFS(pid int) RootFS {
	return RootFS{root: fmt.Sprintf("/proc/%d/root", pid)}
}

func (r RootFS) resolve(path string) string {
	return filepath.Join(r.root, filepath.Clean("/"+path))
}

// ReadFile satisfies servicename.Filesystem with a size-capped read so a
// hostile or enormous descriptor file can't be used to exhaust memory via
// the detector.
func (r RootFS) ReadFile(path string) ([]byte, error) {
	return procfs.ReadCapped(r.resolve(path), procfs.DefaultMaxReadSize)
}

func (r RootFS) ReadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(r.resolve(path))
	if err != nil {
		return nil, err
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name()
	}
	return out, nil
}

func (r RootFS) Stat(path string) (bool, error) {
	fi, err := os.Stat(r.resolve(path))
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}

// Context builds a servicename.Context for pid using its environment (read
// from /proc/<pid>/environ, capped the same as every other procfs input)
// and its RootFS, with workingDir resolved from /proc/<pid>/cwd.
func Context(pid int) servicename.Context {
	return servicename.Context{
		Env:        environ(pid),
		FS:         NewRootFS(pid),
		WorkingDir: cwd(pid),
	}
}

func environ(pid int) map[string]string {
	raw, err := procfs.ReadCapped(fmt.Sprintf("/proc/%d/environ", pid), procfs.DefaultMaxReadSize)
	if err != nil {
		return nil
	}
	return parseEnviron(raw)
}

func parseEnviron(raw []byte) map[string]string {
	out := make(map[string]string)
	start := 0
	for i, b := range raw {
		if b != 0 {
			continue
		}
		kv := string(raw[start:i])
		start = i + 1
		for j := 0; j < len(kv); j++ {
			if kv[j] == '=' {
				out[kv[:j]] = kv[j+1:]
				break
			}
		}
	}
	return out
}

func cwd(pid int) string {
	target, err := os.Readlink(fmt.Sprintf("/proc/%d/cwd", pid))
	if err != nil {
		return ""
	}
	return target
}
