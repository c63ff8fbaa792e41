// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package executor

import (
	"os"
	"path/filepath"
)

// runtimeRoot is where relative runtime_directory entries are created.
// Overridable in tests.
var runtimeRoot = "/run"

func createRuntimeDirectories(names []string) error {
	for _, name := range names {
		if err := os.MkdirAll(filepath.Join(runtimeRoot, name), 0755); err != nil {
			return err
		}
	}
	return nil
}

func removeRuntimeDirectories(names []string) {
	for _, name := range names {
		_ = os.RemoveAll(filepath.Join(runtimeRoot, name))
	}
}

// RemoveRuntimeDirectories tears down the entries runtime_directory asked
// the executor to create. The supervisor calls this once an entity is
// fully stopped, matching systemd's RuntimeDirectory lifetime (removed on
// stop, recreated on the next start).
func (e *Executor) RemoveRuntimeDirectories(names []string) {
	removeRuntimeDirectories(names)
}
