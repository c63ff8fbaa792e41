// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package procfs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCappedTruncatesToCap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 100)), 0o644))

	buf, err := ReadCapped(path, 10)
	require.NoError(t, err)
	assert.Len(t, buf, 10)
}

func TestReadCappedUsesDefaultWhenZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "small")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	buf, err := ReadCapped(path, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
}

func TestReadCappedRejectsNonRegularFile(t *testing.T) {
	dir := t.TempDir()
	if err := syscallMkfifo(filepath.Join(dir, "fifo")); err != nil {
		t.Skipf("mkfifo unavailable in this environment: %v", err)
	}
	_, err := ReadCapped(filepath.Join(dir, "fifo"), 0)
	assert.Error(t, err)
}

func TestCmdlineSplitsOnNUL(t *testing.T) {
	// Exercise the parsing helper directly rather than faking /proc/<pid>,
	// which isn't writable from a test.
	raw := "java\x00-jar\x00app.jar\x00"
	parts := splitCmdline([]byte(raw))
	assert.Equal(t, []string{"java", "-jar", "app.jar"}, parts)
}

func TestCmdlineEmpty(t *testing.T) {
	assert.Nil(t, splitCmdline(nil))
}
