// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package procinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEnviron(t *testing.T) {
	raw := []byte("PATH=/usr/bin\x00SPRING_APPLICATION_NAME=svc\x00EMPTY=\x00")
	env := parseEnviron(raw)
	assert.Equal(t, "/usr/bin", env["PATH"])
	assert.Equal(t, "svc", env["SPRING_APPLICATION_NAME"])
	assert.Equal(t, "", env["EMPTY"])
}

func TestParseEnvironEmpty(t *testing.T) {
	assert.Empty(t, parseEnviron(nil))
}

func TestRootFSResolvesUnderPidRoot(t *testing.T) {
	fs := NewRootFS(1234)
	assert.Equal(t, "/proc/1234/root/BOOT-INF/classes/application.properties", fs.resolve("BOOT-INF/classes/application.properties"))
	assert.Equal(t, "/proc/1234/root", fs.resolve("/"))
}
