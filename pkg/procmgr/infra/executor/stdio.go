// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package executor

import (
	"io"
	"os"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
)

// resolveIO maps an IOTarget to the file the child's stdout/stderr should
// be redirected to. "inherit" returns the supervisor's own stream (only
// acceptable because the supervisor's stdout/stderr are not secrets);
// "null" opens /dev/null; anything else is treated as a literal path,
// opened append-only, created 0644.
func resolveIO(target process.IOTarget, fallback *os.File) (io.Writer, func(), error) {
	switch target {
	case process.IOInherit, "":
		return fallback, func() {}, nil
	case process.IONull:
		f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		if err != nil {
			return nil, nil, err
		}
		return f, func() { f.Close() }, nil
	default:
		f, err := os.OpenFile(string(target), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, err
		}
		return f, func() { f.Close() }, nil
	}
}
