// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

//go:build !linux && !windows

package socketactivation

import (
	"fmt"
	"io"
)

// openListener has no backing on platforms without Linux's fd-passing
// conventions or Windows' handle duplication; both socket kinds reject with
// ErrPlatformNotSupported.
func openListener(rc ResolvedSocketConfig) (io.Closer, uintptr, error) {
	return nil, 0, fmt.Errorf("%w: socket activation for %q", ErrPlatformNotSupported, rc.Name)
}
