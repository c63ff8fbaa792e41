// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

//go:build windows

package procfs

import "errors"

func syscallMkfifo(path string) error {
	return errors.New("mkfifo not supported on windows")
}
