// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

//go:build windows

package executor

import "os/exec"

// LISTEN_PID has no meaning to a Windows target; the per-socket named fd
// vars that composeListenFdEnv already set are what Windows consumers read.
func wrapForListenPID(cmd *exec.Cmd) {}
