// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

//go:build !windows

package executor

import "os/exec"

// wrapForListenPID rewrites cmd to export LISTEN_PID as the shell's own
// pid immediately before exec-replacing itself with the real command, so
// LISTEN_PID matches the pid the child actually runs under (os/exec fixes
// the environment at fork time, before the real pid is known, so this
// can't be done by just appending to cmd.Env).
func wrapForListenPID(cmd *exec.Cmd) {
	argv := append([]string{cmd.Path}, cmd.Args[1:]...)
	shArgs := append([]string{"-c", `export LISTEN_PID=$$; exec "$0" "$@"`}, argv...)

	shPath, err := exec.LookPath("sh")
	if err != nil {
		shPath = "/bin/sh"
	}
	cmd.Path = shPath
	cmd.Args = append([]string{shPath}, shArgs...)
}
