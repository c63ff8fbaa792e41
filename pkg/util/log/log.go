// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package log provides a minimal process-wide logger shared by every
// component of the process manager. It wraps seelog the way the rest of
// the agent stack does, so a single SetupLogger call governs format and
// level for the whole daemon.
package log

import (
	"fmt"
	"sync"

	seelog "github.com/cihub/seelog"
)

var (
	mu     sync.RWMutex
	logger seelog.LoggerInterface = seelog.Disabled
)

// SetupLogger installs logger as the package-wide sink. Passing nil disables
// logging entirely.
func SetupLogger(l seelog.LoggerInterface) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		logger = seelog.Disabled
		return
	}
	logger = l
}

// SetupDefault configures a console logger at the given seelog level
// ("debug", "info", "warn", "error") for use outside of a full daemon
// bootstrap (tests, one-shot CLI commands).
func SetupDefault(level string) error {
	config := fmt.Sprintf(`
<seelog minlevel="%s">
	<outputs formatid="main">
		<console/>
	</outputs>
	<formats>
		<format id="main" format="%%Date(2006-01-02 15:04:05) | %%LEVEL | %%Msg%%n"/>
	</formats>
</seelog>`, level)
	l, err := seelog.LoggerFromConfigAsString(config)
	if err != nil {
		return err
	}
	SetupLogger(l)
	return nil
}

func get() seelog.LoggerInterface {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debugf(format string, params ...interface{}) { get().Debugf(format, params...) }
func Infof(format string, params ...interface{})  { get().Infof(format, params...) }
func Warnf(format string, params ...interface{})  { _ = get().Warnf(format, params...) }
func Errorf(format string, params ...interface{}) { _ = get().Errorf(format, params...) }

func Debug(v ...interface{}) { get().Debug(v...) }
func Info(v ...interface{})  { get().Info(v...) }
func Warn(v ...interface{})  { _ = get().Warn(v...) }
func Error(v ...interface{}) { _ = get().Error(v...) }

// Flush blocks until all buffered log records have been written out.
func Flush() { get().Flush() }
