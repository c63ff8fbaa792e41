// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package languagedetection identifies the runtime language of a spawned
// process from its command line and, when that is inconclusive, from its
// binary on disk. Successful detections that depend only on the binary
// (not on argv) are cached by (device, inode) so a frequently-restarted
// process does not pay the ELF/maps scan twice; a binary whose language
// was not found is scanned again on the next lookup.
package languagedetection

import (
	"path/filepath"
	"strings"
)

// Language is the detected runtime of a process.
type Language string

const (
	Unknown   Language = "unknown"
	Java      Language = "jvm"
	NodeJS    Language = "nodejs"
	Python    Language = "python"
	Ruby      Language = "ruby"
	DotNet    Language = "dotnet"
	Go        Language = "go"
	CPlusPlus Language = "cpp"
	PHP       Language = "php"
)

// OpenFilesInfo carries the subset of a process's open file descriptors
// the detector needs; MemfdPath is populated when the tracer injector left
// its language hint in an anonymous memfd.
type OpenFilesInfo struct {
	MemfdPath string
}

// Detect runs every detection strategy in priority order: an argv-derived
// heuristic, the executable's own basename, then (cached) binary
// inspection. The first strategy with an opinion wins.
func Detect(pid int, exePath string, args []string, openFiles OpenFilesInfo) Language {
	if lang, ok := fromBasename(args); ok {
		return lang
	}
	if lang, ok := fromCmdline(args); ok {
		return lang
	}
	if lang, ok := fromExe(exePath); ok {
		return lang
	}
	if lang, ok := detectBinaryCached(pid, exePath, openFiles); ok {
		return lang
	}
	return Unknown
}

func fromBasename(args []string) (Language, bool) {
	if len(args) == 0 {
		return Unknown, false
	}
	exe := filepath.Base(args[0])
	if isJRuby(exe, args) {
		return Ruby, true
	}
	return Unknown, false
}

func fromCmdline(args []string) (Language, bool) {
	exe, ok := exeFromArgs(args)
	if !ok {
		return Unknown, false
	}
	return fromCommand(exe)
}

func fromExe(exePath string) (Language, bool) {
	if exePath == "" {
		return Unknown, false
	}
	return fromCommand(filepath.Base(exePath))
}

// fromCommand classifies a bare executable basename.
func fromCommand(comm string) (Language, bool) {
	switch comm {
	case "py", "python":
		return Python, true
	case "java":
		return Java, true
	case "npm", "node":
		return NodeJS, true
	case "dotnet":
		return DotNet, true
	case "ruby", "rubyw":
		return Ruby, true
	case "php", "php-fpm":
		return PHP, true
	}

	if strings.HasPrefix(comm, "python") {
		return Python, true
	}
	if strings.HasPrefix(comm, "java") && comm != "javac" {
		return Java, true
	}
	if isRubyVersioned(comm) {
		return Ruby, true
	}
	if isPHPVersioned(comm) {
		return PHP, true
	}
	return Unknown, false
}

// exeFromArgs extracts and normalizes the executable name from argv[0]:
// strip quotes, take the basename, trim non-alphanumeric padding.
func exeFromArgs(args []string) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	exe := strings.Trim(args[0], `"`)
	exe = filepath.Base(exe)
	exe = strings.TrimFunc(exe, func(r rune) bool {
		return !isAlphanumeric(r)
	})
	if exe == "" {
		return "", false
	}
	return exe, true
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// isRubyVersioned matches "ruby3.1", "ruby2.7", "ruby10.15": ^ruby\d+\.\d+$.
func isRubyVersioned(comm string) bool {
	if len(comm) < 7 || !strings.HasPrefix(comm, "ruby") {
		return false
	}
	version := comm[4:]
	dot := strings.IndexByte(version, '.')
	if dot < 0 {
		return false
	}
	major, minor := version[:dot], version[dot+1:]
	return major != "" && minor != "" && allDigits(major) && allDigits(minor)
}

// isPHPVersioned matches "php8", "php8.1", "php-fpm8", "php-fpm8.1":
// ^php(?:-fpm)?\d(?:\.\d)?$.
func isPHPVersioned(comm string) bool {
	rest, ok := strings.CutPrefix(comm, "php")
	if !ok {
		return false
	}
	rest = strings.TrimPrefix(rest, "-fpm")
	if rest == "" {
		return false
	}
	if rest[0] < '0' || rest[0] > '9' {
		return false
	}
	rest = rest[1:]
	if rest == "" {
		return true
	}
	if rest[0] != '.' || len(rest) != 2 {
		return false
	}
	return rest[1] >= '0' && rest[1] <= '9'
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isJRuby(exe string, args []string) bool {
	if !strings.EqualFold(exe, "java") {
		return false
	}
	for _, a := range args {
		if strings.TrimSpace(a) == "org.jruby.Main" {
			return true
		}
	}
	return false
}
