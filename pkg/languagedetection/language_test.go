// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package languagedetection

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScanner(s string) *bufio.Scanner {
	return bufio.NewScanner(strings.NewReader(s))
}

func TestIsJRuby(t *testing.T) {
	assert.True(t, isJRuby("java", []string{"java", "-cp", "/path", "org.jruby.Main", "script.rb"}))
	assert.True(t, isJRuby("JAVA", []string{"java", "org.jruby.Main"}))
	assert.False(t, isJRuby("java", []string{"java", "-jar", "app.jar"}))
	assert.False(t, isJRuby("ruby", []string{"java", "org.jruby.Main"}))
}

func TestExeFromArgs(t *testing.T) {
	exe, ok := exeFromArgs([]string{"java", "-jar", "app.jar"})
	require.True(t, ok)
	assert.Equal(t, "java", exe)

	exe, ok = exeFromArgs([]string{`"/usr/bin/java"`, "-jar"})
	require.True(t, ok)
	assert.Equal(t, "java", exe)

	exe, ok = exeFromArgs([]string{"/opt/java-11/bin/java", "-jar"})
	require.True(t, ok)
	assert.Equal(t, "java", exe)

	_, ok = exeFromArgs([]string{"---", "arg"})
	assert.False(t, ok)

	_, ok = exeFromArgs(nil)
	assert.False(t, ok)
}

func TestFromCommand(t *testing.T) {
	cases := map[string]Language{
		"py":         Python,
		"python":     Python,
		"python3":    Python,
		"python3.11": Python,
		"java":       Java,
		"java17":     Java,
		"npm":        NodeJS,
		"node":       NodeJS,
		"dotnet":     DotNet,
		"ruby":       Ruby,
		"rubyw":      Ruby,
		"ruby3.1":    Ruby,
		"ruby10.15":  Ruby,
		"php":        PHP,
		"php-fpm":    PHP,
		"php8":       PHP,
		"php8.1":     PHP,
		"php-fpm8.1": PHP,
	}
	for comm, want := range cases {
		lang, ok := fromCommand(comm)
		assert.True(t, ok, comm)
		assert.Equal(t, want, lang, comm)
	}

	for _, comm := range []string{"javac", "ruby3", "ruby3.1.2", "php8.1.2", "phpunit", "gcc", ""} {
		_, ok := fromCommand(comm)
		assert.False(t, ok, comm)
	}
}

func TestFromInjector(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]Language{
		"nodejs": NodeJS,
		"js":     NodeJS,
		"node":   NodeJS,
		"php":    PHP,
		"jvm":    Java,
		"java":   Java,
		"python": Python,
		"ruby":   Ruby,
		"dotnet": DotNet,
	}
	for input, want := range cases {
		path := filepath.Join(dir, input)
		require.NoError(t, os.WriteFile(path, []byte(input), 0o600))
		lang, ok := fromInjector(OpenFilesInfo{MemfdPath: path})
		assert.True(t, ok, input)
		assert.Equal(t, want, lang, input)
	}
}

func TestFromInjectorUnknownLanguage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unknown_lang")
	require.NoError(t, os.WriteFile(path, []byte("unknown_lang"), 0o600))
	_, ok := fromInjector(OpenFilesInfo{MemfdPath: path})
	assert.False(t, ok)
}

func TestFromInjectorNoMemfd(t *testing.T) {
	_, ok := fromInjector(OpenFilesInfo{})
	assert.False(t, ok)
}

func TestFromInjectorNonexistentFile(t *testing.T) {
	_, ok := fromInjector(OpenFilesInfo{MemfdPath: "/nonexistent/file/path"})
	assert.False(t, ok)
}

func TestHasDotNetDLLInMaps(t *testing.T) {
	withDLL := "7d97b4e57000-7d97b4e85000 r--s 00000000 fc:04 1332568  /usr/lib/dotnet/shared/Microsoft.NETCore.App/8.0.8/System.Console.dll\n" +
		"7d97b4e85000-7d97b4e8e000 r--s 00000000 fc:04 1332665  /usr/lib/dotnet/shared/Microsoft.NETCore.App/8.0.8/System.Runtime.dll\n"
	withoutDLL := "79f6cd47d000-79f6cd47f000 r--p 00000000 fc:04 793163  /usr/lib/python3.10/lib-dynload/_bz2.so\n"
	partial := "7d97b4e85000-7d97b4e8e000 r--s 00000000 fc:04 1332665  /usr/lib/dotnet/System.Runtime.dll.bak\n"

	assert.True(t, hasDotNetDLLInMaps(newScanner(withDLL)))
	assert.False(t, hasDotNetDLLInMaps(newScanner(withoutDLL)))
	assert.False(t, hasDotNetDLLInMaps(newScanner(partial)))
	assert.False(t, hasDotNetDLLInMaps(newScanner("")))
}

func TestDetectFallsBackToUnknown(t *testing.T) {
	lang := Detect(1, "", nil, OpenFilesInfo{})
	assert.Equal(t, Unknown, lang)
}

func TestDetectPrefersBasenameJRubyOverCommandJava(t *testing.T) {
	lang := Detect(1, "", []string{"java", "org.jruby.Main", "script.rb"}, OpenFilesInfo{})
	assert.Equal(t, Ruby, lang)
}
