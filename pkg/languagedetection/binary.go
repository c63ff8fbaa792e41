// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package languagedetection

import (
	"bufio"
	"bytes"
	"debug/elf"
	"io"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/DataDog/agent-process-manager/pkg/procfs"
)

const binaryCacheSize = 1000

// binaryID keys the binary-detection cache by device+inode rather than pid,
// so two pids that happen to exec the same file share one verdict and a
// restarted process doesn't force a re-scan.
type binaryID struct {
	dev uint64
	ino uint64
}

var (
	binaryCacheOnce sync.Once
	binaryCache     *lru.Cache[binaryID, Language]
)

func getBinaryCache() *lru.Cache[binaryID, Language] {
	binaryCacheOnce.Do(func() {
		binaryCache, _ = lru.New[binaryID, Language](binaryCacheSize)
	})
	return binaryCache
}

func detectBinaryCached(pid int, exePath string, openFiles OpenFilesInfo) (Language, bool) {
	if lang, ok := fromInjector(openFiles); ok {
		// Injector hints are per-process (the memfd is only visible to that
		// pid's fd table), so they bypass the per-binary cache entirely.
		return lang, true
	}

	id, ok := statBinaryID(exePath)
	if !ok {
		return detectBinaryUncached(pid, exePath)
	}

	cache := getBinaryCache()
	if lang, ok := cache.Get(id); ok {
		return lang, lang != Unknown
	}

	lang, found := detectBinaryUncached(pid, exePath)
	if found {
		cache.Add(id, lang)
	}
	return lang, found
}

func detectBinaryUncached(pid int, exePath string) (Language, bool) {
	if lang, ok := fromGoBuildInfo(exePath); ok {
		return lang, true
	}
	if lang, ok := fromDotNetMaps(pid); ok {
		return lang, true
	}
	return Unknown, false
}

func statBinaryID(exePath string) (binaryID, bool) {
	if exePath == "" {
		return binaryID{}, false
	}
	fi, err := os.Stat(exePath)
	if err != nil {
		return binaryID{}, false
	}
	dev, ino, ok := statDevIno(fi)
	if !ok {
		return binaryID{}, false
	}
	return binaryID{dev: dev, ino: ino}, true
}

const (
	memfdMaxSize = 10
)

// fromInjector reads the tracer injector's language hint out of an
// anonymous memfd left in the process's open files.
func fromInjector(openFiles OpenFilesInfo) (Language, bool) {
	if openFiles.MemfdPath == "" {
		return Unknown, false
	}
	buf, err := procfs.ReadCapped(openFiles.MemfdPath, memfdMaxSize)
	if err != nil {
		return Unknown, false
	}

	switch string(buf) {
	case "nodejs", "js", "node":
		return NodeJS, true
	case "php":
		return PHP, true
	case "jvm", "java":
		return Java, true
	case "python":
		return Python, true
	case "ruby":
		return Ruby, true
	case "dotnet":
		return DotNet, true
	default:
		return Unknown, false
	}
}

const (
	elfReadLimit    = 64 * 1024
	buildInfoSize   = 32
	buildInfoAlign  = 16
)

var buildInfoMagic = []byte("\xff Go buildinf:")

// fromGoBuildInfo detects Go binaries by finding the .go.buildinfo ELF
// section, or failing that, the Go buildinfo magic near the start of the
// data segment. Ported from the approach in Go's own debug/buildinfo
// package.
func fromGoBuildInfo(exePath string) (Language, bool) {
	if exePath == "" {
		return Unknown, false
	}
	f, err := os.Open(exePath)
	if err != nil {
		return Unknown, false
	}
	defer f.Close()

	ef, err := elf.NewFile(f)
	if err != nil {
		return Unknown, false
	}
	defer ef.Close()

	if ef.Section(".go.buildinfo") != nil {
		return Go, true
	}

	var dataProg *elf.Prog
	for _, p := range ef.Progs {
		if p.Type == elf.PT_LOAD && p.Flags&(elf.PF_X|elf.PF_W) == elf.PF_W {
			dataProg = p
			break
		}
	}
	if dataProg == nil {
		return Unknown, false
	}

	readSize := dataProg.Filesz
	if readSize > elfReadLimit {
		readSize = elfReadLimit
	}
	buf := make([]byte, readSize)
	if _, err := f.ReadAt(buf, int64(dataProg.Off)); err != nil && err != io.EOF {
		return Unknown, false
	}

	data := buf
	for {
		i := bytes.Index(data, buildInfoMagic)
		if i < 0 {
			return Unknown, false
		}
		if len(data)-i < buildInfoSize {
			return Unknown, false
		}
		if i%buildInfoAlign == 0 {
			return Go, true
		}
		next := (i + buildInfoAlign - 1) &^ (buildInfoAlign - 1)
		if next >= len(data) {
			return Unknown, false
		}
		data = data[next:]
	}
}

const dotnetRuntimeDLL = "/System.Runtime.dll"

// fromDotNetMaps scans /proc/<pid>/maps for System.Runtime.dll, catching
// non-single-file .NET deployments (self-contained or framework-dependent)
// and framework-dependent single-file deployments. Self-contained
// single-file deployments have no DLLs in maps and are missed. The read
// goes through procfs.Maps so a pathological mapping count never grows the
// scan past the package-wide size cap.
func fromDotNetMaps(pid int) (Language, bool) {
	raw, err := procfs.Maps(pid)
	if err != nil {
		return Unknown, false
	}
	if hasDotNetDLLInMaps(bufio.NewScanner(bytes.NewReader(raw))) {
		return DotNet, true
	}
	return Unknown, false
}

func hasDotNetDLLInMaps(scanner *bufio.Scanner) bool {
	for scanner.Scan() {
		if bytesHasSuffixString(scanner.Bytes(), dotnetRuntimeDLL) {
			return true
		}
	}
	return false
}

func bytesHasSuffixString(b []byte, suffix string) bool {
	return len(b) >= len(suffix) && string(b[len(b)-len(suffix):]) == suffix
}
