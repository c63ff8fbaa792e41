// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package zipsafe wraps archive/zip so that reading an untrusted JAR/WAR
// never decompresses more bytes than the caller agreed to. Every entry must
// pass through Verify before its contents become readable; exceeding the
// cap fails before a single byte is returned.
package zipsafe

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
)

// ErrEntryTooLarge is returned by Verify when an entry's uncompressed size
// exceeds the supplied cap.
var ErrEntryTooLarge = errors.New("zipsafe: entry exceeds size cap")

// DefaultMaxEntrySize bounds reads when a caller passes 0 as the cap.
const DefaultMaxEntrySize = 64 * 1024 * 1024

// Archive is an opened ZIP/JAR whose entries must be verified before read.
type Archive struct {
	zr *zip.Reader
}

// Open parses the central directory of r (size must be known up front,
// exactly like archive/zip itself requires).
func Open(r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("zipsafe: open: %w", err)
	}
	return &Archive{zr: zr}, nil
}

// Names lists every entry in the archive, in central-directory order.
func (a *Archive) Names() []string {
	names := make([]string, len(a.zr.File))
	for i, f := range a.zr.File {
		names[i] = f.Name
	}
	return names
}

// Has reports whether any entry's name starts with prefix — used to sniff
// for marker directories (e.g. "BOOT-INF/") without reading anything.
func (a *Archive) Has(prefix string) bool {
	for _, f := range a.zr.File {
		if len(f.Name) >= len(prefix) && f.Name[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// Verify locates name and returns its bytes if its declared uncompressed
// size is within maxSize (0 uses DefaultMaxEntrySize). The size check runs
// against the central directory's recorded size, before any inflation, so
// a hostile entry never gets to stream arbitrary bytes at the reader.
func (a *Archive) Verify(name string, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxEntrySize
	}
	for _, f := range a.zr.File {
		if f.Name != name {
			continue
		}
		if int64(f.UncompressedSize64) > maxSize {
			return nil, fmt.Errorf("%w: %s (%d > %d)", ErrEntryTooLarge, name, f.UncompressedSize64, maxSize)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("zipsafe: open entry %s: %w", name, err)
		}
		defer rc.Close()

		limited := io.LimitReader(rc, maxSize+1)
		buf, err := io.ReadAll(limited)
		if err != nil {
			return nil, fmt.Errorf("zipsafe: read entry %s: %w", name, err)
		}
		if int64(len(buf)) > maxSize {
			return nil, fmt.Errorf("%w: %s exceeded declared size while reading", ErrEntryTooLarge, name)
		}
		return buf, nil
	}
	return nil, fmt.Errorf("zipsafe: entry %s not found", name)
}
