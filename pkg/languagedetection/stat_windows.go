// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

//go:build windows

package languagedetection

import "os"

// Windows file info exposes no stable device+inode pair comparable to
// Unix's; binary-level detections are never cached there, only recomputed
// per process (harmless since this module's primary targets are Linux
// services).
func statDevIno(fi os.FileInfo) (dev uint64, ino uint64, ok bool) {
	return 0, 0, false
}
