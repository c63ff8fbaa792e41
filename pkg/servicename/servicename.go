// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package servicename derives a human-readable service name for a JVM
// process from its command line, falling back to Spring Boot's own
// application-name resolution and then to JEE web-server context roots
// when the command line alone is not descriptive enough (a bare
// "org.apache.catalina.startup.Bootstrap" tells us nothing about what the
// deployed application actually is).
package servicename

// Source records which heuristic produced a Metadata value, so callers can
// weigh a command-line guess differently from a JEE/Spring contextual one.
type Source string

const (
	SourceCommandLine Source = "command-line"
	SourceSpring      Source = "spring"
	SourceTomcat      Source = "tomcat"
	SourceJboss       Source = "jboss"
	SourceWeblogic    Source = "weblogic"
	SourceWebsphere   Source = "websphere"
)

// Metadata is the extractor's result: a primary name plus any additional
// names gathered from deployed web contexts (a single JVM can host several
// independently-named webapps).
type Metadata struct {
	Name            string
	Source          Source
	AdditionalNames []string
}

func newMetadata(name string, source Source) Metadata {
	return Metadata{Name: name, Source: source}
}

func (m Metadata) withAdditionalNames(names []string) Metadata {
	m.AdditionalNames = names
	return m
}

// Filesystem abstracts the lookups the extractor needs to perform against
// the target process's mount namespace: reading files relative to its
// working directory, and listing deployment directories. Production code
// backs this with the container's actual root; tests back it with an
// in-memory map.
type Filesystem interface {
	ReadFile(path string) ([]byte, error)
	ReadDir(path string) ([]string, error)
	Stat(path string) (isDir bool, err error)
}

// Context carries the per-process state the extractor needs beyond the
// command line: environment variables (for Spring Boot's
// SPRING_APPLICATION_NAME and profile env vars) and a filesystem rooted at
// the process's view of the world, plus its working directory for
// resolving relative paths exactly like the JVM itself would.
type Context struct {
	Env        map[string]string
	FS         Filesystem
	WorkingDir string
}
