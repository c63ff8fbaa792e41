// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package servicename

import (
	"path/filepath"
	"strings"
)

const (
	jarExtension          = ".jar"
	warExtension          = ".war"
	apachePrefix          = "org.apache."
	springBootLauncher    = "org.springframework.boot.loader.launch.JarLauncher"
	springBootOldLauncher = "org.springframework.boot.loader.JarLauncher"
)

func isNameFlag(arg string) bool {
	switch arg {
	case "-jar", "-m", "--module":
		return true
	}
	return false
}

func removeFilePath(s string) string {
	base := filepath.Base(s)
	if base == "." || base == "/" {
		return s
	}
	return base
}

// trimColonRight trims everything from the first colon onward, unless
// doing so would leave an empty prefix (a leading ":foo" has no useful
// prefix to trim to).
func trimColonRight(s string) string {
	i := strings.IndexByte(s, ':')
	if i <= 0 {
		return s
	}
	return s[:i]
}

// ExtractJavaName implements the two-pass java command-line heuristic:
// an explicit -Ddd.service= system property always wins; failing that, the
// first argument that looks like a class, jar, or war name (skipping
// flags, assignments, and @-files) becomes the name.
func ExtractJavaName(args []string, ctx Context) (Metadata, bool) {
	if len(args) == 0 {
		return Metadata{}, false
	}
	rest := args[1:] // skip the java executable itself

	for _, a := range rest {
		if name, ok := strings.CutPrefix(a, "-Ddd.service="); ok && name != "" {
			return newMetadata(name, SourceCommandLine), true
		}
	}

	prevArgIsFlag := false
	for _, a := range rest {
		hasFlagPrefix := strings.HasPrefix(a, "-")
		includesAssignment := strings.Contains(a, "=") ||
			strings.HasPrefix(a, "-X") ||
			strings.HasPrefix(a, "-javaagent:") ||
			strings.HasPrefix(a, "-verbose:")
		atArg := strings.HasPrefix(a, "@")
		shouldSkip := prevArgIsFlag || hasFlagPrefix || includesAssignment || atArg

		if !shouldSkip {
			arg := trimColonRight(removeFilePath(a))

			if len(arg) > 0 && isAlpha(rune(arg[0])) {
				vendorSource, additionalNames := ExtractJEENames(args, ctx)

				source := SourceCommandLine
				if len(additionalNames) > 0 && vendorSource != "" {
					source = vendorSource
				}

				if strings.HasSuffix(arg, jarExtension) || strings.HasSuffix(arg, warExtension) {
					if len(additionalNames) == 0 {
						if name, ok := springBootAppNameFromJar(a, rest, ctx); ok {
							return newMetadata(name, SourceSpring), true
						}
					}
					name := strings.TrimSuffix(arg, jarExtension)
					name = strings.TrimSuffix(name, warExtension)
					return newMetadata(name, source).withAdditionalNames(additionalNames), true
				}

				if rest, ok := strings.CutPrefix(arg, apachePrefix); ok {
					if dot := strings.IndexByte(rest, '.'); dot > 0 {
						return newMetadata(rest[:dot], source).withAdditionalNames(additionalNames), true
					}
				}

				if arg == springBootLauncher || arg == springBootOldLauncher {
					if name, ok := springBootLauncherAppName(args, ctx); ok {
						return newMetadata(name, SourceSpring), true
					}
				}

				return newMetadata(arg, source).withAdditionalNames(additionalNames), true
			}
		}

		prevArgIsFlag = hasFlagPrefix && !includesAssignment && !isNameFlag(a)
	}

	return Metadata{}, false
}

func isAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
