// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package servicename

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	yaml "gopkg.in/yaml.v2"

	"github.com/DataDog/agent-process-manager/pkg/zipsafe"
)

const (
	bootInfClassesPath  = "BOOT-INF/classes/"
	defaultConfigName   = "application"
	appNamePropertyName = "spring.application.name"
	manifestFile        = "META-INF/MANIFEST.MF"
	maxPropertyFileSize = 4 * 1024 * 1024
)

// springConfig is what extractSpringBootConfig resolves from --spring.*
// arguments and -D system properties (the later argument winning) and,
// for any value still unset, from environment variables.
type springConfig struct {
	appName        string
	configName     string
	configLocation string
	activeProfiles string
}

func extractSpringBootConfig(args []string, env map[string]string) springConfig {
	var cfg springConfig

	for _, a := range args {
		switch {
		case strings.HasPrefix(a, "--spring.application.name="):
			cfg.appName = strings.TrimPrefix(a, "--spring.application.name=")
		case strings.HasPrefix(a, "-Dspring.application.name="):
			cfg.appName = strings.TrimPrefix(a, "-Dspring.application.name=")
		case strings.HasPrefix(a, "--spring.config.name="):
			cfg.configName = strings.TrimPrefix(a, "--spring.config.name=")
		case strings.HasPrefix(a, "-Dspring.config.name="):
			cfg.configName = strings.TrimPrefix(a, "-Dspring.config.name=")
		case strings.HasPrefix(a, "--spring.config.location="):
			cfg.configLocation = strings.TrimPrefix(a, "--spring.config.location=")
		case strings.HasPrefix(a, "-Dspring.config.location="):
			cfg.configLocation = strings.TrimPrefix(a, "-Dspring.config.location=")
		case strings.HasPrefix(a, "--spring.profiles.active="):
			cfg.activeProfiles = strings.TrimPrefix(a, "--spring.profiles.active=")
		case strings.HasPrefix(a, "-Dspring.profiles.active="):
			cfg.activeProfiles = strings.TrimPrefix(a, "-Dspring.profiles.active=")
		}
	}

	if cfg.appName == "" {
		if v, ok := env["SPRING_APPLICATION_NAME"]; ok {
			cfg.appName = v
		}
	}
	if cfg.configName == "" {
		if v, ok := env["SPRING_CONFIG_NAME"]; ok {
			cfg.configName = v
		}
	}
	if cfg.configLocation == "" {
		if v, ok := env["SPRING_CONFIG_LOCATION"]; ok {
			cfg.configLocation = v
		}
	}
	if cfg.activeProfiles == "" {
		if v, ok := env["SPRING_PROFILES_ACTIVE"]; ok {
			cfg.activeProfiles = v
		}
	}
	return cfg
}

// candidateNames builds the property-file basenames to look for, profile
// first: "<name>-<profile>.properties"/".yml"/".yaml" for each active
// profile in the order given, then the bare "<name>.properties"/".yml"/
// ".yaml", where <name> is configName or "application" when it is empty.
func candidateNames(configName string, profiles []string) []string {
	if configName == "" {
		configName = defaultConfigName
	}
	var names []string
	for _, p := range profiles {
		if p == "" {
			continue
		}
		names = append(names,
			configName+"-"+p+".properties",
			configName+"-"+p+".yml",
			configName+"-"+p+".yaml",
		)
	}
	names = append(names,
		configName+".properties",
		configName+".yml",
		configName+".yaml",
	)
	return names
}

func splitProfiles(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseAppNameFromContent implements the same two formats the properties
// and YAML readers support: "spring.application.name=value" lines, or a
// "spring: / application: / name: value" YAML nesting.
func parseAppNameFromContent(content string, filename string) (string, bool) {
	if strings.HasSuffix(filename, ".properties") {
		for _, line := range strings.Split(content, "\n") {
			line = strings.TrimSpace(line)
			if v, ok := strings.CutPrefix(line, appNamePropertyName+"="); ok {
				v = strings.TrimSpace(v)
				if v != "" {
					return v, true
				}
			}
		}
		return "", false
	}

	if strings.HasSuffix(filename, ".yml") || strings.HasSuffix(filename, ".yaml") {
		flat, err := flattenYAML(content)
		if err != nil {
			return "", false
		}
		if v, ok := flat[appNamePropertyName]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// flattenYAML parses content with yaml.v2 and flattens nested mappings
// into dotted keys, the same property-path shape the properties reader
// already produces, so both formats resolve through a single lookup.
func flattenYAML(content string) (map[string]string, error) {
	var root map[interface{}]interface{}
	if err := yaml.Unmarshal([]byte(content), &root); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	flattenYAMLInto(root, "", out)
	return out, nil
}

func flattenYAMLInto(node interface{}, prefix string, out map[string]string) {
	switch v := node.(type) {
	case map[interface{}]interface{}:
		for k, child := range v {
			key := fmt.Sprintf("%v", k)
			if prefix != "" {
				key = prefix + "." + key
			}
			flattenYAMLInto(child, key, out)
		}
	case map[string]interface{}:
		for k, child := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenYAMLInto(child, key, out)
		}
	default:
		if prefix != "" {
			out[prefix] = fmt.Sprintf("%v", v)
		}
	}
}

// scanFilesystemForAppName looks for candidate config files under dir and
// its "config/" and "config/*/" subdirectories, matching the ant-style
// locations Spring itself searches by default.
func scanFilesystemForAppName(fs Filesystem, dir string, names []string) (string, bool) {
	if fs == nil {
		return "", false
	}
	searchDirs := []string{dir, path.Join(dir, "config")}
	if entries, err := fs.ReadDir(path.Join(dir, "config")); err == nil {
		for _, e := range entries {
			if isDir, err := fs.Stat(path.Join(dir, "config", e)); err == nil && isDir {
				searchDirs = append(searchDirs, path.Join(dir, "config", e))
			}
		}
	}

	for _, name := range names {
		for _, d := range searchDirs {
			content, err := fs.ReadFile(path.Join(d, name))
			if err != nil {
				continue
			}
			if v, ok := parseAppNameFromContent(string(content), name); ok {
				return v, true
			}
		}
	}
	return "", false
}

// classpath:/config/ and classpath:/config/*/ are spring.config.locations'
// defaults alongside classpath:/ itself, so every candidate is tried at
// BOOT-INF/classes/, BOOT-INF/classes/config/ and each immediate
// subdirectory of BOOT-INF/classes/config/ before moving to the next
// candidate name.
func scanArchiveForAppName(archive *zipsafe.Archive, names []string) (string, bool) {
	dirs := append([]string{bootInfClassesPath, bootInfClassesPath + "config/"}, configSubdirs(archive)...)
	for _, name := range names {
		for _, dir := range dirs {
			entryPath := dir + name
			if !archive.Has(entryPath) {
				continue
			}
			buf, err := archive.Verify(entryPath, maxPropertyFileSize)
			if err != nil {
				continue
			}
			if v, ok := parseAppNameFromContent(string(buf), name); ok {
				return v, true
			}
		}
	}
	return "", false
}

// configSubdirs lists the immediate subdirectories of BOOT-INF/classes/config/
// present in the archive, e.g. BOOT-INF/classes/config/prod/.
func configSubdirs(archive *zipsafe.Archive) []string {
	base := bootInfClassesPath + "config/"
	seen := make(map[string]bool)
	var dirs []string
	for _, n := range archive.Names() {
		rest, ok := strings.CutPrefix(n, base)
		if !ok || rest == "" {
			continue
		}
		i := strings.IndexByte(rest, '/')
		if i < 0 {
			continue
		}
		sub := base + rest[:i+1]
		if !seen[sub] {
			seen[sub] = true
			dirs = append(dirs, sub)
		}
	}
	return dirs
}

// springBootAppNameWithSource resolves the application name using cfg
// (already-specified names win outright) and, failing that, by scanning
// config locations in profile-then-default order via scan.
func springBootAppNameWithSource(args []string, ctx Context, scan func(names []string) (string, bool)) (string, bool) {
	cfg := extractSpringBootConfig(args, ctx.Env)
	if cfg.appName != "" {
		return cfg.appName, true
	}

	profiles := splitProfiles(cfg.activeProfiles)
	names := candidateNames(cfg.configName, profiles)
	return scan(names)
}

// springBootAppNameFromJar resolves a Spring Boot application's name from a
// packaged fat JAR passed directly as -jar, e.g. `java -jar app.jar`. args is
// the full java command line, used to honor an explicit active profile even
// though the jar itself was named positionally rather than via -cp.
func springBootAppNameFromJar(jarPath string, args []string, ctx Context) (string, bool) {
	if ctx.FS == nil {
		return "", false
	}
	abs := jarPath
	if !path.IsAbs(jarPath) && ctx.WorkingDir != "" {
		abs = path.Join(ctx.WorkingDir, jarPath)
	}
	content, err := ctx.FS.ReadFile(abs)
	if err != nil {
		return "", false
	}
	archive, err := zipsafe.Open(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", false
	}
	if !archive.Has("BOOT-INF/") {
		return "", false
	}
	return springBootAppNameWithSource(args, ctx, func(names []string) (string, bool) {
		return scanArchiveForAppName(archive, names)
	})
}

// springBootLauncherAppName resolves the application name when the JVM was
// invoked via org.springframework.boot.loader[.launch].JarLauncher: the
// first entry of an explicit -cp/-classpath holds the BOOT-INF-style
// archive or exploded directory. Without such an argument nothing is
// resolved.
func springBootLauncherAppName(args []string, ctx Context) (string, bool) {
	classpath := firstClassPathEntry(args)
	if classpath == "" {
		return "", false
	}
	abs := classpath
	if !path.IsAbs(classpath) && ctx.WorkingDir != "" {
		abs = path.Join(ctx.WorkingDir, classpath)
	}

	if strings.HasSuffix(strings.ToLower(abs), ".jar") {
		if name, ok := springBootAppNameFromJar(abs, args, ctx); ok {
			return name, true
		}
		return startClassFromJarManifest(abs, ctx)
	}

	if name, ok := springBootAppNameWithSource(args, ctx, func(names []string) (string, bool) {
		adjusted := make([]string, len(names))
		for i, n := range names {
			adjusted[i] = n
		}
		return scanFilesystemForAppName(ctx.FS, abs, adjusted)
	}); ok {
		return name, true
	}
	return startClassFromManifestFile(path.Join(abs, manifestFile), ctx)
}

func firstClassPathEntry(args []string) string {
	for i, a := range args {
		if (a == "-cp" || a == "-classpath") && i+1 < len(args) {
			parts := strings.Split(args[i+1], ":")
			if len(parts) > 0 {
				return parts[0]
			}
		}
	}
	return ""
}

func startClassFromJarManifest(jarPath string, ctx Context) (string, bool) {
	if ctx.FS == nil {
		return "", false
	}
	content, err := ctx.FS.ReadFile(jarPath)
	if err != nil {
		return "", false
	}
	archive, err := zipsafe.Open(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", false
	}
	buf, err := archive.Verify(manifestFile, maxPropertyFileSize)
	if err != nil {
		return "", false
	}
	return parseStartClass(string(buf))
}

func startClassFromManifestFile(manifestPath string, ctx Context) (string, bool) {
	if ctx.FS == nil {
		return "", false
	}
	content, err := ctx.FS.ReadFile(manifestPath)
	if err != nil {
		return "", false
	}
	return parseStartClass(string(content))
}

func parseStartClass(content string) (string, bool) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if v, ok := strings.CutPrefix(line, "Start-Class:"); ok {
			v = strings.TrimSpace(v)
			if v != "" {
				return v, true
			}
		}
	}
	return "", false
}
