// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package servicename

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSpringBootConfigPrefersCommandLineOverEnv(t *testing.T) {
	args := []string{"java", "-Dspring.application.name=from-cli"}
	env := map[string]string{"SPRING_APPLICATION_NAME": "from-env"}
	cfg := extractSpringBootConfig(args, env)
	assert.Equal(t, "from-cli", cfg.appName)
}

func TestExtractSpringBootConfigFallsBackToEnv(t *testing.T) {
	env := map[string]string{"SPRING_APPLICATION_NAME": "from-env"}
	cfg := extractSpringBootConfig(nil, env)
	assert.Equal(t, "from-env", cfg.appName)
}

func TestCandidateNamesProfileBeforeDefault(t *testing.T) {
	names := candidateNames("", []string{"prod"})
	assert.Equal(t, []string{
		"application-prod.properties",
		"application-prod.yml",
		"application-prod.yaml",
		"application.properties",
		"application.yml",
		"application.yaml",
	}, names)
}

func TestParseAppNameFromPropertiesContent(t *testing.T) {
	name, ok := parseAppNameFromContent("foo=bar\nspring.application.name=checkout\n", "application.properties")
	require.True(t, ok)
	assert.Equal(t, "checkout", name)
}

func TestParseAppNameFromYAMLContent(t *testing.T) {
	content := "server:\n  port: 8080\nspring:\n  application:\n    name: billing\n"
	name, ok := parseAppNameFromContent(content, "application.yml")
	require.True(t, ok)
	assert.Equal(t, "billing", name)
}

func TestParseAppNameFromYAMLContentMissing(t *testing.T) {
	content := "server:\n  port: 8080\n"
	_, ok := parseAppNameFromContent(content, "application.yml")
	assert.False(t, ok)
}

func TestSpringBootAppNameFromJarUsesDefaultProfile(t *testing.T) {
	jarBytes := buildTestJar(t, map[string]string{
		"BOOT-INF/classes/application.properties": "spring.application.name=checkout-service\n",
	})
	fs := newFakeFS(map[string]string{"/opt/app/app.jar": string(jarBytes)})
	ctx := Context{FS: fs, WorkingDir: "/opt/app"}

	name, ok := springBootAppNameFromJar("app.jar", nil, ctx)
	require.True(t, ok)
	assert.Equal(t, "checkout-service", name)
}

func TestSpringBootAppNameFromJarProfileSpecificWins(t *testing.T) {
	jarBytes := buildTestJar(t, map[string]string{
		"BOOT-INF/classes/application.properties":      "spring.application.name=default-name\n",
		"BOOT-INF/classes/application-prod.properties": "spring.application.name=prod-name\n",
	})
	fs := newFakeFS(map[string]string{"/opt/app/app.jar": string(jarBytes)})
	ctx := Context{FS: fs, WorkingDir: "/opt/app"}
	args := []string{"java", "-Dspring.profiles.active=prod", "-jar", "app.jar"}

	name, ok := springBootAppNameFromJar("app.jar", args, ctx)
	require.True(t, ok)
	assert.Equal(t, "prod-name", name)
}

// A jar with a profile-specific entry under BOOT-INF/classes/config/prod/
// resolves to the bare default name when invoked with no profile, and to a
// config-name override's bare entry when invoked with active profiles and a
// custom config name that has no profile-specific match of its own.
func TestSpringBootAppNameFromJarFullScenario(t *testing.T) {
	jarBytes := buildTestJar(t, map[string]string{
		"BOOT-INF/classes/application.properties":                    "spring.application.name=default-app\n",
		"BOOT-INF/classes/config/prod/application-prod.properties":   "spring.application.name=prod-app\n",
		"BOOT-INF/classes/custom.properties":                          "spring.application.name=custom-app\n",
	})
	fs := newFakeFS(map[string]string{"/opt/app/app.jar": string(jarBytes)})
	ctx := Context{FS: fs, WorkingDir: "/opt/app"}

	name, ok := springBootAppNameFromJar("app.jar", []string{"java", "-jar", "app.jar"}, ctx)
	require.True(t, ok)
	assert.Equal(t, "default-app", name)

	args := []string{"java", "-Dspring.profiles.active=prod,yaml", "-Dspring.config.name=custom", "-jar", "app.jar"}
	name, ok = springBootAppNameFromJar("app.jar", args, ctx)
	require.True(t, ok)
	assert.Equal(t, "custom-app", name)
}

func TestSpringBootAppNameFromJarRejectsNonBootJar(t *testing.T) {
	jarBytes := buildTestJar(t, map[string]string{"META-INF/MANIFEST.MF": "Manifest-Version: 1.0\n"})
	fs := newFakeFS(map[string]string{"/opt/app/app.jar": string(jarBytes)})
	ctx := Context{FS: fs, WorkingDir: "/opt/app"}

	_, ok := springBootAppNameFromJar("app.jar", nil, ctx)
	assert.False(t, ok)
}

func TestSpringBootLauncherAppNameFromClasspathJar(t *testing.T) {
	jarBytes := buildTestJar(t, map[string]string{
		"BOOT-INF/classes/application.properties": "spring.application.name=billing\n",
	})
	fs := newFakeFS(map[string]string{"/opt/app/app.jar": string(jarBytes)})
	ctx := Context{FS: fs, WorkingDir: "/opt/app"}
	args := []string{"java", "-cp", "app.jar", springBootLauncher}

	name, ok := springBootLauncherAppName(args, ctx)
	require.True(t, ok)
	assert.Equal(t, "billing", name)
}

func TestSpringBootLauncherAppNameFallsBackToStartClass(t *testing.T) {
	jarBytes := buildTestJar(t, map[string]string{
		"META-INF/MANIFEST.MF": "Manifest-Version: 1.0\nStart-Class: com.example.OrdersApplication\n",
	})
	fs := newFakeFS(map[string]string{"/opt/app/app.jar": string(jarBytes)})
	ctx := Context{FS: fs, WorkingDir: "/opt/app"}
	args := []string{"java", "-cp", "app.jar", springBootLauncher}

	name, ok := springBootLauncherAppName(args, ctx)
	require.True(t, ok)
	assert.Equal(t, "com.example.OrdersApplication", name)
}

func TestSpringBootLauncherAppNameExplodedDirectory(t *testing.T) {
	fs := newFakeFS(map[string]string{
		"/opt/app/classes/application.properties": "spring.application.name=exploded-app\n",
	})
	ctx := Context{FS: fs, WorkingDir: "/opt/app"}
	args := []string{"java", "-cp", "classes", springBootLauncher}

	name, ok := springBootLauncherAppName(args, ctx)
	require.True(t, ok)
	assert.Equal(t, "exploded-app", name)
}

func TestFirstClassPathEntryTakesFirstColonSeparatedPart(t *testing.T) {
	args := []string{"java", "-cp", "app.jar:lib/other.jar", "Main"}
	assert.Equal(t, "app.jar", firstClassPathEntry(args))
}

func TestFirstClassPathEntryMissing(t *testing.T) {
	assert.Equal(t, "", firstClassPathEntry([]string{"java", "Main"}))
}

func TestParseStartClass(t *testing.T) {
	name, ok := parseStartClass("Manifest-Version: 1.0\nStart-Class: com.example.App\n")
	require.True(t, ok)
	assert.Equal(t, "com.example.App", name)
}

func TestParseStartClassMissing(t *testing.T) {
	_, ok := parseStartClass("Manifest-Version: 1.0\n")
	assert.False(t, ok)
}
