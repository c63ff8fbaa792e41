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

func TestExtractJavaNameDDServiceWins(t *testing.T) {
	args := []string{"java", "-Ddd.service=checkout", "-jar", "app.jar"}
	md, ok := ExtractJavaName(args, Context{})
	require.True(t, ok)
	assert.Equal(t, "checkout", md.Name)
	assert.Equal(t, SourceCommandLine, md.Source)
}

func TestExtractJavaNameFromJarFilename(t *testing.T) {
	args := []string{"java", "-jar", "/opt/app/orders-service.jar"}
	md, ok := ExtractJavaName(args, Context{})
	require.True(t, ok)
	assert.Equal(t, "orders-service", md.Name)
}

// A JVM flag ahead of -jar must not be mistaken for the jar path.
func TestExtractJavaNameJVMJarNameScenario(t *testing.T) {
	args := []string{"java", "-Xmx4g", "-jar", "/opt/svc.jar"}
	md, ok := ExtractJavaName(args, Context{})
	require.True(t, ok)
	assert.Equal(t, "svc", md.Name)
	assert.Equal(t, SourceCommandLine, md.Source)
}

func TestExtractJavaNameFromApacheProject(t *testing.T) {
	args := []string{"java", "org.apache.kafka.Main"}
	md, ok := ExtractJavaName(args, Context{})
	require.True(t, ok)
	assert.Equal(t, "kafka", md.Name)
}

func TestExtractJavaNameFromClassName(t *testing.T) {
	args := []string{"java", "com.example.Main"}
	md, ok := ExtractJavaName(args, Context{})
	require.True(t, ok)
	assert.Equal(t, "com.example.Main", md.Name)
}

func TestExtractJavaNameSkipsFlagsAndAssignments(t *testing.T) {
	args := []string{"java", "-Xmx512m", "-Dfoo=bar", "-javaagent:dd-java-agent.jar", "com.example.Main"}
	md, ok := ExtractJavaName(args, Context{})
	require.True(t, ok)
	assert.Equal(t, "com.example.Main", md.Name)
}

func TestExtractJavaNameSkipsAtFiles(t *testing.T) {
	args := []string{"java", "@argfile", "com.example.Main"}
	md, ok := ExtractJavaName(args, Context{})
	require.True(t, ok)
	assert.Equal(t, "com.example.Main", md.Name)
}

func TestExtractJavaNameEmptyArgs(t *testing.T) {
	_, ok := ExtractJavaName(nil, Context{})
	assert.False(t, ok)
}

func TestExtractJavaNameNoCandidate(t *testing.T) {
	args := []string{"java", "-Xmx512m", "-jar"}
	_, ok := ExtractJavaName(args, Context{})
	assert.False(t, ok)
}

func TestExtractJavaNameSpringBootJarUsesAppName(t *testing.T) {
	jarBytes := buildTestJar(t, map[string]string{
		"BOOT-INF/classes/application.properties": "spring.application.name=checkout-service\n",
	})
	fs := newFakeFS(map[string]string{"/opt/app/app.jar": string(jarBytes)})
	args := []string{"java", "-jar", "app.jar"}
	ctx := Context{FS: fs, WorkingDir: "/opt/app"}

	md, ok := ExtractJavaName(args, ctx)
	require.True(t, ok)
	assert.Equal(t, "checkout-service", md.Name)
	assert.Equal(t, SourceSpring, md.Source)
}

func TestExtractJavaNameSpringBootLauncher(t *testing.T) {
	jarBytes := buildTestJar(t, map[string]string{
		"BOOT-INF/classes/application.properties": "spring.application.name=billing\n",
	})
	fs := newFakeFS(map[string]string{"/opt/app/app.jar": string(jarBytes)})
	args := []string{"java", "-cp", "app.jar", springBootLauncher}
	ctx := Context{FS: fs, WorkingDir: "/opt/app"}

	md, ok := ExtractJavaName(args, ctx)
	require.True(t, ok)
	assert.Equal(t, "billing", md.Name)
	assert.Equal(t, SourceSpring, md.Source)
}

func TestIsNameFlag(t *testing.T) {
	assert.True(t, isNameFlag("-jar"))
	assert.True(t, isNameFlag("-m"))
	assert.True(t, isNameFlag("--module"))
	assert.False(t, isNameFlag("-cp"))
}

func TestTrimColonRight(t *testing.T) {
	assert.Equal(t, "com.example.Main", trimColonRight("com.example.Main:extra"))
	assert.Equal(t, ":leading", trimColonRight(":leading"))
	assert.Equal(t, "plain", trimColonRight("plain"))
}

func TestRemoveFilePath(t *testing.T) {
	assert.Equal(t, "app.jar", removeFilePath("/opt/app/app.jar"))
	assert.Equal(t, ".", removeFilePath("."))
}
