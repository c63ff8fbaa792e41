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

func TestResolveAppServerTomcat(t *testing.T) {
	args := []string{"java", "-Dcatalina.base=/opt/tomcat", tomcatMainClass}
	vendor, baseDir := resolveAppServer(args)
	assert.Equal(t, vendorTomcat, vendor)
	assert.Equal(t, "/opt/tomcat", baseDir)
}

func TestResolveAppServerRequiresBothHints(t *testing.T) {
	args := []string{"java", "-Dcatalina.base=/opt/tomcat"} // no entrypoint hint
	vendor, _ := resolveAppServer(args)
	assert.Equal(t, vendorNone, vendor)
}

func TestResolveAppServerJBossStandalone(t *testing.T) {
	args := []string{"java", "-Djboss.server.base.dir=/opt/jboss/standalone", jbossStandaloneMain}
	vendor, baseDir := resolveAppServer(args)
	assert.Equal(t, vendorJBoss, vendor)
	assert.Equal(t, "/opt/jboss/standalone", baseDir)
}

func TestResolveAppServerJBossDomainModeDerivesBaseDir(t *testing.T) {
	args := []string{
		"java",
		"-Dlogging.configuration=file:/opt/jboss/domain/servers/server-one/configuration/logging.properties",
		jbossDomainMain,
	}
	vendor, baseDir := resolveAppServer(args)
	assert.Equal(t, vendorJBoss, vendor)
	assert.Equal(t, "/opt/jboss/domain/servers/server-one", baseDir)
}

func TestResolveAppServerWebLogic(t *testing.T) {
	args := []string{"java", "-Dwls.home=/opt/oracle/wls", wlsServerMainClass}
	vendor, _ := resolveAppServer(args)
	assert.Equal(t, vendorWebLogic, vendor)
}

func TestJbossServerNameDomainMode(t *testing.T) {
	args := []string{"java", "-D[Server:server-one]"}
	name, domainMode := jbossServerName(args)
	assert.True(t, domainMode)
	assert.Equal(t, "server-one", name)
}

func TestJbossServerNameStandaloneMode(t *testing.T) {
	name, domainMode := jbossServerName([]string{"java"})
	assert.False(t, domainMode)
	assert.Equal(t, "", name)
}

func TestContextRootFromName(t *testing.T) {
	cr, ok := contextRootFromName("orders.war")
	require.True(t, ok)
	assert.Equal(t, "orders", cr)

	cr, ok = contextRootFromName("billing.ear")
	require.True(t, ok)
	assert.Equal(t, "billing", cr)
}

func TestNormalizeContextRoot(t *testing.T) {
	assert.Equal(t, "foo", normalizeContextRoot("/foo"))
	assert.Equal(t, "foo", normalizeContextRoot("foo"))
}

func TestExtractJEENamesTomcatWebapps(t *testing.T) {
	fs := newFakeFS(map[string]string{
		"/opt/tomcat/webapps/orders.war":  "x",
		"/opt/tomcat/webapps/billing.war": "x",
	})
	args := []string{"java", "-Dcatalina.base=/opt/tomcat", tomcatMainClass}
	source, names := ExtractJEENames(args, Context{FS: fs})

	assert.Equal(t, SourceTomcat, source)
	assert.ElementsMatch(t, []string{"orders", "billing"}, names)
}

func TestExtractJEENamesNoVendorDetected(t *testing.T) {
	args := []string{"java", "com.example.Main"}
	source, names := ExtractJEENames(args, Context{})
	assert.Equal(t, Source(""), source)
	assert.Nil(t, names)
}

func TestExtractJEENamesJBossDomainServerDeployments(t *testing.T) {
	fs := newFakeFS(map[string]string{
		"/opt/jboss/domain/servers/server-one/deployments/orders.war": "x",
	})
	args := []string{
		"java",
		"-Djboss.server.base.dir=/opt/jboss/domain/servers/server-one",
		"-D[Server:server-one]",
		jbossDomainMain,
	}
	source, names := ExtractJEENames(args, Context{FS: fs})
	assert.Equal(t, SourceJboss, source)
	assert.Equal(t, []string{"orders"}, names)
}
