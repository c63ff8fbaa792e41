// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package servicename

import (
	"path"
	"path/filepath"
	"strings"
)

const (
	wlsHomeSysProp      = "-Dwls.home="
	websphereHomeProp   = "-Dserver.root="
	websphereMainClass  = "com.ibm.ws.runtime.WsServer"
	tomcatMainClass     = "org.apache.catalina.startup.Bootstrap"
	tomcatSysProp       = "-Dcatalina.base="
	jbossStandaloneMain = "org.jboss.as.standalone"
	jbossDomainMain     = "org.jboss.as.server"
	jbossBaseDirProp    = "-Djboss.server.base.dir="
	julConfigSysProp    = "-Dlogging.configuration="
	wlsServerMainClass  = "weblogic.Server"
)

type serverVendor string

const (
	vendorJBoss     serverVendor = "jboss"
	vendorTomcat    serverVendor = "tomcat"
	vendorWebLogic  serverVendor = "weblogic"
	vendorWebSphere serverVendor = "websphere"
	vendorNone      serverVendor = ""
)

func (v serverVendor) source() Source {
	switch v {
	case vendorJBoss:
		return SourceJboss
	case vendorTomcat:
		return SourceTomcat
	case vendorWebLogic:
		return SourceWeblogic
	case vendorWebSphere:
		return SourceWebsphere
	default:
		return ""
	}
}

// resolveAppServer looks for two independent hints in the command line — a
// server-home system property and a known bootstrap main class — and only
// reports a vendor when both agree. A single hint is not enough: the same
// jar can be invoked for admin tooling as well as to launch the server
// itself, and the same property is reused across both in WebLogic's case.
func resolveAppServer(args []string) (serverVendor, string) {
	var serverHomeHint, entrypointHint serverVendor
	var baseDir string
	var julConfigFile string

	for _, arg := range args {
		if serverHomeHint == vendorNone {
			switch {
			case strings.HasPrefix(arg, wlsHomeSysProp):
				serverHomeHint = vendorWebLogic
			case strings.HasPrefix(arg, tomcatSysProp):
				serverHomeHint = vendorTomcat
				baseDir = strings.TrimPrefix(arg, tomcatSysProp)
			case strings.HasPrefix(arg, jbossBaseDirProp):
				serverHomeHint = vendorJBoss
				baseDir = strings.TrimPrefix(arg, jbossBaseDirProp)
			case strings.HasPrefix(arg, julConfigSysProp):
				cfg := strings.TrimPrefix(arg, julConfigSysProp)
				julConfigFile = strings.TrimPrefix(cfg, "file:")
			case strings.HasPrefix(arg, websphereHomeProp):
				serverHomeHint = vendorWebSphere
				baseDir = strings.TrimPrefix(arg, websphereHomeProp)
			}
		}

		if entrypointHint == vendorNone {
			switch arg {
			case wlsServerMainClass:
				entrypointHint = vendorWebLogic
			case tomcatMainClass:
				entrypointHint = vendorTomcat
			case websphereMainClass:
				entrypointHint = vendorWebSphere
			case jbossDomainMain, jbossStandaloneMain:
				entrypointHint = vendorJBoss
			}
		}

		if serverHomeHint != vendorNone && serverHomeHint == entrypointHint {
			break
		}
	}

	// JBoss domain mode has no -Djboss.server.base.dir=; derive it from the
	// logging config file's grandparent directory instead (the config lives
	// at <base>/configuration/logging.properties).
	if serverHomeHint == vendorNone && entrypointHint == vendorJBoss && julConfigFile != "" {
		parent := filepath.Dir(filepath.Dir(julConfigFile))
		if parent != "" && parent != "." {
			baseDir = parent
			serverHomeHint = vendorJBoss
		}
	}

	if serverHomeHint == vendorNone || serverHomeHint != entrypointHint {
		return vendorNone, baseDir
	}
	return serverHomeHint, baseDir
}

func extractJavaProperty(args []string, prop string) (string, bool) {
	for _, a := range args {
		if v, ok := strings.CutPrefix(a, prop); ok {
			return v, true
		}
	}
	return "", false
}

// deployment is a single discovered WAR/EAR artifact.
type deployment struct {
	name string
	path string
}

// ExtractJEENames resolves the app-server vendor from the command line and,
// when found, scans its deployment directory for WAR/EAR artifacts, turning
// each into a normalized context-root name.
func ExtractJEENames(args []string, ctx Context) (Source, []string) {
	vendor, baseDir := resolveAppServer(args)
	if vendor == vendorNone {
		return "", nil
	}

	domainHome := resolveRelative(ctx, baseDir)
	deployments := findDeployedApps(vendor, args, ctx, domainHome)

	var names []string
	for _, d := range deployments {
		if cr, ok := contextRootFromName(d.name); ok {
			names = append(names, normalizeContextRoot(cr))
		}
	}
	return vendor.source(), names
}

func resolveRelative(ctx Context, p string) string {
	if p == "" {
		return p
	}
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	if ctx.WorkingDir == "" {
		return path.Clean(p)
	}
	return path.Clean(path.Join(ctx.WorkingDir, p))
}

// findDeployedApps lists the vendor's conventional auto-deploy directory.
// This models the common default-configuration case (standalone.xml's
// deployment-scanner, Tomcat's webapps/, WebLogic's autodeploy/); it does
// not parse server-group membership or the content-addressed deployment
// store a heavily customized domain.xml can introduce.
func findDeployedApps(vendor serverVendor, args []string, ctx Context, domainHome string) []deployment {
	if ctx.FS == nil {
		return nil
	}

	var dir string
	switch vendor {
	case vendorJBoss:
		// In domain mode domainHome is already the server's own directory
		// (<domain>/servers/<name>), from either base-dir source.
		if serverName, domainMode := jbossServerName(args); domainMode && serverName == "" {
			return nil
		}
		dir = path.Join(domainHome, "deployments")
	case vendorTomcat:
		dir = path.Join(domainHome, "webapps")
	case vendorWebLogic:
		dir = path.Join(domainHome, "autodeploy")
	case vendorWebSphere:
		dir = path.Join(domainHome, "installedApps")
	default:
		return nil
	}

	entries, err := ctx.FS.ReadDir(dir)
	if err != nil {
		return nil
	}

	var out []deployment
	for _, e := range entries {
		lower := strings.ToLower(e)
		if strings.HasSuffix(lower, ".war") || strings.HasSuffix(lower, ".ear") {
			out = append(out, deployment{name: e, path: path.Join(dir, e)})
		}
	}
	return out
}

// jbossServerName extracts the domain-mode server identity from JBoss's
// "-D[Server:<name>]" marker property; the bool reports whether this
// process is running in domain mode at all.
func jbossServerName(args []string) (name string, domainMode bool) {
	for _, a := range args {
		if strings.HasPrefix(a, "-D[Server:") && strings.HasSuffix(a, "]") {
			return a[len("-D[Server:") : len(a)-1], true
		}
	}
	return "", false
}

func contextRootFromName(fileName string) (string, bool) {
	base := filepath.Base(fileName)
	if base == "" {
		return "", false
	}
	if trimmed := strings.TrimSuffix(base, ".war"); trimmed != base {
		return trimmed, true
	}
	if trimmed := strings.TrimSuffix(base, ".ear"); trimmed != base {
		return trimmed, true
	}
	return base, true
}

// normalizeContextRoot mirrors the Java tracer's own normalization: a
// leading slash is stripped so "/foo" and "foo" report the same name.
func normalizeContextRoot(cr string) string {
	return strings.TrimPrefix(cr, "/")
}
