// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/strata-build/strata/lib/glob"
	"github.com/strata-build/strata/lib/testutil"
	"github.com/strata-build/strata/lib/workpath"
)

func TestParseConfigJSONC(t *testing.T) {
	config, err := ParseConfig([]byte(`{
		// lockfile changes invalidate everything
		"globalDependencies": ["pnpm-lock.yaml", "tsconfig.json"],
		"globalEnv": ["CI", "NODE_ENV"],
		"tasks": {
			"build": {
				"inputs": ["src/**", "!**/*.test.ts"],
				"outputs": ["dist/**"],
				"env": ["NEXT_PUBLIC_*"], // trailing comma below
			},
		},
	}`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	if len(config.GlobalDependencies) != 2 || config.GlobalDependencies[0] != "pnpm-lock.yaml" {
		t.Errorf("GlobalDependencies = %v", config.GlobalDependencies)
	}
	build, ok := config.Tasks["build"]
	if !ok {
		t.Fatal("tasks.build missing")
	}
	if len(build.Inputs) != 2 || build.Inputs[1] != "!**/*.test.ts" {
		t.Errorf("build.Inputs = %v", build.Inputs)
	}
}

func TestParseConfigMalformed(t *testing.T) {
	if _, err := ParseConfig([]byte(`{"tasks": [}`)); err == nil {
		t.Error("malformed config should fail")
	}
}

func TestReadWorkspaceGlobs(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"workspaces.yaml": "packages:\n  - \"apps/*\"\n  - \"packages/*\"\n",
	})

	globs, err := ReadWorkspaceGlobs(filepath.Join(root, WorkspacesFileName))
	if err != nil {
		t.Fatalf("ReadWorkspaceGlobs: %v", err)
	}
	if len(globs) != 2 || globs[0] != "apps/*" {
		t.Errorf("globs = %v", globs)
	}
}

func TestReadWorkspaceGlobsEmpty(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{"workspaces.yaml": "packages: []\n"})
	if _, err := ReadWorkspaceGlobs(filepath.Join(root, WorkspacesFileName)); err == nil {
		t.Error("empty package list should fail")
	}
}

func TestDiscover(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"workspaces.yaml":                        "packages:\n  - \"apps/*\"\n  - \"packages/*\"\n",
		"package.json":                           `{"name": "root"}`,
		"apps/web/package.json":                  `{"name": "web"}`,
		"apps/web/src/index.ts":                  "",
		"packages/ui/package.json":               `{"name": "ui"}`,
		"docs/package.json":                      `{"name": "docs"}`,
		"node_modules/dep/package.json":          `{"name": "dep"}`,
		"apps/web/node_modules/dep/package.json": `{"name": "nested-dep"}`,
	})

	packages, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	want := []workpath.Anchored{"apps/web", "packages/ui"}
	if len(packages) != len(want) {
		t.Fatalf("packages = %v, want %v", packages, want)
	}
	for i := range want {
		if packages[i] != want[i] {
			t.Fatalf("packages = %v, want %v", packages, want)
		}
	}
}

func TestPackageManifests(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"apps/web/package.json":    `{"name": "web"}`,
		"apps/web/src/index.ts":    "export {};",
		"apps/web/src/app.log":     "noise",
		"packages/ui/package.json": `{"name": "ui"}`,
		"packages/ui/button.tsx":   "<Button/>",
	})

	ignore, err := glob.Compile([]string{"**/*.log"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	results := PackageManifests(root, []workpath.Anchored{"apps/web", "packages/ui"}, ignore)
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}

	web := results[0]
	if web.Err != nil {
		t.Fatalf("web manifest: %v", web.Err)
	}
	webPaths := web.Manifest.Paths()
	want := []workpath.Anchored{"apps/web/package.json", "apps/web/src/index.ts"}
	if len(webPaths) != len(want) {
		t.Fatalf("web paths = %v, want %v", webPaths, want)
	}
	for i := range want {
		if webPaths[i] != want[i] {
			t.Fatalf("web paths = %v, want %v", webPaths, want)
		}
	}

	ui := results[1]
	if ui.Err != nil {
		t.Fatalf("ui manifest: %v", ui.Err)
	}
	if ui.Manifest.Len() != 2 {
		t.Errorf("ui manifest len = %d, want 2", ui.Manifest.Len())
	}
}

func TestPackageManifestsMissingPackage(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"apps/web/package.json": `{"name": "web"}`,
	})

	results := PackageManifests(root, []workpath.Anchored{"apps/web", "apps/ghost"}, nil)
	if results[0].Err != nil {
		t.Errorf("existing package should succeed: %v", results[0].Err)
	}
	if results[1].Err == nil {
		t.Error("missing package should carry an error, not an empty manifest")
	}
	if results[1].Manifest != nil {
		t.Error("failed package must not get a substitute manifest")
	}
}

func TestDataDir(t *testing.T) {
	root := t.TempDir()

	dir, err := DataDir(root)
	if err != nil {
		t.Fatalf("DataDir: %v", err)
	}
	if dir != filepath.Join(root, DataDirName) {
		t.Errorf("DataDir = %q", dir)
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Errorf("data directory should exist: %v", err)
	}

	// Idempotent.
	if _, err := DataDir(root); err != nil {
		t.Errorf("second DataDir call: %v", err)
	}
}

func TestDataDirMissingRoot(t *testing.T) {
	if _, err := DataDir(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("DataDir of a missing root should fail")
	}
}
