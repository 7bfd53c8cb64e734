// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corecfg

import (
	"strings"
	"testing"

	"github.com/rupesrecta/corebuild/internal/corepkg"
)

func TestReadModuleManifestBareVersionDep(t *testing.T) {
	doc := `{
		"name": "alice/webapp",
		"version": "1.0.0",
		"deps": {"bob/util": "^1.2.0"}
	}`
	m, err := ReadModuleManifest(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadModuleManifest: %v", err)
	}
	if got, want := m.Name, (corepkg.ModuleName{User: "alice", Pkg: "webapp"}); got != want {
		t.Errorf("Name = %v, want %v", got, want)
	}
	dep, ok := m.Deps["bob/util"]
	if !ok {
		t.Fatalf("Deps missing bob/util")
	}
	if got, want := dep.VersionRange, "^1.2.0"; got != want {
		t.Errorf("VersionRange = %q, want %q", got, want)
	}
	if dep.Origin() != corepkg.OriginRegistry {
		t.Errorf("Origin() = %v, want OriginRegistry", dep.Origin())
	}
}

func TestReadModuleManifestObjectDeps(t *testing.T) {
	doc := `{
		"name": "alice/webapp",
		"deps": {
			"bob/local":  {"path": "../local"},
			"carol/repo": {"git": "https://example.com/carol/repo.git", "branch": "main"}
		}
	}`
	m, err := ReadModuleManifest(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadModuleManifest: %v", err)
	}

	local := m.Deps["bob/local"]
	if local.Origin() != corepkg.OriginLocalPath {
		t.Errorf("bob/local Origin() = %v, want OriginLocalPath", local.Origin())
	}
	if local.Path != "../local" {
		t.Errorf("bob/local Path = %q, want ../local", local.Path)
	}

	repo := m.Deps["carol/repo"]
	if repo.Origin() != corepkg.OriginGitRepo {
		t.Errorf("carol/repo Origin() = %v, want OriginGitRepo", repo.Origin())
	}
	if repo.Branch != "main" {
		t.Errorf("carol/repo Branch = %q, want main", repo.Branch)
	}
}

func TestReadModuleManifestRejectsMalformedName(t *testing.T) {
	_, err := ReadModuleManifest(strings.NewReader(`{"name": "no-slash-here"}`))
	if err == nil {
		t.Fatalf("ReadModuleManifest: want error for a name with no slash")
	}
}

func TestReadModuleManifestRejectsNonStringNonObjectDep(t *testing.T) {
	_, err := ReadModuleManifest(strings.NewReader(`{"name": "a/b", "deps": {"c/d": 5}}`))
	if err == nil {
		t.Fatalf("ReadModuleManifest: want error for a numeric dep entry")
	}
}
