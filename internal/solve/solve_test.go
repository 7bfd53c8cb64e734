// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"context"
	"testing"

	"github.com/rupesrecta/corebuild/internal/corecfg"
	"github.com/rupesrecta/corebuild/internal/corepkg"
	"github.com/rupesrecta/corebuild/internal/discover"
	"github.com/rupesrecta/corebuild/internal/resolve"
	"github.com/rupesrecta/corebuild/internal/testutil"
)

func discoverWorkspace(t *testing.T, files map[string]string, mainDir string) (*resolve.ResolvedEnv, *discover.Result) {
	t.Helper()
	dir := testutil.TempWorkspace(t, files)
	cfg := &corecfg.Config{WorkDir: dir, TargetDir: dir + "/target"}
	env, err := resolve.NewResolver(cfg).Resolve(context.Background(), []string{dir + "/" + mainDir})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	res, err := discover.Discover(env, corepkg.ModuleName{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	return env, res
}

func TestSolveBuildsSourceAndTestTargets(t *testing.T) {
	env, res := discoverWorkspace(t, map[string]string{
		"app/moon.mod.json":  `{"name":"alice/app"}`,
		"app/moon.pkg.json":  `{}`,
		"app/lib.mbt":        "fn main { 1 }",
		"app/lib_test.mbt":   "test { 1 }",
		"app/lib_wbtest.mbt": "test { 1 }",
	}, "app")

	g, _, err := Solve(env, res)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	id, ok := res.ByFQN("alice/app")
	if !ok {
		t.Fatalf("missing alice/app")
	}
	for _, kind := range []corepkg.TargetKind{corepkg.Source, corepkg.BlackboxTest, corepkg.WhiteboxTest} {
		if !g.HasTarget(corepkg.BuildTarget{Package: id, Kind: kind}) {
			t.Errorf("graph missing target %v", corepkg.BuildTarget{Package: id, Kind: kind})
		}
	}
}

func TestSolveResolvesImportEdgeWithDefaultAlias(t *testing.T) {
	env, res := discoverWorkspace(t, map[string]string{
		"app/moon.mod.json":      `{"name":"alice/app"}`,
		"app/moon.pkg.json":      `{"import":["alice/app/util"]}`,
		"app/lib.mbt":            "fn main { 1 }",
		"app/util/moon.pkg.json": `{}`,
		"app/util/helper.mbt":    "fn helper() { 1 }",
	}, "app")

	g, _, err := Solve(env, res)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	appID, _ := res.ByFQN("alice/app")
	utilID, _ := res.ByFQN("alice/app/util")
	from := corepkg.BuildTarget{Package: appID, Kind: corepkg.Source}
	to := corepkg.BuildTarget{Package: utilID, Kind: corepkg.Source}

	edges := g.Edges(from)
	if len(edges) != 1 {
		t.Fatalf("Edges(app) = %v, want exactly one edge", edges)
	}
	if edges[0].To != to {
		t.Errorf("edge target = %v, want %v", edges[0].To, to)
	}
	if edges[0].Alias != "util" {
		t.Errorf("edge alias = %q, want %q (default short alias)", edges[0].Alias, "util")
	}
}

func TestSolveRejectsConflictingAlias(t *testing.T) {
	env, res := discoverWorkspace(t, map[string]string{
		"app/moon.mod.json":   `{"name":"alice/app"}`,
		"app/moon.pkg.json":   `{"import":[{"path":"alice/app/a","alias":"shared"},{"path":"alice/app/b","alias":"shared"}]}`,
		"app/lib.mbt":         "fn main { 1 }",
		"app/a/moon.pkg.json": `{}`,
		"app/a/a.mbt":         "fn a() { 1 }",
		"app/b/moon.pkg.json": `{}`,
		"app/b/b.mbt":         "fn b() { 1 }",
	}, "app")

	_, _, err := Solve(env, res)
	if err == nil {
		t.Fatalf("Solve: want an error for two imports sharing the alias %q", "shared")
	}
	if _, ok := err.(*corepkg.ConflictingImportAliasError); !ok {
		t.Errorf("Solve error = %T, want *corepkg.ConflictingImportAliasError", err)
	}
}

func TestSolveDetectsImportCycle(t *testing.T) {
	env, res := discoverWorkspace(t, map[string]string{
		"app/moon.mod.json":  `{"name":"alice/app"}`,
		"app/moon.pkg.json":  `{"import":["alice/app/a"]}`,
		"app/lib.mbt":        "fn main { 1 }",
		"app/a/moon.pkg.json": `{"import":["alice/app"]}`,
		"app/a/a.mbt":         "fn a() { 1 }",
	}, "app")

	_, _, err := Solve(env, res)
	if err == nil {
		t.Fatalf("Solve: want an import loop error")
	}
	if _, ok := err.(*corepkg.ImportLoopError); !ok {
		t.Errorf("Solve error = %T, want *corepkg.ImportLoopError", err)
	}
}

func TestSolveRejectsUndeclaredCrossModuleImport(t *testing.T) {
	env, res := discoverWorkspace(t, map[string]string{
		"app/moon.mod.json":   `{"name":"alice/app"}`,
		"app/moon.pkg.json":   `{"import":["bob/util"]}`,
		"app/lib.mbt":         "fn main { 1 }",
		"util/moon.mod.json":  `{"name":"bob/util"}`,
		"util/moon.pkg.json":  `{}`,
		"util/lib.mbt":        "fn f() { 1 }",
	}, "app")

	// bob/util exists on disk but alice/app never declared it as a dep,
	// so it is absent from the resolved env and its package is never
	// discovered at all: the import can't be found.
	_, _, err := Solve(env, res)
	if err == nil {
		t.Fatalf("Solve: want an error importing an undeclared module's package")
	}
	if _, ok := err.(*corepkg.ImportNotFoundError); !ok {
		t.Errorf("Solve error = %T, want *corepkg.ImportNotFoundError", err)
	}
}

func TestSolveVirtualOverrideSelectsImplementation(t *testing.T) {
	env, res := discoverWorkspace(t, map[string]string{
		"app/moon.mod.json":      `{"name":"alice/app"}`,
		"app/moon.pkg.json":      `{"is-main":true,"overrides":["alice/app/impl"]}`,
		"app/main.mbt":           "fn main { 1 }",
		"app/virt/moon.pkg.json": `{"virtual-pkg":{"has-default":false}}`,
		"app/virt/api.mbt":       "fn api() { 1 }",
		"app/impl/moon.pkg.json": `{"implement":"alice/app/virt"}`,
		"app/impl/impl.mbt":      "fn impl() { 1 }",
	}, "app")

	_, sel, err := Solve(env, res)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	implID, ok := sel["alice/app/virt"]
	if !ok {
		t.Fatalf("VirtualSelection missing alice/app/virt")
	}
	wantID, _ := res.ByFQN("alice/app/impl")
	if implID != wantID {
		t.Errorf("selected impl = %v, want %v", implID, wantID)
	}
}

func TestSolveRejectsVirtualWithoutOverrideOrDefault(t *testing.T) {
	env, res := discoverWorkspace(t, map[string]string{
		"app/moon.mod.json":      `{"name":"alice/app"}`,
		"app/moon.pkg.json":      `{"is-main":true}`,
		"app/main.mbt":           "fn main { 1 }",
		"app/virt/moon.pkg.json": `{"virtual-pkg":{"has-default":false}}`,
		"app/virt/api.mbt":       "fn api() { 1 }",
	}, "app")

	_, _, err := Solve(env, res)
	if err == nil {
		t.Fatalf("Solve: want an error for a virtual package with no override and no default")
	}
	if _, ok := err.(*corepkg.MissingVirtualImplError); !ok {
		t.Errorf("Solve error = %T, want *corepkg.MissingVirtualImplError", err)
	}
}
