// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import (
	"context"
	"fmt"
	"testing"

	"github.com/Masterminds/semver"

	"github.com/rupesrecta/corebuild/internal/corecfg"
	"github.com/rupesrecta/corebuild/internal/corepkg"
	"github.com/rupesrecta/corebuild/internal/testutil"
)

func TestResolvePathDepWalksTransitiveDeps(t *testing.T) {
	leafDir := testutil.TempWorkspace(t, map[string]string{
		"moon.mod.json": `{"name":"bob/leaf"}`,
	})
	utilDir := testutil.TempWorkspace(t, map[string]string{
		"moon.mod.json": fmt.Sprintf(`{"name":"bob/util","deps":{"bob/leaf":{"path":%q}}}`, leafDir),
	})
	appDir := testutil.TempWorkspace(t, map[string]string{
		"moon.mod.json": fmt.Sprintf(`{"name":"alice/app","deps":{"bob/util":{"path":%q}}}`, utilDir),
	})

	cfg := &corecfg.Config{WorkDir: appDir, TargetDir: appDir + "/target"}
	env, err := NewResolver(cfg).Resolve(context.Background(), []string{appDir})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	app, ok := env.ByName(corepkg.ModuleName{User: "alice", Pkg: "app"})
	if !ok {
		t.Fatalf("resolved env missing alice/app")
	}
	if !app.IsInput {
		t.Errorf("alice/app.IsInput = false, want true")
	}

	util, ok := env.ByName(corepkg.ModuleName{User: "bob", Pkg: "util"})
	if !ok {
		t.Fatalf("resolved env missing bob/util")
	}
	if util.IsInput {
		t.Errorf("bob/util.IsInput = true, want false (it's a dependency, not a workspace module)")
	}

	leaf, ok := env.ByName(corepkg.ModuleName{User: "bob", Pkg: "leaf"})
	if !ok {
		t.Fatalf("resolved env missing bob/leaf (transitive dep of bob/util)")
	}

	deps := env.DependsOn(app.ID)
	found := false
	for _, d := range deps {
		if d == util.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("alice/app's direct deps = %v, want to include bob/util (%d)", deps, util.ID)
	}

	utilDeps := env.DependsOn(util.ID)
	found = false
	for _, d := range utilDeps {
		if d == leaf.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("bob/util's direct deps = %v, want to include bob/leaf (%d)", utilDeps, leaf.ID)
	}
}

func TestResolveSharedPathDepIsSingleton(t *testing.T) {
	utilDir := testutil.TempWorkspace(t, map[string]string{
		"moon.mod.json": `{"name":"bob/util"}`,
	})
	carolDir := testutil.TempWorkspace(t, map[string]string{
		"moon.mod.json": fmt.Sprintf(`{"name":"carol/lib","deps":{"bob/util":{"path":%q}}}`, utilDir),
	})
	appDir := testutil.TempWorkspace(t, map[string]string{
		"moon.mod.json": fmt.Sprintf(`{"name":"alice/app","deps":{"bob/util":{"path":%q},"carol/lib":{"path":%q}}}`, utilDir, carolDir),
	})

	cfg := &corecfg.Config{WorkDir: appDir, TargetDir: appDir + "/target"}
	env, err := NewResolver(cfg).Resolve(context.Background(), []string{appDir})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	count := 0
	for _, id := range env.AllModules() {
		if env.Node(id).Source.Name == (corepkg.ModuleName{User: "bob", Pkg: "util"}) {
			count++
		}
	}
	if count != 1 {
		t.Errorf("bob/util appears %d times in the resolved env, want exactly 1 (path deps are singletons)", count)
	}
}

func TestResolveRejectsDuplicateModuleName(t *testing.T) {
	dirA := testutil.TempWorkspace(t, map[string]string{
		"moon.mod.json": `{"name":"alice/app"}`,
	})
	dirB := testutil.TempWorkspace(t, map[string]string{
		"moon.mod.json": `{"name":"alice/app"}`,
	})

	cfg := &corecfg.Config{WorkDir: dirA, TargetDir: dirA + "/target"}
	_, err := NewResolver(cfg).Resolve(context.Background(), []string{dirA, dirB})
	if err == nil {
		t.Fatalf("Resolve: want error for two input modules both named alice/app")
	}
	if _, ok := err.(*corepkg.DuplicateModuleNameError); !ok {
		t.Errorf("Resolve error = %T, want *corepkg.DuplicateModuleNameError", err)
	}
}

func TestResolveRejectsLocalDepVersionMismatch(t *testing.T) {
	utilDir := testutil.TempWorkspace(t, map[string]string{
		"moon.mod.json": `{"name":"bob/util","version":"1.0.0"}`,
	})
	appDir := testutil.TempWorkspace(t, map[string]string{
		"moon.mod.json": fmt.Sprintf(`{"name":"alice/app","deps":{"bob/util":{"path":%q,"version":"2.0.0"}}}`, utilDir),
	})

	cfg := &corecfg.Config{WorkDir: appDir, TargetDir: appDir + "/target"}
	_, err := NewResolver(cfg).Resolve(context.Background(), []string{appDir})
	if err == nil {
		t.Fatalf("Resolve: want error when a path dep's declared version doesn't match its manifest")
	}
	mismatch, ok := err.(*corepkg.LocalDepVersionMismatchError)
	if !ok {
		t.Fatalf("Resolve error = %T, want *corepkg.LocalDepVersionMismatchError", err)
	}
	if mismatch.Wanted != "2.0.0" || mismatch.Actual != "1.0.0" {
		t.Errorf("mismatch = %+v, want Wanted=2.0.0 Actual=1.0.0", mismatch)
	}
}

func TestResolveMissingManifestErrors(t *testing.T) {
	emptyDir := testutil.TempWorkspace(t, map[string]string{
		"README.md": "nothing here",
	})
	cfg := &corecfg.Config{WorkDir: emptyDir, TargetDir: emptyDir + "/target"}
	_, err := NewResolver(cfg).Resolve(context.Background(), []string{emptyDir})
	if err == nil {
		t.Fatalf("Resolve: want error when the main dir has no moon.mod.json")
	}
}

func TestResolveInputsReturnsOnlyWorkspaceModules(t *testing.T) {
	utilDir := testutil.TempWorkspace(t, map[string]string{
		"moon.mod.json": `{"name":"bob/util"}`,
	})
	appDir := testutil.TempWorkspace(t, map[string]string{
		"moon.mod.json": fmt.Sprintf(`{"name":"alice/app","deps":{"bob/util":{"path":%q}}}`, utilDir),
	})

	cfg := &corecfg.Config{WorkDir: appDir, TargetDir: appDir + "/target"}
	env, err := NewResolver(cfg).Resolve(context.Background(), []string{appDir})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	inputs := env.Inputs()
	if len(inputs) != 1 {
		t.Fatalf("Inputs() = %v, want exactly one input module", inputs)
	}
	if env.Node(inputs[0]).Source.Name != (corepkg.ModuleName{User: "alice", Pkg: "app"}) {
		t.Errorf("Inputs()[0] = %v, want alice/app", env.Node(inputs[0]).Source.Name)
	}
}

func TestResolveRegistryDepPicksMinSatisfyingVersionFromFrozenCache(t *testing.T) {
	moonHome := testutil.TempWorkspace(t, map[string]string{
		"registry/index/user/bob/reglib.index": "{\"version\":\"1.0.0\"}\n{\"version\":\"1.5.0\"}\n{\"version\":\"2.0.0\"}\n",
		"mod-cache/bob/reglib/1.5.0/moon.mod.json": `{"name":"bob/reglib","version":"1.5.0"}`,
	})
	appDir := testutil.TempWorkspace(t, map[string]string{
		"moon.mod.json": `{"name":"alice/app","deps":{"bob/reglib":">=1.2.0"}}`,
	})

	cfg := &corecfg.Config{WorkDir: appDir, TargetDir: appDir + "/target", MoonHome: moonHome, Frozen: true}
	env, err := NewResolver(cfg).Resolve(context.Background(), []string{appDir})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	reglib, ok := env.ByName(corepkg.ModuleName{User: "bob", Pkg: "reglib"})
	if !ok {
		t.Fatalf("resolved env missing bob/reglib")
	}
	if reglib.Source.Version != "1.5.0" {
		t.Errorf("bob/reglib resolved version = %s, want 1.5.0 (the lowest version satisfying >=1.2.0)", reglib.Source.Version)
	}
	if reglib.Source.Origin != corepkg.OriginRegistry {
		t.Errorf("bob/reglib Source.Origin = %v, want OriginRegistry", reglib.Source.Origin)
	}
}

func TestMinSatisfyingVersionPicksLowestMatch(t *testing.T) {
	constraint, err := semver.NewConstraint(">=1.0.0")
	if err != nil {
		t.Fatalf("NewConstraint: %v", err)
	}
	got, err := minSatisfyingVersion([]string{"1.5.0", "1.2.0", "2.0.0", "1.0.0"}, constraint)
	if err != nil {
		t.Fatalf("minSatisfyingVersion: %v", err)
	}
	if got.String() != "1.0.0" {
		t.Errorf("minSatisfyingVersion = %s, want 1.0.0 (MVS picks the lowest satisfying version)", got.String())
	}
}

func TestMinSatisfyingVersionErrorsWhenNoneMatch(t *testing.T) {
	constraint, err := semver.NewConstraint(">=3.0.0")
	if err != nil {
		t.Fatalf("NewConstraint: %v", err)
	}
	if _, err := minSatisfyingVersion([]string{"1.0.0", "2.0.0"}, constraint); err == nil {
		t.Errorf("minSatisfyingVersion: want error when no version satisfies the constraint")
	}
}
