// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package planner

import (
	"context"
	"testing"

	"github.com/rupesrecta/corebuild/internal/corecfg"
	"github.com/rupesrecta/corebuild/internal/corepkg"
	"github.com/rupesrecta/corebuild/internal/discover"
	"github.com/rupesrecta/corebuild/internal/resolve"
	"github.com/rupesrecta/corebuild/internal/solve"
	"github.com/rupesrecta/corebuild/internal/testutil"
)

func buildWorkspace(t *testing.T, files map[string]string, mainDir string) (*discover.Result, *solve.Graph, solve.VirtualSelection) {
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
	g, sel, err := solve.Solve(env, res)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	return res, g, sel
}

func TestPlanBuildCoreWithDependencyPullsInPrereq(t *testing.T) {
	res, g, sel := buildWorkspace(t, map[string]string{
		"app/moon.mod.json":      `{"name":"alice/app"}`,
		"app/moon.pkg.json":      `{"import":["alice/app/util"]}`,
		"app/lib.mbt":            "fn main { 1 }",
		"app/util/moon.pkg.json": `{}`,
		"app/util/helper.mbt":    "fn helper() { 1 }",
	}, "app")

	appID, _ := res.ByFQN("alice/app")
	utilID, _ := res.ByFQN("alice/app/util")
	root := corepkg.BuildPlanNode{Kind: corepkg.PlanBuildCore, Target: corepkg.BuildTarget{Package: appID, Kind: corepkg.Source}}

	plan, err := Plan(res, g, sel, []corepkg.BuildPlanNode{root}, "native", "debug")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	rootSpec := plan.Spec(root)
	if rootSpec == nil {
		t.Fatalf("Plan: root node missing a spec")
	}
	if len(rootSpec.InputFiles) != 1 {
		t.Errorf("root InputFiles = %v, want exactly [.../lib.mbt]", rootSpec.InputFiles)
	}

	utilTarget := corepkg.BuildTarget{Package: utilID, Kind: corepkg.Source}
	utilNode := corepkg.BuildPlanNode{Kind: corepkg.PlanBuildCore, Target: utilTarget}
	if plan.Spec(utilNode) == nil {
		t.Fatalf("Plan: util's BuildCore prerequisite was never visited")
	}
	found := false
	for _, t2 := range rootSpec.InputTargets {
		if t2 == utilTarget {
			found = true
		}
	}
	if !found {
		t.Errorf("root InputTargets = %v, want to include %v", rootSpec.InputTargets, utilTarget)
	}
}

func TestPlanMakeExecutableChainsLinkAndBuildC(t *testing.T) {
	res, g, sel := buildWorkspace(t, map[string]string{
		"app/moon.mod.json": `{"name":"alice/app"}`,
		"app/moon.pkg.json": `{"is-main":true}`,
		"app/main.mbt":      "fn main { 1 }",
		"app/stub.c":        "int x;",
	}, "app")

	appID, _ := res.ByFQN("alice/app")
	root := corepkg.BuildPlanNode{Kind: corepkg.PlanMakeExecutable, Target: corepkg.BuildTarget{Package: appID, Kind: corepkg.Source}}

	plan, err := Plan(res, g, sel, []corepkg.BuildPlanNode{root}, "native", "debug")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	linkNode := corepkg.BuildPlanNode{Kind: corepkg.PlanLinkCore, Target: root.Target}
	if plan.Spec(linkNode) == nil {
		t.Errorf("Plan: expected a PlanLinkCore node for the executable's target")
	}

	buildCNode := corepkg.BuildPlanNode{Kind: corepkg.PlanBuildC, Target: root.Target}
	if plan.Spec(buildCNode) == nil {
		t.Errorf("Plan: expected a PlanBuildC node since the package has a C stub and backend is native")
	}
}

func TestPlanMakeExecutableSkipsBuildCOnWasm(t *testing.T) {
	res, g, sel := buildWorkspace(t, map[string]string{
		"app/moon.mod.json": `{"name":"alice/app"}`,
		"app/moon.pkg.json": `{"is-main":true}`,
		"app/main.mbt":      "fn main { 1 }",
		"app/stub.c":        "int x;",
	}, "app")

	appID, _ := res.ByFQN("alice/app")
	root := corepkg.BuildPlanNode{Kind: corepkg.PlanMakeExecutable, Target: corepkg.BuildTarget{Package: appID, Kind: corepkg.Source}}

	plan, err := Plan(res, g, sel, []corepkg.BuildPlanNode{root}, "wasm-gc", "debug")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	buildCNode := corepkg.BuildPlanNode{Kind: corepkg.PlanBuildC, Target: root.Target}
	if plan.Spec(buildCNode) != nil {
		t.Errorf("Plan: PlanBuildC node should not exist for a wasm-gc backend")
	}
}

func TestPlanLinkCoreAddsImplicitStdlibForNonStdlibPackage(t *testing.T) {
	res, g, sel := buildWorkspace(t, map[string]string{
		"app/moon.mod.json": `{"name":"alice/app"}`,
		"app/moon.pkg.json": `{"is-main":true}`,
		"app/main.mbt":      "fn main { 1 }",
	}, "app")

	appID, _ := res.ByFQN("alice/app")
	root := corepkg.BuildPlanNode{Kind: corepkg.PlanLinkCore, Target: corepkg.BuildTarget{Package: appID, Kind: corepkg.Source}}

	plan, err := Plan(res, g, sel, []corepkg.BuildPlanNode{root}, "native", "debug")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	spec := plan.Spec(root)
	wantFiles := map[string]bool{"core.core": false, "abort.core": false}
	for _, f := range spec.InputFiles {
		if _, ok := wantFiles[f]; ok {
			wantFiles[f] = true
		}
	}
	for f, found := range wantFiles {
		if !found {
			t.Errorf("LinkCore InputFiles = %v, missing implicit %q", spec.InputFiles, f)
		}
	}
}

func TestPlanCheckSubstitutesVirtualImplementation(t *testing.T) {
	res, g, sel := buildWorkspace(t, map[string]string{
		"app/moon.mod.json":      `{"name":"alice/app"}`,
		"app/moon.pkg.json":      `{"is-main":true,"overrides":["alice/app/impl"],"import":["alice/app/virt"]}`,
		"app/main.mbt":           "fn main { 1 }",
		"app/virt/moon.pkg.json": `{"virtual-pkg":{"has-default":false}}`,
		"app/virt/api.mbt":       "fn api() { 1 }",
		"app/impl/moon.pkg.json": `{"implement":"alice/app/virt"}`,
		"app/impl/impl.mbt":      "fn impl() { 1 }",
	}, "app")

	appID, _ := res.ByFQN("alice/app")
	implID, _ := res.ByFQN("alice/app/impl")
	root := corepkg.BuildPlanNode{Kind: corepkg.PlanCheck, Target: corepkg.BuildTarget{Package: appID, Kind: corepkg.Source}}

	plan, err := Plan(res, g, sel, []corepkg.BuildPlanNode{root}, "native", "debug")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	spec := plan.Spec(root)
	wantTarget := corepkg.BuildTarget{Package: implID, Kind: corepkg.Source}
	found := false
	for _, t2 := range spec.InputTargets {
		if t2 == wantTarget {
			found = true
		}
	}
	if !found {
		t.Errorf("root InputTargets = %v, want the virtual import substituted for its implementation %v", spec.InputTargets, wantTarget)
	}

	implNode := corepkg.BuildPlanNode{Kind: corepkg.PlanCheck, Target: wantTarget}
	if plan.Spec(implNode) == nil {
		t.Errorf("Plan: the substituted implementation's own PlanCheck node should have been visited")
	}
}

func TestPlanGenerateTestInfoHasNoPrereqs(t *testing.T) {
	res, g, sel := buildWorkspace(t, map[string]string{
		"app/moon.mod.json": `{"name":"alice/app"}`,
		"app/moon.pkg.json": `{}`,
		"app/lib.mbt":       "fn f() { 1 }",
	}, "app")

	appID, _ := res.ByFQN("alice/app")
	root := corepkg.BuildPlanNode{Kind: corepkg.PlanGenerateTestInfo, Target: corepkg.BuildTarget{Package: appID, Kind: corepkg.Source}}

	plan, err := Plan(res, g, sel, []corepkg.BuildPlanNode{root}, "native", "debug")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	spec := plan.Spec(root)
	if len(spec.Prereqs) != 0 {
		t.Errorf("Prereqs = %v, want none for PlanGenerateTestInfo", spec.Prereqs)
	}
	if len(spec.InputFiles) != 1 {
		t.Errorf("InputFiles = %v, want exactly one source file", spec.InputFiles)
	}
}

func TestPlanNodesReturnsDiscoveryOrder(t *testing.T) {
	res, g, sel := buildWorkspace(t, map[string]string{
		"app/moon.mod.json":      `{"name":"alice/app"}`,
		"app/moon.pkg.json":      `{"import":["alice/app/util"]}`,
		"app/lib.mbt":            "fn main { 1 }",
		"app/util/moon.pkg.json": `{}`,
		"app/util/helper.mbt":    "fn helper() { 1 }",
	}, "app")

	appID, _ := res.ByFQN("alice/app")
	root := corepkg.BuildPlanNode{Kind: corepkg.PlanBuildCore, Target: corepkg.BuildTarget{Package: appID, Kind: corepkg.Source}}

	plan, err := Plan(res, g, sel, []corepkg.BuildPlanNode{root}, "native", "debug")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	nodes := plan.Nodes()
	if len(nodes) == 0 || nodes[0] != root {
		t.Errorf("Nodes()[0] = %v, want the root node first", nodes)
	}
}
