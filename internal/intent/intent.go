// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package intent implements C4, the intent expander: it translates one
// UserIntent (what the invocation asked for) into the root
// BuildPlanNodes the planner (C5) should expand from. Expansion is
// append-only and never deduplicates — spec §4.4 leaves dedup to the
// planner's worklist. Grounded on the teacher's cmd.go/flags.go
// per-subcommand dispatch shape: one case arm per verb, each building
// the handful of follow-on actions that verb implies.
package intent

import (
	"github.com/rupesrecta/corebuild/internal/corepkg"
	"github.com/rupesrecta/corebuild/internal/discover"
)

// Expand translates intent into its root BuildPlanNodes, per the table
// in spec §4.4.
func Expand(res *discover.Result, in corepkg.UserIntent) ([]corepkg.BuildPlanNode, error) {
	switch in.Kind {
	case corepkg.IntentBuild:
		return expandBuild(res, in.Package)
	case corepkg.IntentRun:
		return expandRun(res, in.Package)
	case corepkg.IntentCheck:
		return expandCheck(res, in.Package)
	case corepkg.IntentTest:
		return expandTestOrBench(res, in.Package)
	case corepkg.IntentBench:
		return expandTestOrBench(res, in.Package)
	case corepkg.IntentBundle:
		return []corepkg.BuildPlanNode{{Kind: corepkg.PlanBundle, Module: in.Module}}, nil
	case corepkg.IntentDocs:
		return []corepkg.BuildPlanNode{{Kind: corepkg.PlanBuildDocs}}, nil
	case corepkg.IntentInfo:
		return expandInfo(res, in.Package)
	default:
		return nil, nil
	}
}

func expandBuild(res *discover.Result, id corepkg.PackageId) ([]corepkg.BuildPlanNode, error) {
	pkg := res.Package(id)
	target := corepkg.BuildTarget{Package: id, Kind: corepkg.Source}

	if pkg.IsVirtual {
		return []corepkg.BuildPlanNode{{Kind: corepkg.PlanBuildVirtual, Target: target}}, nil
	}
	if isLinkable(pkg) {
		return []corepkg.BuildPlanNode{{Kind: corepkg.PlanMakeExecutable, Target: target}}, nil
	}
	return []corepkg.BuildPlanNode{{Kind: corepkg.PlanBuildCore, Target: target}}, nil
}

func expandRun(res *discover.Result, id corepkg.PackageId) ([]corepkg.BuildPlanNode, error) {
	pkg := res.Package(id)
	if pkg.IsVirtual {
		return nil, &corepkg.RunTargetIsVirtualError{Virtual: pkg.FQN}
	}
	target := corepkg.BuildTarget{Package: id, Kind: corepkg.Source}
	return []corepkg.BuildPlanNode{{Kind: corepkg.PlanMakeExecutable, Target: target}}, nil
}

func expandCheck(res *discover.Result, id corepkg.PackageId) ([]corepkg.BuildPlanNode, error) {
	pkg := res.Package(id)
	sourceTarget := corepkg.BuildTarget{Package: id, Kind: corepkg.Source}

	if pkg.IsVirtual {
		return []corepkg.BuildPlanNode{{Kind: corepkg.PlanBuildVirtual, Target: sourceTarget}}, nil
	}

	nodes := []corepkg.BuildPlanNode{{Kind: corepkg.PlanCheck, Target: sourceTarget}}
	if pkg.IsVirtualImpl {
		return nodes, nil
	}

	nodes = append(nodes, corepkg.BuildPlanNode{Kind: corepkg.PlanCheck, Target: corepkg.BuildTarget{Package: id, Kind: corepkg.BlackboxTest}})
	if len(pkg.Files.WhiteboxTest) > 0 {
		nodes = append(nodes, corepkg.BuildPlanNode{Kind: corepkg.PlanCheck, Target: corepkg.BuildTarget{Package: id, Kind: corepkg.WhiteboxTest}})
	}
	return nodes, nil
}

func expandTestOrBench(res *discover.Result, id corepkg.PackageId) ([]corepkg.BuildPlanNode, error) {
	pkg := res.Package(id)
	if pkg.IsVirtual || pkg.IsVirtualImpl {
		return nil, nil
	}

	kinds := []corepkg.TargetKind{corepkg.BlackboxTest, corepkg.InlineTest}
	if len(pkg.Files.WhiteboxTest) > 0 {
		kinds = append([]corepkg.TargetKind{corepkg.WhiteboxTest}, kinds...)
	}

	var nodes []corepkg.BuildPlanNode
	for _, kind := range kinds {
		target := corepkg.BuildTarget{Package: id, Kind: kind}
		nodes = append(nodes,
			corepkg.BuildPlanNode{Kind: corepkg.PlanMakeExecutable, Target: target},
			corepkg.BuildPlanNode{Kind: corepkg.PlanGenerateTestInfo, Target: target},
		)
	}
	return nodes, nil
}

func expandInfo(res *discover.Result, id corepkg.PackageId) ([]corepkg.BuildPlanNode, error) {
	pkg := res.Package(id)
	if pkg.IsVirtual {
		return nil, nil
	}
	target := corepkg.BuildTarget{Package: id, Kind: corepkg.Source}
	return []corepkg.BuildPlanNode{{Kind: corepkg.PlanGenerateMbti, Target: target}}, nil
}

// isLinkable reports whether building pkg's Source target should
// produce an executable rather than a plain core (spec §4.4: "main,
// force-link, or has link options").
func isLinkable(pkg *corepkg.DiscoveredPackage) bool {
	if pkg.IsMain || pkg.Manifest.ForceLink {
		return true
	}
	link := pkg.Manifest.Link
	return link.Native != nil || link.Wasm != nil || link.Js != nil
}
