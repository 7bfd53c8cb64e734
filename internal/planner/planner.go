// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package planner implements C5, the build planner: a worklist that
// expands each root BuildPlanNode into its full prerequisite chain,
// recording a logical ActionSpec (inputs and flags, never command
// lines — that's lowering's job) for every node it visits. Grounded on
// the teacher's solver.go worklist loop (queue of "unselected"
// projects, each visit pushing its own dependencies before moving on)
// generalized from "select a version" to "determine prerequisites".
package planner

import (
	"sort"

	"github.com/rupesrecta/corebuild/internal/corepkg"
	"github.com/rupesrecta/corebuild/internal/discover"
	"github.com/rupesrecta/corebuild/internal/solve"
)

// ActionSpec is the planner's output for one BuildPlanNode: logical
// inputs and flags, with no command line constructed yet.
type ActionSpec struct {
	Node         corepkg.BuildPlanNode
	Prereqs      []corepkg.BuildPlanNode
	InputFiles   []string              // source/C-stub paths belonging to this node's own target
	InputTargets []corepkg.BuildTarget // other targets' compiled outputs this node consumes directly
	IsVirtual    bool
	ModuleName   string // populated for Bundle
}

// Plan is the realized build plan: every visited node's ActionSpec,
// plus the order in which nodes were first discovered (root-first;
// NOT a dependency order — use Prereqs to walk dependency order).
type Plan struct {
	specs map[corepkg.BuildPlanNode]*ActionSpec
	order []corepkg.BuildPlanNode
}

// Spec returns n's ActionSpec, or nil if n was never visited.
func (p *Plan) Spec(n corepkg.BuildPlanNode) *ActionSpec {
	return p.specs[n]
}

// Nodes returns every planned node, in discovery order.
func (p *Plan) Nodes() []corepkg.BuildPlanNode {
	return append([]corepkg.BuildPlanNode(nil), p.order...)
}

// planCtx threads the read-only inputs every expansion step needs.
type planCtx struct {
	res     *discover.Result
	graph   *solve.Graph
	virtual solve.VirtualSelection
	backend string
	optLvl  string
}

// Plan runs the worklist over roots and returns the realized plan.
func Plan(res *discover.Result, graph *solve.Graph, virtual solve.VirtualSelection, roots []corepkg.BuildPlanNode, backend, optLevel string) (*Plan, error) {
	ctx := &planCtx{res: res, graph: graph, virtual: virtual, backend: backend, optLvl: optLevel}
	p := &Plan{specs: make(map[corepkg.BuildPlanNode]*ActionSpec)}

	queue := append([]corepkg.BuildPlanNode(nil), roots...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if _, done := p.specs[n]; done {
			continue
		}

		spec, prereqs, err := expand(ctx, n)
		if err != nil {
			return nil, err
		}
		spec.Prereqs = prereqs
		p.specs[n] = spec
		p.order = append(p.order, n)
		queue = append(queue, prereqs...)
	}

	return p, nil
}

func expand(ctx *planCtx, n corepkg.BuildPlanNode) (*ActionSpec, []corepkg.BuildPlanNode, error) {
	switch n.Kind {
	case corepkg.PlanCheck:
		return expandCheck(ctx, n)
	case corepkg.PlanBuildCore:
		return expandBuildCore(ctx, n)
	case corepkg.PlanBuildC:
		return expandBuildC(ctx, n)
	case corepkg.PlanLinkCore:
		return expandLinkCore(ctx, n)
	case corepkg.PlanMakeExecutable:
		return expandMakeExecutable(ctx, n)
	case corepkg.PlanGenerateMbti:
		return expandGenerateMbti(ctx, n)
	case corepkg.PlanGenerateTestInfo:
		return expandGenerateTestInfo(ctx, n)
	case corepkg.PlanBundle:
		return expandBundle(ctx, n)
	case corepkg.PlanBuildDocs:
		return expandBuildDocs(ctx, n)
	case corepkg.PlanBuildVirtual:
		return expandBuildVirtual(ctx, n)
	default:
		return &ActionSpec{Node: n}, nil, nil
	}
}

// substitute replaces an edge destination with its chosen
// implementation when it names a virtual package with an override
// selected, per spec §4.5's "virtual -> implementation substitution".
func substitute(ctx *planCtx, t corepkg.BuildTarget) corepkg.BuildTarget {
	pkg := ctx.res.Package(t.Package)
	if !pkg.IsVirtual || t.Kind != corepkg.Source {
		return t
	}
	implID, ok := ctx.virtual[pkg.FQN.String()]
	if !ok {
		return t
	}
	return corepkg.BuildTarget{Package: implID, Kind: corepkg.Source}
}

// sortedDeps returns target's outgoing edges, substituted and sorted
// by destination FQN ascending with ties broken by the edges' original
// (manifest import) order — a stable sort over the graph's
// already-import-ordered edge slice satisfies that directly.
func sortedDeps(ctx *planCtx, target corepkg.BuildTarget) []corepkg.BuildTarget {
	edges := ctx.graph.Edges(target)
	dests := make([]corepkg.BuildTarget, len(edges))
	for i, e := range edges {
		dests[i] = substitute(ctx, e.To)
	}
	sort.SliceStable(dests, func(i, j int) bool {
		return ctx.res.Package(dests[i].Package).FQN.String() < ctx.res.Package(dests[j].Package).FQN.String()
	})
	return dedupTargets(dests)
}

func dedupTargets(ts []corepkg.BuildTarget) []corepkg.BuildTarget {
	seen := make(map[corepkg.BuildTarget]bool, len(ts))
	out := ts[:0]
	for _, t := range ts {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func expandCheck(ctx *planCtx, n corepkg.BuildPlanNode) (*ActionSpec, []corepkg.BuildPlanNode, error) {
	spec := &ActionSpec{Node: n, InputFiles: sourceFiles(ctx, n.Target)}
	var prereqs []corepkg.BuildPlanNode
	for _, dep := range sortedDeps(ctx, n.Target) {
		spec.InputTargets = append(spec.InputTargets, dep)
		prereqs = append(prereqs, checkNodeFor(ctx, dep))
	}
	return spec, prereqs, nil
}

func checkNodeFor(ctx *planCtx, t corepkg.BuildTarget) corepkg.BuildPlanNode {
	if ctx.res.Package(t.Package).IsVirtual {
		return corepkg.BuildPlanNode{Kind: corepkg.PlanBuildVirtual, Target: t}
	}
	return corepkg.BuildPlanNode{Kind: corepkg.PlanCheck, Target: t}
}

func expandBuildCore(ctx *planCtx, n corepkg.BuildPlanNode) (*ActionSpec, []corepkg.BuildPlanNode, error) {
	spec := &ActionSpec{Node: n, InputFiles: sourceFiles(ctx, n.Target)}
	var prereqs []corepkg.BuildPlanNode
	for _, dep := range sortedDeps(ctx, n.Target) {
		spec.InputTargets = append(spec.InputTargets, dep)
		prereqs = append(prereqs, buildCoreNodeFor(ctx, dep))
	}
	return spec, prereqs, nil
}

func buildCoreNodeFor(ctx *planCtx, t corepkg.BuildTarget) corepkg.BuildPlanNode {
	if ctx.res.Package(t.Package).IsVirtual {
		return corepkg.BuildPlanNode{Kind: corepkg.PlanBuildVirtual, Target: t}
	}
	return corepkg.BuildPlanNode{Kind: corepkg.PlanBuildCore, Target: t}
}

func expandBuildC(ctx *planCtx, n corepkg.BuildPlanNode) (*ActionSpec, []corepkg.BuildPlanNode, error) {
	pkg := ctx.res.Package(n.Target.Package)
	return &ActionSpec{Node: n, InputFiles: prefixed(pkg.RootPath, pkg.Files.CStub)}, nil, nil
}

// transitiveBuildCore returns, leaves-first, every BuildCore-eligible
// target reachable from start (inclusive), deduplicated.
func transitiveBuildCore(ctx *planCtx, start corepkg.BuildTarget) []corepkg.BuildTarget {
	var order []corepkg.BuildTarget
	visited := make(map[corepkg.BuildTarget]bool)

	var visit func(t corepkg.BuildTarget)
	visit = func(t corepkg.BuildTarget) {
		if visited[t] {
			return
		}
		visited[t] = true
		for _, dep := range sortedDeps(ctx, t) {
			if !ctx.res.Package(dep.Package).IsVirtual {
				visit(dep)
			}
		}
		order = append(order, t)
	}
	visit(start)
	return order
}

func expandLinkCore(ctx *planCtx, n corepkg.BuildPlanNode) (*ActionSpec, []corepkg.BuildPlanNode, error) {
	chain := transitiveBuildCore(ctx, n.Target)
	spec := &ActionSpec{Node: n, InputTargets: chain}

	pkg := ctx.res.Package(n.Target.Package)
	if !pkg.IsStdlib {
		// Implicit stdlib core.core and abort linkage: represented as
		// synthetic members of InputFiles resolved by name at lowering
		// time, since the stdlib module may not be in this DiscoverResult
		// at all (load_defaults is C1's concern, not C5's).
		spec.InputFiles = append(spec.InputFiles, "core.core", "abort.core")
	}

	var prereqs []corepkg.BuildPlanNode
	for _, t := range chain {
		prereqs = append(prereqs, corepkg.BuildPlanNode{Kind: corepkg.PlanBuildCore, Target: t})
	}
	return spec, prereqs, nil
}

func expandMakeExecutable(ctx *planCtx, n corepkg.BuildPlanNode) (*ActionSpec, []corepkg.BuildPlanNode, error) {
	spec := &ActionSpec{Node: n}
	link := corepkg.BuildPlanNode{Kind: corepkg.PlanLinkCore, Target: n.Target}
	prereqs := []corepkg.BuildPlanNode{link}

	if ctx.backend == "native" || ctx.backend == "llvm" {
		for _, t := range transitiveBuildCore(ctx, n.Target) {
			pkg := ctx.res.Package(t.Package)
			if len(pkg.Files.CStub) > 0 {
				cNode := corepkg.BuildPlanNode{Kind: corepkg.PlanBuildC, Target: corepkg.BuildTarget{Package: t.Package, Kind: corepkg.Source}}
				prereqs = append(prereqs, cNode)
				spec.InputTargets = append(spec.InputTargets, cNode.Target)
			}
		}
	}
	return spec, prereqs, nil
}

func expandGenerateMbti(ctx *planCtx, n corepkg.BuildPlanNode) (*ActionSpec, []corepkg.BuildPlanNode, error) {
	spec := &ActionSpec{Node: n}
	prereqs := []corepkg.BuildPlanNode{{Kind: corepkg.PlanBuildCore, Target: n.Target}}
	return spec, prereqs, nil
}

func expandGenerateTestInfo(ctx *planCtx, n corepkg.BuildPlanNode) (*ActionSpec, []corepkg.BuildPlanNode, error) {
	spec := &ActionSpec{Node: n, InputFiles: sourceFiles(ctx, n.Target)}
	return spec, nil, nil
}

func expandBundle(ctx *planCtx, n corepkg.BuildPlanNode) (*ActionSpec, []corepkg.BuildPlanNode, error) {
	var members []corepkg.PackageId
	for _, id := range ctx.res.All() {
		pkg := ctx.res.Package(id)
		if pkg.Module == n.Module && !pkg.IsVirtual {
			members = append(members, id)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		return ctx.res.Package(members[i]).FQN.String() < ctx.res.Package(members[j]).FQN.String()
	})

	spec := &ActionSpec{Node: n}
	if len(members) > 0 {
		spec.ModuleName = ctx.res.Package(members[0]).FQN.Module.Name.String()
	}
	var prereqs []corepkg.BuildPlanNode
	seen := make(map[corepkg.BuildTarget]bool)
	for _, id := range members {
		target := corepkg.BuildTarget{Package: id, Kind: corepkg.Source}
		for _, t := range transitiveBuildCore(ctx, target) {
			if seen[t] {
				continue
			}
			seen[t] = true
			spec.InputTargets = append(spec.InputTargets, t)
			prereqs = append(prereqs, corepkg.BuildPlanNode{Kind: corepkg.PlanBuildCore, Target: t})
		}
	}
	return spec, prereqs, nil
}

func expandBuildDocs(ctx *planCtx, n corepkg.BuildPlanNode) (*ActionSpec, []corepkg.BuildPlanNode, error) {
	spec := &ActionSpec{Node: n}
	var prereqs []corepkg.BuildPlanNode
	for _, id := range ctx.res.All() {
		pkg := ctx.res.Package(id)
		target := corepkg.BuildTarget{Package: id, Kind: corepkg.Source}
		prereqs = append(prereqs, corepkg.BuildPlanNode{Kind: corepkg.PlanBuildCore, Target: target})
		if !pkg.IsVirtual {
			prereqs = append(prereqs, corepkg.BuildPlanNode{Kind: corepkg.PlanGenerateMbti, Target: target})
		}
	}
	return spec, prereqs, nil
}

func expandBuildVirtual(ctx *planCtx, n corepkg.BuildPlanNode) (*ActionSpec, []corepkg.BuildPlanNode, error) {
	pkg := ctx.res.Package(n.Target.Package)
	return &ActionSpec{Node: n, IsVirtual: true, InputFiles: prefixed(pkg.RootPath, nil)}, nil, nil
}

// sourceFiles resolves t's classified files (filtered to the kind t
// names) to absolute on-disk paths, dropping any file whose manifest
// "targets" compile condition excludes the current backend/opt-level
// (spec §4.5's per-file compile condition).
func sourceFiles(ctx *planCtx, t corepkg.BuildTarget) []string {
	pkg := ctx.res.Package(t.Package)
	var files []string
	switch t.Kind {
	case corepkg.WhiteboxTest:
		files = pkg.Files.WhiteboxTest
	case corepkg.BlackboxTest:
		files = append(append([]string(nil), pkg.Files.BlackboxTest...), pkg.Files.Markdown...)
	case corepkg.SubPackage:
		if pkg.Manifest.SubPackage != nil {
			files = pkg.Manifest.SubPackage.Files
		}
	default:
		files = pkg.Files.Source
	}

	kept := files[:0:0]
	for _, f := range files {
		if cond, ok := pkg.Manifest.Targets[f]; ok && !cond.Included(ctx.backend, ctx.optLvl) {
			continue
		}
		kept = append(kept, f)
	}
	return prefixed(pkg.RootPath, kept)
}

func prefixed(root string, files []string) []string {
	if len(files) == 0 {
		return nil
	}
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = root + "/" + f
	}
	return out
}
