// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package solve implements C3, the package solver: it expands every
// DiscoveredPackage into its BuildTarget nodes, resolves import edges
// between them, enforces alias uniqueness and DAG-ness, and settles
// virtual-package overrides. Grounded on the teacher's selection.go
// (the "who provides what, and does the provider set stay consistent"
// bookkeeping) and typed_radix.go's typed-wrapper-around-a-generic-index
// idiom, here a small alias index instead of a radix tree since FQNs
// are looked up by exact string, never by prefix.
package solve

import (
	"sort"

	"github.com/rupesrecta/corebuild/internal/corepkg"
	"github.com/rupesrecta/corebuild/internal/discover"
	"github.com/rupesrecta/corebuild/internal/resolve"
)

// Graph is the package dependency graph: BuildTarget nodes, DepEdges
// between them, each already carrying its resolved short alias.
type Graph struct {
	targets []corepkg.BuildTarget
	present map[corepkg.BuildTarget]bool
	edges   map[corepkg.BuildTarget][]corepkg.DepEdge
}

func newGraph() *Graph {
	return &Graph{present: make(map[corepkg.BuildTarget]bool), edges: make(map[corepkg.BuildTarget][]corepkg.DepEdge)}
}

func (g *Graph) addTarget(t corepkg.BuildTarget) {
	if g.present[t] {
		return
	}
	g.present[t] = true
	g.targets = append(g.targets, t)
}

func (g *Graph) addEdge(e corepkg.DepEdge) {
	g.edges[e.From] = append(g.edges[e.From], e)
}

// Targets returns every BuildTarget node, in creation order (Source,
// then WhiteboxTest/BlackboxTest/InlineTest/SubPackage per package, in
// discovery order of the underlying packages).
func (g *Graph) Targets() []corepkg.BuildTarget {
	return append([]corepkg.BuildTarget(nil), g.targets...)
}

// HasTarget reports whether t is a node of the graph.
func (g *Graph) HasTarget(t corepkg.BuildTarget) bool {
	return g.present[t]
}

// Edges returns the outgoing DepEdges of t, i.e. what t imports.
func (g *Graph) Edges(t corepkg.BuildTarget) []corepkg.DepEdge {
	return append([]corepkg.DepEdge(nil), g.edges[t]...)
}

// VirtualSelection maps a virtual package's FQN string to the
// PackageId chosen to implement it, after override resolution.
type VirtualSelection map[string]corepkg.PackageId

// Solve runs C3 over a fully discovered environment: it builds every
// BuildTarget, resolves every import edge, checks alias uniqueness,
// detects cycles, and resolves virtual package overrides.
func Solve(env *resolve.ResolvedEnv, res *discover.Result) (*Graph, VirtualSelection, error) {
	g := newGraph()

	for _, id := range res.All() {
		pkg := res.Package(id)
		g.addTarget(corepkg.BuildTarget{Package: id, Kind: corepkg.Source})
		if len(pkg.Files.WhiteboxTest) > 0 {
			g.addTarget(corepkg.BuildTarget{Package: id, Kind: corepkg.WhiteboxTest})
		}
		if len(pkg.Files.BlackboxTest) > 0 || len(pkg.Files.Markdown) > 0 {
			g.addTarget(corepkg.BuildTarget{Package: id, Kind: corepkg.BlackboxTest})
		}
		if hasAnyInlineTestFile(res, id, pkg) {
			g.addTarget(corepkg.BuildTarget{Package: id, Kind: corepkg.InlineTest})
		}
		if pkg.Manifest.SubPackage != nil {
			g.addTarget(corepkg.BuildTarget{Package: id, Kind: corepkg.SubPackage})
		}
	}

	for _, id := range res.All() {
		pkg := res.Package(id)

		if err := resolveEdges(env, res, g, corepkg.BuildTarget{Package: id, Kind: corepkg.Source}, pkg.Manifest.Import); err != nil {
			return nil, nil, err
		}
		if g.HasTarget(corepkg.BuildTarget{Package: id, Kind: corepkg.WhiteboxTest}) {
			wb := append(append([]corepkg.ImportSpec(nil), pkg.Manifest.Import...), pkg.Manifest.WbtestImport...)
			if err := resolveEdgesSelfOK(env, res, g, corepkg.BuildTarget{Package: id, Kind: corepkg.WhiteboxTest}, wb, id); err != nil {
				return nil, nil, err
			}
		}
		if g.HasTarget(corepkg.BuildTarget{Package: id, Kind: corepkg.BlackboxTest}) {
			bb := append(append([]corepkg.ImportSpec(nil), pkg.Manifest.Import...), pkg.Manifest.TestImport...)
			if err := resolveEdges(env, res, g, corepkg.BuildTarget{Package: id, Kind: corepkg.BlackboxTest}, bb); err != nil {
				return nil, nil, err
			}
		}
		if pkg.Manifest.SubPackage != nil {
			if err := resolveEdges(env, res, g, corepkg.BuildTarget{Package: id, Kind: corepkg.SubPackage}, pkg.Manifest.SubPackage.Import); err != nil {
				return nil, nil, err
			}
		}
	}

	if err := checkAliasUniqueness(g, res); err != nil {
		return nil, nil, err
	}

	if err := detectCycles(g); err != nil {
		return nil, nil, err
	}

	sel, err := resolveVirtualImpls(res)
	if err != nil {
		return nil, nil, err
	}

	return g, sel, nil
}

func hasAnyInlineTestFile(res *discover.Result, id corepkg.PackageId, pkg *corepkg.DiscoveredPackage) bool {
	for _, f := range pkg.Files.Source {
		if res.HasInlineTest(id, f) {
			return true
		}
	}
	return false
}

// resolveEdges resolves one BuildTarget's import list into graph
// edges, per spec §4.3's edge table.
func resolveEdges(env *resolve.ResolvedEnv, res *discover.Result, g *Graph, from corepkg.BuildTarget, imports []corepkg.ImportSpec) error {
	return resolveEdgesSelfOK(env, res, g, from, imports, corepkg.InvalidPackageId)
}

// resolveEdgesSelfOK is resolveEdges but permits from's own Source
// target as an import destination without flagging anything (used by
// white-box tests, which may legitimately self-import).
func resolveEdgesSelfOK(env *resolve.ResolvedEnv, res *discover.Result, g *Graph, from corepkg.BuildTarget, imports []corepkg.ImportSpec, selfPkg corepkg.PackageId) error {
	fromPkg := res.Package(from.Package)
	fromModule := env.Node(fromPkg.Module)

	for _, imp := range imports {
		targetID, ok := res.ByFQN(imp.Path)
		if !ok {
			return &corepkg.ImportNotFoundError{Importer: from, Import: imp.Path}
		}
		targetPkg := res.Package(targetID)

		if targetPkg.Module != fromPkg.Module && targetID != selfPkg {
			targetModule := env.Node(targetPkg.Module)
			if !moduleDependsOn(env, fromPkg.Module, targetPkg.Module) {
				return &corepkg.ImportNotImportedByModuleError{
					Importer:    from,
					Import:      imp.Path,
					ImporterMod: fromModule.Source.Name,
					TargetMod:   targetModule.Source.Name,
				}
			}
		}

		kind := corepkg.Source
		if imp.SubPackage {
			kind = corepkg.SubPackage
		}
		to := corepkg.BuildTarget{Package: targetID, Kind: kind}
		if !g.HasTarget(to) {
			return &corepkg.ImportNotFoundError{Importer: from, Import: imp.Path}
		}

		alias := imp.Alias
		if alias == "" {
			alias = targetPkg.FQN.ShortAlias()
		}

		g.addEdge(corepkg.DepEdge{From: from, To: to, Alias: alias})
	}
	return nil
}

// moduleDependsOn reports whether from == to, or from's resolved
// module graph has a direct edge to to (spec §4.3's
// ImportNotImportedByModule check).
func moduleDependsOn(env *resolve.ResolvedEnv, from, to corepkg.ModuleId) bool {
	if from == to {
		return true
	}
	for _, dep := range env.DependsOn(from) {
		if dep == to {
			return true
		}
	}
	return false
}

// checkAliasUniqueness enforces that no BuildTarget imports two
// different targets under the same short alias (spec §4.3 invariant 4).
func checkAliasUniqueness(g *Graph, res *discover.Result) error {
	for _, from := range g.Targets() {
		seen := make(map[string]corepkg.BuildTarget)
		for _, e := range g.Edges(from) {
			if first, dup := seen[e.Alias]; dup && first != e.To {
				return &corepkg.ConflictingImportAliasError{
					Target: from,
					Alias:  e.Alias,
					First:  res.Package(first.Package).FQN,
					Second: res.Package(e.To.Package).FQN,
				}
			}
			seen[e.Alias] = e.To
		}
	}
	return nil
}

// detectCycles runs a DFS from every unvisited node, maintaining the
// current path, per spec §4.3's cycle-detection rule. White-box
// self-import edges do not appear in the graph built above as cycles
// (resolveEdgesSelfOK resolves them to the same Source target but the
// cycle check below still needs to special-case kind to avoid flagging
// a WhiteboxTest -> Source edge on the same package as a loop).
func detectCycles(g *Graph) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[corepkg.BuildTarget]int)
	var path []corepkg.BuildTarget

	var visit func(t corepkg.BuildTarget) error
	visit = func(t corepkg.BuildTarget) error {
		color[t] = gray
		path = append(path, t)
		for _, e := range g.Edges(t) {
			if isSelfImport(e) {
				continue
			}
			switch color[e.To] {
			case white:
				if err := visit(e.To); err != nil {
					return err
				}
			case gray:
				cycle := cyclePath(path, e.To)
				return &corepkg.ImportLoopError{Cycle: cycle}
			}
		}
		path = path[:len(path)-1]
		color[t] = black
		return nil
	}

	targets := g.Targets()
	sort.Slice(targets, func(i, j int) bool {
		if targets[i].Package != targets[j].Package {
			return targets[i].Package < targets[j].Package
		}
		return targets[i].Kind < targets[j].Kind
	})

	for _, t := range targets {
		if color[t] == white {
			if err := visit(t); err != nil {
				return err
			}
		}
	}
	return nil
}

func isSelfImport(e corepkg.DepEdge) bool {
	return e.From.Kind == corepkg.WhiteboxTest && e.To.Kind == corepkg.Source && e.From.Package == e.To.Package
}

func cyclePath(path []corepkg.BuildTarget, back corepkg.BuildTarget) []corepkg.BuildTarget {
	for i, t := range path {
		if t == back {
			return append(append([]corepkg.BuildTarget(nil), path[i:]...), back)
		}
	}
	return append(append([]corepkg.BuildTarget(nil), path...), back)
}

// resolveVirtualImpls settles each virtual package's implementation,
// per spec §4.3: main packages' `overrides` name implementation FQNs;
// a virtual package with no override must have `has_default=true`.
func resolveVirtualImpls(res *discover.Result) (VirtualSelection, error) {
	sel := make(VirtualSelection)
	chosenBy := make(map[string][]corepkg.PackageFQN)

	for _, id := range res.All() {
		pkg := res.Package(id)
		if !pkg.IsMain {
			continue
		}
		for _, overrideFQN := range pkg.Manifest.Overrides {
			implID, ok := res.ByFQN(overrideFQN)
			if !ok {
				continue
			}
			impl := res.Package(implID)
			if impl.Manifest.Implement == "" {
				continue
			}
			if existing, ok := sel[impl.Manifest.Implement]; ok && existing != implID {
				chosenBy[impl.Manifest.Implement] = append(chosenBy[impl.Manifest.Implement], res.Package(existing).FQN, impl.FQN)
				continue
			}
			sel[impl.Manifest.Implement] = implID
			impl.HasImplementation = true
		}
	}

	for virtualFQN, impls := range chosenBy {
		vid, _ := res.ByFQN(virtualFQN)
		return nil, &corepkg.MultipleVirtualImplsError{Virtual: res.Package(vid).FQN, Impls: impls}
	}

	for _, id := range res.All() {
		pkg := res.Package(id)
		if !pkg.IsVirtual {
			continue
		}
		fqn := pkg.FQN.String()
		if _, ok := sel[fqn]; ok {
			continue
		}
		if pkg.Manifest.VirtualPkg == nil || !pkg.Manifest.VirtualPkg.HasDefault {
			return nil, &corepkg.MissingVirtualImplError{Virtual: pkg.FQN}
		}
	}

	return sel, nil
}
