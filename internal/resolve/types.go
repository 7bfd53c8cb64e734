// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package resolve implements C1, the module resolver: it reads a main
// module's manifest (and its transitive dependencies' manifests),
// fetches non-local sources, and produces a ResolvedEnv — an acyclic
// module dependency graph plus the local source directory for each
// module. Grounded on the teacher's SourceManager/SourceMgr split
// (source_manager.go, sm.go): an interface for the stage's needs, one
// concrete implementation backed by real registry/VCS clients.
package resolve

import (
	"github.com/rupesrecta/corebuild/internal/corecfg"
	"github.com/rupesrecta/corebuild/internal/corepkg"
)

// ModuleNode is one node of the resolved module graph.
type ModuleNode struct {
	ID       corepkg.ModuleId
	Source   corepkg.ModuleSource
	Manifest *corecfg.ModuleManifest
	Dir      string // local source directory
	IsInput  bool   // true for local workspace modules
}

// ResolvedEnv is the acyclic directed graph of resolved modules: nodes
// are ModuleIds, edges represent "A depends on B" (spec §3).
type ResolvedEnv struct {
	nodes   []*ModuleNode          // index 0 unused (InvalidModuleId)
	byName  map[corepkg.ModuleName]corepkg.ModuleId
	edges   map[corepkg.ModuleId][]corepkg.ModuleId
	inputs  []corepkg.ModuleId
}

func newResolvedEnv() *ResolvedEnv {
	return &ResolvedEnv{
		nodes:  make([]*ModuleNode, 1),
		byName: make(map[corepkg.ModuleName]corepkg.ModuleId),
		edges:  make(map[corepkg.ModuleId][]corepkg.ModuleId),
	}
}

func (e *ResolvedEnv) addNode(n *ModuleNode) corepkg.ModuleId {
	id := corepkg.ModuleId(len(e.nodes))
	n.ID = id
	e.nodes = append(e.nodes, n)
	e.byName[n.Source.Name] = id
	if n.IsInput {
		e.inputs = append(e.inputs, id)
	}
	return id
}

// Node returns the module node for id.
func (e *ResolvedEnv) Node(id corepkg.ModuleId) *ModuleNode {
	return e.nodes[id]
}

// ByName looks up a resolved module by name.
func (e *ResolvedEnv) ByName(name corepkg.ModuleName) (*ModuleNode, bool) {
	id, ok := e.byName[name]
	if !ok {
		return nil, false
	}
	return e.nodes[id], true
}

// Inputs returns the local workspace modules, i.e. the main module(s)
// the resolve run started from.
func (e *ResolvedEnv) Inputs() []corepkg.ModuleId {
	return append([]corepkg.ModuleId(nil), e.inputs...)
}

// DependsOn returns the modules id directly depends on.
func (e *ResolvedEnv) DependsOn(id corepkg.ModuleId) []corepkg.ModuleId {
	return e.edges[id]
}

// AllModules returns every resolved module id, in insertion order.
func (e *ResolvedEnv) AllModules() []corepkg.ModuleId {
	out := make([]corepkg.ModuleId, 0, len(e.nodes)-1)
	for i := 1; i < len(e.nodes); i++ {
		out = append(out, corepkg.ModuleId(i))
	}
	return out
}

func (e *ResolvedEnv) addEdge(from, to corepkg.ModuleId) {
	for _, existing := range e.edges[from] {
		if existing == to {
			return
		}
	}
	e.edges[from] = append(e.edges[from], to)
}
