// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"

	"github.com/rupesrecta/corebuild/internal/corecfg"
	"github.com/rupesrecta/corebuild/internal/corepkg"
)

// Resolver runs the worklist-based MVS algorithm of spec §4.1. It owns
// no global state between runs: each Resolve call builds a fresh
// ResolvedEnv, mirroring the teacher's pattern of a short-lived
// SourceMgr per invocation (sm.go).
type Resolver struct {
	cfg     *corecfg.Config
	gateway *Gateway
	vcs     *VCSSource
	path    *PathSource
}

// NewResolver wires a Resolver from a Config, constructing the three
// concrete VersionedSources and the Gateway that dispatches between
// them.
func NewResolver(cfg *corecfg.Config) *Resolver {
	registry := NewRegistryClient(cfg, cfg.Frozen)
	vcs := NewVCSSource(cfg)
	path := NewPathSource()
	gw := NewGateway(cfg, registry, vcs, path)
	return &Resolver{cfg: cfg, gateway: gw, vcs: vcs, path: path}
}

// worklistEntry is one pending constraint to resolve, carrying enough
// provenance to build a VersionConflictError/ConstraintEdge if it
// can't be satisfied.
type worklistEntry struct {
	from       corepkg.ModuleName
	name       corepkg.ModuleName
	source     corecfg.DepSource
}

// Resolve runs the resolver over one or more main (workspace) modules,
// given their on-disk directories; each directory's moon.mod.json is
// loaded here.
func (r *Resolver) Resolve(ctx context.Context, mainDirs []string) (*ResolvedEnv, error) {
	env := newResolvedEnv()

	type pending struct {
		name   corepkg.ModuleName
		floor  *semver.Version // current MVS floor, nil for path/git deps
		source corecfg.DepSource
	}

	selected := make(map[corepkg.ModuleName]*pending)
	edgesByModule := make(map[corepkg.ModuleName][]corepkg.ConstraintEdge)
	queue := make([]worklistEntry, 0, 8)

	// Seed the worklist with each input module's own deps.
	for _, dir := range mainDirs {
		man, err := loadManifestAt(dir)
		if err != nil {
			return nil, err
		}
		node := &ModuleNode{Source: corepkg.ModuleSource{Name: man.Name, Version: man.Version, Origin: corepkg.OriginLocalPath}, Manifest: man, Dir: dir, IsInput: true}
		if _, exists := env.ByName(man.Name); exists {
			return nil, &corepkg.DuplicateModuleNameError{Name: man.Name}
		}
		env.addNode(node)

		for depName, src := range man.Deps {
			name, err := corepkg.ParseModuleName(depName)
			if err != nil {
				return nil, errors.Wrapf(err, "module %s dependency key", man.Name)
			}
			queue = append(queue, worklistEntry{from: man.Name, name: name, source: src})
			r.registerSource(name, src)
		}
	}

	visitedManifests := make(map[corepkg.ModuleName]*corecfg.ModuleManifest)

	for len(queue) > 0 {
		entry := queue[0]
		queue = queue[1:]

		origin := entry.source.Origin()

		if origin != corepkg.OriginRegistry {
			// Path and git deps are singletons: resolve (fetch+read
			// manifest) once, then walk their deps. A later conflicting
			// DuplicateModuleName is caught in the addNode check below.
			if _, already := selected[entry.name]; already {
				continue
			}
			selected[entry.name] = &pending{name: entry.name, source: entry.source}

			dir, err := r.gateway.Fetch(ctx, entry.name, origin, entry.source.Revision)
			if err != nil {
				if r.cfg.Frozen {
					return nil, &corepkg.RegistryUnavailableError{Module: entry.name, Cause: err}
				}
				return nil, err
			}

			man, err := loadManifestAt(dir)
			if err != nil {
				return nil, &corepkg.ManifestMissingError{Module: corepkg.ModuleSource{Name: entry.name, Origin: origin}}
			}

			if origin == corepkg.OriginLocalPath && entry.source.VersionRange != "" && man.Version != entry.source.VersionRange {
				return nil, &corepkg.LocalDepVersionMismatchError{Module: entry.name, Wanted: entry.source.VersionRange, Actual: man.Version}
			}

			if existing, ok := env.ByName(entry.name); ok {
				if existing.Source.Origin != origin {
					return nil, &corepkg.DuplicateModuleNameError{Name: entry.name, First: existing.Source, Second: corepkg.ModuleSource{Name: entry.name, Version: man.Version, Origin: origin}}
				}
				continue
			}

			env.addNode(&ModuleNode{Source: corepkg.ModuleSource{Name: entry.name, Version: man.Version, Origin: origin}, Manifest: man, Dir: dir})
			env.addEdge(mustID(env, entry.from), mustID(env, entry.name))
			visitedManifests[entry.name] = man

			for depName, src := range man.Deps {
				depMod, err := corepkg.ParseModuleName(depName)
				if err != nil {
					return nil, errors.Wrapf(err, "module %s dependency key", entry.name)
				}
				queue = append(queue, worklistEntry{from: entry.name, name: depMod, source: src})
				r.registerSource(depMod, src)
			}
			continue
		}

		// Registry origin: MVS. Compute this edge's minimal satisfying
		// version, then raise the module's selected floor to the max of
		// all such minima seen so far (classic MVS: "minimal version
		// satisfying all constraints" == "maximum of the per-constraint
		// minimums").
		constraint, err := semver.NewConstraint(entry.source.VersionRange)
		if err != nil {
			return nil, errors.Wrapf(err, "module %s: invalid version constraint %q for %s", entry.from, entry.source.VersionRange, entry.name)
		}

		versions, err := r.gateway.ListVersions(ctx, entry.name, corepkg.OriginRegistry)
		if err != nil {
			if r.cfg.Frozen {
				return nil, &corepkg.RegistryUnavailableError{Module: entry.name, Cause: err}
			}
			return nil, err
		}

		edgesByModule[entry.name] = append(edgesByModule[entry.name], corepkg.ConstraintEdge{From: entry.from, Constraint: entry.source.VersionRange})

		minSatisfying, err := minSatisfyingVersion(versions, constraint)
		if err != nil {
			return nil, &corepkg.VersionConflictError{Module: entry.name, Edges: edgesByModule[entry.name]}
		}

		p, exists := selected[entry.name]
		if !exists {
			p = &pending{name: entry.name, floor: minSatisfying}
			selected[entry.name] = p
		} else if p.floor == nil || minSatisfying.GreaterThan(p.floor) {
			p.floor = minSatisfying
		}

		// Re-fetch the manifest at the (possibly raised) floor so its
		// own deps join the worklist. This may refetch the same module
		// multiple times as the floor rises; that's bounded (spec
		// §4.1's termination argument) because each new version
		// strictly increases the floor.
		if _, already := visitedManifests[entry.name]; already && p.floor.String() == visitedManifests[entry.name].Version {
			continue
		}

		dir, err := r.gateway.Fetch(ctx, entry.name, corepkg.OriginRegistry, p.floor.String())
		if err != nil {
			return nil, err
		}
		man, err := loadManifestAt(dir)
		if err != nil {
			return nil, &corepkg.ManifestMissingError{Module: corepkg.ModuleSource{Name: entry.name, Version: p.floor.String(), Origin: corepkg.OriginRegistry}}
		}
		visitedManifests[entry.name] = man

		if existing, ok := env.ByName(entry.name); ok {
			existing.Source.Version = p.floor.String()
			existing.Manifest = man
			existing.Dir = dir
		} else {
			env.addNode(&ModuleNode{Source: corepkg.ModuleSource{Name: entry.name, Version: p.floor.String(), Origin: corepkg.OriginRegistry}, Manifest: man, Dir: dir})
		}
		env.addEdge(mustID(env, entry.from), mustID(env, entry.name))

		for depName, src := range man.Deps {
			depMod, err := corepkg.ParseModuleName(depName)
			if err != nil {
				return nil, errors.Wrapf(err, "module %s dependency key", entry.name)
			}
			queue = append(queue, worklistEntry{from: entry.name, name: depMod, source: src})
		}
	}

	return env, nil
}

func (r *Resolver) registerSource(name corepkg.ModuleName, src corecfg.DepSource) {
	switch src.Origin() {
	case corepkg.OriginGitRepo:
		r.vcs.RegisterDep(name, gitDep{URL: src.Git, Branch: src.Branch, Revision: src.Revision})
	case corepkg.OriginLocalPath:
		r.path.RegisterDep(name, src.Path)
	}
}

func mustID(env *ResolvedEnv, name corepkg.ModuleName) corepkg.ModuleId {
	n, ok := env.ByName(name)
	if !ok {
		return corepkg.InvalidModuleId
	}
	return n.ID
}

// minSatisfyingVersion picks the lowest available version satisfying
// constraint, per spec §4.1's MVS rule ("pick the minimum version that
// satisfies all constraints encountered").
func minSatisfyingVersion(versions []string, constraint *semver.Constraints) (*semver.Version, error) {
	parsed := make([]*semver.Version, 0, len(versions))
	for _, v := range versions {
		sv, err := semver.NewVersion(v)
		if err != nil {
			continue
		}
		if constraint.Check(sv) {
			parsed = append(parsed, sv)
		}
	}
	if len(parsed) == 0 {
		return nil, errors.New("no version satisfies constraint")
	}
	sort.Sort(semver.Collection(parsed))
	return parsed[0], nil
}

func loadManifestAt(dir string) (*corecfg.ModuleManifest, error) {
	p := filepath.Join(dir, corecfg.ModuleManifestName)
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return corecfg.ReadModuleManifest(f)
}
