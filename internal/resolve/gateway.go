// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import (
	"context"

	"github.com/rupesrecta/corebuild/internal/corecfg"
	"github.com/rupesrecta/corebuild/internal/corepkg"
)

// VersionedSource is what a resolve run needs from any origin: the set
// of available versions and the ability to materialize one of them
// into a local directory, mirroring the teacher's SourceManager
// interface (source_manager.go) narrowed to this stage's needs.
type VersionedSource interface {
	// ListVersions enumerates versions satisfying the given origin's
	// semantics (registry: published versions; git: tags/branches;
	// path: the single version declared by the target's own manifest).
	ListVersions(ctx context.Context, name corepkg.ModuleName) ([]string, error)

	// Fetch materializes one version into a stable local directory and
	// returns its path.
	Fetch(ctx context.Context, name corepkg.ModuleName, version string) (dir string, err error)
}

// Gateway picks the right VersionedSource for a dependency's declared
// origin. Grounded on maybe_source.go's lazy-source-resolution idea:
// the concrete source is picked from the origin on every call; nothing
// is memoized.
type Gateway struct {
	cfg      *corecfg.Config
	registry VersionedSource
	git      VersionedSource
	path     VersionedSource
}

// NewGateway wires the three concrete VersionedSource implementations.
func NewGateway(cfg *corecfg.Config, registry, git, path VersionedSource) *Gateway {
	return &Gateway{cfg: cfg, registry: registry, git: git, path: path}
}

func (g *Gateway) sourceFor(origin corepkg.Origin) VersionedSource {
	switch origin {
	case corepkg.OriginLocalPath:
		return g.path
	case corepkg.OriginGitRepo:
		return g.git
	default:
		return g.registry
	}
}

// ListVersions delegates to the VersionedSource matching origin.
func (g *Gateway) ListVersions(ctx context.Context, name corepkg.ModuleName, origin corepkg.Origin) ([]string, error) {
	return g.sourceFor(origin).ListVersions(ctx, name)
}

// Fetch delegates to the VersionedSource matching origin.
func (g *Gateway) Fetch(ctx context.Context, name corepkg.ModuleName, origin corepkg.Origin, version string) (string, error) {
	return g.sourceFor(origin).Fetch(ctx, name, version)
}
