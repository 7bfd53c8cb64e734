// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/rupesrecta/corebuild/internal/corepkg"
	"github.com/rupesrecta/corebuild/internal/fs"
)

// PathSource serves modules declared with `path: "..."`: the version
// is not chosen, it is read from the target manifest (spec §4.1).
type PathSource struct {
	mu    sync.Mutex
	paths map[corepkg.ModuleName]string
}

// NewPathSource builds an empty PathSource; RegisterDep records each
// path dependency as the resolver's worklist reads its manifest.
func NewPathSource() *PathSource {
	return &PathSource{paths: make(map[corepkg.ModuleName]string)}
}

// RegisterDep records the filesystem path declared for a local module.
func (s *PathSource) RegisterDep(name corepkg.ModuleName, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths[name] = path
}

func (s *PathSource) pathFor(name corepkg.ModuleName) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.paths[name]
	return p, ok
}

// ListVersions for a path dependency is always the single version
// declared in the target's own manifest; spec §4.1 treats any declared
// constraint as purely advisory. The caller (resolver) is responsible
// for reading that manifest and comparing; this method exists only to
// satisfy VersionedSource and returns no candidates of its own.
func (s *PathSource) ListVersions(ctx context.Context, name corepkg.ModuleName) ([]string, error) {
	if _, ok := s.pathFor(name); !ok {
		return nil, errors.Errorf("no path dependency registered for %s", name)
	}
	return nil, nil
}

// Fetch returns the local path unmodified; there's nothing to download.
func (s *PathSource) Fetch(ctx context.Context, name corepkg.ModuleName, version string) (string, error) {
	p, ok := s.pathFor(name)
	if !ok {
		return "", errors.Errorf("no path dependency registered for %s", name)
	}
	if _, err := fs.IsDir(p); err != nil {
		return "", errors.Wrapf(err, "path dependency %s", name)
	}
	return p, nil
}
