// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package discover implements C2, the package discoverer: it walks
// each resolved module's source tree, classifies files, and parses
// per-package manifests into DiscoveredPackages. Grounded on the
// teacher's filesystem-walk idiom (fs.go, internal/fs/fs.go) but using
// github.com/karrick/godirwalk for the tree walk itself, which is
// present in the teacher's own vendor tree and is the faster, simpler
// replacement for filepath.Walk the teacher already depends on.
package discover

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/rupesrecta/corebuild/internal/corecfg"
	"github.com/rupesrecta/corebuild/internal/corepkg"
	"github.com/rupesrecta/corebuild/internal/resolve"
)

// inlineTestRe recognizes a source `test "..."` declaration line, per
// spec §4.4.
var inlineTestRe = regexp.MustCompile(`^test[ \t]*("(?P<name>([^\\"]|\\.)*)")?.*$`)

// Result is the output of one discover run: every package found,
// addressable by PackageId, plus the reverse FQN lookup the solver
// (C3) needs for import resolution.
type Result struct {
	byID  []*corepkg.DiscoveredPackage // index 0 unused
	byFQN map[string]corepkg.PackageId

	// InlineTestFiles maps "<pkgID>:<filename>" to true when that
	// source file contains at least one inline test declaration.
	InlineTestFiles map[string]bool
}

func newResult() *Result {
	return &Result{byID: make([]*corepkg.DiscoveredPackage, 1), byFQN: make(map[string]corepkg.PackageId), InlineTestFiles: make(map[string]bool)}
}

func (r *Result) add(p *corepkg.DiscoveredPackage) corepkg.PackageId {
	id := corepkg.PackageId(len(r.byID))
	p.ID = id
	r.byID = append(r.byID, p)
	r.byFQN[p.FQN.String()] = id
	return id
}

// Package looks up a discovered package by id.
func (r *Result) Package(id corepkg.PackageId) *corepkg.DiscoveredPackage {
	return r.byID[id]
}

// ByFQN looks up a discovered package by its fully-qualified name.
func (r *Result) ByFQN(fqn string) (corepkg.PackageId, bool) {
	id, ok := r.byFQN[fqn]
	return id, ok
}

// All returns every discovered package id, in discovery order.
func (r *Result) All() []corepkg.PackageId {
	out := make([]corepkg.PackageId, 0, len(r.byID)-1)
	for i := 1; i < len(r.byID); i++ {
		out = append(out, corepkg.PackageId(i))
	}
	return out
}

// HasInlineTest reports whether pkg's file has an inline test.
func (r *Result) HasInlineTest(id corepkg.PackageId, file string) bool {
	return r.InlineTestFiles[inlineKey(id, file)]
}

func inlineKey(id corepkg.PackageId, file string) string {
	return strconv.FormatUint(uint64(id), 10) + ":" + file
}

// Discover walks every module in env and returns the combined Result.
// stdlibModule, if non-empty, names the module whose packages get
// IsStdlib=true (spec §4.2).
func Discover(env *resolve.ResolvedEnv, stdlibModule corepkg.ModuleName) (*Result, error) {
	res := newResult()
	inputSet := make(map[corepkg.ModuleId]bool)
	for _, id := range env.Inputs() {
		inputSet[id] = true
	}

	for _, modID := range env.AllModules() {
		node := env.Node(modID)
		root := node.Dir
		if node.Manifest.Source != "" {
			root = filepath.Join(root, node.Manifest.Source)
		}

		dirs, err := findPackageDirs(root)
		if err != nil {
			return nil, errors.Wrapf(err, "walking module %s", node.Source.Name)
		}

		for _, dir := range dirs {
			pkg, err := discoverOne(node, dir, root)
			if err != nil {
				return nil, err
			}
			pkg.IsThirdParty = !inputSet[modID]
			pkg.IsStdlib = node.Source.Name == stdlibModule
			if dupID, dup := res.ByFQN(pkg.FQN.String()); dup {
				return nil, &corepkg.DuplicatePackageError{FQN: pkg.FQN, PathA: res.Package(dupID).RootPath, PathB: dir}
			}
			id := res.add(pkg)

			for _, f := range pkg.Files.Source {
				if hasInlineTest(filepath.Join(dir, f)) {
					res.InlineTestFiles[inlineKey(id, f)] = true
				}
			}
		}
	}

	return res, nil
}

// findPackageDirs returns every directory under root that contains a
// package manifest, walked with godirwalk (spec §4.2: "A package is
// the set of source files in a directory containing a package
// manifest").
func findPackageDirs(root string) ([]string, error) {
	var dirs []string
	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if !de.IsDir() {
				return nil
			}
			base := filepath.Base(path)
			if base == "target" || base == ".mooncakes" || strings.HasPrefix(base, ".") && path != root {
				return filepath.SkipDir
			}
			if _, err := os.Stat(filepath.Join(path, corecfg.PackageManifestName)); err == nil {
				dirs = append(dirs, path)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(dirs)
	return dirs, nil
}

func discoverOne(node *resolve.ModuleNode, dir, moduleRoot string) (*corepkg.DiscoveredPackage, error) {
	rel, err := filepath.Rel(moduleRoot, dir)
	if err != nil {
		return nil, err
	}
	var segments []string
	if rel != "." {
		segments = strings.Split(filepath.ToSlash(rel), "/")
	}
	path, err := corepkg.NewPackagePath(segments...)
	if err != nil {
		return nil, &corepkg.InvalidPackagePathError{Module: node.Source.Name, Segment: err.Error()}
	}

	manPath := filepath.Join(dir, corecfg.PackageManifestName)
	f, err := os.Open(manPath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", manPath)
	}
	defer f.Close()
	manifest, err := corecfg.ReadPackageManifest(f)
	if err != nil {
		return nil, &corepkg.MalformedManifestError{Path: manPath, Cause: err}
	}

	classified, err := classifyFiles(dir)
	if err != nil {
		return nil, err
	}

	pkg := &corepkg.DiscoveredPackage{
		RootPath: dir,
		Module:   node.ID,
		FQN:      corepkg.PackageFQN{Module: node.Source, Path: path},
		Files:    classified,
		Manifest: *manifest,
		IsMain:   manifest.IsMain,
	}
	pkg.IsVirtual = manifest.VirtualPkg != nil
	pkg.IsVirtualImpl = manifest.Implement != ""
	return pkg, nil
}

// classifyFiles partitions a package directory's files by suffix, per
// spec §4.2's classification table.
func classifyFiles(dir string) (corepkg.ClassifiedFiles, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return corepkg.ClassifiedFiles{}, errors.Wrapf(err, "reading %s", dir)
	}

	var out corepkg.ClassifiedFiles
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, "_wbtest.mbt"):
			out.WhiteboxTest = append(out.WhiteboxTest, name)
		case strings.HasSuffix(name, "_test.mbt"):
			out.BlackboxTest = append(out.BlackboxTest, name)
		case strings.HasSuffix(name, ".mbt.md"):
			out.Markdown = append(out.Markdown, name)
		case strings.HasSuffix(name, ".mbt"):
			out.Source = append(out.Source, name)
		case strings.HasSuffix(name, ".c"), strings.HasSuffix(name, ".h"):
			out.CStub = append(out.CStub, name)
		}
	}
	return out, nil
}

// hasInlineTest scans file line-for-line for the inline test
// declaration regex from spec §4.4.
func hasInlineTest(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if inlineTestRe.MatchString(strings.TrimSpace(scanner.Text())) {
			return true
		}
	}
	return false
}
