// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package corepkg holds the shared vocabulary of the build core: the
// arena-handle identity types and value types that every later stage
// (resolve, discover, solve, intent, planner, lower) passes between
// each other. Handles are small value types, not pointers, so stages
// can copy them freely without worrying about aliasing or cycles.
package corepkg

import (
	"fmt"
	"strings"
)

// ModuleId is an opaque arena handle into a resolve run's module table.
// It is cheap to copy and stable for the lifetime of one resolve.
type ModuleId uint32

// InvalidModuleId is the zero value, never assigned to a real module.
const InvalidModuleId ModuleId = 0

// PackageId is an opaque arena handle into a discover run's package table.
type PackageId uint32

// InvalidPackageId is the zero value, never assigned to a real package.
const InvalidPackageId PackageId = 0

// Origin is how a module's source was obtained.
type Origin uint8

const (
	OriginRegistry Origin = iota
	OriginLocalPath
	OriginGitRepo
)

func (o Origin) String() string {
	switch o {
	case OriginRegistry:
		return "registry"
	case OriginLocalPath:
		return "path"
	case OriginGitRepo:
		return "git"
	default:
		return "unknown"
	}
}

// ModuleName is "username/pkgname". Equality is structural.
type ModuleName struct {
	User string
	Pkg  string
}

func (m ModuleName) String() string {
	return m.User + "/" + m.Pkg
}

// ParseModuleName validates and splits "username/pkgname".
func ParseModuleName(s string) (ModuleName, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ModuleName{}, fmt.Errorf("malformed module name %q: want username/pkgname", s)
	}
	user, pkg := strings.ToLower(parts[0]), parts[1]
	if !isIdent(user) || !isIdent(pkg) {
		return ModuleName{}, fmt.Errorf("malformed module name %q: invalid characters", s)
	}
	return ModuleName{User: user, Pkg: pkg}, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// ModuleSource is the triple (ModuleName, Version, Origin). Two
// ModuleSources with the same name but different versions are distinct
// nodes in the resolved graph.
type ModuleSource struct {
	Name    ModuleName
	Version string
	Origin  Origin
}

func (s ModuleSource) String() string {
	return fmt.Sprintf("%s@%s", s.Name, s.Version)
}

// PackagePath is an ordered sequence of path segments locating a
// package inside a module. An empty sequence is the module root.
type PackagePath []string

var reservedSegments = map[string]bool{
	".":            true,
	"..":           true,
	"target":       true,
	".mooncakes":   true,
}

// NewPackagePath validates segments against the disallowed list.
func NewPackagePath(segments ...string) (PackagePath, error) {
	for _, s := range segments {
		if reservedSegments[s] {
			return nil, fmt.Errorf("invalid package path segment %q", s)
		}
	}
	out := make(PackagePath, len(segments))
	copy(out, segments)
	return out, nil
}

func (p PackagePath) String() string {
	return strings.Join(p, "/")
}

// ShortAlias is the package's default import alias: its last path
// segment, or the module's unqualified name when the path is empty.
func (p PackagePath) ShortAlias(mod ModuleName) string {
	if len(p) == 0 {
		return mod.Pkg
	}
	return p[len(p)-1]
}

// PackageFQN is the fully-qualified name of a package: its module
// source plus its path within that module.
type PackageFQN struct {
	Module ModuleSource
	Path   PackagePath
}

func (f PackageFQN) String() string {
	if len(f.Path) == 0 {
		return f.Module.Name.String()
	}
	return f.Module.Name.String() + "/" + f.Path.String()
}

// ShortAlias is the default import alias for this FQN.
func (f PackageFQN) ShortAlias() string {
	return f.Path.ShortAlias(f.Module.Name)
}

// TargetKind is which of the five compilation variants of a package is
// being produced. Exactly these five variants exist; their roles are
// fixed.
type TargetKind uint8

const (
	Source TargetKind = iota
	WhiteboxTest
	BlackboxTest
	InlineTest
	SubPackage
)

func (k TargetKind) String() string {
	switch k {
	case Source:
		return "source"
	case WhiteboxTest:
		return "whitebox-test"
	case BlackboxTest:
		return "blackbox-test"
	case InlineTest:
		return "inline-test"
	case SubPackage:
		return "sub-package"
	default:
		return "unknown-target-kind"
	}
}

// FileNameSuffix is the artifact basename suffix for this target kind,
// per the legacy-compatible layout: short_alias + suffix + ext.
func (k TargetKind) FileNameSuffix() string {
	switch k {
	case WhiteboxTest:
		return "_whitebox_test"
	case BlackboxTest:
		return "_blackbox_test"
	case InlineTest:
		return "_inline_test"
	case SubPackage:
		return "_sub"
	default:
		return ""
	}
}

// BuildTarget is (PackageId, TargetKind), the node granularity of the
// package dependency graph and the build plan.
type BuildTarget struct {
	Package PackageId
	Kind    TargetKind
}

func (t BuildTarget) String() string {
	return fmt.Sprintf("pkg#%d/%s", t.Package, t.Kind)
}

// DepEdge carries the short import alias to pass to the compiler.
// Edges originate from a BuildTarget and terminate at a BuildTarget.
type DepEdge struct {
	From  BuildTarget
	To    BuildTarget
	Alias string
}
