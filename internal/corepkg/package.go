// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corepkg

// ImportSpec is one entry of a package manifest's import list: either
// a bare FQN string or the long form {path, alias, sub_package}.
type ImportSpec struct {
	Path       string // FQN string form
	Alias      string // explicit alias, empty if default
	SubPackage bool   // import targets the SubPackage kind, not Source
}

// LinkOptions carries backend-specific link options from a package
// manifest's "link" field.
type LinkOptions struct {
	Native *NativeLinkOptions
	Wasm   *WasmLinkOptions
	Js     *JsLinkOptions
}

type NativeLinkOptions struct {
	CC       string
	CCFlags  string
	Stub     []string
}

type WasmLinkOptions struct {
	ExportMemoryName string
	ImportMemory     bool
	Exports          []string
}

type JsLinkOptions struct {
	Format  string
	Exports []string
}

// BuildScript is a pre-build or post-build rule: {input, output, command}.
type BuildScript struct {
	Input   []string
	Output  []string
	Command string
}

// VirtualSpec is a package's "virtual-pkg" manifest field.
type VirtualSpec struct {
	HasDefault bool
}

// SubPackageSpec is a package's "sub-package" manifest field.
type SubPackageSpec struct {
	Files  []string
	Import []ImportSpec
}

// CompileCondition is the (backends, opt-levels) tag pair a source
// file carries. A nil/empty slice means "all backends"/"all levels".
type CompileCondition struct {
	Backends  []string
	OptLevels []string
}

// Included reports whether the given backend/opt-level combination is
// in this condition's tag set. Empty sets mean "all".
func (c CompileCondition) Included(backend, optLevel string) bool {
	if len(c.Backends) > 0 && !containsStr(c.Backends, backend) {
		return false
	}
	if len(c.OptLevels) > 0 && !containsStr(c.OptLevels, optLevel) {
		return false
	}
	return true
}

func containsStr(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

// PackageManifest is the parsed per-package manifest (package.json-ish
// document, see spec §6).
type PackageManifest struct {
	IsMain           bool
	ForceLink        bool
	Import           []ImportSpec
	TestImport       []ImportSpec
	WbtestImport     []ImportSpec
	SubPackage       *SubPackageSpec
	Link             LinkOptions
	WarnList         string
	AlertList        string
	Targets          map[string]CompileCondition // filename -> condition
	PreBuild         []BuildScript
	PostBuild        []BuildScript
	BinName          string
	BinTarget        string
	SupportedTargets []string
	NativeStub       []string
	VirtualPkg       *VirtualSpec
	Implement        string // "virtual-pkg-fqn"
	Overrides        []string
}

// ClassifiedFiles groups a package's on-disk files by the classification
// rules in spec §4.2.
type ClassifiedFiles struct {
	Source      []string // *.mbt
	WhiteboxTest []string // *_wbtest.mbt
	BlackboxTest []string // *_test.mbt
	Markdown     []string // *.mbt.md
	CStub        []string // *.c, *.h
}

// DiscoveredPackage is one package found by the discoverer (C2).
type DiscoveredPackage struct {
	ID       PackageId
	RootPath string
	Module   ModuleId
	FQN      PackageFQN
	Files    ClassifiedFiles
	Manifest PackageManifest

	IsMain         bool
	IsVirtual      bool
	IsVirtualImpl  bool
	HasImplementation bool
	IsThirdParty   bool
	IsStdlib       bool
}
