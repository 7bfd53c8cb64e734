// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corecfg

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/rupesrecta/corebuild/internal/corepkg"
)

type rawImportSpec struct {
	asString *string
	Path     string `json:"path"`
	Alias    string `json:"alias,omitempty"`
	SubPkg   bool   `json:"sub-package,omitempty"`
}

func (r *rawImportSpec) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		r.asString = &s
		r.Path = s
		return nil
	}
	type alias rawImportSpec
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*r = rawImportSpec(a)
	return nil
}

func toImportSpecs(raws []rawImportSpec) []corepkg.ImportSpec {
	out := make([]corepkg.ImportSpec, len(raws))
	for i, r := range raws {
		out[i] = corepkg.ImportSpec{Path: r.Path, Alias: r.Alias, SubPackage: r.SubPkg}
	}
	return out
}

type rawLinkOptions struct {
	Native *struct {
		CC      string   `json:"cc,omitempty"`
		CCFlags string   `json:"cc-flags,omitempty"`
		Stub    []string `json:"stub,omitempty"`
	} `json:"native,omitempty"`
	Wasm *struct {
		ExportMemoryName string   `json:"export-memory-name,omitempty"`
		ImportMemory     bool     `json:"import-memory,omitempty"`
		Exports          []string `json:"exports,omitempty"`
	} `json:"wasm,omitempty"`
	Js *struct {
		Format  string   `json:"format,omitempty"`
		Exports []string `json:"exports,omitempty"`
	} `json:"js,omitempty"`
}

type rawBuildScript struct {
	Input   []string `json:"input,omitempty"`
	Output  []string `json:"output,omitempty"`
	Command string   `json:"command"`
}

type rawSubPackage struct {
	Files  []string        `json:"files,omitempty"`
	Import []rawImportSpec `json:"import,omitempty"`
}

type rawVirtualPkg struct {
	HasDefault bool `json:"has-default,omitempty"`
}

type rawCompileCondition struct {
	Backends  []string `json:"backends,omitempty"`
	OptLevels []string `json:"opt-levels,omitempty"`
}

type rawPackageManifest struct {
	IsMain           bool                            `json:"is-main,omitempty"`
	ForceLink        bool                            `json:"force-link,omitempty"`
	Import           []rawImportSpec                 `json:"import,omitempty"`
	TestImport       []rawImportSpec                 `json:"test-import,omitempty"`
	WbtestImport     []rawImportSpec                 `json:"wbtest-import,omitempty"`
	SubPackage       *rawSubPackage                  `json:"sub-package,omitempty"`
	Link             *rawLinkOptions                 `json:"link,omitempty"`
	WarnList         string                          `json:"warn-list,omitempty"`
	AlertList        string                          `json:"alert-list,omitempty"`
	Targets          map[string]rawCompileCondition  `json:"targets,omitempty"`
	PreBuild         []rawBuildScript                `json:"pre-build,omitempty"`
	PostBuild        []rawBuildScript                `json:"post-build,omitempty"`
	BinName          string                          `json:"bin-name,omitempty"`
	BinTarget        string                          `json:"bin-target,omitempty"`
	SupportedTargets []string                        `json:"supported-targets,omitempty"`
	NativeStub       []string                        `json:"native-stub,omitempty"`
	VirtualPkg       *rawVirtualPkg                  `json:"virtual-pkg,omitempty"`
	Implement        string                          `json:"implement,omitempty"`
	Overrides        []string                        `json:"overrides,omitempty"`
}

// ReadPackageManifest parses a moon.pkg.json document into the shared
// corepkg.PackageManifest representation used by the discoverer (C2)
// and solver (C3).
func ReadPackageManifest(r io.Reader) (*corepkg.PackageManifest, error) {
	var raw rawPackageManifest
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decoding package manifest")
	}

	m := &corepkg.PackageManifest{
		IsMain:           raw.IsMain,
		ForceLink:        raw.ForceLink,
		Import:           toImportSpecs(raw.Import),
		TestImport:       toImportSpecs(raw.TestImport),
		WbtestImport:     toImportSpecs(raw.WbtestImport),
		WarnList:         raw.WarnList,
		AlertList:        raw.AlertList,
		BinName:          raw.BinName,
		BinTarget:        raw.BinTarget,
		SupportedTargets: raw.SupportedTargets,
		NativeStub:       raw.NativeStub,
		Implement:        raw.Implement,
		Overrides:        raw.Overrides,
	}

	if raw.SubPackage != nil {
		m.SubPackage = &corepkg.SubPackageSpec{
			Files:  raw.SubPackage.Files,
			Import: toImportSpecs(raw.SubPackage.Import),
		}
	}
	if raw.VirtualPkg != nil {
		m.VirtualPkg = &corepkg.VirtualSpec{HasDefault: raw.VirtualPkg.HasDefault}
	}
	if raw.Link != nil {
		if raw.Link.Native != nil {
			m.Link.Native = &corepkg.NativeLinkOptions{CC: raw.Link.Native.CC, CCFlags: raw.Link.Native.CCFlags, Stub: raw.Link.Native.Stub}
		}
		if raw.Link.Wasm != nil {
			m.Link.Wasm = &corepkg.WasmLinkOptions{ExportMemoryName: raw.Link.Wasm.ExportMemoryName, ImportMemory: raw.Link.Wasm.ImportMemory, Exports: raw.Link.Wasm.Exports}
		}
		if raw.Link.Js != nil {
			m.Link.Js = &corepkg.JsLinkOptions{Format: raw.Link.Js.Format, Exports: raw.Link.Js.Exports}
		}
	}
	if len(raw.Targets) > 0 {
		m.Targets = make(map[string]corepkg.CompileCondition, len(raw.Targets))
		for file, cond := range raw.Targets {
			m.Targets[file] = corepkg.CompileCondition{Backends: cond.Backends, OptLevels: cond.OptLevels}
		}
	}
	for _, s := range raw.PreBuild {
		m.PreBuild = append(m.PreBuild, corepkg.BuildScript{Input: s.Input, Output: s.Output, Command: s.Command})
	}
	for _, s := range raw.PostBuild {
		m.PostBuild = append(m.PostBuild, corepkg.BuildScript{Input: s.Input, Output: s.Output, Command: s.Command})
	}

	return m, nil
}
