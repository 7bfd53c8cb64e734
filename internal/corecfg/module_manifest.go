// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package corecfg loads the two manifest document shapes described in
// spec §6: the per-module manifest and the per-package manifest, both
// JSON. The read path always goes through a "raw" JSON-tagged struct
// that is then validated and converted into the public typed struct,
// mirroring golang-dep's manifest.go rawManifest/Manifest split.
package corecfg

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/rupesrecta/corebuild/internal/corepkg"
)

const (
	ModuleManifestName  = "moon.mod.json"
	PackageManifestName = "moon.pkg.json"
)

// DepSource is the parsed form of one deps[...] entry: either a bare
// version-range string, or the long {version?, path?, git?, branch?,
// revision?} object.
type DepSource struct {
	VersionRange string
	Path         string
	Git          string
	Branch       string
	Revision     string
}

// Origin classifies which of path/git/registry this source selects,
// per spec §4.1.
func (d DepSource) Origin() corepkg.Origin {
	switch {
	case d.Path != "":
		return corepkg.OriginLocalPath
	case d.Git != "":
		return corepkg.OriginGitRepo
	default:
		return corepkg.OriginRegistry
	}
}

// ModuleManifest is the parsed form of moon.mod.json.
type ModuleManifest struct {
	Name            corepkg.ModuleName
	Version         string
	Deps            map[string]DepSource
	BinDeps         map[string]DepSource
	Readme          string
	Repository      string
	License         string
	Keywords        []string
	Description     string
	Source          string // subdirectory, default module root
	PreferredTarget string
	ExtraCompilerFlags string
	ExtraLinkFlags     string
}

type rawDepSource struct {
	Version  string `json:"version,omitempty"`
	Path     string `json:"path,omitempty"`
	Git      string `json:"git,omitempty"`
	Branch   string `json:"branch,omitempty"`
	Revision string `json:"revision,omitempty"`
}

type rawModuleManifest struct {
	Name               string                  `json:"name"`
	Version            string                  `json:"version,omitempty"`
	Deps               json.RawMessage         `json:"deps,omitempty"`
	BinDeps            json.RawMessage         `json:"bin-deps,omitempty"`
	Readme             string                  `json:"readme,omitempty"`
	Repository         string                  `json:"repository,omitempty"`
	License            string                  `json:"license,omitempty"`
	Keywords           []string                `json:"keywords,omitempty"`
	Description        string                  `json:"description,omitempty"`
	Source             string                  `json:"source,omitempty"`
	PreferredTarget    string                  `json:"preferred-target,omitempty"`
	ExtraCompilerFlags string                  `json:"extra-compiler-flags,omitempty"`
	ExtraLinkFlags     string                  `json:"extra-link-flags,omitempty"`
}

// ReadModuleManifest parses a moon.mod.json document.
func ReadModuleManifest(r io.Reader) (*ModuleManifest, error) {
	raw := rawModuleManifest{}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decoding module manifest")
	}

	name, err := corepkg.ParseModuleName(raw.Name)
	if err != nil {
		return nil, errors.Wrap(err, "module manifest name")
	}

	deps, err := decodeDepMap(raw.Deps)
	if err != nil {
		return nil, errors.Wrap(err, "module manifest deps")
	}
	binDeps, err := decodeDepMap(raw.BinDeps)
	if err != nil {
		return nil, errors.Wrap(err, "module manifest bin-deps")
	}

	return &ModuleManifest{
		Name:               name,
		Version:            raw.Version,
		Deps:                deps,
		BinDeps:             binDeps,
		Readme:              raw.Readme,
		Repository:          raw.Repository,
		License:             raw.License,
		Keywords:            raw.Keywords,
		Description:         raw.Description,
		Source:              raw.Source,
		PreferredTarget:     raw.PreferredTarget,
		ExtraCompilerFlags:  raw.ExtraCompilerFlags,
		ExtraLinkFlags:      raw.ExtraLinkFlags,
	}, nil
}

// decodeDepMap handles the union type: each value is either a bare
// string (a version range) or an object with path/git/branch/revision.
func decodeDepMap(raw json.RawMessage) (map[string]DepSource, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var asObjects map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asObjects); err != nil {
		return nil, err
	}
	out := make(map[string]DepSource, len(asObjects))
	for name, v := range asObjects {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[name] = DepSource{VersionRange: s}
			continue
		}
		var rd rawDepSource
		if err := json.Unmarshal(v, &rd); err != nil {
			return nil, errors.Wrapf(err, "dep entry %q is neither a string nor an object", name)
		}
		out[name] = DepSource{
			VersionRange: rd.Version,
			Path:         rd.Path,
			Git:          rd.Git,
			Branch:       rd.Branch,
			Revision:     rd.Revision,
		}
	}
	return out, nil
}

// MarshalJSON writes the manifest back out, matching the teacher's
// encode-with-indent convention.
func (m *ModuleManifest) MarshalJSON() ([]byte, error) {
	raw := rawModuleManifest{
		Name:               m.Name.String(),
		Version:            m.Version,
		Readme:             m.Readme,
		Repository:         m.Repository,
		License:            m.License,
		Keywords:           m.Keywords,
		Description:        m.Description,
		Source:             m.Source,
		PreferredTarget:    m.PreferredTarget,
		ExtraCompilerFlags: m.ExtraCompilerFlags,
		ExtraLinkFlags:     m.ExtraLinkFlags,
	}
	if len(m.Deps) > 0 {
		depsRaw := make(map[string]rawDepSource, len(m.Deps))
		for k, v := range m.Deps {
			depsRaw[k] = rawDepSource{Version: v.VersionRange, Path: v.Path, Git: v.Git, Branch: v.Branch, Revision: v.Revision}
		}
		b, err := json.Marshal(depsRaw)
		if err != nil {
			return nil, err
		}
		raw.Deps = b
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
