// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corecfg

import (
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// FrontMatterImport is one import declared in a single-file-mode
// source file's leading "//moon:import" comment block (see SPEC_FULL.md
// "Supplemented features"). Single-file mode otherwise excludes all
// stdlib packages to avoid alias collisions (spec §9 open question);
// this lets a loose .mbt file opt a stdlib package back in explicitly.
type FrontMatterImport struct {
	Path  string
	Alias string
}

// ParseFrontMatter extracts the TOML body of a leading
// "//moon:import\n// <toml>\n" comment block from source text, if
// present. It reuses go-toml's tree query helper the same way the
// teacher's toml.go reads manifest tables, because the shape (a small
// array-of-tables under one key) is identical.
func ParseFrontMatter(source string) ([]FrontMatterImport, error) {
	const marker = "//moon:import"
	idx := strings.Index(source, marker)
	if idx < 0 {
		return nil, nil
	}
	rest := source[idx+len(marker):]
	var lines []string
	for _, line := range strings.Split(rest, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "//") {
			break
		}
		lines = append(lines, strings.TrimPrefix(trimmed, "//"))
	}
	body := strings.Join(lines, "\n")

	tree, err := toml.Load(body)
	if err != nil {
		return nil, errors.Wrap(err, "parsing //moon:import front-matter")
	}

	query, err := tree.Query("$.import")
	if err != nil || len(query.Values()) == 0 {
		return nil, nil
	}
	tables, ok := query.Values()[0].([]*toml.TomlTree)
	if !ok {
		return nil, errors.New("//moon:import front-matter: [[import]] must be an array of tables")
	}

	out := make([]FrontMatterImport, 0, len(tables))
	for _, t := range tables {
		path, _ := t.Get("path").(string)
		alias, _ := t.Get("alias").(string)
		if path == "" {
			continue
		}
		out = append(out, FrontMatterImport{Path: path, Alias: alias})
	}
	return out, nil
}
