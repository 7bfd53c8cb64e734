// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corepkg

import "testing"

func TestParseModuleName(t *testing.T) {
	cases := []struct {
		in      string
		want    ModuleName
		wantErr bool
	}{
		{"moonbitlang/core", ModuleName{User: "moonbitlang", Pkg: "core"}, false},
		{"Foo-Bar/baz_qux", ModuleName{User: "foo-bar", Pkg: "baz_qux"}, false},
		{"noSlash", ModuleName{}, true},
		{"too/many/slashes", ModuleName{}, true},
		{"/emptyuser", ModuleName{}, true},
		{"user/", ModuleName{}, true},
		{"user/pkg name", ModuleName{}, true},
	}
	for _, c := range cases {
		got, err := ParseModuleName(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseModuleName(%q): want error, got %v", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseModuleName(%q): unexpected error %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseModuleName(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestModuleNameString(t *testing.T) {
	m := ModuleName{User: "moonbitlang", Pkg: "core"}
	if got, want := m.String(), "moonbitlang/core"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestPackagePathShortAlias(t *testing.T) {
	mod := ModuleName{User: "moonbitlang", Pkg: "core"}

	root, err := NewPackagePath()
	if err != nil {
		t.Fatalf("NewPackagePath(): %v", err)
	}
	if got, want := root.ShortAlias(mod), "core"; got != want {
		t.Errorf("root.ShortAlias() = %q, want %q", got, want)
	}

	nested, err := NewPackagePath("immut", "list")
	if err != nil {
		t.Fatalf("NewPackagePath(immut, list): %v", err)
	}
	if got, want := nested.ShortAlias(mod), "list"; got != want {
		t.Errorf("nested.ShortAlias() = %q, want %q", got, want)
	}
}

func TestNewPackagePathRejectsReservedSegments(t *testing.T) {
	for _, bad := range []string{".", "..", "target", ".mooncakes"} {
		if _, err := NewPackagePath(bad); err == nil {
			t.Errorf("NewPackagePath(%q): want error, got nil", bad)
		}
	}
}

func TestPackageFQNString(t *testing.T) {
	fqn := PackageFQN{
		Module: ModuleSource{Name: ModuleName{User: "moonbitlang", Pkg: "core"}, Version: "0.1.0"},
	}
	if got, want := fqn.String(), "moonbitlang/core"; got != want {
		t.Errorf("root FQN String() = %q, want %q", got, want)
	}

	path, _ := NewPackagePath("immut", "list")
	fqn.Path = path
	if got, want := fqn.String(), "moonbitlang/core/immut/list"; got != want {
		t.Errorf("nested FQN String() = %q, want %q", got, want)
	}
	if got, want := fqn.ShortAlias(), "list"; got != want {
		t.Errorf("ShortAlias() = %q, want %q", got, want)
	}
}

func TestTargetKindFileNameSuffix(t *testing.T) {
	cases := []struct {
		kind TargetKind
		want string
	}{
		{Source, ""},
		{WhiteboxTest, "_whitebox_test"},
		{BlackboxTest, "_blackbox_test"},
		{InlineTest, "_inline_test"},
		{SubPackage, "_sub"},
	}
	for _, c := range cases {
		if got := c.kind.FileNameSuffix(); got != c.want {
			t.Errorf("%v.FileNameSuffix() = %q, want %q", c.kind, got, c.want)
		}
	}
}

func TestOriginString(t *testing.T) {
	cases := []struct {
		o    Origin
		want string
	}{
		{OriginRegistry, "registry"},
		{OriginLocalPath, "path"},
		{OriginGitRepo, "git"},
		{Origin(99), "unknown"},
	}
	for _, c := range cases {
		if got := c.o.String(); got != c.want {
			t.Errorf("Origin(%d).String() = %q, want %q", c.o, got, c.want)
		}
	}
}
