// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiffStrings(t *testing.T) {
	if _, equal := Diff("hello", "hello"); !equal {
		t.Errorf("Diff(hello, hello): equal=false, want true")
	}
	if _, equal := Diff("hello", "goodbye"); equal {
		t.Errorf("Diff(hello, goodbye): equal=true, want false")
	}
}

func TestDiffStructs(t *testing.T) {
	type point struct{ X, Y int }
	if _, equal := Diff(point{1, 2}, point{1, 2}); !equal {
		t.Errorf("Diff on identical structs: equal=false, want true")
	}
	if _, equal := Diff(point{1, 2}, point{1, 3}); equal {
		t.Errorf("Diff on differing structs: equal=true, want false")
	}
}

func TestGoldenFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.golden")

	*UpdateGolden = true
	GoldenFile(t, path, []byte("generated content"))
	*UpdateGolden = false

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile after -update write: %v", err)
	}
	if string(got) != "generated content" {
		t.Fatalf("golden file contents = %q, want %q", got, "generated content")
	}

	// A second GoldenFile call without -update compares against what
	// was just written and must pass silently.
	GoldenFile(t, path, []byte("generated content"))
}

func TestTempWorkspaceWritesNestedFiles(t *testing.T) {
	dir := TempWorkspace(t, map[string]string{
		"moon.mod.json":   `{"name":"a/b"}`,
		"src/lib.mbt":     "fn main { 1 }",
		"src/nested/x.mbt": "fn f() { 1 }",
	})
	for _, rel := range []string{"moon.mod.json", "src/lib.mbt", "src/nested/x.mbt"} {
		if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
			t.Errorf("expected fixture file %s to exist: %v", rel, err)
		}
	}
}

func TestLogWriterDropsBlankLines(t *testing.T) {
	w := LogWriter{TB: t}
	n, err := w.Write([]byte("first line\n\nsecond line\n"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len("first line\n\nsecond line\n") {
		t.Errorf("Write returned n=%d, want len of input", n)
	}
}
