// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package testutil adapts the teacher's test-tooling idiom (fixture
// diffing, golden-file comparison with a -update flag) to this
// module's own fixtures: discovered-package trees, build plans, and
// lowered executor graphs, none of which the teacher's own test
// package knew about. Grounded on internal/test/diff.go and
// internal/test/test.go's golden-file conventions.
package testutil

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"github.com/d4l3k/messagediff"
	"github.com/pkg/errors"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// UpdateGolden controls whether golden fixtures get overwritten with
// actual output instead of compared against it, matching the
// teacher's own `-update` flag name and semantics.
var UpdateGolden = flag.Bool("update", false, "update golden fixtures instead of comparing against them")

// Diff compares two values and renders a human-readable diff; string
// inputs get a line-level diff via diffmatchpatch, everything else
// gets a structural diff via messagediff, exactly as diff.go does.
func Diff(want, got interface{}) (diff string, equal bool) {
	ws, wok := want.(string)
	gs, gok := got.(string)
	if wok && gok {
		dmp := diffmatchpatch.New()
		d := dmp.DiffMain(ws, gs, false)
		return dmp.DiffPrettyText(d), ws == gs
	}
	return messagediff.PrettyDiff(want, got)
}

// AssertEqual fails t with a rendered diff if want != got.
func AssertEqual(t *testing.T, want, got interface{}) {
	t.Helper()
	if diff, equal := Diff(want, got); !equal {
		t.Errorf("mismatch:\n%s", diff)
	}
}

// GoldenFile compares got against the contents of path. With
// -update, it writes got to path instead and passes unconditionally
// — the teacher's exact golden-file-regeneration workflow, just
// pointed at this module's own fixture format (plan/lowering dumps)
// rather than Gopkg.lock snapshots.
func GoldenFile(t *testing.T, path string, got []byte) {
	t.Helper()
	if *UpdateGolden {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("%+v", errors.Wrapf(err, "create golden fixture dir for %s", path))
		}
		if err := os.WriteFile(path, got, 0o644); err != nil {
			t.Fatalf("%+v", errors.Wrapf(err, "write golden fixture %s", path))
		}
		return
	}

	want, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("%+v", errors.Wrapf(err, "read golden fixture %s (run with -update to create it)", path))
	}
	AssertEqual(t, string(want), string(got))
}

// TempWorkspace creates a temporary directory seeded with files
// (relative path -> contents), returning its absolute path.
// t.Cleanup removes it.
func TempWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("%+v", errors.Wrapf(err, "mkdir for fixture %s", rel))
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("%+v", errors.Wrapf(err, "write fixture %s", rel))
		}
	}
	return dir
}

// LogWriter adapts a testing.TB to io.Writer, so an *Executor or
// *corelog.Logger can be pointed at t.Log during a test instead of
// stderr. Blank lines are dropped; trailing whitespace is trimmed.
type LogWriter struct {
	testing.TB
}

func (w LogWriter) Write(b []byte) (n int, err error) {
	for _, part := range strings.Split(string(b), "\n") {
		if line := strings.TrimRightFunc(part, unicode.IsSpace); line != "" {
			w.Log(line)
		}
	}
	return len(b), nil
}
