// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fingerprint implements C9: the whole-workspace fingerprint
// gate. Before the executor trusts any persisted per-target
// fingerprint record, it compares a freshly computed Fingerprint
// (tool version, compiler version, every module manifest's content
// hash, and a content hash of each source root's tree) against what's
// on disk; a mismatch wipes the target directory (short of the PID
// file) and starts clean. Grounded on the teacher's hash.go content
// hashing: manifests get the file-level sha256 hash.go itself doesn't
// provide, while each source root's tree hash is computed with
// hash.go's own HashFromNode (unmodified — its breadth-first,
// sorted-children, pathname-and-content traversal is exactly "does
// this tree look the same as last time", generalized here from one
// dependency's source tree to one module's whole source root).
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/rupesrecta/corebuild/internal/fs"
)

// Fingerprint is the set of inputs a workspace's build is sensitive
// to beyond the sources the planner already tracks per-target: the
// tool and compiler versions, the content hash of every module
// manifest reachable from the root (a changed manifest can add/remove
// dependencies or override rules that no per-file fingerprint would
// catch), and a tree hash of every module's source root.
type Fingerprint struct {
	ToolVersion     string            `json:"tool_version"`
	CompilerVersion string            `json:"compiler_version"`
	ManifestHashes  map[string]string `json:"manifest_hashes"`   // manifest path -> sha256 hex
	SourceTreeHashes map[string]string `json:"source_tree_hashes"` // root path -> HashFromNode hex
}

// Compute hashes every manifest file found at the given paths, hashes
// every source root's tree with fs.HashFromNode, and returns the
// resulting Fingerprint.
func Compute(toolVersion, compilerVersion string, manifestPaths, sourceRoots []string) (Fingerprint, error) {
	hashes := make(map[string]string, len(manifestPaths))
	for _, p := range manifestPaths {
		h, err := hashFile(p)
		if err != nil {
			return Fingerprint{}, errors.Wrapf(err, "hash manifest %s", p)
		}
		hashes[p] = h
	}

	treeHashes := make(map[string]string, len(sourceRoots))
	roots := append([]string{}, sourceRoots...)
	sort.Strings(roots)
	for _, root := range roots {
		h, err := fs.HashFromNode(filepath.Dir(root), filepath.Base(root))
		if err != nil {
			return Fingerprint{}, errors.Wrapf(err, "hash source root %s", root)
		}
		treeHashes[root] = h
	}

	return Fingerprint{
		ToolVersion:      toolVersion,
		CompilerVersion:  compilerVersion,
		ManifestHashes:   hashes,
		SourceTreeHashes: treeHashes,
	}, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "open")
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrap(err, "read")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Equal reports whether two fingerprints describe the same workspace
// state. Map comparison is order-independent by construction.
func (f Fingerprint) Equal(other Fingerprint) bool {
	if f.ToolVersion != other.ToolVersion || f.CompilerVersion != other.CompilerVersion {
		return false
	}
	if len(f.SourceTreeHashes) != len(other.SourceTreeHashes) {
		return false
	}
	for k, v := range f.SourceTreeHashes {
		if other.SourceTreeHashes[k] != v {
			return false
		}
	}
	if len(f.ManifestHashes) != len(other.ManifestHashes) {
		return false
	}
	for k, v := range f.ManifestHashes {
		if other.ManifestHashes[k] != v {
			return false
		}
	}
	return true
}

// Record is the on-disk persisted form: the fingerprint plus the
// generation counter it was saved at.
type Record struct {
	Generation  uint64      `json:"generation"`
	Fingerprint Fingerprint `json:"fingerprint"`
}

// recordPath is the fingerprint file's location within a target
// directory, matching the teacher's own single-file-per-concern
// layout instinct (no embedded DB engine, since nothing else in this
// workspace needs one).
func recordPath(targetDir string) string {
	return filepath.Join(targetDir, "fingerprint.json")
}

// Load reads the persisted Record for targetDir. A missing file is
// not an error: it reports ok=false so the caller treats it as "no
// prior build", not as a failure.
func Load(targetDir string) (rec Record, ok bool, err error) {
	f, err := os.Open(recordPath(targetDir))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, false, nil
		}
		return Record{}, false, errors.Wrap(err, "open fingerprint record")
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&rec); err != nil {
		return Record{}, false, errors.Wrap(err, "decode fingerprint record")
	}
	return rec, true, nil
}

// Save persists rec to targetDir, creating targetDir if needed.
func Save(targetDir string, rec Record) error {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return errors.Wrap(err, "create target dir")
	}
	f, err := os.Create(recordPath(targetDir))
	if err != nil {
		return errors.Wrap(err, "create fingerprint record")
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(rec), "encode fingerprint record")
}

// Gate compares want against what's persisted in targetDir. If they
// match, it reports ok=true and leaves the target directory alone. If
// they don't match (or nothing was persisted yet), it wipes
// targetDir's contents (preserving only a running PID file, which a
// concurrent invocation of this same tool may depend on) and persists
// want as the new baseline at the next generation.
func Gate(targetDir, pidFileName string, want Fingerprint) (ok bool, err error) {
	rec, found, err := Load(targetDir)
	if err != nil {
		return false, err
	}
	if found && rec.Fingerprint.Equal(want) {
		return true, nil
	}

	generation := uint64(0)
	if found {
		generation = rec.Generation + 1
	}

	if err := wipeExcept(targetDir, pidFileName); err != nil {
		return false, errors.Wrap(err, "wipe stale target dir")
	}
	if err := Save(targetDir, Record{Generation: generation, Fingerprint: want}); err != nil {
		return false, err
	}
	return false, nil
}

func wipeExcept(dir, keep string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.Name() == keep {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("remove %s: %w", e.Name(), err)
		}
	}
	return nil
}
