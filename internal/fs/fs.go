// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fs holds the small set of filesystem primitives the rest of
// the build pipeline needs: checking that a resolved module/package
// path is really a directory, and hashing a source tree for
// fingerprinting. Adapted down from the teacher's broader fs package,
// which also carried VCS-checkout helpers (CopyDir, RenameWithFallback,
// HasFilepathPrefix, long-path handling) this tool has no use for —
// there's no vendor/ directory to clone into here.
package fs

import (
	"os"

	"github.com/pkg/errors"
)

// IsDir determines whether name is an existing directory, per spec
// §4.1: a path dependency whose declared path doesn't resolve to a
// directory is a resolution error, not a silent skip.
func IsDir(name string) (bool, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return false, err
	}
	if !fi.IsDir() {
		return false, errors.Errorf("%q is not a directory", name)
	}
	return true, nil
}
