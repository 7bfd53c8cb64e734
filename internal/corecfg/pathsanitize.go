// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corecfg

import (
	"strings"

	"github.com/rupesrecta/corebuild/internal/corepkg"
)

// newPathSanitizer mirrors the teacher's sanitizer
// (strings.NewReplacer("-", "--", ":", "-", "/", "-", "+", "-")) used
// to compute a friendly filepath from a URL-shaped input.
func newPathSanitizer() *strings.Replacer {
	return strings.NewReplacer("-", "--", ":", "-", "/", "-", "+", "-")
}

// SanitizeModuleDirName turns a ModuleName into a filesystem-safe
// directory component.
func SanitizeModuleDirName(name corepkg.ModuleName) string {
	return sanitizeForPath(name.String())
}
