// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corecfg

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Config is the invocation-wide configuration, grounded on the
// teacher's Ctx struct (context.go): one small struct threaded through
// every stage instead of ambient globals.
type Config struct {
	WorkDir    string // --directory/-C
	TargetDir  string // --target-dir, default <root>/target
	MoonHome   string // $MOON_HOME, default $HOME/.moon
	Registry   string // $MOONCAKES_REGISTRY
	Frozen     bool   // forbid network
	LoadDefaults bool // fold in platform stdlib
	Quiet      bool
	Verbose    bool
	DryRun     bool
	Parallelism int
	FailuresLeft int // spec §7: halt scheduling after this many task failures; 0 = unbounded
}

// NewConfig builds a Config rooted at the current working directory,
// resolving MOON_HOME/MOONCAKES_REGISTRY the way the teacher's
// NewContext resolves GOPATH.
func NewConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "getting work directory")
	}

	home := os.Getenv("MOON_HOME")
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "resolving MOON_HOME default")
		}
		home = filepath.Join(userHome, ".moon")
	}

	return &Config{
		WorkDir:      wd,
		TargetDir:    filepath.Join(wd, "target"),
		MoonHome:     home,
		Registry:     os.Getenv("MOONCAKES_REGISTRY"),
		FailuresLeft: 1,
		Parallelism:  0, // 0 means "detect CPU count", resolved by cmd/rr before building the executor
	}, nil
}

// RegistryIndexPath is where $MOON_HOME/registry/index/user/<user>/<pkg>.index lives.
func (c *Config) RegistryIndexPath(user, pkg string) string {
	return filepath.Join(c.MoonHome, "registry", "index", "user", user, pkg+".index")
}

// CachePath is where $MOON_HOME/cache/<user>/<pkg>/<version>.zip lives.
func (c *Config) CachePath(user, pkg, version string) string {
	return filepath.Join(c.MoonHome, "cache", user, pkg, version+".zip")
}

// GitCachePath is the bare-repo cache directory for a git dependency,
// keyed by (url, ref) as spec §4.1 requires.
func (c *Config) GitCachePath(url, ref string) string {
	return filepath.Join(c.MoonHome, "git-cache", sanitizeForPath(url)+"@"+sanitizeForPath(ref))
}

var sanitizer = newPathSanitizer()

func sanitizeForPath(s string) string {
	return sanitizer.Replace(s)
}
