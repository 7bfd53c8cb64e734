// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lower implements C6: it lowers one realized build plan
// (planner.Plan) into an executor graph of corepkg.ExecNode, computing
// the legacy-compatible artifact layout, the five compiler command
// abstractions' argv, and pre/post-build script substitution. Grounded
// on the teacher's fs.go path-handling helpers, generalized from
// "where does a fetched module live in the cache" to "where does this
// target's compiled artifact live in target_dir".
package lower

import (
	"path"
	"runtime"
	"strings"

	"github.com/rupesrecta/corebuild/internal/corepkg"
	"github.com/rupesrecta/corebuild/internal/discover"
	"github.com/rupesrecta/corebuild/internal/resolve"
)

// Config carries the invocation-wide settings lowering needs that the
// planner doesn't: the target directory root, backend/opt-level/run-mode
// (which together select the layout's first three path segments), and
// the compiler binary paths.
type Config struct {
	TargetDir    string
	Backend      string
	OptLevel     string
	RunMode      string // "debug", "release", "test", ...
	Windows      bool
	CompilerPath string // defaults to "moonc" if empty
	MoonBinDir   string
}

func (c Config) compiler() string {
	if c.CompilerPath != "" {
		return c.CompilerPath
	}
	return "moonc"
}

// exeExt returns this config's executable filename extension.
func (c Config) exeExt() string {
	if c.Windows {
		return ".exe"
	}
	return ""
}

func (c Config) linkedExt() string {
	switch c.Backend {
	case "wasm", "wasm-gc":
		return ".wasm"
	case "js":
		return ".js"
	case "native":
		return ".c"
	case "llvm":
		if c.Windows {
			return ".obj"
		}
		return ".o"
	default:
		return ""
	}
}

// ArtifactDir returns the directory a package's compiled artifacts
// live in, per spec §4.6's legacy-compatible layout.
func ArtifactDir(cfg Config, env *resolve.ResolvedEnv, pkg *corepkg.DiscoveredPackage) string {
	base := path.Join(cfg.TargetDir, cfg.Backend, cfg.OptLevel, cfg.RunMode)
	if pkg.IsThirdParty {
		modNode := env.Node(pkg.Module)
		base = path.Join(base, ".mooncakes", sanitizedModuleDir(modNode.Source.Name))
	}
	return path.Join(base, pkg.FQN.Path.String())
}

func sanitizedModuleDir(name corepkg.ModuleName) string {
	return strings.ReplaceAll(name.String(), "/", "_")
}

// ArtifactBasename is "short_alias + suffix", per spec §4.6's basename
// rule; the caller appends the extension for the artifact kind.
func ArtifactBasename(pkg *corepkg.DiscoveredPackage, kind corepkg.TargetKind) string {
	return pkg.FQN.ShortAlias() + kind.FileNameSuffix()
}

// ArtifactPath joins ArtifactDir, ArtifactBasename, and ext.
func ArtifactPath(cfg Config, env *resolve.ResolvedEnv, pkg *corepkg.DiscoveredPackage, kind corepkg.TargetKind, ext string) string {
	return path.Join(ArtifactDir(cfg, env, pkg), ArtifactBasename(pkg, kind)+ext)
}

// CorePath, MiPath, LinkedPath, and ExecutablePath name one target's
// artifact of each respective kind.
func CorePath(cfg Config, env *resolve.ResolvedEnv, res *discover.Result, t corepkg.BuildTarget) string {
	return ArtifactPath(cfg, env, res.Package(t.Package), t.Kind, ".core")
}

func MiPath(cfg Config, env *resolve.ResolvedEnv, res *discover.Result, t corepkg.BuildTarget) string {
	return ArtifactPath(cfg, env, res.Package(t.Package), t.Kind, ".mi")
}

func LinkedPath(cfg Config, env *resolve.ResolvedEnv, res *discover.Result, t corepkg.BuildTarget) string {
	return ArtifactPath(cfg, env, res.Package(t.Package), t.Kind, cfg.linkedExt())
}

func ExecutablePath(cfg Config, env *resolve.ResolvedEnv, res *discover.Result, t corepkg.BuildTarget) string {
	return ArtifactPath(cfg, env, res.Package(t.Package), t.Kind, cfg.exeExt())
}

func MbtiPath(cfg Config, env *resolve.ResolvedEnv, res *discover.Result, t corepkg.BuildTarget) string {
	return ArtifactPath(cfg, env, res.Package(t.Package), t.Kind, ".mbti")
}

// NewConfig defaults Windows to the host OS; cross-compiling to
// Windows from a non-Windows host means setting it explicitly after.
func NewConfig(targetDir, backend, optLevel, runMode string) Config {
	return Config{TargetDir: targetDir, Backend: backend, OptLevel: optLevel, RunMode: runMode, Windows: runtime.GOOS == "windows"}
}
