// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lower

import (
	"context"
	"fmt"
	"testing"

	"github.com/rupesrecta/corebuild/internal/corecfg"
	"github.com/rupesrecta/corebuild/internal/corepkg"
	"github.com/rupesrecta/corebuild/internal/resolve"
	"github.com/rupesrecta/corebuild/internal/testutil"
)

// resolvedEnvWithPathDep builds a real ResolvedEnv containing one
// local-path dependency, for tests that need ArtifactDir's
// IsThirdParty branch to call a genuine env.Node lookup. The two
// modules live under independent temp roots so the dependency's
// declared path must be absolute — PathSource.Fetch stats it as given,
// with no join against the referring module's directory.
func resolvedEnvWithPathDep(t *testing.T) (*resolve.ResolvedEnv, corepkg.ModuleId) {
	t.Helper()
	utilDir := testutil.TempWorkspace(t, map[string]string{
		"moon.mod.json": `{"name":"bob/util"}`,
	})
	appDir := testutil.TempWorkspace(t, map[string]string{
		"moon.mod.json": fmt.Sprintf(`{"name":"alice/app","deps":{"bob/util":{"path":%q}}}`, utilDir),
	})

	cfg := &corecfg.Config{WorkDir: appDir, TargetDir: appDir + "/target"}
	resolver := resolve.NewResolver(cfg)
	env, err := resolver.Resolve(context.Background(), []string{appDir})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	node, ok := env.ByName(corepkg.ModuleName{User: "bob", Pkg: "util"})
	if !ok {
		t.Fatalf("resolved env missing bob/util")
	}
	return env, node.ID
}

func mustPath(t *testing.T, segs ...string) corepkg.PackagePath {
	t.Helper()
	p, err := corepkg.NewPackagePath(segs...)
	if err != nil {
		t.Fatalf("NewPackagePath(%v): %v", segs, err)
	}
	return p
}

func TestArtifactDirLocalPackage(t *testing.T) {
	cfg := Config{TargetDir: "/ws/target", Backend: "native", OptLevel: "debug", RunMode: "debug"}
	pkg := &corepkg.DiscoveredPackage{
		FQN: corepkg.PackageFQN{
			Module: corepkg.ModuleSource{Name: corepkg.ModuleName{User: "alice", Pkg: "app"}},
			Path:   mustPath(t, "src", "util"),
		},
	}

	got := ArtifactDir(cfg, nil, pkg)
	want := "/ws/target/native/debug/debug/src/util"
	if got != want {
		t.Errorf("ArtifactDir = %q, want %q", got, want)
	}
}

func TestArtifactDirThirdPartyPackage(t *testing.T) {
	cfg := Config{TargetDir: "/ws/target", Backend: "wasm-gc", OptLevel: "release", RunMode: "debug"}
	env, modID := resolvedEnvWithPathDep(t)
	pkg := &corepkg.DiscoveredPackage{
		Module:       modID,
		IsThirdParty: true,
		FQN: corepkg.PackageFQN{
			Module: corepkg.ModuleSource{Name: corepkg.ModuleName{User: "bob", Pkg: "util"}},
			Path:   mustPath(t, "list"),
		},
	}

	got := ArtifactDir(cfg, env, pkg)
	want := "/ws/target/wasm-gc/release/debug/.mooncakes/bob_util/list"
	if got != want {
		t.Errorf("ArtifactDir = %q, want %q", got, want)
	}
}

func TestArtifactBasenameAppendsSuffix(t *testing.T) {
	pkg := &corepkg.DiscoveredPackage{
		FQN: corepkg.PackageFQN{
			Module: corepkg.ModuleSource{Name: corepkg.ModuleName{User: "alice", Pkg: "app"}},
			Path:   mustPath(t, "util"),
		},
	}
	if got, want := ArtifactBasename(pkg, corepkg.Source), "util"; got != want {
		t.Errorf("ArtifactBasename(Source) = %q, want %q", got, want)
	}
	if got, want := ArtifactBasename(pkg, corepkg.BlackboxTest), "util_blackbox_test"; got != want {
		t.Errorf("ArtifactBasename(BlackboxTest) = %q, want %q", got, want)
	}
}

func TestConfigLinkedExt(t *testing.T) {
	cases := []struct {
		backend string
		windows bool
		want    string
	}{
		{"wasm", false, ".wasm"},
		{"wasm-gc", false, ".wasm"},
		{"js", false, ".js"},
		{"native", false, ".c"},
		{"llvm", false, ".o"},
		{"llvm", true, ".obj"},
	}
	for _, c := range cases {
		cfg := Config{Backend: c.backend, Windows: c.windows}
		if got := cfg.linkedExt(); got != c.want {
			t.Errorf("linkedExt(%s, windows=%v) = %q, want %q", c.backend, c.windows, got, c.want)
		}
	}
}

func TestConfigExeExt(t *testing.T) {
	if got := (Config{Windows: true}).exeExt(); got != ".exe" {
		t.Errorf("exeExt(windows) = %q, want .exe", got)
	}
	if got := (Config{Windows: false}).exeExt(); got != "" {
		t.Errorf("exeExt(non-windows) = %q, want empty", got)
	}
}

func TestConfigCompilerDefault(t *testing.T) {
	if got := (Config{}).compiler(); got != "moonc" {
		t.Errorf("compiler() default = %q, want moonc", got)
	}
	if got := (Config{CompilerPath: "/custom/moonc"}).compiler(); got != "/custom/moonc" {
		t.Errorf("compiler() override = %q, want /custom/moonc", got)
	}
}
