// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corepkg

import (
	"bytes"
	"fmt"
)

// traceError is satisfied by any error kind that can render a longer,
// multi-line trace in addition to its one-line Error() message. The
// diagnostic renderer (§7) prefers traceString when present.
type traceError interface {
	traceString() string
}

// ManifestMissingError: a dependency's manifest was not found after fetch.
type ManifestMissingError struct {
	Module ModuleSource
}

func (e *ManifestMissingError) Error() string {
	return fmt.Sprintf("manifest missing for module %s after fetch", e.Module)
}

// VersionConflictError: no version satisfies all constraints.
type VersionConflictError struct {
	Module ModuleName
	Edges  []ConstraintEdge
}

// ConstraintEdge names one module's constraint on another, for conflict
// reporting.
type ConstraintEdge struct {
	From       ModuleName
	Constraint string
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("no version of %s satisfies all constraints (%d incompatible edges)", e.Module, len(e.Edges))
}

func (e *VersionConflictError) traceString() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "no version of %s satisfies:\n", e.Module)
	for _, edge := range e.Edges {
		fmt.Fprintf(&buf, "\t%s requires %s\n", edge.From, edge.Constraint)
	}
	return buf.String()
}

// RegistryUnavailableError: a network need occurred while frozen.
type RegistryUnavailableError struct {
	Module ModuleName
	Cause  error
}

func (e *RegistryUnavailableError) Error() string {
	return fmt.Sprintf("registry unavailable for %s while frozen: %v", e.Module, e.Cause)
}

func (e *RegistryUnavailableError) Unwrap() error { return e.Cause }

// DuplicateModuleNameError: two path/git sources map to the same name
// with different sources.
type DuplicateModuleNameError struct {
	Name    ModuleName
	First   ModuleSource
	Second  ModuleSource
}

func (e *DuplicateModuleNameError) Error() string {
	return fmt.Sprintf("module name %s resolves to two different sources: %s and %s", e.Name, e.First, e.Second)
}

// LocalDepVersionMismatchError: a path dependency's actual manifest
// version mismatches the advisory constraint.
type LocalDepVersionMismatchError struct {
	Module   ModuleName
	Wanted   string
	Actual   string
}

func (e *LocalDepVersionMismatchError) Error() string {
	return fmt.Sprintf("local path dependency %s declares version %s, wanted %s", e.Module, e.Actual, e.Wanted)
}

// InvalidPackagePathError: a disallowed segment in a package's
// relative path.
type InvalidPackagePathError struct {
	Module  ModuleName
	Segment string
}

func (e *InvalidPackagePathError) Error() string {
	return fmt.Sprintf("invalid package path segment %q in module %s", e.Segment, e.Module)
}

// DuplicatePackageError: two directories map to the same FQN.
type DuplicatePackageError struct {
	FQN   PackageFQN
	PathA string
	PathB string
}

func (e *DuplicatePackageError) Error() string {
	return fmt.Sprintf("duplicate package %s found at both %s and %s", e.FQN, e.PathA, e.PathB)
}

// MalformedManifestError: syntax error or missing required field.
type MalformedManifestError struct {
	Path  string
	Cause error
}

func (e *MalformedManifestError) Error() string {
	return fmt.Sprintf("malformed manifest at %s: %v", e.Path, e.Cause)
}

func (e *MalformedManifestError) Unwrap() error { return e.Cause }

// ImportNotFoundError: an import string didn't resolve to any
// discovered package.
type ImportNotFoundError struct {
	Importer BuildTarget
	Import   string
}

func (e *ImportNotFoundError) Error() string {
	return fmt.Sprintf("%s: import %q not found", e.Importer, e.Import)
}

// ImportNotImportedByModuleError: the importing module doesn't declare
// a dependency on the target's module.
type ImportNotImportedByModuleError struct {
	Importer     BuildTarget
	Import       string
	ImporterMod  ModuleName
	TargetMod    ModuleName
}

func (e *ImportNotImportedByModuleError) Error() string {
	return fmt.Sprintf("%s: import %q resolves to module %s, which %s does not declare as a dependency", e.Importer, e.Import, e.TargetMod, e.ImporterMod)
}

// ConflictingImportAliasError: a BuildTarget (Target) imports two
// packages (First, Second) under the same short alias.
type ConflictingImportAliasError struct {
	Target  BuildTarget
	Alias   string
	First   PackageFQN
	Second  PackageFQN
}

func (e *ConflictingImportAliasError) Error() string {
	return fmt.Sprintf("%s: alias %q claimed by both %s and %s", e.Target, e.Alias, e.First, e.Second)
}

func (e *ConflictingImportAliasError) traceString() string {
	return fmt.Sprintf("conflicting alias %q: %s imports both %s and %s under this alias\nsuggested fix: give one of them an explicit alias: {\"path\": \"...\", \"alias\": \"other_name\"}", e.Alias, e.Target, e.First, e.Second)
}

// ImportLoopError: a cycle was found in the package dependency graph.
type ImportLoopError struct {
	Cycle []BuildTarget
}

func (e *ImportLoopError) Error() string {
	var buf bytes.Buffer
	buf.WriteString("import loop: ")
	for i, t := range e.Cycle {
		if i > 0 {
			buf.WriteString(" -> ")
		}
		buf.WriteString(t.String())
	}
	return buf.String()
}

// MissingVirtualImplError: a virtual package has no override and no
// default implementation.
type MissingVirtualImplError struct {
	Virtual PackageFQN
}

func (e *MissingVirtualImplError) Error() string {
	return fmt.Sprintf("virtual package %s has no override and has_default=false", e.Virtual)
}

// MultipleVirtualImplsError: two overrides name implementations of the
// same virtual package.
type MultipleVirtualImplsError struct {
	Virtual PackageFQN
	Impls   []PackageFQN
}

func (e *MultipleVirtualImplsError) Error() string {
	return fmt.Sprintf("virtual package %s has %d conflicting overrides", e.Virtual, len(e.Impls))
}

// RunTargetIsVirtualError: a Run intent named a pure virtual package,
// which has no executable body to run.
type RunTargetIsVirtualError struct {
	Virtual PackageFQN
}

func (e *RunTargetIsVirtualError) Error() string {
	return fmt.Sprintf("cannot run %s: it is a pure virtual package", e.Virtual)
}

// MissingPrerequisiteError: the planner could not find a required
// prerequisite node.
type MissingPrerequisiteError struct {
	Node  string
	Needs string
}

func (e *MissingPrerequisiteError) Error() string {
	return fmt.Sprintf("plan node %s is missing prerequisite %s", e.Node, e.Needs)
}

// UnsupportedBackendForTargetError: a plan node's backend isn't valid
// for its target kind (e.g. bundling a virtual package).
type UnsupportedBackendForTargetError struct {
	Target  BuildTarget
	Backend string
}

func (e *UnsupportedBackendForTargetError) Error() string {
	return fmt.Sprintf("backend %s unsupported for %s", e.Backend, e.Target)
}

// CompilerError preserves a structured compiler diagnostic verbatim.
type CompilerError struct {
	Target      BuildTarget
	File        string
	Line, Col   int
	Message     string
	Raw         string
}

func (e *CompilerError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Col, e.Message)
	}
	return e.Message
}

// CompilerCrashError: the compiler process terminated abnormally.
type CompilerCrashError struct {
	Target   BuildTarget
	ExitCode int
	Stderr   string
}

func (e *CompilerCrashError) Error() string {
	return fmt.Sprintf("compiler crashed on %s (exit %d): %s", e.Target, e.ExitCode, e.Stderr)
}

// OutputMissingError: a declared output was not produced.
type OutputMissingError struct {
	Target BuildTarget
	Path   string
}

func (e *OutputMissingError) Error() string {
	return fmt.Sprintf("%s: declared output %s was not produced", e.Target, e.Path)
}

// FingerprintDbCorruptedError: the persistent fingerprint DB could not
// be read.
type FingerprintDbCorruptedError struct {
	Path  string
	Cause error
}

func (e *FingerprintDbCorruptedError) Error() string {
	return fmt.Sprintf("fingerprint database %s is corrupted: %v", e.Path, e.Cause)
}

func (e *FingerprintDbCorruptedError) Unwrap() error { return e.Cause }

// FilesystemError wraps an I/O failure with the path it happened on.
type FilesystemError struct {
	Path  string
	Cause error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Cause)
}

func (e *FilesystemError) Unwrap() error { return e.Cause }

// LockContentionError: the target directory's FileLock is already held.
type LockContentionError struct {
	Path       string
	HolderHint string
}

func (e *LockContentionError) Error() string {
	if e.HolderHint != "" {
		return fmt.Sprintf("lock %s held by %s", e.Path, e.HolderHint)
	}
	return fmt.Sprintf("lock %s is held by another invocation", e.Path)
}

// NetworkError wraps a registry/VCS network failure.
type NetworkError struct {
	URL   string
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// ChildSpawnFailedError: starting a compiler/linker/script subprocess failed.
type ChildSpawnFailedError struct {
	Argv  []string
	Cause error
}

func (e *ChildSpawnFailedError) Error() string {
	return fmt.Sprintf("failed to spawn %v: %v", e.Argv, e.Cause)
}

func (e *ChildSpawnFailedError) Unwrap() error { return e.Cause }

// ChildKilledBySignalError: a child process was terminated by signal.
type ChildKilledBySignalError struct {
	Argv   []string
	Signal string
}

func (e *ChildKilledBySignalError) Error() string {
	return fmt.Sprintf("%v killed by signal %s", e.Argv, e.Signal)
}

// ChildTimeoutError: a child process exceeded its allotted time.
type ChildTimeoutError struct {
	Argv []string
}

func (e *ChildTimeoutError) Error() string {
	return fmt.Sprintf("%v timed out", e.Argv)
}

// RenderTrace renders err's multi-line trace if it implements
// traceError, else falls back to err.Error().
func RenderTrace(err error) string {
	if te, ok := err.(traceError); ok {
		return te.traceString()
	}
	return err.Error()
}
