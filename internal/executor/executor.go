// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package executor implements C7: it runs a lowered []corepkg.ExecNode
// graph with a parallelism-capped worker pool, skipping nodes whose
// persisted fingerprint still matches their inputs, deduplicating
// repeated diagnostics, and reporting a final summary. Grounded on
// source_manager.go's SourceMgr concurrency shape (an atomic in-flight
// op counter, a buffered-semaphore-equivalent gate on concurrent work)
// generalized from "bound concurrent source-gateway fetches" to "bound
// concurrent compiler invocations", plus go-flock for the
// target-directory advisory lock spec §5 requires.
package executor

import (
	"bytes"
	"context"
	"os/exec"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/theckman/go-flock"

	"github.com/rupesrecta/corebuild/internal/corelog"
	"github.com/rupesrecta/corebuild/internal/corepkg"
	"github.com/rupesrecta/corebuild/internal/procreg"
)

// Diagnostic is one compiler-emitted error or warning, attributed to
// the ExecNode that produced it.
type Diagnostic struct {
	Location string
	Message  string
	IsError  bool
}

// Summary reports what a Run call did, per spec §6's "n_tasks_executed
// / n_errors / n_warnings" reporting requirement.
type Summary struct {
	TasksExecuted int
	TasksSkipped  int
	Errors        int
	Warnings      int
	Diagnostics   []Diagnostic
}

// FingerprintChecker decides whether a node's outputs are already
// current and can be skipped. The executor package doesn't depend on
// internal/fingerprint directly so that callers can swap in a lighter
// per-node check (e.g. mtime-only) without pulling in the whole-
// workspace gate; cmd/rr wires internal/fingerprint's own per-target
// hash comparison in here.
type FingerprintChecker interface {
	// UpToDate reports whether node's outputs are already current.
	UpToDate(node corepkg.ExecNode) (bool, error)
	// Record persists that node's outputs are now current.
	Record(node corepkg.ExecNode) error
}

// Runner executes one ExecNode's argv, returning combined
// stdout+stderr for diagnostic parsing.
type Runner interface {
	Run(ctx context.Context, node corepkg.ExecNode) ([]byte, error)
}

// ExecRunner runs nodes as real child processes, registering each
// with a procreg.Registry so a shutdown signal can terminate them.
type ExecRunner struct {
	Registry *procreg.Registry
}

// Run implements Runner by spawning node.Argv[0] with the rest as
// arguments, registering the child for the duration of the call.
func (r ExecRunner) Run(ctx context.Context, node corepkg.ExecNode) ([]byte, error) {
	if len(node.Argv) == 0 {
		return nil, errors.Errorf("empty argv for %s", node.Location)
	}
	cmd := exec.CommandContext(ctx, node.Argv[0], node.Argv[1:]...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "start %s", node.Location)
	}
	if r.Registry != nil {
		r.Registry.Register(cmd)
		defer r.Registry.Unregister(cmd)
	}
	err := cmd.Wait()
	return out.Bytes(), err
}

// Executor runs a build graph with bounded parallelism.
type Executor struct {
	Parallelism  int
	Runner       Runner
	Fingerprint  FingerprintChecker
	Lock         *flock.Flock
	Log          *corelog.Logger
	Registry     *procreg.Registry
	FailuresLeft int // spec §7: stop scheduling new nodes after this many failures; 0 = unbounded

	inflight     int32 // atomic; diagnostic/progress reporting only
	failureCount int32 // atomic
}

// Inflight reports how many nodes are currently running, for a
// caller that wants to print a progress indicator while Run blocks.
func (e *Executor) Inflight() int32 {
	return atomic.LoadInt32(&e.inflight)
}

// New returns an Executor with sane defaults; Parallelism <= 0 falls
// back to 1 (serial execution), since a zero-size semaphore channel
// would deadlock forever. Callers wanting one slot per CPU resolve that
// before calling New.
func New(parallelism int, runner Runner, fp FingerprintChecker, log *corelog.Logger) *Executor {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Executor{Parallelism: parallelism, Runner: runner, Fingerprint: fp, Log: log}
}

// Run executes every node in nodes, respecting each node's dependency
// ordering (nodes is assumed already topologically sorted by the
// planner/lowering stages — the executor only needs to ensure a
// node's Inputs are produced by nodes that come earlier in the slice,
// which a topological lowering order guarantees without the executor
// re-deriving the graph itself).
func (e *Executor) Run(ctx context.Context, nodes []corepkg.ExecNode) (Summary, error) {
	if e.Lock != nil {
		locked, err := e.Lock.TryLock()
		if err != nil {
			return Summary{}, errors.Wrap(err, "lock target directory")
		}
		if !locked {
			return Summary{}, errors.New("target directory is locked by another invocation")
		}
		defer e.Lock.Unlock()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, e.Parallelism)
	var wg sync.WaitGroup
	var mu sync.Mutex
	summary := Summary{}
	seenDiag := make(map[string]bool)
	var firstErr error

	// done tracks, per node index, a channel closed once that node
	// (and everything it depends on) has finished, so a later node can
	// wait on exactly its own prerequisites rather than the whole batch.
	done := make([]chan struct{}, len(nodes))
	for i := range done {
		done[i] = make(chan struct{})
	}
	indexOf := make(map[string]int, len(nodes))
	for i, n := range nodes {
		for _, out := range n.Outputs {
			indexOf[out] = i
		}
	}

	failed := make([]bool, len(nodes)) // guarded by mu

	for i, node := range nodes {
		i, node := i, node
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(done[i])

			depFailed := false
			for _, in := range node.Inputs {
				if dep, ok := indexOf[in]; ok && dep != i {
					select {
					case <-done[dep]:
						mu.Lock()
						if failed[dep] {
							depFailed = true
						}
						mu.Unlock()
					case <-ctx.Done():
						return
					}
				}
			}
			if depFailed {
				// a node this one depends on failed; running against its
				// missing or stale output would only surface a confusing
				// secondary error, so propagate the failure instead.
				mu.Lock()
				failed[i] = true
				mu.Unlock()
				return
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			if e.Registry != nil && e.Registry.ShuttingDown() {
				return
			}
			if ctx.Err() != nil {
				// failure budget already exhausted by an earlier node;
				// stop scheduling new work rather than piling up more
				// diagnostics past the first failure (spec §7).
				return
			}

			atomic.AddInt32(&e.inflight, 1)
			defer atomic.AddInt32(&e.inflight, -1)

			skip, err := e.upToDate(node)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			if skip {
				mu.Lock()
				summary.TasksSkipped++
				mu.Unlock()
				return
			}

			out, runErr := e.Runner.Run(ctx, node)
			diags := parseDiagnostics(node.Location, out)

			mu.Lock()
			summary.TasksExecuted++
			for _, d := range diags {
				key := d.Location + "|" + d.Message
				if seenDiag[key] {
					continue
				}
				seenDiag[key] = true
				summary.Diagnostics = append(summary.Diagnostics, d)
				if d.IsError {
					summary.Errors++
				} else {
					summary.Warnings++
				}
			}
			if runErr != nil {
				failed[i] = true
				if firstErr == nil {
					firstErr = errors.Wrapf(runErr, "run %s", node.Location)
				}
			}
			mu.Unlock()

			if runErr != nil {
				n := atomic.AddInt32(&e.failureCount, 1)
				if e.FailuresLeft > 0 && n >= int32(e.FailuresLeft) {
					cancel()
				}
			}

			if runErr == nil && e.Fingerprint != nil {
				_ = e.Fingerprint.Record(node)
			}

			if e.Log != nil {
				e.Log.Vlogf("ran %s (%d diagnostics)", node.Location, len(diags))
			}
		}()
	}

	wg.Wait()
	sort.Slice(summary.Diagnostics, func(i, j int) bool {
		return summary.Diagnostics[i].Location < summary.Diagnostics[j].Location
	})
	return summary, firstErr
}

func (e *Executor) upToDate(node corepkg.ExecNode) (bool, error) {
	if e.Fingerprint == nil {
		return false, nil
	}
	return e.Fingerprint.UpToDate(node)
}

// parseDiagnostics does a minimal compiler-output split: one
// diagnostic per non-empty line, classified as an error unless it
// contains "warning". Real compiler output parsing (structured
// JSON diagnostics, multi-line spans) is explicitly out of scope per
// spec.md's non-goals around diagnostic rendering; this is enough to
// drive the dedup/count reporting spec §6 asks for.
func parseDiagnostics(location string, output []byte) []Diagnostic {
	var diags []Diagnostic
	line := make([]byte, 0, 128)
	flush := func() {
		if len(line) == 0 {
			return
		}
		msg := string(line)
		diags = append(diags, Diagnostic{
			Location: location,
			Message:  msg,
			IsError:  !containsWarning(msg),
		})
		line = line[:0]
	}
	for _, b := range output {
		if b == '\n' {
			flush()
			continue
		}
		line = append(line, b)
	}
	flush()
	return diags
}

func containsWarning(s string) bool {
	for i := 0; i+len("warning") <= len(s); i++ {
		if equalFoldASCII(s[i:i+len("warning")], "warning") {
			return true
		}
	}
	return false
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
