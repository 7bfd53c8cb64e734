// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package procreg is the process-wide child-process registry (C8): a
// single registry of every compiler/linker/script child process the
// executor has spawned, with signal-driven shutdown that asks each
// child to terminate gracefully before killing it outright. Grounded
// on source_manager.go's SourceMgr signal-handling goroutine
// (qch/sigmut/releasing/opcount), generalized from "stop accepting new
// source-gateway ops and release the on-disk lock" to "stop accepting
// new children and terminate the ones already running".
package procreg

import (
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// Exit codes follow the POSIX convention of 128+signal for a process
// killed by a signal.
const (
	ExitInterrupted = 130 // 128 + SIGINT(2)
	ExitTerminated  = 143 // 128 + SIGTERM(15)
	ExitAborted     = 134 // 128 + SIGABRT(6)
	ExitHangup      = 129 // 128 + SIGHUP(1)
)

// gracePeriod is how long a child gets to exit on its own after the
// registry asks it to terminate, before being killed outright.
const gracePeriod = 100 * time.Millisecond

// Registry tracks every *exec.Cmd spawned on this process's behalf, so
// a shutdown signal can ask all of them to exit before the process
// itself dies.
type Registry struct {
	mu       sync.Mutex
	children map[int]*exec.Cmd

	shuttingDown int32 // atomic bool; CompareAndSwap guards re-entrant shutdown

	sigmut sync.Mutex
	qch    chan struct{}
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{children: make(map[int]*exec.Cmd)}
}

// Register records cmd as running, keyed by its PID. The caller must
// have already called cmd.Start().
func (r *Registry) Register(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	r.mu.Lock()
	r.children[cmd.Process.Pid] = cmd
	r.mu.Unlock()
}

// Unregister removes cmd once it has exited (successfully or not).
// Safe to call even if cmd was never registered.
func (r *Registry) Unregister(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	r.mu.Lock()
	delete(r.children, cmd.Process.Pid)
	r.mu.Unlock()
}

// ShuttingDown reports whether Shutdown has begun; the executor's
// scheduler checks this before dispatching a new child so no fresh
// work starts during wind-down.
func (r *Registry) ShuttingDown() bool {
	return atomic.LoadInt32(&r.shuttingDown) != 0
}

// Shutdown asks every registered child to terminate, waits up to
// gracePeriod, then kills whatever is still alive. Re-entrant calls
// after the first are no-ops.
func (r *Registry) Shutdown() {
	if !atomic.CompareAndSwapInt32(&r.shuttingDown, 0, 1) {
		return
	}

	r.mu.Lock()
	cmds := make([]*exec.Cmd, 0, len(r.children))
	for _, c := range r.children {
		cmds = append(cmds, c)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range cmds {
		wg.Add(1)
		go func(c *exec.Cmd) {
			defer wg.Done()
			terminateThenKill(c)
		}(c)
	}
	wg.Wait()
}

func terminateThenKill(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		_, _ = cmd.Process.Wait()
		close(done)
	}()

	// Errors here mean the child is already dead or unsignalable; either
	// way Kill below is a safe, idempotent fallback.
	_ = requestGracefulStop(cmd.Process)

	select {
	case <-done:
		return
	case <-time.After(gracePeriod):
	}
	_ = cmd.Process.Kill()
	<-done
}

// requestGracefulStop sends the platform's polite-shutdown signal:
// SIGTERM on POSIX, and on Windows (which has no SIGTERM a child can
// catch the way POSIX tools do) an immediate Kill, matching
// exec.Process.Kill's own Windows behavior for Signal(os.Interrupt).
func requestGracefulStop(p *os.Process) error {
	if runtime.GOOS == "windows" {
		return p.Kill()
	}
	if err := p.Signal(syscall.SIGTERM); err != nil {
		return errors.Wrap(err, "signal child")
	}
	return nil
}

// SignalExitCode maps an os.Signal to the POSIX 128+signal convention
// HandleSignals uses to pick the process's own exit status.
func SignalExitCode(sig os.Signal) int {
	switch sig {
	case os.Interrupt:
		return ExitInterrupted
	case syscall.SIGHUP:
		return ExitHangup
	case syscall.SIGABRT:
		return ExitAborted
	default:
		return ExitTerminated
	}
}

// HandleSignals installs a handler for SIGINT/SIGTERM/SIGHUP/SIGABRT
// that calls Shutdown once and returns the POSIX exit code for the
// signal received. Calling code receives one value from the returned
// channel (only ever one value is sent) and exits with it.
//
// The handler reacts to the first signal only: after it sends that
// signal's code it calls signal.Stop, so a later signal gets the
// runtime's default behavior. Shutdown's own CompareAndSwap guard
// keeps a second Shutdown call (e.g. from the caller) a no-op. Calling
// HandleSignals again closes the previous handler's quit channel.
func (r *Registry) HandleSignals() <-chan int {
	r.sigmut.Lock()
	if r.qch != nil {
		close(r.qch)
	}
	qch := make(chan struct{})
	r.qch = qch
	r.sigmut.Unlock()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGABRT)

	out := make(chan int, 1)
	go func() {
		defer signal.Stop(sigch)
		select {
		case sig := <-sigch:
			r.Shutdown()
			out <- SignalExitCode(sig)
		case <-qch:
		}
	}()
	return out
}
