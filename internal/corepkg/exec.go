// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package corepkg

// ExecNode is one executor-graph node: a lowered BuildPlanNode ready
// to run, carrying an argv, its explicit inputs/outputs (canonicalized
// to forward slashes per spec §4.6), and a diagnostic location.
type ExecNode struct {
	Plan     BuildPlanNode
	Argv     []string
	Inputs   []string
	Outputs  []string
	Location string // "<package FQN>" or similar, for diagnostic attribution
}
