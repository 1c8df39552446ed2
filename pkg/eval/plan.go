// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package eval

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazygraph/pkg/core/tensors"
	"github.com/gomlx/lazygraph/pkg/support/sets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Plan schedules the execution of groups of units, each producing one output (identified by its ID),
// and depending on other outputs.
//
// The Plan guarantees that each output is computed at most once: registering the same output again
// is a no-op. And it guarantees a group is only executed after all its dependencies were evaluated.
//
// In ModeEager (the default) the group is executed during Register. In ModeDeferred groups are queued
// in registration order, and executed by Execute. Since a node registers its operands before
// itself, registration order is already a valid dependency order.
//
// A Plan is not safe for concurrent use.
type Plan struct {
	device tensors.Device
	mode   Mode

	// registered maps each known output to its entry.
	registered map[ID]*planEntry

	// pending holds the queue of entries waiting for Execute, in registration order.
	pending []*planEntry

	// provided are the identities of values available from the start (leaves).
	provided sets.Set[ID]

	// done are the identities of the outputs already computed.
	done sets.Set[ID]

	stats Stats
}

type planEntry struct {
	output ID
	group  Group
	deps   []ID
}

// Stats about the usage of a Plan.
type Stats struct {
	// Registered is the number of distinct outputs registered.
	Registered int

	// Executed is the number of groups executed.
	Executed int

	// Units is the number of units executed.
	Units int

	// Skipped is the number of registrations ignored because the output was already known.
	Skipped int

	// Provided is the number of distinct leaf values provided.
	Provided int
}

// String implements fmt.Stringer.
func (s Stats) String() string {
	return fmt.Sprintf("registered=%d, executed=%d (%d units), skipped=%d, provided=%d",
		s.Registered, s.Executed, s.Units, s.Skipped, s.Provided)
}

// NewPlan returns a new empty Plan for the given device, in ModeEager.
func NewPlan(device tensors.Device) *Plan {
	if !device.IsADevice() || device == tensors.DeviceInvalid {
		exceptions.Panicf("eval.NewPlan: invalid device %s", device)
	}
	return &Plan{
		device:     device,
		mode:       ModeEager,
		registered: make(map[ID]*planEntry),
		provided:   sets.Make[ID](),
		done:       sets.Make[ID](),
	}
}

// DefaultPlan returns a new Plan for the CPU, with the mode configured by the environment variable
// LAZYGRAPH_EVAL_MODE, or DefaultMode if it is not set.
//
// It returns an error if LAZYGRAPH_EVAL_MODE holds an invalid value.
func DefaultPlan() (*Plan, error) {
	mode, err := ModeFromEnv()
	if err != nil {
		return nil, err
	}
	return NewPlan(tensors.DeviceCPU).SetMode(mode), nil
}

// SetMode sets the execution mode. It returns itself, so calls can be cascaded.
//
// Changing the mode to ModeEager doesn't execute already pending groups: call Execute for that.
func (p *Plan) SetMode(mode Mode) *Plan {
	if !mode.IsAMode() {
		exceptions.Panicf("eval.Plan.SetMode: invalid mode %s", mode)
	}
	p.mode = mode
	return p
}

// Mode returns the current execution mode.
func (p *Plan) Mode() Mode { return p.mode }

// Device where the plan executes.
func (p *Plan) Device() tensors.Device { return p.device }

// CheckDevice panics if the given device doesn't match the plan's device.
func (p *Plan) CheckDevice(device tensors.Device) {
	if device != p.device {
		exceptions.Panicf("eval.Plan: value on device %s can't be used in plan for device %s", device, p.device)
	}
}

// Provide announces the identity of a value that is already available, typically a leaf value
// of the graph. Dependencies on it are always satisfied.
func (p *Plan) Provide(id ID) {
	if p.provided.Has(id) {
		return
	}
	p.provided.Insert(id)
	p.stats.Provided++
}

// isSatisfied returns whether the output id is available for reading.
func (p *Plan) isSatisfied(id ID) bool {
	return p.provided.Has(id) || p.done.Has(id)
}

// Register the group that computes output, depending on the outputs deps.
//
// If output was already registered (or provided) this is a no-op: it's how the Plan guarantees
// each output is computed only once.
//
// In ModeEager the group is executed immediately, and all its dependencies must be already
// satisfied. In ModeDeferred it is queued for Execute.
func (p *Plan) Register(group Group, output ID, deps []ID) {
	if group == nil {
		exceptions.Panicf("eval.Plan.Register(output=%s): nil group", output)
	}
	if p.registered[output] != nil || p.provided.Has(output) {
		p.stats.Skipped++
		if klog.V(2).Enabled() {
			klog.Infof("eval.Plan: output %s already registered, skipping", output)
		}
		return
	}
	entry := &planEntry{output: output, group: group, deps: deps}
	p.registered[output] = entry
	p.stats.Registered++
	if klog.V(2).Enabled() {
		klog.Infof("eval.Plan: registered output %s (%d dependencies, mode %s)", output, len(deps), p.mode)
	}
	if p.mode == ModeEager {
		p.execute(entry)
		return
	}
	p.pending = append(p.pending, entry)
}

// execute one entry, after checking its dependencies.
func (p *Plan) execute(entry *planEntry) {
	for _, dep := range entry.deps {
		if p.isSatisfied(dep) {
			continue
		}
		if _, found := p.registered[dep]; found {
			exceptions.Panicf("eval.Plan: output %s depends on %s, which was registered but not executed yet",
				entry.output, dep)
		}
		exceptions.Panicf("eval.Plan: output %s depends on %s, which was never provided nor registered (dangling dependency)",
			entry.output, dep)
	}
	units := entry.group.Units()
	for _, unit := range units {
		unit.Eval()
	}
	p.done.Insert(entry.output)
	p.stats.Executed++
	p.stats.Units += len(units)
	if klog.V(2).Enabled() {
		klog.Infof("eval.Plan: executed output %s (%d units)", entry.output, len(units))
	}
}

// Execute all pending groups, in registration order.
//
// It panics (with exceptions.Panicf) on a dangling dependency, that is, a dependency that was
// never provided or registered. Groups executed before the failure are not re-executed on a
// following call.
func (p *Plan) Execute() {
	numPending := len(p.pending)
	for len(p.pending) > 0 {
		entry := p.pending[0]
		p.execute(entry)
		p.pending = p.pending[1:]
	}
	p.pending = nil
	if klog.V(1).Enabled() && numPending > 0 {
		klog.Infof("eval.Plan: executed %d pending groups: %s", numPending, p.stats)
	}
}

// ExecuteE is like Execute, but returns an error instead of panicking.
func (p *Plan) ExecuteE() error {
	err := exceptions.TryCatch[error](p.Execute)
	if err != nil {
		return errors.WithMessagef(err, "eval.Plan.Execute failed")
	}
	return nil
}

// IsRegistered returns whether a group producing the output id was registered.
func (p *Plan) IsRegistered(id ID) bool {
	_, found := p.registered[id]
	return found
}

// IsDone returns whether id is available: either it was provided or its group was executed.
func (p *Plan) IsDone(id ID) bool { return p.isSatisfied(id) }

// Pending returns the number of groups waiting for Execute.
func (p *Plan) Pending() int { return len(p.pending) }

// Stats returns a snapshot of the plan's statistics.
func (p *Plan) Stats() Stats { return p.stats }
