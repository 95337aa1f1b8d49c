// package clock validates clock signals: streams which alternate between 0 and 1.
package clock

import (
	"fmt"

	"bunnyvm.org/bunny/bvm"
	"bunnyvm.org/bunny/isa"
)

// DefaultSampleSize is the number of alternations needed before a signal is accepted.
const DefaultSampleSize = 1000

var _ bvm.Port = &Validator{}

// State is the state of a Validator
type State uint8

const (
	// Latch is the initial state, nothing has been seen yet.
	Latch State = iota
	// Good means every value so far has been 0 or 1, alternating.
	Good
	// Bad is a terminal state. The signal was not a clock.
	Bad
	// Perfect is a terminal state. The signal alternated SampleSize times.
	Perfect
)

func (s State) String() string {
	switch s {
	case Latch:
		return "latch"
	case Good:
		return "good"
	case Bad:
		return "bad"
	case Perfect:
		return "perfect"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Terminal returns true for Bad and Perfect
func (s State) Terminal() bool {
	return s == Bad || s == Perfect
}

// Validator is a bvm.Port which accepts a clock signal of at least SampleSize alternations.
// The zero value is not usable, use New.
type Validator struct {
	sampleSize int

	state State
	// count is the length of the good signal so far
	count int
	last  isa.Int
}

// New creates a Validator in the Latch state.
// New panics if sampleSize < 1.
func New(sampleSize int) *Validator {
	if sampleSize < 1 {
		panic(fmt.Sprintf("clock: sample size must be positive. have %d", sampleSize))
	}
	return &Validator{sampleSize: sampleSize}
}

func (v *Validator) State() State {
	return v.state
}

// Count returns the number of values in the signal so far, while the state is Good.
func (v *Validator) Count() int {
	return v.count
}

// Last returns the most recent value, while the state is Good.
func (v *Validator) Last() isa.Int {
	return v.last
}

func (v *Validator) SampleSize() int {
	return v.sampleSize
}

// Next feeds one value to the validator and returns the new state.
// Next panics if the validator is already in a terminal state.
func (v *Validator) Next(x isa.Int) State {
	switch v.state {
	case Latch:
		if x == 0 || x == 1 {
			v.state, v.count, v.last = Good, 1, x
		} else {
			v.state = Bad
		}
	case Good:
		switch {
		case !isBit(x) || x == v.last:
			v.state = Bad
		case v.count == v.sampleSize:
			v.state = Perfect
		default:
			v.count++
			v.last = x
		}
	default:
		panic(fmt.Sprintf("clock: value %d after terminal state %v", x, v.state))
	}
	return v.state
}

// Output implements bvm.Port
func (v *Validator) Output(x isa.Int) bvm.Verdict {
	switch v.Next(x) {
	case Perfect:
		return bvm.Accept
	case Bad:
		return bvm.Reject
	default:
		return bvm.Continue
	}
}

// Reset returns the validator to the Latch state
func (v *Validator) Reset() {
	v.state, v.count, v.last = Latch, 0, 0
}

func isBit(x isa.Int) bool {
	return x == 0 || x == 1
}
