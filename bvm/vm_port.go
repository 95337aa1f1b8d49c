package bvm

// Verdict is returned by a Port after each output
type Verdict uint8

const (
	// Continue lets the machine keep running
	Continue Verdict = iota
	// Accept stops the machine with status Perfect
	Accept
	// Reject stops the machine with status Bad
	Reject
)

// Port receives the values produced by out instructions.
// The Verdict it returns is applied before the next instruction runs.
type Port interface {
	Output(x Int) Verdict
}

// PortFunc adapts a function to the Port interface
type PortFunc func(x Int) Verdict

func (f PortFunc) Output(x Int) Verdict {
	return f(x)
}

// Discard is a Port which ignores all output
var Discard Port = PortFunc(func(Int) Verdict { return Continue })

// Recorder is a Port which keeps everything written to it.
type Recorder struct {
	Values []Int
	// Limit, if > 0, is the number of values after which the Recorder accepts.
	Limit int
}

func (r *Recorder) Output(x Int) Verdict {
	r.Values = append(r.Values, x)
	if r.Limit > 0 && len(r.Values) >= r.Limit {
		return Accept
	}
	return Continue
}

// Tee sends every value to all of its ports.
// The first verdict other than Continue is returned.
type Tee []Port

func (t Tee) Output(x Int) Verdict {
	ret := Continue
	for _, p := range t {
		if v := p.Output(x); ret == Continue {
			ret = v
		}
	}
	return ret
}
