package chain

// Reporter receives results as the driver produces them.
type Reporter interface {
	Located(binary string, m MarkerResult)
	Matched(binary string, t TargetResult)
	Resolved(binary string, t TargetResult)
	Failed(binary string, f Failure)
}

// NopReporter discards every event.
type NopReporter struct{}

func (NopReporter) Located(string, MarkerResult)  {}
func (NopReporter) Matched(string, TargetResult)  {}
func (NopReporter) Resolved(string, TargetResult) {}
func (NopReporter) Failed(string, Failure)        {}

// Replay sends the results of a finished outcome to r. Markers come first,
// then targets, then failures.
func Replay(o *Outcome, r Reporter) {
	for _, m := range o.Markers {
		r.Located(o.Binary, m)
	}
	for _, t := range o.Targets {
		r.Matched(o.Binary, t)
		if t.Resolved {
			r.Resolved(o.Binary, t)
		}
	}
	for _, f := range o.Failures {
		r.Failed(o.Binary, f)
	}
}
