package main

import (
	"os"
	"time"

	"github.com/google/pprof/profile"
)

// tickProfiler records one sample per scheduler tick so a long-running
// simulated boot can be inspected for scheduling regressions the same
// way a CPU profile is: which tick durations are outliers, and how the
// distribution shifts as the ready queue grows. github.com/google/pprof
// is used as a profile.proto writer rather than through its HTTP
// driver, since ksim has no long-lived server process to attach a live
// profiler to.
type tickProfiler struct {
	fn      *profile.Function
	loc     *profile.Location
	samples []*profile.Sample
	started time.Time
}

func newTickProfiler() *tickProfiler {
	fn := &profile.Function{ID: 1, Name: "ksched.OnTick", SystemName: "ksched.OnTick"}
	loc := &profile.Location{ID: 1, Line: []profile.Line{{Function: fn}}}
	return &tickProfiler{fn: fn, loc: loc, started: time.Now()}
}

// Record appends one sample: a tick's wall-clock duration in
// nanoseconds.
func (tp *tickProfiler) Record(d time.Duration) {
	tp.samples = append(tp.samples, &profile.Sample{
		Location: []*profile.Location{tp.loc},
		Value:    []int64{d.Nanoseconds()},
	})
}

// WriteTo writes the accumulated samples as a gzip-compressed
// profile.proto profile, loadable by `go tool pprof`.
func (tp *tickProfiler) WriteTo(path string) error {
	p := &profile.Profile{
		SampleType:    []*profile.ValueType{{Type: "tick_duration", Unit: "nanoseconds"}},
		Sample:        tp.samples,
		Location:      []*profile.Location{tp.loc},
		Function:      []*profile.Function{tp.fn},
		TimeNanos:     tp.started.UnixNano(),
		DurationNanos: time.Since(tp.started).Nanoseconds(),
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return p.Write(f)
}
