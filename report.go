package eventsync

import (
	"fmt"
	"io"
)

// TickStats is a point-in-time view of the pipeline.
type TickStats struct {
	Tick      uint64
	Generated Tally
	Recorded  Tally // local counter
	Synced    Tally // durable sink
}

// Outcome is the end-of-run evaluation.
type Outcome struct {
	TickStats

	RunID     string
	Rates     map[Kind]float64
	Threshold float64
	Success   float64 // 100 when every kind meets the threshold, else 0
	Failure   float64
}

// Passed reports whether every kind met the threshold.
func (o *Outcome) Passed() bool {
	return o.Success == 100.0
}

// SuccessRate returns synced/recorded. With nothing recorded the ratio is
// undefined; it is reported as 0 and ok is false so it never qualifies.
func SuccessRate(synced, recorded uint64) (rate float64, ok bool) {
	if recorded == 0 {
		return 0, false
	}
	return float64(synced) / float64(recorded), true
}

// Evaluate scores stats against threshold.
func Evaluate(stats TickStats, threshold float64) *Outcome {
	o := &Outcome{
		TickStats: stats,
		Rates:     make(map[Kind]float64, len(kinds)),
		Threshold: threshold,
		Success:   100.0,
	}
	for _, k := range kinds {
		rate, ok := SuccessRate(stats.Synced.Get(k), stats.Recorded.Get(k))
		o.Rates[k] = rate
		if !ok || rate < threshold {
			o.Success = 0.0
		}
	}
	o.Failure = 100.0 - o.Success
	return o
}

func writeTickStats(w io.Writer, s TickStats) {
	fmt.Fprintf(w, "\n// second %d\n", s.Tick)
	fmt.Fprintln(w, "----")
	for _, k := range kinds {
		fmt.Fprintf(w, "Event %s: Fired %d times, In handler %d, In repo %d\n",
			k, s.Generated.Get(k), s.Recorded.Get(k), s.Synced.Get(k))
	}
}

func writeOutcome(w io.Writer, o *Outcome) {
	fmt.Fprintln(w, "\n------ OVERALL RESULTS ------")
	fmt.Fprintf(w, "Success results passed with %.1f\n", o.Success)
	fmt.Fprintf(w, "Fail results failed with %.1f (required %.2f)\n", o.Failure, o.Threshold)
	fmt.Fprintln(w, "---------------------------------")
}
