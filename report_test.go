package eventsync

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuccessRate(t *testing.T) {
	rate, ok := SuccessRate(0, 0)
	assert.False(t, ok)
	assert.Zero(t, rate)

	rate, ok = SuccessRate(17, 20)
	assert.True(t, ok)
	assert.InDelta(t, 0.85, rate, 1e-9)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		recorded Tally
		synced   Tally
		success  float64
	}{
		{"all synced", Tally{KindA: 10, KindB: 10}, Tally{KindA: 10, KindB: 10}, 100},
		{"exactly at threshold", Tally{KindA: 100, KindB: 100}, Tally{KindA: 85, KindB: 85}, 100},
		{"one kind below", Tally{KindA: 100, KindB: 100}, Tally{KindA: 100, KindB: 84}, 0},
		{"nothing recorded", Tally{}, Tally{}, 0},
		{"one kind never recorded", Tally{KindA: 5}, Tally{KindA: 5}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Evaluate(TickStats{Recorded: tt.recorded, Synced: tt.synced}, DefaultThreshold)
			assert.Equal(t, tt.success, o.Success)
			assert.Equal(t, 100-tt.success, o.Failure)
			assert.Equal(t, tt.success == 100, o.Passed())
			for _, k := range kinds {
				assert.False(t, math.IsNaN(o.Rates[k]), "rate of %s must not be NaN", k)
			}
		})
	}
}

func TestWriteTickStats(t *testing.T) {
	var buf bytes.Buffer
	writeTickStats(&buf, TickStats{
		Tick:      3,
		Generated: Tally{KindA: 40, KindB: 35},
		Recorded:  Tally{KindA: 40, KindB: 35},
		Synced:    Tally{KindA: 22},
	})
	want := "\n// second 3\n----\n" +
		"Event A: Fired 40 times, In handler 40, In repo 22\n" +
		"Event B: Fired 35 times, In handler 35, In repo 0\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteOutcome(t *testing.T) {
	var buf bytes.Buffer
	writeOutcome(&buf, &Outcome{Success: 0, Failure: 100, Threshold: 0.85})
	want := "\n------ OVERALL RESULTS ------\n" +
		"Success results passed with 0.0\n" +
		"Fail results failed with 100.0 (required 0.85)\n" +
		"---------------------------------\n"
	assert.Equal(t, want, buf.String())
}
