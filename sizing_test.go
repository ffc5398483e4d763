package parfor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSizer_Next(t *testing.T) {
	z := sizer{
		workers:      4,
		firstDivisor: DefaultFirstBundleDivisor,
		target:       DefaultTargetBundleTime,
		epsilon:      DefaultCostEpsilon,
	}

	tests := []struct {
		name      string
		count     int
		submitted int
		finished  int
		runTime   time.Duration
		want      int
	}{
		{"first bundle probes", 1000, 0, 0, 0, 25},
		{"first bundle of a tiny run is one item", 10, 0, 0, 0, 1},
		{"no feedback yet while bundles are in flight", 1000, 50, 0, 0, 25},
		{"5ms target at 10us per item", 100000, 2000, 1000, 10 * time.Millisecond, 500},
		{"expensive items get single-item bundles", 1000, 10, 10, time.Second, 1},
		{"free items get slabs", 1000, 100, 100, 0, 250},
		{"slab clamped to what is left", 1000, 900, 800, 0, 100},
		{"adaptive size clamped to what is left", 100000, 99990, 99000, time.Millisecond, 10},
		{"nothing left", 100, 100, 50, time.Millisecond, 0},
		{"runtime exactly epsilon counts as free", 1000, 100, 100, DefaultCostEpsilon, 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, z.next(tt.count, tt.submitted, tt.finished, tt.runTime))
		})
	}
}

func TestSizer_Tunable(t *testing.T) {
	z := sizer{workers: 2, firstDivisor: 1, target: 50 * time.Millisecond, epsilon: time.Millisecond}

	assert.Equal(t, 500, z.next(1000, 0, 0, 0), "divisor 1 hands out half per worker")
	assert.Equal(t, 50, z.next(1000, 500, 100, 100*time.Millisecond), "1ms per item, 50ms target")
	assert.Equal(t, 500, z.next(1000, 100, 100, time.Millisecond), "at epsilon items are free")
}

func TestSizer_AlwaysWithinBounds(t *testing.T) {
	z := sizer{workers: 3, firstDivisor: 10, target: 5 * time.Millisecond, epsilon: time.Microsecond}

	for _, count := range []int{1, 2, 29, 30, 31, 1000} {
		for submitted := 0; submitted < count; submitted += max(1, count/7) {
			for _, rt := range []time.Duration{0, time.Nanosecond, time.Microsecond + 1, time.Hour} {
				got := z.next(count, submitted, submitted/2, rt)
				assert.GreaterOrEqual(t, got, 1)
				assert.LessOrEqual(t, got, count-submitted)
			}
		}
	}
}

func TestCorrectElapsed(t *testing.T) {
	tests := []struct {
		name          string
		in            time.Duration
		want          time.Duration
		wantCorrected bool
	}{
		{"normal", 3 * time.Millisecond, 3 * time.Millisecond, false},
		{"zero", 0, 0, false},
		{"upper bound is plausible", 1000 * time.Second, 1000 * time.Second, false},
		{"midnight wrap", -(24*time.Hour - 20*time.Millisecond), 20 * time.Millisecond, true},
		{"small backwards step", -time.Second, AnomalyElapsed, true},
		{"far in the past", -48 * time.Hour, AnomalyElapsed, true},
		{"too long", 1001 * time.Second, AnomalyElapsed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, corrected := correctElapsed(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCorrected, corrected)
			assert.GreaterOrEqual(t, got, time.Duration(0))
		})
	}
}
