package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPerf_Snapshot(t *testing.T) {
	p := NewPerf(8)

	for _, ms := range []float64{10, 20, 30, 40} {
		p.Observe(ms, true)
	}
	p.Observe(500, false)

	snap := p.Snapshot()

	assert.EqualValues(t, 5, snap.Total)
	assert.EqualValues(t, 1, snap.Failures)
	assert.Equal(t, 5, snap.Window)
	assert.InDelta(t, 120.0, snap.MeanMs, 0.001)
	assert.Equal(t, 500.0, snap.MaxMs)
	assert.GreaterOrEqual(t, snap.P95Ms, snap.P50Ms)
}

func TestPerf_EmptyWindow(t *testing.T) {
	p := NewPerf(4)

	snap := p.Snapshot()

	assert.EqualValues(t, 0, snap.Total)
	assert.Zero(t, snap.MeanMs)
	assert.Zero(t, snap.P95Ms)
}

func TestPerf_WindowWraps(t *testing.T) {
	p := NewPerf(2)

	p.Observe(1, true)
	p.Observe(2, true)
	p.Observe(3, true)

	snap := p.Snapshot()

	// Total counts everything; the window keeps only the newest samples.
	assert.EqualValues(t, 3, snap.Total)
	assert.Equal(t, 2, snap.Window)
	assert.Equal(t, 3.0, snap.MaxMs)
}

func TestPerf_Reset(t *testing.T) {
	p := NewPerf(4)
	p.Observe(10, true)

	p.Reset()

	snap := p.Snapshot()
	assert.EqualValues(t, 0, snap.Total)
	assert.Equal(t, 0, snap.Window)
}
