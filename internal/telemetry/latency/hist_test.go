package latency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHistogram_PercentilesOverKnownSamples(t *testing.T) {
	h := NewHistogram(10)
	for _, ms := range []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100} {
		h.Record(time.Duration(ms) * time.Millisecond)
	}

	assert.InDelta(t, 55, h.P50(), 1e-9)
	assert.Equal(t, 10, h.Count())
}

func TestHistogram_RollingWindowEvictsOldest(t *testing.T) {
	h := NewHistogram(3)
	h.Record(10 * time.Millisecond)
	h.Record(20 * time.Millisecond)
	h.Record(30 * time.Millisecond)
	h.Record(1000 * time.Millisecond) // evicts the 10ms sample

	assert.Equal(t, 3, h.Count())
	assert.InDelta(t, 30, h.P50(), 1e-9)
}

func TestHistogram_EmptyIsZero(t *testing.T) {
	h := NewHistogram(10)
	snap := h.Snapshot()
	assert.Zero(t, snap.P50)
	assert.Zero(t, snap.Count)
}

func TestHistogram_Reset(t *testing.T) {
	h := NewHistogram(5)
	h.Record(50 * time.Millisecond)
	h.Reset()
	assert.Zero(t, h.Count())
}
