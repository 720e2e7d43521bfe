package accum

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_AddLoad(t *testing.T) {
	b := New(4)
	require.Equal(t, 4, b.Len())

	b.Add(0, 1.5)
	b.Add(0, 2.5)
	b.Add(3, -1)

	assert.InDelta(t, 4.0, b.Load(0), 1e-6)
	assert.Equal(t, float32(0), b.Load(1))
	assert.InDelta(t, -1.0, b.Load(3), 1e-6)
}

// TestBuffer_ConcurrentAdd verifies that concurrent adds never lose
// updates. Integer-valued float32 sums below 2^24 are exact, so the
// result must match exactly regardless of interleaving.
func TestBuffer_ConcurrentAdd(t *testing.T) {
	const (
		workers = 16
		perWork = 10000
	)
	b := New(2)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWork; i++ {
				b.Add(0, 1)
				b.Add(1, 2)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, float32(workers*perWork), b.Load(0))
	assert.Equal(t, float32(2*workers*perWork), b.Load(1))
}

func TestBuffer_Zero(t *testing.T) {
	b := New(3)
	b.Add(1, 7)
	b.Zero()
	for i := 0; i < b.Len(); i++ {
		assert.Equal(t, float32(0), b.Load(i))
	}
}

func TestBuffer_Float32s(t *testing.T) {
	b := New(2)
	b.Add(0, 3)
	snap := b.Float32s()
	b.Add(0, 1)

	// Snapshot is a copy, not a view.
	assert.Equal(t, []float32{3, 0}, snap)
	assert.Equal(t, float32(4), b.Load(0))
}
