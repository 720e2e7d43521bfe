// Package accum provides atomically-accumulated float32 buffers.
//
// Gradient outputs of the backward pass are shared by every tile that
// references a Gaussian, so the only legal mutation is an atomic add.
// Buffer makes that the only operation available: there is no Store,
// which rules out the non-atomic writes that a raw []float32 would
// permit.
package accum

import (
	"math"
	"sync/atomic"
)

// Buffer is a fixed-size float32 accumulator safe for concurrent Add
// from any number of goroutines. Values are held as IEEE-754 bit
// patterns and updated with a compare-and-swap loop, the CPU analogue
// of a device-side float atomicAdd.
type Buffer struct {
	bits []uint32
}

// New returns a zeroed Buffer of n values.
func New(n int) *Buffer {
	return &Buffer{bits: make([]uint32, n)}
}

// Len returns the number of values.
func (b *Buffer) Len() int {
	return len(b.bits)
}

// Add atomically adds v to element i.
func (b *Buffer) Add(i int, v float32) {
	if v == 0 {
		return
	}
	addr := &b.bits[i]
	for {
		old := atomic.LoadUint32(addr)
		upd := math.Float32bits(math.Float32frombits(old) + v)
		if atomic.CompareAndSwapUint32(addr, old, upd) {
			return
		}
	}
}

// Load atomically reads element i.
func (b *Buffer) Load(i int) float32 {
	return math.Float32frombits(atomic.LoadUint32(&b.bits[i]))
}

// Zero resets every element. Not safe concurrently with Add.
func (b *Buffer) Zero() {
	for i := range b.bits {
		atomic.StoreUint32(&b.bits[i], 0)
	}
}

// Float32s returns a snapshot copy of the buffer contents.
func (b *Buffer) Float32s() []float32 {
	out := make([]float32, len(b.bits))
	for i := range b.bits {
		out[i] = b.Load(i)
	}
	return out
}
