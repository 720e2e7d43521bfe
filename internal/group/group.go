// Package group implements reduction across a fixed-size cooperative
// lane group, the CPU analogue of a warp shuffle reduction. The
// surrounding kernel keeps per-lane values in scratch slices, reduces
// them here, and has a single designated lane write the combined result.
package group

// WarpSize is the number of lanes in a cooperative group. Tile rows in
// the CPU backward kernel form one warp each.
const WarpSize = 32

// Reducer sums per-lane values. Implementations must be associative and
// commutative so that accumulation order never affects totals beyond
// float rounding.
type Reducer interface {
	// Sum reduces lanes to a single value. The slice is scratch space
	// and may be clobbered, mirroring shared-memory reduction.
	Sum(lanes []float32) float32
}

// Tree reduces by folding the top half of the lanes onto the bottom
// half until one value remains, matching the stride-halving pattern of
// a hardware tree reduction.
type Tree struct{}

// Sum implements Reducer. Clobbers lanes.
func (Tree) Sum(lanes []float32) float32 {
	if len(lanes) == 0 {
		return 0
	}
	for n := len(lanes); n > 1; n = (n + 1) / 2 {
		half := n / 2
		for i := 0; i < half; i++ {
			lanes[i] += lanes[n-1-i]
		}
	}
	return lanes[0]
}
