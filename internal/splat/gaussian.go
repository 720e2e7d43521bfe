// Package splat defines the data model for the differentiable
// Gaussian-splatting rasterizer: projected Gaussian buffers, tile
// geometry, depth-sorted tile bins, per-pixel forward state, and the
// per-Gaussian gradient accumulators.
package splat

import (
	"fmt"

	"github.com/lumen-ml/lumen/internal/accum"
)

// Compositing constants shared by the forward and backward passes.
// The WGSL backward shader hardcodes the same values.
const (
	// MaxChannels bounds the runtime channel count. The backward pass
	// keeps a per-lane color workspace as a fixed arena of this size.
	MaxChannels = 8

	// AlphaClamp is the saturation cap applied to opacity*vis before
	// blending. Keeps the 1/(1-alpha) reverse-replay division away
	// from a zero denominator.
	AlphaClamp = 0.99

	// MinAlpha is the visibility threshold below which a Gaussian is
	// skipped by both passes.
	MinAlpha = 1.0 / 255.0

	// StopT is the forward-pass early-termination transmittance.
	StopT = 1e-4
)

// Gaussians holds the per-splat input buffers in struct-of-arrays
// layout. All slices are indexed by Gaussian id and are read-only for
// both rasterizer passes.
//
// Conics stores the inverse 2x2 covariance of each splat as three
// coefficients {a, b, c} of the quadratic form a*dx² + 2b*dx*dy + c*dy².
type Gaussians struct {
	XY        []float32 // 2 per Gaussian: screen-space center
	Conics    []float32 // 3 per Gaussian: {a, b, c}
	Colors    []float32 // Channels per Gaussian
	Opacities []float32 // 1 per Gaussian
	Depths    []float32 // optional, 1 per Gaussian; used only by BuildBins
	Channels  int
}

// Len returns the number of Gaussians.
func (g *Gaussians) Len() int {
	return len(g.Opacities)
}

// Validate checks buffer lengths against Len() and Channels.
func (g *Gaussians) Validate() error {
	n := g.Len()
	if g.Channels < 1 || g.Channels > MaxChannels {
		return fmt.Errorf("splat: channels %d out of range [1, %d]", g.Channels, MaxChannels)
	}
	if len(g.XY) != 2*n {
		return fmt.Errorf("splat: XY has %d values, want %d", len(g.XY), 2*n)
	}
	if len(g.Conics) != 3*n {
		return fmt.Errorf("splat: Conics has %d values, want %d", len(g.Conics), 3*n)
	}
	if len(g.Colors) != g.Channels*n {
		return fmt.Errorf("splat: Colors has %d values, want %d", len(g.Colors), g.Channels*n)
	}
	if g.Depths != nil && len(g.Depths) != n {
		return fmt.Errorf("splat: Depths has %d values, want %d", len(g.Depths), n)
	}
	return nil
}

// RenderState holds the per-pixel outputs of the forward pass that the
// backward pass replays from.
type RenderState struct {
	// Image is the composited output, Channels values per pixel,
	// row-major.
	Image []float32

	// FinalT is the transmittance remaining after the last blended
	// Gaussian at each pixel.
	FinalT []float32

	// FinalIndex is the exclusive upper bound into the sorted id array
	// where forward blending stopped for each pixel (saturation or
	// range exhaustion).
	FinalIndex []int32
}

// NewRenderState allocates forward-pass state for the given geometry.
func NewRenderState(grid TileGrid, channels int) *RenderState {
	p := grid.Width * grid.Height
	return &RenderState{
		Image:      make([]float32, channels*p),
		FinalT:     make([]float32, p),
		FinalIndex: make([]int32, p),
	}
}

// PixelGrads carries the incoming loss gradients for the backward pass.
type PixelGrads struct {
	// VOutput is d(loss)/d(pixel color), Channels values per pixel.
	VOutput []float32

	// VOutputAlpha is d(loss)/d(accumulated alpha), 1 per pixel.
	VOutputAlpha []float32
}

// Gradients is the per-Gaussian gradient output set. Every buffer is a
// shared accumulator: the only legal mutation during a backward
// dispatch is an atomic add, so many tiles may target the same Gaussian
// concurrently. Callers must Zero() between dispatches.
type Gradients struct {
	XY      *accum.Buffer // 2 per Gaussian
	XYAbs   *accum.Buffer // 2 per Gaussian, sign-free magnitude
	Conic   *accum.Buffer // 3 per Gaussian
	RGB     *accum.Buffer // Channels per Gaussian
	Opacity *accum.Buffer // 1 per Gaussian
}

// NewGradients allocates zeroed gradient accumulators for n Gaussians.
func NewGradients(n, channels int) *Gradients {
	return &Gradients{
		XY:      accum.New(2 * n),
		XYAbs:   accum.New(2 * n),
		Conic:   accum.New(3 * n),
		RGB:     accum.New(channels * n),
		Opacity: accum.New(n),
	}
}

// Zero resets all accumulators.
func (g *Gradients) Zero() {
	g.XY.Zero()
	g.XYAbs.Zero()
	g.Conic.Zero()
	g.RGB.Zero()
	g.Opacity.Zero()
}

// Backend rasterizes binned Gaussians and differentiates the result.
//
// Rasterize composites front to back per tile bin and returns the
// per-pixel state the backward pass needs. RasterizeBackward replays
// compositing in reverse and accumulates per-Gaussian gradients into
// out; out must be pre-zeroed, the pass only adds.
//
// Both methods panic on malformed buffer sizes (caller contract
// violations); degenerate numeric inputs are silently skipped.
type Backend interface {
	Name() string
	Rasterize(gs *Gaussians, grid TileGrid, bins *Bins, background []float32) *RenderState
	RasterizeBackward(gs *Gaussians, grid TileGrid, bins *Bins, background []float32,
		state *RenderState, pix *PixelGrads, out *Gradients)
}
