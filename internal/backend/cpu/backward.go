package cpu

import (
	"fmt"
	"math"

	"github.com/lumen-ml/lumen/internal/group"
	"github.com/lumen-ml/lumen/internal/parallel"
	"github.com/lumen-ml/lumen/internal/splat"
)

// lane carries one pixel's replay state across the reverse bin walk.
// workspace accumulates rgb*alpha*T of the splats already visited in
// reverse order, i.e. the ones composited strictly behind the current
// splat in the forward pass.
type lane struct {
	px, py    float32
	valid     bool
	finalIdx  int32
	finalT    float32
	T         float32
	vOutAlpha float32
	vOut      [splat.MaxChannels]float32
	workspace [splat.MaxChannels]float32
	pixel     int
}

// warpScratch holds per-lane gradient contributions for one reduction
// round: position (2), absolute position (2), conic (3), opacity (1).
type warpScratch struct {
	vx, vy [group.WarpSize]float32
	ax, ay [group.WarpSize]float32
	c0, c1 [group.WarpSize]float32
	c2, op [group.WarpSize]float32
}

// RasterizeBackward computes per-Gaussian gradients from per-pixel loss
// gradients by replaying the forward compositing in reverse.
//
// Algorithm: per pixel, walk the tile bin from finalIndex-1 down to the
// bin start. The pre-blend transmittance at each step is recovered in
// closed form by inverting the forward recurrence T_after =
// T_before*(1-alpha), so no per-step transmittance was ever stored.
// Each valid (pixel, Gaussian) visit produces the partial derivatives
// of the blended color w.r.t. color, alpha, density exponent, conic,
// and center; color gradients are added atomically per visit, the rest
// are tree-reduced across a 32-lane warp with a single combined atomic
// add per component.
//
// out must be pre-zeroed by the caller; this pass only adds.
//
// References:
//   - Kerbl et al., "3D Gaussian Splatting for Real-Time Radiance Field
//     Rendering" (2023), supplemental gradient derivation.
func (cpu *CPUBackend) RasterizeBackward(gs *splat.Gaussians, grid splat.TileGrid, bins *splat.Bins,
	background []float32, state *splat.RenderState, pix *splat.PixelGrads, out *splat.Gradients) {
	if err := splat.ValidateBackward(gs, grid, bins, background, state, pix, out); err != nil {
		panic(fmt.Sprintf("rasterizeBackward: %v", err))
	}

	parallel.ForTiles(grid.TilesX, grid.TilesY, cpu.pool, func(tx, ty int) {
		cpu.backwardTile(gs, grid, bins, background, state, pix, out, tx, ty)
	})
}

func (cpu *CPUBackend) backwardTile(gs *splat.Gaussians, grid splat.TileGrid, bins *splat.Bins,
	background []float32, state *splat.RenderState, pix *splat.PixelGrads, out *splat.Gradients, tx, ty int) {
	start, end := bins.Range(ty*grid.TilesX + tx)
	if start == end {
		return
	}

	// One 32x32 lane block per tile; each row of 32 lanes is a warp
	// that walks the bin in lockstep.
	var lanes [group.WarpSize]lane
	var scratch warpScratch
	x0, y0 := tx*splat.TileSize, ty*splat.TileSize
	for row := 0; row < splat.TileSize; row++ {
		y := y0 + row
		cpu.initWarp(&lanes, gs.Channels, grid, state, pix, x0, y)
		cpu.backwardWarp(&lanes, &scratch, gs, bins, background, out, start, end)
	}
}

func (cpu *CPUBackend) initWarp(lanes *[group.WarpSize]lane, channels int, grid splat.TileGrid,
	state *splat.RenderState, pix *splat.PixelGrads, x0, y int) {
	for i := range lanes {
		ln := &lanes[i]
		x := x0 + i
		ln.valid = x < grid.Width && y < grid.Height
		if !ln.valid {
			// Out-of-bounds lanes never contribute but still reach
			// every reduction (predication, not divergence).
			ln.finalIdx = 0
			continue
		}
		ln.pixel = y*grid.Width + x
		ln.px = float32(x) + 0.5
		ln.py = float32(y) + 0.5
		ln.finalT = state.FinalT[ln.pixel]
		ln.T = ln.finalT
		ln.finalIdx = state.FinalIndex[ln.pixel]
		ln.vOutAlpha = pix.VOutputAlpha[ln.pixel]
		for c := 0; c < channels; c++ {
			ln.vOut[c] = pix.VOutput[ln.pixel*channels+c]
			ln.workspace[c] = 0
		}
	}
}

// backwardWarp walks one warp's bin range in reverse, accumulating
// per-Gaussian gradients. All 32 lanes visit the same Gaussian per
// step; rejected lanes contribute zeros to the reduction.
func (cpu *CPUBackend) backwardWarp(lanes *[group.WarpSize]lane, scratch *warpScratch,
	gs *splat.Gaussians, bins *splat.Bins, background []float32, out *splat.Gradients, start, end int32) {
	ch := gs.Channels

	for idx := end - 1; idx >= start; idx-- {
		g := bins.IDs[idx]
		gx := gs.XY[2*g]
		gy := gs.XY[2*g+1]
		ca, cb, cc := gs.Conics[3*g], gs.Conics[3*g+1], gs.Conics[3*g+2]
		opac := gs.Opacities[g]
		rgb := gs.Colors[int(g)*ch : int(g)*ch+ch]

		hit := false
		for i := range lanes {
			ln := &lanes[i]
			scratch.vx[i], scratch.vy[i] = 0, 0
			scratch.ax[i], scratch.ay[i] = 0, 0
			scratch.c0[i], scratch.c1[i], scratch.c2[i] = 0, 0, 0
			scratch.op[i] = 0

			// Rejection predicate: out of bounds, not part of this
			// pixel's forward blend, outside the density's support, or
			// below the visibility threshold.
			if !ln.valid || idx >= ln.finalIdx {
				continue
			}
			dx := gx - ln.px
			dy := gy - ln.py
			sigma := 0.5*(ca*dx*dx+cc*dy*dy) + cb*dx*dy
			if sigma < 0 {
				continue
			}
			vis := float32(math.Exp(float64(-sigma)))
			alpha := opac * vis
			if alpha > splat.AlphaClamp {
				alpha = splat.AlphaClamp
			}
			if alpha < splat.MinAlpha {
				continue
			}
			hit = true

			// Invert T_after = T_before*(1-alpha) to recover the
			// transmittance the forward pass blended with.
			ra := 1 / (1 - alpha)
			ln.T *= ra
			fac := alpha * ln.T

			// Color gradient is independent additive work per visit;
			// it is added directly, not warp-reduced.
			for c := 0; c < ch; c++ {
				out.RGB.Add(int(g)*ch+c, fac*ln.vOut[c])
			}

			// d(pixel color)/d(alpha): this splat's own contribution
			// plus the attenuation of everything behind it (workspace)
			// and of the background.
			vAlpha := float32(0)
			for c := 0; c < ch; c++ {
				vAlpha += (rgb[c]*ln.T - ln.workspace[c]*ra) * ln.vOut[c]
				ln.workspace[c] += rgb[c] * fac
			}
			vAlpha += ln.finalT * ra * ln.vOutAlpha
			for c := 0; c < ch; c++ {
				vAlpha -= ln.finalT * ra * background[c] * ln.vOut[c]
			}

			// Chain rule through alpha = opacity*exp(-sigma).
			vSigma := -opac * vis * vAlpha

			vx := vSigma * (ca*dx + cb*dy)
			vy := vSigma * (cb*dx + cc*dy)
			scratch.vx[i] = vx
			scratch.vy[i] = vy
			scratch.ax[i] = abs32(vx)
			scratch.ay[i] = abs32(vy)
			scratch.c0[i] = 0.5 * vSigma * dx * dx
			scratch.c1[i] = vSigma * dx * dy
			scratch.c2[i] = 0.5 * vSigma * dy * dy
			scratch.op[i] = vis * vAlpha
		}

		if !hit {
			continue
		}

		// Warp reduction, then one atomic add per component by the
		// designated writer.
		out.XY.Add(int(2*g), cpu.reduce.Sum(scratch.vx[:]))
		out.XY.Add(int(2*g+1), cpu.reduce.Sum(scratch.vy[:]))
		out.XYAbs.Add(int(2*g), cpu.reduce.Sum(scratch.ax[:]))
		out.XYAbs.Add(int(2*g+1), cpu.reduce.Sum(scratch.ay[:]))
		out.Conic.Add(int(3*g), cpu.reduce.Sum(scratch.c0[:]))
		out.Conic.Add(int(3*g+1), cpu.reduce.Sum(scratch.c1[:]))
		out.Conic.Add(int(3*g+2), cpu.reduce.Sum(scratch.c2[:]))
		out.Opacity.Add(int(g), cpu.reduce.Sum(scratch.op[:]))
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
