package cpu

import (
	"fmt"
	"math"

	"github.com/lumen-ml/lumen/internal/parallel"
	"github.com/lumen-ml/lumen/internal/splat"
)

// Rasterize composites the binned Gaussians front to back.
//
// Per pixel: walk the tile's bin in depth order, evaluate each splat's
// density at the pixel center, blend rgb*alpha*T, and attenuate the
// transmittance T by (1-alpha). Blending stops early once T drops below
// splat.StopT. The background is composited behind everything with the
// remaining transmittance.
//
// The returned state records, per pixel, the final transmittance and
// the exclusive bin index where blending stopped; the backward pass
// replays from exactly these two values.
func (cpu *CPUBackend) Rasterize(gs *splat.Gaussians, grid splat.TileGrid, bins *splat.Bins, background []float32) *splat.RenderState {
	if err := splat.ValidateDispatch(gs, grid, bins, background); err != nil {
		panic(fmt.Sprintf("rasterize: %v", err))
	}

	st := splat.NewRenderState(grid, gs.Channels)
	parallel.ForTiles(grid.TilesX, grid.TilesY, cpu.pool, func(tx, ty int) {
		cpu.rasterizeTile(gs, grid, bins, background, st, tx, ty)
	})
	return st
}

func (cpu *CPUBackend) rasterizeTile(gs *splat.Gaussians, grid splat.TileGrid, bins *splat.Bins,
	background []float32, st *splat.RenderState, tx, ty int) {
	start, end := bins.Range(ty*grid.TilesX + tx)
	ch := gs.Channels

	x0, y0 := tx*splat.TileSize, ty*splat.TileSize
	x1 := min(x0+splat.TileSize, grid.Width)
	y1 := min(y0+splat.TileSize, grid.Height)

	var acc [splat.MaxChannels]float32
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			px := float32(x) + 0.5
			py := float32(y) + 0.5
			for c := 0; c < ch; c++ {
				acc[c] = 0
			}

			T := float32(1)
			last := start
			for idx := start; idx < end; idx++ {
				g := bins.IDs[idx]
				dx := gs.XY[2*g] - px
				dy := gs.XY[2*g+1] - py
				ca, cb, cc := gs.Conics[3*g], gs.Conics[3*g+1], gs.Conics[3*g+2]
				sigma := 0.5*(ca*dx*dx+cc*dy*dy) + cb*dx*dy
				if sigma < 0 {
					continue
				}
				vis := float32(math.Exp(float64(-sigma)))
				alpha := gs.Opacities[g] * vis
				if alpha > splat.AlphaClamp {
					alpha = splat.AlphaClamp
				}
				if alpha < splat.MinAlpha {
					continue
				}
				next := T * (1 - alpha)
				if next < splat.StopT {
					// Saturated: this splat and everything behind it
					// are invisible.
					break
				}
				for c := 0; c < ch; c++ {
					acc[c] += gs.Colors[int(g)*ch+c] * alpha * T
				}
				T = next
				last = idx + 1
			}

			pix := y*grid.Width + x
			st.FinalT[pix] = T
			st.FinalIndex[pix] = last
			for c := 0; c < ch; c++ {
				st.Image[pix*ch+c] = acc[c] + T*background[c]
			}
		}
	}
}
