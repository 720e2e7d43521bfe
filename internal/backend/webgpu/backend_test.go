//go:build windows

package webgpu

import (
	"math"
	"math/rand"
	"testing"

	"github.com/lumen-ml/lumen/internal/backend/cpu"
	"github.com/lumen-ml/lumen/internal/splat"
)

// TestBackward_MatchesCPU cross-checks the GPU backward kernel against
// the CPU reference on a multi-tile scene. Atomic accumulation order
// differs between the two, so comparisons are tolerance based.
func TestBackward_MatchesCPU(t *testing.T) {
	if !IsAvailable() {
		t.Skip("no WebGPU adapter available")
	}

	rng := rand.New(rand.NewSource(11))
	const n = 12
	gs := &splat.Gaussians{Channels: 3}
	for i := 0; i < n; i++ {
		gs.XY = append(gs.XY, rng.Float32()*64, rng.Float32()*64)
		gs.Conics = append(gs.Conics, 0.02+0.05*rng.Float32(), 0, 0.02+0.05*rng.Float32())
		gs.Colors = append(gs.Colors, rng.Float32(), rng.Float32(), rng.Float32())
		gs.Opacities = append(gs.Opacities, 0.3+0.3*rng.Float32())
	}
	grid := splat.NewTileGrid(64, 64)
	bins, err := splat.BuildBins(gs, grid)
	if err != nil {
		t.Fatalf("BuildBins: %v", err)
	}
	background := []float32{0.2, 0.1, 0.3}

	ref := cpu.New()
	st := ref.Rasterize(gs, grid, bins, background)

	nPix := grid.Width * grid.Height
	pix := &splat.PixelGrads{
		VOutput:      make([]float32, gs.Channels*nPix),
		VOutputAlpha: make([]float32, nPix),
	}
	for i := range pix.VOutput {
		pix.VOutput[i] = 2*rng.Float32() - 1
	}
	for i := range pix.VOutputAlpha {
		pix.VOutputAlpha[i] = 2*rng.Float32() - 1
	}

	want := splat.NewGradients(n, gs.Channels)
	ref.RasterizeBackward(gs, grid, bins, background, st, pix, want)

	gpu, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer gpu.Release()

	got := splat.NewGradients(n, gs.Channels)
	gpu.RasterizeBackward(gs, grid, bins, background, st, pix, got)

	compare := func(name string, x, y []float32) {
		t.Helper()
		for i := range x {
			diff := math.Abs(float64(x[i] - y[i]))
			if diff > 1e-4+1e-3*math.Abs(float64(x[i])) {
				t.Errorf("%s[%d]: cpu %f vs gpu %f", name, i, x[i], y[i])
			}
		}
	}
	compare("xy", want.XY.Float32s(), got.XY.Float32s())
	compare("xyAbs", want.XYAbs.Float32s(), got.XYAbs.Float32s())
	compare("conic", want.Conic.Float32s(), got.Conic.Float32s())
	compare("rgb", want.RGB.Float32s(), got.RGB.Float32s())
	compare("opacity", want.Opacity.Float32s(), got.Opacity.Float32s())
}
