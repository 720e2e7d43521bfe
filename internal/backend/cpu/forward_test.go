package cpu

import (
	"math"
	"testing"

	"github.com/lumen-ml/lumen/internal/splat"
)

func singleSplatScene() *splat.Gaussians {
	// Isotropic unit-variance splat centered exactly on pixel (8,8).
	return &splat.Gaussians{
		XY:        []float32{8.5, 8.5},
		Conics:    []float32{1, 0, 1},
		Colors:    []float32{1},
		Opacities: []float32{1},
		Channels:  1,
	}
}

func mustBins(t *testing.T, gs *splat.Gaussians, grid splat.TileGrid) *splat.Bins {
	t.Helper()
	bins, err := splat.BuildBins(gs, grid)
	if err != nil {
		t.Fatalf("BuildBins: %v", err)
	}
	return bins
}

func TestRasterize_SingleCenteredGaussian(t *testing.T) {
	gs := singleSplatScene()
	grid := splat.NewTileGrid(16, 16)
	bins := mustBins(t, gs, grid)

	backend := New()
	st := backend.Rasterize(gs, grid, bins, []float32{0})

	// At the center pixel: sigma = 0, vis = 1, alpha capped at 0.99.
	p := 8*grid.Width + 8
	if got := st.Image[p]; math.Abs(float64(got-0.99)) > 1e-6 {
		t.Errorf("center pixel = %f, want 0.99", got)
	}
	if got := st.FinalT[p]; math.Abs(float64(got-0.01)) > 1e-6 {
		t.Errorf("center FinalT = %f, want 0.01", got)
	}
	if st.FinalIndex[p] != 1 {
		t.Errorf("center FinalIndex = %d, want 1", st.FinalIndex[p])
	}

	// One pixel over: sigma = 0.5, alpha = exp(-0.5).
	q := 8*grid.Width + 9
	wantAlpha := float32(math.Exp(-0.5))
	if got := st.Image[q]; math.Abs(float64(got-wantAlpha)) > 1e-5 {
		t.Errorf("neighbor pixel = %f, want %f", got, wantAlpha)
	}

	// A pixel far outside the 3-sigma bin extent is untouched.
	far := 0*grid.Width + 15
	if st.Image[far] != 0 || st.FinalT[far] != 1 {
		t.Errorf("far pixel = (%f, T=%f), want (0, 1)", st.Image[far], st.FinalT[far])
	}
}

func TestRasterize_BackgroundComposited(t *testing.T) {
	gs := singleSplatScene()
	gs.Opacities[0] = 0.5
	grid := splat.NewTileGrid(16, 16)
	bins := mustBins(t, gs, grid)

	backend := New()
	st := backend.Rasterize(gs, grid, bins, []float32{0.8})

	// pixel = rgb*alpha + T*background with a single layer.
	p := 8*grid.Width + 8
	want := float32(1*0.5 + 0.5*0.8)
	if math.Abs(float64(st.Image[p]-want)) > 1e-6 {
		t.Errorf("center pixel = %f, want %f", st.Image[p], want)
	}
}

// TestRasterize_EarlyTermination stacks opaque splats so transmittance
// saturates; FinalIndex must record where blending actually stopped,
// short of the bin end.
func TestRasterize_EarlyTermination(t *testing.T) {
	const n = 5
	gs := &splat.Gaussians{Channels: 1}
	for i := 0; i < n; i++ {
		gs.XY = append(gs.XY, 8.5, 8.5)
		gs.Conics = append(gs.Conics, 1, 0, 1)
		gs.Colors = append(gs.Colors, 1)
		gs.Opacities = append(gs.Opacities, 1)
	}
	grid := splat.NewTileGrid(16, 16)
	bins := mustBins(t, gs, grid)

	backend := New()
	st := backend.Rasterize(gs, grid, bins, []float32{0})

	p := 8*grid.Width + 8
	if st.FinalIndex[p] >= n {
		t.Errorf("FinalIndex = %d, want early stop before %d", st.FinalIndex[p], n)
	}
	if st.FinalT[p] > 1e-3 {
		t.Errorf("FinalT = %f, want saturated", st.FinalT[p])
	}
}

// TestRasterize_MultiChannel runs a 3-channel scene and checks each
// channel blends independently.
func TestRasterize_MultiChannel(t *testing.T) {
	gs := &splat.Gaussians{
		XY:        []float32{8.5, 8.5},
		Conics:    []float32{1, 0, 1},
		Colors:    []float32{0.2, 0.5, 0.9},
		Opacities: []float32{0.5},
		Channels:  3,
	}
	grid := splat.NewTileGrid(16, 16)
	bins := mustBins(t, gs, grid)

	backend := New()
	st := backend.Rasterize(gs, grid, bins, []float32{0, 0, 0})

	p := 8*grid.Width + 8
	for c, rgb := range []float32{0.2, 0.5, 0.9} {
		want := rgb * 0.5
		if got := st.Image[3*p+c]; math.Abs(float64(got-want)) > 1e-6 {
			t.Errorf("channel %d = %f, want %f", c, got, want)
		}
	}
}

func TestRasterize_PanicsOnBadBackground(t *testing.T) {
	gs := singleSplatScene()
	grid := splat.NewTileGrid(16, 16)
	bins := mustBins(t, gs, grid)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on channel mismatch")
		}
	}()
	New().Rasterize(gs, grid, bins, []float32{0, 0})
}
