package splat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oneSplat(x, y float32) *Gaussians {
	return &Gaussians{
		XY:        []float32{x, y},
		Conics:    []float32{1, 0, 1},
		Colors:    []float32{1},
		Opacities: []float32{1},
		Channels:  1,
	}
}

func TestGaussians_Validate(t *testing.T) {
	gs := oneSplat(5, 5)
	require.NoError(t, gs.Validate())

	bad := oneSplat(5, 5)
	bad.Conics = bad.Conics[:2]
	assert.Error(t, bad.Validate())

	bad = oneSplat(5, 5)
	bad.Channels = 0
	assert.Error(t, bad.Validate())

	bad = oneSplat(5, 5)
	bad.Channels = MaxChannels + 1
	bad.Colors = make([]float32, MaxChannels+1)
	assert.Error(t, bad.Validate())
}

func TestNewTileGrid(t *testing.T) {
	grid := NewTileGrid(100, 40)
	assert.Equal(t, 4, grid.TilesX)
	assert.Equal(t, 2, grid.TilesY)
	assert.Equal(t, 8, grid.NumTiles())
}

func TestBuildBins_SingleSplat(t *testing.T) {
	gs := oneSplat(16, 16)
	grid := NewTileGrid(64, 64)
	bins, err := BuildBins(gs, grid)
	require.NoError(t, err)

	// Unit-variance splat at (16,16): 3-sigma extent stays inside
	// tile 0.
	start, end := bins.Range(0)
	assert.Equal(t, int32(0), start)
	assert.Equal(t, int32(1), end)
	for tile := 1; tile < grid.NumTiles(); tile++ {
		s, e := bins.Range(tile)
		assert.Equal(t, s, e, "tile %d should be empty", tile)
	}
}

func TestBuildBins_SpansTiles(t *testing.T) {
	// Broad splat on the corner shared by four tiles.
	gs := oneSplat(32, 32)
	gs.Conics = []float32{0.04, 0, 0.04} // sigma 5px
	grid := NewTileGrid(64, 64)
	bins, err := BuildBins(gs, grid)
	require.NoError(t, err)

	for tile := 0; tile < 4; tile++ {
		s, e := bins.Range(tile)
		assert.Equal(t, int32(1), e-s, "tile %d", tile)
	}
}

func TestBuildBins_DepthSort(t *testing.T) {
	gs := &Gaussians{
		XY:        []float32{10, 10, 11, 10, 12, 10},
		Conics:    []float32{1, 0, 1, 1, 0, 1, 1, 0, 1},
		Colors:    []float32{1, 1, 1},
		Opacities: []float32{0.5, 0.5, 0.5},
		Depths:    []float32{3, 1, 2},
		Channels:  1,
	}
	grid := NewTileGrid(32, 32)
	bins, err := BuildBins(gs, grid)
	require.NoError(t, err)

	start, end := bins.Range(0)
	require.Equal(t, int32(3), end-start)
	assert.Equal(t, []int32{1, 2, 0}, bins.IDs[start:end])
}

func TestBuildBins_DropsDegenerateConic(t *testing.T) {
	gs := oneSplat(10, 10)
	gs.Conics = []float32{1, 2, 1} // det = 1*1 - 2*2 < 0
	grid := NewTileGrid(32, 32)
	bins, err := BuildBins(gs, grid)
	require.NoError(t, err)
	assert.Empty(t, bins.IDs)
}

func TestBuildBins_OffscreenCulled(t *testing.T) {
	gs := oneSplat(-500, -500)
	grid := NewTileGrid(64, 64)
	bins, err := BuildBins(gs, grid)
	require.NoError(t, err)
	assert.Empty(t, bins.IDs)
}

func TestValidateDispatch(t *testing.T) {
	gs := oneSplat(5, 5)
	grid := NewTileGrid(32, 32)
	bins, err := BuildBins(gs, grid)
	require.NoError(t, err)

	assert.NoError(t, ValidateDispatch(gs, grid, bins, []float32{0}))
	assert.Error(t, ValidateDispatch(gs, grid, bins, []float32{0, 0}), "background channel mismatch")

	badBins := &Bins{IDs: []int32{5}, Ranges: bins.Ranges}
	assert.Error(t, ValidateDispatch(gs, grid, badBins, []float32{0}), "bin id out of range")
}

func TestGradients_Zero(t *testing.T) {
	g := NewGradients(2, 3)
	g.XY.Add(0, 1)
	g.RGB.Add(5, 2)
	g.Zero()
	assert.Equal(t, float32(0), g.XY.Load(0))
	assert.Equal(t, float32(0), g.RGB.Load(5))
}
