package splat

import (
	"fmt"
	"math"
	"sort"
)

// TileSize is the edge length in pixels of a screen tile. It matches
// the fixed 32x32 lane block the CPU backward kernel simulates.
const TileSize = 32

// TileGrid describes the screen and its tiling.
type TileGrid struct {
	Width  int
	Height int
	TilesX int
	TilesY int
}

// NewTileGrid builds the grid covering a width x height image.
func NewTileGrid(width, height int) TileGrid {
	return TileGrid{
		Width:  width,
		Height: height,
		TilesX: (width + TileSize - 1) / TileSize,
		TilesY: (height + TileSize - 1) / TileSize,
	}
}

// NumTiles returns the total tile count.
func (t TileGrid) NumTiles() int {
	return t.TilesX * t.TilesY
}

// Bins assigns each tile a contiguous, depth-sorted range of Gaussian
// ids. Produced by BuildBins or an external sorter; read-only for both
// rasterizer passes.
type Bins struct {
	// IDs is the concatenation of every tile's Gaussian ids, each
	// tile's segment sorted near-to-far.
	IDs []int32

	// Ranges holds [start, end) per tile, two values each.
	Ranges []int32
}

// Range returns the id range for tile t.
func (b *Bins) Range(t int) (start, end int32) {
	return b.Ranges[2*t], b.Ranges[2*t+1]
}

// radius3Sigma returns the 3-sigma pixel radius of a splat from its
// conic, or a negative value if the conic is degenerate.
//
// The covariance is the conic's inverse; its larger eigenvalue gives
// the major-axis variance.
func radius3Sigma(a, b, c float32) float32 {
	det := float64(a)*float64(c) - float64(b)*float64(b)
	if det <= 0 {
		return -1
	}
	// Covariance entries: (c, -b, a) / det.
	c00 := float64(c) / det
	c11 := float64(a) / det
	c01 := -float64(b) / det
	mid := 0.5 * (c00 + c11)
	d := math.Sqrt(math.Max(mid*mid-(c00*c11-c01*c01), 0.01))
	lambda := math.Max(mid+d, mid-d)
	if lambda <= 0 {
		return -1
	}
	return float32(math.Ceil(3 * math.Sqrt(lambda)))
}

// BuildBins assigns Gaussians to every tile their 3-sigma extent
// touches and sorts each tile's segment by depth. With gs.Depths nil,
// array order is taken as the depth order (nearest first). Degenerate
// conics are dropped.
func BuildBins(gs *Gaussians, grid TileGrid) (*Bins, error) {
	if err := gs.Validate(); err != nil {
		return nil, err
	}

	perTile := make([][]int32, grid.NumTiles())
	for i := 0; i < gs.Len(); i++ {
		r := radius3Sigma(gs.Conics[3*i], gs.Conics[3*i+1], gs.Conics[3*i+2])
		if r < 0 {
			continue
		}
		cx, cy := gs.XY[2*i], gs.XY[2*i+1]

		tx0 := clampTile(int(math.Floor(float64(cx-r)))/TileSize, grid.TilesX)
		tx1 := clampTile(int(math.Floor(float64(cx+r)))/TileSize, grid.TilesX)
		ty0 := clampTile(int(math.Floor(float64(cy-r)))/TileSize, grid.TilesY)
		ty1 := clampTile(int(math.Floor(float64(cy+r)))/TileSize, grid.TilesY)
		if cx+r < 0 || cy+r < 0 || cx-r >= float32(grid.Width) || cy-r >= float32(grid.Height) {
			continue
		}
		for ty := ty0; ty <= ty1; ty++ {
			for tx := tx0; tx <= tx1; tx++ {
				t := ty*grid.TilesX + tx
				perTile[t] = append(perTile[t], int32(i))
			}
		}
	}

	bins := &Bins{Ranges: make([]int32, 2*grid.NumTiles())}
	for t, ids := range perTile {
		if gs.Depths != nil {
			sort.SliceStable(ids, func(i, j int) bool {
				return gs.Depths[ids[i]] < gs.Depths[ids[j]]
			})
		}
		bins.Ranges[2*t] = int32(len(bins.IDs))
		bins.IDs = append(bins.IDs, ids...)
		bins.Ranges[2*t+1] = int32(len(bins.IDs))
	}
	return bins, nil
}

func clampTile(t, n int) int {
	if t < 0 {
		return 0
	}
	if t >= n {
		return n - 1
	}
	return t
}

// ValidateDispatch checks the full buffer contract of a rasterizer
// dispatch. Backends call it and panic on error: a size mismatch is a
// caller bug, not a recoverable condition.
func ValidateDispatch(gs *Gaussians, grid TileGrid, bins *Bins, background []float32) error {
	if err := gs.Validate(); err != nil {
		return err
	}
	if len(background) != gs.Channels {
		return fmt.Errorf("splat: background has %d channels, want %d", len(background), gs.Channels)
	}
	if len(bins.Ranges) != 2*grid.NumTiles() {
		return fmt.Errorf("splat: bins cover %d tiles, grid has %d", len(bins.Ranges)/2, grid.NumTiles())
	}
	n := int32(gs.Len())
	for i, id := range bins.IDs {
		if id < 0 || id >= n {
			return fmt.Errorf("splat: bin id %d at %d out of range [0, %d)", id, i, n)
		}
	}
	return nil
}

// ValidateBackward extends ValidateDispatch with the backward-only
// buffers.
func ValidateBackward(gs *Gaussians, grid TileGrid, bins *Bins, background []float32,
	state *RenderState, pix *PixelGrads, out *Gradients) error {
	if err := ValidateDispatch(gs, grid, bins, background); err != nil {
		return err
	}
	p := grid.Width * grid.Height
	n := gs.Len()
	switch {
	case len(state.FinalT) != p || len(state.FinalIndex) != p:
		return fmt.Errorf("splat: render state sized for %d pixels, want %d", len(state.FinalT), p)
	case len(pix.VOutput) != gs.Channels*p || len(pix.VOutputAlpha) != p:
		return fmt.Errorf("splat: pixel grads sized for %d pixels, want %d", len(pix.VOutputAlpha), p)
	case out.XY.Len() != 2*n || out.XYAbs.Len() != 2*n || out.Conic.Len() != 3*n ||
		out.RGB.Len() != gs.Channels*n || out.Opacity.Len() != n:
		return fmt.Errorf("splat: gradient buffers not sized for %d Gaussians x %d channels", n, gs.Channels)
	}
	return nil
}
