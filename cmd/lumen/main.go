// Command lumen renders a random Gaussian-splat scene, differentiates
// an L2 loss against a black target, and reports gradient statistics.
// Useful as a smoke test and as a usage example for the backward pass.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"math"
	"math/rand"
	"os"

	"golang.org/x/image/draw"

	"github.com/lumen-ml/lumen/backend/cpu"
	"github.com/lumen-ml/lumen/splat"
)

func main() {
	width := flag.Int("width", 256, "image width in pixels")
	height := flag.Int("height", 256, "image height in pixels")
	count := flag.Int("splats", 200, "number of Gaussians")
	seed := flag.Int64("seed", 1, "scene random seed")
	out := flag.String("out", "", "optional PNG preview path")
	scale := flag.Int("scale", 2, "preview upscale factor")
	flag.Parse()

	scene := randomScene(*count, *width, *height, *seed)
	grid := splat.NewTileGrid(*width, *height)
	bins, err := splat.BuildBins(scene, grid)
	if err != nil {
		log.Fatalf("binning: %v", err)
	}
	background := []float32{0, 0, 0}

	backend := cpu.New()
	state := backend.Rasterize(scene, grid, bins, background)

	// L2 loss against a black target: d(loss)/d(pixel) = 2*(pixel-0).
	nPix := *width * *height
	pix := &splat.PixelGrads{
		VOutput:      make([]float32, 3*nPix),
		VOutputAlpha: make([]float32, nPix),
	}
	var loss float64
	for i, v := range state.Image {
		pix.VOutput[i] = 2 * v
		loss += float64(v) * float64(v)
	}

	grads := splat.NewGradients(scene.Len(), scene.Channels)
	backend.RasterizeBackward(scene, grid, bins, background, state, pix, grads)

	fmt.Printf("scene: %d splats, %dx%d image, %d tiles, %d bin entries\n",
		scene.Len(), *width, *height, grid.NumTiles(), len(bins.IDs))
	fmt.Printf("loss: %.4f\n", loss)
	fmt.Printf("grad norms: xy=%.4f conic=%.4f rgb=%.4f opacity=%.4f\n",
		norm(grads.XY.Float32s()), norm(grads.Conic.Float32s()),
		norm(grads.RGB.Float32s()), norm(grads.Opacity.Float32s()))

	if *out != "" {
		if err := writePreview(*out, state, *width, *height, *scale); err != nil {
			log.Fatalf("preview: %v", err)
		}
		fmt.Printf("preview written to %s\n", *out)
	}
}

// randomScene builds count splats with random anisotropic covariances,
// colors, and opacities, depth-ordered by distance from the viewer.
func randomScene(count, width, height int, seed int64) *splat.Gaussians {
	rng := rand.New(rand.NewSource(seed))
	gs := &splat.Gaussians{
		XY:        make([]float32, 0, 2*count),
		Conics:    make([]float32, 0, 3*count),
		Colors:    make([]float32, 0, 3*count),
		Opacities: make([]float32, 0, count),
		Depths:    make([]float32, 0, count),
		Channels:  3,
	}
	for i := 0; i < count; i++ {
		gs.XY = append(gs.XY, rng.Float32()*float32(width), rng.Float32()*float32(height))

		// Covariance from rotation + axis scales, then inverted into
		// the conic form the rasterizer consumes.
		sx := 2 + 10*rng.Float64()
		sy := 2 + 10*rng.Float64()
		theta := 2 * math.Pi * rng.Float64()
		cos, sin := math.Cos(theta), math.Sin(theta)
		c00 := cos*cos*sx*sx + sin*sin*sy*sy
		c11 := sin*sin*sx*sx + cos*cos*sy*sy
		c01 := cos * sin * (sx*sx - sy*sy)
		det := c00*c11 - c01*c01
		gs.Conics = append(gs.Conics,
			float32(c11/det), float32(-c01/det), float32(c00/det))

		gs.Colors = append(gs.Colors, rng.Float32(), rng.Float32(), rng.Float32())
		gs.Opacities = append(gs.Opacities, 0.3+0.7*rng.Float32())
		gs.Depths = append(gs.Depths, rng.Float32()*100)
	}
	return gs
}

func norm(vals []float32) float64 {
	var s float64
	for _, v := range vals {
		s += float64(v) * float64(v)
	}
	return math.Sqrt(s)
}

func writePreview(path string, state *splat.RenderState, width, height, scale int) error {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p := y*width + x
			o := img.PixOffset(x, y)
			img.Pix[o] = tone(state.Image[3*p])
			img.Pix[o+1] = tone(state.Image[3*p+1])
			img.Pix[o+2] = tone(state.Image[3*p+2])
			img.Pix[o+3] = 0xff
		}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width*scale, height*scale))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, dst)
}

func tone(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xff
	}
	return uint8(v * 255)
}
