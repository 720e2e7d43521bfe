// Copyright 2025 Lumen Splatting Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package splat provides the public API for the differentiable
// Gaussian-splatting rasterizer.
//
// The package defines the scene and dispatch types:
//   - Gaussians: per-splat center/conic/color/opacity buffers
//   - TileGrid, Bins: screen tiling and depth-sorted tile bins
//   - RenderState: per-pixel forward outputs the backward pass replays
//   - Gradients: atomically-accumulated per-Gaussian gradient buffers
//   - Backend: forward + backward dispatch interface
//
// Example:
//
//	backend := cpu.New()
//	grid := splat.NewTileGrid(256, 256)
//	bins, _ := splat.BuildBins(scene, grid)
//	state := backend.Rasterize(scene, grid, bins, background)
//	grads := splat.NewGradients(scene.Len(), scene.Channels)
//	backend.RasterizeBackward(scene, grid, bins, background, state, pixelGrads, grads)
package splat

import (
	"github.com/lumen-ml/lumen/internal/splat"
)

// Compositing constants shared by both passes.
const (
	MaxChannels = splat.MaxChannels
	AlphaClamp  = splat.AlphaClamp
	MinAlpha    = splat.MinAlpha
	TileSize    = splat.TileSize
)

// Gaussians holds per-splat input buffers in struct-of-arrays layout.
type Gaussians = splat.Gaussians

// TileGrid describes the screen and its tiling.
type TileGrid = splat.TileGrid

// Bins assigns each tile a depth-sorted range of Gaussian ids.
type Bins = splat.Bins

// RenderState holds per-pixel forward-pass outputs.
type RenderState = splat.RenderState

// PixelGrads carries incoming per-pixel loss gradients.
type PixelGrads = splat.PixelGrads

// Gradients is the per-Gaussian gradient accumulator set.
type Gradients = splat.Gradients

// Backend rasterizes binned Gaussians and differentiates the result.
type Backend = splat.Backend

// NewTileGrid builds the tile grid covering a width x height image.
func NewTileGrid(width, height int) TileGrid {
	return splat.NewTileGrid(width, height)
}

// BuildBins assigns Gaussians to tiles and depth-sorts each bin.
func BuildBins(gs *Gaussians, grid TileGrid) (*Bins, error) {
	return splat.BuildBins(gs, grid)
}

// NewRenderState allocates forward-pass state for the given geometry.
func NewRenderState(grid TileGrid, channels int) *RenderState {
	return splat.NewRenderState(grid, channels)
}

// NewGradients allocates zeroed gradient accumulators for n Gaussians.
func NewGradients(n, channels int) *Gradients {
	return splat.NewGradients(n, channels)
}
