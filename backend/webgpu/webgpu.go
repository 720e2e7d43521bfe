//go:build windows

// Copyright 2025 Lumen Splatting Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the GPU backend for the rasterizer backward
// pass. The kernel runs as a WGSL compute shader via go-webgpu.
//
// Example:
//
//	gpu, err := webgpu.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer gpu.Release()
//	gpu.RasterizeBackward(scene, grid, bins, background, state, pixelGrads, grads)
package webgpu

import (
	internalwebgpu "github.com/lumen-ml/lumen/internal/backend/webgpu"
	"github.com/lumen-ml/lumen/splat"
)

// Backend represents the WebGPU backend implementation.
type Backend = internalwebgpu.Backend

// Compile-time check that Backend implements splat.Backend.
var _ splat.Backend = (*Backend)(nil)

// New creates a new WebGPU backend.
// Returns an error if WebGPU is not available or initialization fails.
func New() (*Backend, error) {
	return internalwebgpu.New()
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
