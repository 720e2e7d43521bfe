// Copyright 2025 Lumen Splatting Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go reference backend for the
// rasterizer. It mirrors the GPU execution discipline — 32x32 lane
// blocks, warp tree reduction, atomic gradient accumulation — so the
// two backends share semantics exactly.
package cpu

import (
	internalcpu "github.com/lumen-ml/lumen/internal/backend/cpu"
	"github.com/lumen-ml/lumen/splat"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements splat.Backend.
var _ splat.Backend = (*Backend)(nil)

// New creates a new CPU backend.
//
// Example:
//
//	backend := cpu.New()
//	state := backend.Rasterize(scene, grid, bins, background)
func New() *Backend {
	return internalcpu.New()
}
