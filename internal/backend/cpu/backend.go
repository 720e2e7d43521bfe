// Package cpu implements the reference CPU rasterizer backend. It runs
// the same tile/warp discipline the GPU kernel uses: fixed 32x32 lane
// blocks, lockstep reverse iteration with predicated rejection, warp
// tree reduction, and single-writer atomic accumulation.
package cpu

import (
	"github.com/lumen-ml/lumen/internal/group"
	"github.com/lumen-ml/lumen/internal/parallel"
)

// CPUBackend rasterizes and differentiates Gaussian splats on the CPU.
type CPUBackend struct {
	pool   parallel.Config
	reduce group.Reducer
}

// New creates a new CPU backend with the default worker pool.
func New() *CPUBackend {
	return &CPUBackend{
		pool:   parallel.DefaultConfig(),
		reduce: group.Tree{},
	}
}

// SetParallelism overrides the tile-dispatch pool configuration.
func (cpu *CPUBackend) SetParallelism(cfg parallel.Config) {
	cpu.pool = cfg
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}
