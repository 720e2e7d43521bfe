// Package parallel provides worker-pool execution for kernel dispatch.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled  bool // Whether parallel execution is enabled.
	Workers  int  // Number of worker goroutines to use.
	MinChunk int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:  n > 1,
		Workers:  n,
		MinChunk: 1, // One tile is already a 32x32 pixel block of work.
	}
}

// Sequential returns a config that disables the pool entirely. Used by
// tests that need a deterministic dispatch order.
func Sequential() Config {
	return Config{Enabled: false, Workers: 1, MinChunk: 1}
}

// For executes f(i) for i in [0, n), fanning out across the pool when
// enabled and the range is large enough.
func For(n int, cfg Config, f func(i int)) {
	if !cfg.Enabled || n <= cfg.MinChunk || cfg.Workers < 2 {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunk := (n + cfg.Workers - 1) / cfg.Workers
	if chunk < cfg.MinChunk {
		chunk = cfg.MinChunk
	}

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForTiles executes f(tx, ty) for every tile of a tilesX x tilesY grid.
// Tiles are independent work units in both rasterizer passes.
func ForTiles(tilesX, tilesY int, cfg Config, f func(tx, ty int)) {
	For(tilesX*tilesY, cfg, func(k int) {
		f(k%tilesX, k/tilesX)
	})
}
