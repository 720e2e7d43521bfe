package parallel

import (
	"sync/atomic"
	"testing"
)

func TestFor_CoversRangeOnce(t *testing.T) {
	for _, cfg := range []Config{
		Sequential(),
		{Enabled: true, Workers: 4, MinChunk: 1},
		{Enabled: true, Workers: 8, MinChunk: 16},
	} {
		const n = 1000
		counts := make([]int32, n)
		For(n, cfg, func(i int) {
			atomic.AddInt32(&counts[i], 1)
		})
		for i, c := range counts {
			if c != 1 {
				t.Fatalf("cfg=%+v: index %d visited %d times", cfg, i, c)
			}
		}
	}
}

func TestFor_Empty(t *testing.T) {
	called := false
	For(0, DefaultConfig(), func(int) { called = true })
	if called {
		t.Error("callback invoked for empty range")
	}
}

func TestForTiles_CoversGrid(t *testing.T) {
	const tx, ty = 5, 3
	var seen [ty][tx]int32
	ForTiles(tx, ty, Config{Enabled: true, Workers: 4, MinChunk: 1}, func(x, y int) {
		atomic.AddInt32(&seen[y][x], 1)
	})
	for y := 0; y < ty; y++ {
		for x := 0; x < tx; x++ {
			if seen[y][x] != 1 {
				t.Errorf("tile (%d,%d) visited %d times", x, y, seen[y][x])
			}
		}
	}
}
