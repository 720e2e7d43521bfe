package group

import (
	"math/rand"
	"testing"
)

func naiveSum(vals []float32) float32 {
	var s float32
	for _, v := range vals {
		s += v
	}
	return s
}

func TestTree_SumMatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, n := range []int{0, 1, 2, 3, 7, 31, WarpSize, 100} {
		vals := make([]float32, n)
		for i := range vals {
			// Integer-valued so float addition is exact and order
			// independent.
			vals[i] = float32(rng.Intn(2000) - 1000)
		}
		want := naiveSum(vals)

		scratch := make([]float32, n)
		copy(scratch, vals)
		got := Tree{}.Sum(scratch)
		if got != want {
			t.Errorf("n=%d: Tree sum = %f, want %f", n, got, want)
		}
	}
}

// TestTree_PermutationInvariant checks that lane order never changes
// the reduced total: the accumulation contract of the backward pass
// depends on commutativity.
func TestTree_PermutationInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vals := make([]float32, WarpSize)
	for i := range vals {
		vals[i] = float32(rng.Intn(512) - 256)
	}

	scratch := make([]float32, WarpSize)
	copy(scratch, vals)
	want := Tree{}.Sum(scratch)

	for trial := 0; trial < 10; trial++ {
		perm := rng.Perm(WarpSize)
		for i, j := range perm {
			scratch[i] = vals[j]
		}
		if got := (Tree{}).Sum(scratch); got != want {
			t.Errorf("trial %d: permuted sum = %f, want %f", trial, got, want)
		}
	}
}
