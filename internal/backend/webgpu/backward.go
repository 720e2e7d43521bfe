//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/lumen-ml/lumen/internal/splat"
)

// Rasterize is not implemented for WebGPU; the forward pass runs on the
// CPU reference backend.
//
//nolint:revive // Parameters unused in stub implementation.
func (b *Backend) Rasterize(gs *splat.Gaussians, grid splat.TileGrid, bins *splat.Bins, background []float32) *splat.RenderState {
	panic("webgpu: Rasterize not implemented; use the CPU backend for the forward pass")
}

// RasterizeBackward dispatches the WGSL backward kernel and adds the
// resulting per-Gaussian gradients into out. Semantics match the CPU
// reference; see the shader doc in shaders.go for the buffer packing.
func (b *Backend) RasterizeBackward(gs *splat.Gaussians, grid splat.TileGrid, bins *splat.Bins,
	background []float32, state *splat.RenderState, pix *splat.PixelGrads, out *splat.Gradients) {
	if err := splat.ValidateBackward(gs, grid, bins, background, state, pix, out); err != nil {
		panic(fmt.Sprintf("webgpu: rasterizeBackward: %v", err))
	}
	if err := b.runBackward(gs, grid, bins, background, state, pix, out); err != nil {
		panic("webgpu: rasterizeBackward: " + err.Error())
	}
}

func (b *Backend) runBackward(gs *splat.Gaussians, grid splat.TileGrid, bins *splat.Bins,
	background []float32, state *splat.RenderState, pix *splat.PixelGrads, out *splat.Gradients) error {
	n := gs.Len()
	ch := gs.Channels
	nPix := grid.Width * grid.Height
	gaussStride := 6 + ch
	gradStride := 8 + ch

	// Pack inputs into the shader's storage layouts.
	gaussians := make([]float32, 0, n*gaussStride)
	for i := 0; i < n; i++ {
		gaussians = append(gaussians,
			gs.XY[2*i], gs.XY[2*i+1],
			gs.Conics[3*i], gs.Conics[3*i+1], gs.Conics[3*i+2],
			gs.Opacities[i])
		gaussians = append(gaussians, gs.Colors[i*ch:(i+1)*ch]...)
	}

	binData := make([]uint32, 0, len(bins.Ranges)+len(bins.IDs))
	for _, v := range bins.Ranges {
		binData = append(binData, uint32(v))
	}
	for _, id := range bins.IDs {
		binData = append(binData, uint32(id))
	}

	finalIndex := make([]uint32, nPix)
	for i, v := range state.FinalIndex {
		finalIndex[i] = uint32(v)
	}

	pixelGrads := make([]float32, 0, ch*nPix+nPix+ch)
	pixelGrads = append(pixelGrads, pix.VOutput...)
	pixelGrads = append(pixelGrads, pix.VOutputAlpha...)
	pixelGrads = append(pixelGrads, background...)

	shader := b.compileShader("rasterizeBackward", backwardShader)
	pipeline := b.getOrCreatePipeline("rasterizeBackward", shader)

	bufGaussians := b.createStorageBuffer(floatBytes(gaussians))
	defer bufGaussians.Release()
	bufBins := b.createStorageBuffer(uint32Bytes(binData))
	defer bufBins.Release()
	bufFinalTs := b.createStorageBuffer(floatBytes(state.FinalT))
	defer bufFinalTs.Release()
	bufFinalIndex := b.createStorageBuffer(uint32Bytes(finalIndex))
	defer bufFinalIndex.Release()
	bufPixelGrads := b.createStorageBuffer(floatBytes(pixelGrads))
	defer bufPixelGrads.Release()

	gradSize := uint64(4 * n * gradStride)
	bufGrads := b.createStorageBuffer(make([]byte, gradSize))
	defer bufGrads.Release()

	params := make([]byte, 32)
	for i, v := range []uint32{
		uint32(grid.Width), uint32(grid.Height), uint32(grid.TilesX), uint32(ch),
		uint32(grid.NumTiles()), uint32(gaussStride), uint32(gradStride), 0,
	} {
		binary.LittleEndian.PutUint32(params[4*i:], v)
	}
	bufParams := b.createUniformBuffer(params)
	defer bufParams.Release()

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := b.device.CreateBindGroupSimple(bindGroupLayout, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufGaussians, 0, uint64(4*len(gaussians))),
		wgpu.BufferBindingEntry(1, bufBins, 0, uint64(4*len(binData))),
		wgpu.BufferBindingEntry(2, bufFinalTs, 0, uint64(4*len(state.FinalT))),
		wgpu.BufferBindingEntry(3, bufFinalIndex, 0, uint64(4*len(finalIndex))),
		wgpu.BufferBindingEntry(4, bufPixelGrads, 0, uint64(4*len(pixelGrads))),
		wgpu.BufferBindingEntry(5, bufGrads, 0, gradSize),
		wgpu.BufferBindingEntry(6, bufParams, 0, 32),
	})
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)

	wx := uint32((grid.Width + workgroupDim - 1) / workgroupDim)
	wy := uint32((grid.Height + workgroupDim - 1) / workgroupDim)
	computePass.DispatchWorkgroups(wx, wy, 1)
	computePass.End()

	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)

	raw, err := b.readBuffer(bufGrads, gradSize)
	if err != nil {
		return err
	}

	// Unpack the strided gradient buffer into the caller's
	// accumulators. Adds, never stores: the contract is identical to
	// the CPU backend's.
	at := func(i int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	for i := 0; i < n; i++ {
		base := i * gradStride
		out.XY.Add(2*i, at(base))
		out.XY.Add(2*i+1, at(base+1))
		out.XYAbs.Add(2*i, at(base+2))
		out.XYAbs.Add(2*i+1, at(base+3))
		out.Conic.Add(3*i, at(base+4))
		out.Conic.Add(3*i+1, at(base+5))
		out.Conic.Add(3*i+2, at(base+6))
		out.Opacity.Add(i, at(base+7))
		for c := 0; c < ch; c++ {
			out.RGB.Add(i*ch+c, at(base+8+c))
		}
	}
	return nil
}

func floatBytes(vals []float32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

func uint32Bytes(vals []uint32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[4*i:], v)
	}
	return out
}
