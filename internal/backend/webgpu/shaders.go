//go:build windows

// Package webgpu provides the embedded WGSL backward kernel.
package webgpu

// WGSL compute shader for the rasterizer backward pass.
// Using a string constant instead of embed for simplicity.

// workgroupDim is the edge of a square workgroup. 16x16 = 256
// invocations, the WebGPU default limit; a 32-pixel tile is covered by
// a 2x2 grid of workgroups.
const workgroupDim = 16

// backwardShader replays front-to-back compositing in reverse per
// pixel and accumulates per-Gaussian gradients.
//
// Buffer layout (see backward.go packing):
//   - gaussians: stride (6 + channels) floats per splat
//     {x, y, conic a, conic b, conic c, opacity, rgb...}
//   - bins: 2*num_tiles range values, then the sorted id array
//   - pixel_grads: v_output (C*P), then v_output_alpha (P), then
//     background (C)
//   - grads: stride (8 + channels) per splat
//     {vx, vy, |vx|, |vy|, conic x3, v_opacity, v_rgb...}
//
// Float atomic adds use a compare-exchange loop on the IEEE-754 bits;
// WGSL atomics only cover integers. The constants match the CPU
// reference (splat.AlphaClamp, splat.MinAlpha).
const backwardShader = `
const TILE_SIZE: u32 = 32u;
const ALPHA_CLAMP: f32 = 0.99;
const MIN_ALPHA: f32 = 0.0039215686; // 1/255
const MAX_CHANNELS: u32 = 8u;

struct Params {
    width: u32,
    height: u32,
    tiles_x: u32,
    channels: u32,
    num_tiles: u32,
    gauss_stride: u32,
    grad_stride: u32,
    _pad: u32,
}

@group(0) @binding(0) var<storage, read> gaussians: array<f32>;
@group(0) @binding(1) var<storage, read> bins: array<u32>;
@group(0) @binding(2) var<storage, read> final_ts: array<f32>;
@group(0) @binding(3) var<storage, read> final_index: array<u32>;
@group(0) @binding(4) var<storage, read> pixel_grads: array<f32>;
@group(0) @binding(5) var<storage, read_write> grads: array<atomic<u32>>;
@group(0) @binding(6) var<uniform> params: Params;

var<workgroup> red: array<f32, 256>;

fn atomic_add_f32(idx: u32, v: f32) {
    if (v == 0.0) {
        return;
    }
    var old = atomicLoad(&grads[idx]);
    loop {
        let updated = bitcast<u32>(bitcast<f32>(old) + v);
        let r = atomicCompareExchangeWeak(&grads[idx], old, updated);
        if (r.exchanged) {
            break;
        }
        old = r.old_value;
    }
}

// Tree reduction over the workgroup. Every invocation must call this
// the same number of times: rejected lanes pass zero.
fn workgroup_sum(lid: u32, v: f32) -> f32 {
    red[lid] = v;
    workgroupBarrier();
    var stride = 128u;
    loop {
        if (stride == 0u) {
            break;
        }
        if (lid < stride) {
            red[lid] = red[lid] + red[lid + stride];
        }
        workgroupBarrier();
        stride = stride / 2u;
    }
    let s = red[0];
    workgroupBarrier();
    return s;
}

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) gid: vec3<u32>,
        @builtin(local_invocation_index) lid: u32) {
    let x = gid.x;
    let y = gid.y;
    let in_bounds = x < params.width && y < params.height;

    // Workgroups are 16-aligned inside 32-pixel tiles, so the tile
    // index is uniform across the workgroup.
    let tile = min((y / TILE_SIZE) * params.tiles_x + (x / TILE_SIZE), params.num_tiles - 1u);
    let range_start = bins[2u * tile];
    let range_end = bins[2u * tile + 1u];
    let ids_base = 2u * params.num_tiles;

    let n_pix = params.width * params.height;
    let alpha_base = params.channels * n_pix;
    let bg_base = alpha_base + n_pix;

    var pixel = 0u;
    var t_final = 0.0;
    var T = 0.0;
    var v_out_alpha = 0.0;
    var last = 0u;
    if (in_bounds) {
        pixel = y * params.width + x;
        t_final = final_ts[pixel];
        T = t_final;
        v_out_alpha = pixel_grads[alpha_base + pixel];
        last = final_index[pixel];
    }
    var workspace: array<f32, MAX_CHANNELS>;
    for (var c = 0u; c < params.channels; c = c + 1u) {
        workspace[c] = 0.0;
    }
    let px = f32(x) + 0.5;
    let py = f32(y) + 0.5;

    var idx = range_end;
    loop {
        if (idx == range_start) {
            break;
        }
        idx = idx - 1u;

        let g = bins[ids_base + idx];
        let base = g * params.gauss_stride;
        let gx = gaussians[base];
        let gy = gaussians[base + 1u];
        let ca = gaussians[base + 2u];
        let cb = gaussians[base + 3u];
        let cc = gaussians[base + 4u];
        let opac = gaussians[base + 5u];

        let dx = gx - px;
        let dy = gy - py;
        let sigma = 0.5 * (ca * dx * dx + cc * dy * dy) + cb * dx * dy;
        let vis = exp(-sigma);
        let alpha = min(ALPHA_CLAMP, opac * vis);
        let valid = in_bounds && idx < last && sigma >= 0.0 && alpha >= MIN_ALPHA;

        var v_xy = vec2<f32>(0.0, 0.0);
        var v_conic = vec3<f32>(0.0, 0.0, 0.0);
        var v_opacity = 0.0;
        if (valid) {
            // Invert T_after = T_before * (1 - alpha).
            let ra = 1.0 / (1.0 - alpha);
            T = T * ra;
            let fac = alpha * T;

            var v_alpha = 0.0;
            for (var c = 0u; c < params.channels; c = c + 1u) {
                let rgb = gaussians[base + 6u + c];
                let v_out = pixel_grads[pixel * params.channels + c];
                // Color gradient: per-pair atomic add, no reduction.
                atomic_add_f32(g * params.grad_stride + 8u + c, fac * v_out);
                v_alpha = v_alpha + (rgb * T - workspace[c] * ra) * v_out;
                workspace[c] = workspace[c] + rgb * fac;
                v_alpha = v_alpha - t_final * ra * pixel_grads[bg_base + c] * v_out;
            }
            v_alpha = v_alpha + t_final * ra * v_out_alpha;

            let v_sigma = -opac * vis * v_alpha;
            v_xy = vec2<f32>(v_sigma * (ca * dx + cb * dy), v_sigma * (cb * dx + cc * dy));
            v_conic = vec3<f32>(0.5 * v_sigma * dx * dx, v_sigma * dx * dy, 0.5 * v_sigma * dy * dy);
            v_opacity = vis * v_alpha;
        }

        // Group reduction + single-writer atomic accumulation. All
        // invocations reach every reduction together; rejection is
        // predicated, never divergent.
        let gbase = g * params.grad_stride;
        var s = workgroup_sum(lid, v_xy.x);
        if (lid == 0u) {
            atomic_add_f32(gbase, s);
        }
        s = workgroup_sum(lid, v_xy.y);
        if (lid == 0u) {
            atomic_add_f32(gbase + 1u, s);
        }
        s = workgroup_sum(lid, abs(v_xy.x));
        if (lid == 0u) {
            atomic_add_f32(gbase + 2u, s);
        }
        s = workgroup_sum(lid, abs(v_xy.y));
        if (lid == 0u) {
            atomic_add_f32(gbase + 3u, s);
        }
        s = workgroup_sum(lid, v_conic.x);
        if (lid == 0u) {
            atomic_add_f32(gbase + 4u, s);
        }
        s = workgroup_sum(lid, v_conic.y);
        if (lid == 0u) {
            atomic_add_f32(gbase + 5u, s);
        }
        s = workgroup_sum(lid, v_conic.z);
        if (lid == 0u) {
            atomic_add_f32(gbase + 6u, s);
        }
        s = workgroup_sum(lid, v_opacity);
        if (lid == 0u) {
            atomic_add_f32(gbase + 7u, s);
        }
    }
}
`
