package headless

import (
	"encoding/binary"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-harness/hal"
)

type target struct{ w, h int }

func (t target) FramebufferSize() (int, int) { return t.w, t.h }

const triangleWGSL = `
@vertex
fn vs(@location(0) p: vec3<f32>) -> @builtin(position) vec4<f32> { return vec4<f32>(p, 1.0); }
@fragment
fn fs() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }
`

func packFloats(vs ...float32) []byte {
	b := make([]byte, 0, len(vs)*4)
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	return b
}

type fixture struct {
	backend  *Backend
	instance hal.Instance
	surface  hal.Surface
	adapter  hal.Adapter
	device   hal.Device
	pipeline hal.RenderPipeline
	buffer   hal.Buffer
}

func newFixture(t *testing.T, w, h int, prim hal.PrimitiveState, vertices []byte, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{backend: New(opts...)}
	var err error
	f.instance, err = f.backend.CreateInstance()
	require.NoError(t, err)
	f.surface, err = f.instance.CreateSurface(target{w, h})
	require.NoError(t, err)
	f.adapter, err = f.instance.RequestAdapter(&hal.RequestAdapterOptions{CompatibleSurface: f.surface})
	require.NoError(t, err)
	f.device, err = f.adapter.RequestDevice(&hal.DeviceDescriptor{})
	require.NoError(t, err)
	require.NoError(t, f.surface.Configure(f.adapter, f.device, &hal.SurfaceConfig{
		Usage:  hal.TextureUsageRenderAttachment,
		Format: hal.TextureFormatRGBA8Unorm,
		Width:  uint32(w),
		Height: uint32(h),
	}))

	module, err := f.device.CreateShaderModule(&hal.ShaderModuleDescriptor{Source: hal.ShaderSource{WGSL: triangleWGSL}})
	require.NoError(t, err)
	layout, err := f.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{})
	require.NoError(t, err)
	f.pipeline, err = f.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Layout: layout,
		Vertex: hal.VertexState{Module: module, EntryPoint: "vs", Buffers: []hal.VertexBufferLayout{{
			ArrayStride: 24,
			Attributes: []hal.VertexAttribute{
				{Format: hal.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				{Format: hal.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
			},
		}}},
		Fragment:    hal.FragmentState{Module: module, EntryPoint: "fs", Targets: []hal.ColorTargetState{{Format: hal.TextureFormatRGBA8Unorm, WriteMask: hal.ColorWriteMaskAll}}},
		Primitive:   prim,
		Multisample: hal.MultisampleState{Count: 1, Mask: ^uint32(0)},
	})
	require.NoError(t, err)
	module.Release()
	layout.Release()

	f.buffer, err = f.device.CreateBufferInit(&hal.BufferInitDescriptor{Contents: vertices, Usage: hal.BufferUsageVertex})
	require.NoError(t, err)
	return f
}

func (f *fixture) frame(t *testing.T, clear hal.Color) {
	t.Helper()
	tex, err := f.surface.GetCurrentTexture()
	require.NoError(t, err)
	defer tex.Release()
	view, err := tex.CreateView()
	require.NoError(t, err)
	defer view.Release()
	enc, err := f.device.CreateCommandEncoder("frame")
	require.NoError(t, err)
	defer enc.Release()

	pass, err := enc.BeginRenderPass(&hal.RenderPassDescriptor{ColorAttachments: []hal.RenderPassColorAttachment{{
		View: view, LoadOp: hal.LoadOpClear, StoreOp: hal.StoreOpStore, ClearValue: clear,
	}}})
	require.NoError(t, err)
	pass.SetPipeline(f.pipeline)
	pass.SetVertexBuffer(0, f.buffer)
	pass.Draw(3, 1, 0, 0)
	require.NoError(t, pass.End())
	pass.Release()

	cmd, err := enc.Finish()
	require.NoError(t, err)
	defer cmd.Release()
	require.NoError(t, f.device.Queue().Submit(cmd))
	require.NoError(t, f.surface.Present())
}

// ccwTriangle covers the upper right quadrant around (0.5, 0.5) in NDC.
var ccwTriangle = packFloats(
	0, 0, 0, 1, 0, 0,
	1, 0, 0, 1, 0, 0,
	1, 1, 0, 1, 0, 0,
)

var cwTriangle = packFloats(
	0, 0, 0, 1, 0, 0,
	1, 1, 0, 1, 0, 0,
	1, 0, 0, 1, 0, 0,
)

func TestClearAndDraw(t *testing.T) {
	f := newFixture(t, 64, 64, hal.PrimitiveState{FrontFace: hal.FrontFaceCCW, CullMode: hal.CullModeBack}, ccwTriangle)
	f.frame(t, hal.Color{R: 0.5, G: 1, B: 0.5, A: 1})

	img := f.backend.Frame()
	require.NotNil(t, img)
	assert.Equal(t, color.RGBA{128, 255, 128, 255}, img.RGBAAt(2, 2))
	assert.Equal(t, color.RGBA{128, 255, 128, 255}, img.RGBAAt(10, 60))
	// NDC (0.8, 0.4) lies inside the triangle.
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(57, 19))
	assert.Equal(t, 1, f.backend.Presented())
}

func TestDrawKeepsClearOutsideCoverage(t *testing.T) {
	f := newFixture(t, 32, 32, hal.PrimitiveState{}, ccwTriangle)
	f.frame(t, hal.Color{R: 0.5, G: 1, B: 0.5, A: 1})

	img := f.backend.Frame()
	require.NotNil(t, img)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			require.Equal(t, uint8(255), img.RGBAAt(x, y).A, "pixel (%d,%d)", x, y)
		}
	}
	// Left half lies outside the triangle.
	assert.Equal(t, color.RGBA{128, 255, 128, 255}, img.RGBAAt(4, 16))
	assert.Equal(t, color.RGBA{128, 255, 128, 255}, img.RGBAAt(31, 31))
}

func TestBackFaceCulled(t *testing.T) {
	f := newFixture(t, 64, 64, hal.PrimitiveState{FrontFace: hal.FrontFaceCCW, CullMode: hal.CullModeBack}, cwTriangle)
	f.frame(t, hal.Color{A: 1})

	img := f.backend.Frame()
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(57, 19))
}

func TestFrontFaceCW(t *testing.T) {
	f := newFixture(t, 64, 64, hal.PrimitiveState{FrontFace: hal.FrontFaceCW, CullMode: hal.CullModeBack}, cwTriangle)
	f.frame(t, hal.Color{A: 1})

	img := f.backend.Frame()
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(57, 19))
}

func TestFrameObjectsReleased(t *testing.T) {
	f := newFixture(t, 8, 8, hal.PrimitiveState{}, ccwTriangle)
	before := f.backend.Stats().LiveTotal()
	for i := 0; i < 50; i++ {
		f.frame(t, hal.Color{A: 1})
	}
	stats := f.backend.Stats()
	for _, k := range FrameKinds {
		assert.Zero(t, stats.Live[k], k.String())
		assert.Equal(t, 50, stats.Created[k], k.String())
	}
	assert.Equal(t, before, stats.LiveTotal())
	assert.Zero(t, stats.DoubleReleases)
}

func TestDoubleReleaseCounted(t *testing.T) {
	b := New()
	inst, err := b.CreateInstance()
	require.NoError(t, err)
	inst.Release()
	inst.Release()
	assert.Equal(t, 1, b.Stats().DoubleReleases)
	assert.Zero(t, b.Stats().LiveTotal())
}

func TestAdapterRequests(t *testing.T) {
	t.Run("no adapter", func(t *testing.T) {
		b := New(WithoutAdapter())
		inst, err := b.CreateInstance()
		require.NoError(t, err)
		_, err = inst.RequestAdapter(&hal.RequestAdapterOptions{PowerPreference: hal.PowerPreferenceHighPerformance})
		assert.ErrorIs(t, err, hal.ErrNoAdapter)
		require.NotNil(t, b.AdapterOptions())
		assert.Equal(t, hal.PowerPreferenceHighPerformance, b.AdapterOptions().PowerPreference)
	})

	t.Run("fallback only", func(t *testing.T) {
		b := New(WithFallbackOnly())
		inst, err := b.CreateInstance()
		require.NoError(t, err)
		_, err = inst.RequestAdapter(&hal.RequestAdapterOptions{})
		assert.ErrorIs(t, err, hal.ErrNoAdapter)

		a, err := inst.RequestAdapter(&hal.RequestAdapterOptions{ForceFallbackAdapter: true})
		require.NoError(t, err)
		assert.Equal(t, hal.DeviceTypeCPU, a.Info().DeviceType)
	})

	t.Run("foreign surface", func(t *testing.T) {
		other, _ := New().CreateInstance()
		s, err := other.CreateSurface(target{1, 1})
		require.NoError(t, err)
		inst, _ := New().CreateInstance()
		_, err = inst.RequestAdapter(&hal.RequestAdapterOptions{CompatibleSurface: s})
		assert.ErrorIs(t, err, hal.ErrNoAdapter)
	})

	t.Run("device refused", func(t *testing.T) {
		b := New(WithDeviceRefused())
		inst, _ := b.CreateInstance()
		a, err := inst.RequestAdapter(nil)
		require.NoError(t, err)
		_, err = a.RequestDevice(&hal.DeviceDescriptor{})
		assert.ErrorIs(t, err, hal.ErrDeviceRefused)
	})
}

func TestSurfaceErrorsInjected(t *testing.T) {
	f := newFixture(t, 4, 4, hal.PrimitiveState{}, ccwTriangle, WithSurfaceErrors(hal.ErrSurfaceLost, hal.ErrSurfaceTimeout))

	_, err := f.surface.GetCurrentTexture()
	assert.ErrorIs(t, err, hal.ErrSurfaceLost)
	_, err = f.surface.GetCurrentTexture()
	assert.ErrorIs(t, err, hal.ErrSurfaceTimeout)

	tex, err := f.surface.GetCurrentTexture()
	require.NoError(t, err)
	_, err = f.surface.GetCurrentTexture()
	assert.Error(t, err, "second texture while one is acquired")
	tex.Release()
}

func TestAbandonedTextureReturnsSurface(t *testing.T) {
	f := newFixture(t, 4, 4, hal.PrimitiveState{}, ccwTriangle)

	tex, err := f.surface.GetCurrentTexture()
	require.NoError(t, err)
	tex.Release()

	tex, err = f.surface.GetCurrentTexture()
	require.NoError(t, err)
	tex.Release()
	assert.Zero(t, f.backend.Presented())
	assert.Zero(t, f.backend.Stats().Live[KindTexture])
}

func TestReleasingPresentedTexture(t *testing.T) {
	f := newFixture(t, 4, 4, hal.PrimitiveState{}, ccwTriangle)

	first, err := f.surface.GetCurrentTexture()
	require.NoError(t, err)
	require.NoError(t, f.surface.Present())
	second, err := f.surface.GetCurrentTexture()
	require.NoError(t, err)

	// Releasing the old frame must not free the one now acquired.
	first.Release()
	_, err = f.surface.GetCurrentTexture()
	assert.Error(t, err)
	second.Release()
}

func TestSubmitErrorsInjected(t *testing.T) {
	f := newFixture(t, 4, 4, hal.PrimitiveState{}, ccwTriangle, WithSubmitErrors(hal.ErrUnsupported))

	enc, err := f.device.CreateCommandEncoder("failing")
	require.NoError(t, err)
	cmd, err := enc.Finish()
	require.NoError(t, err)
	assert.ErrorIs(t, f.device.Queue().Submit(cmd), hal.ErrUnsupported)
	cmd.Release()
	enc.Release()

	f.frame(t, hal.Color{A: 1})
	assert.Equal(t, 1, f.backend.Presented())
}

func TestConfigureRecorded(t *testing.T) {
	f := newFixture(t, 1920, 1080, hal.PrimitiveState{}, ccwTriangle)
	configs := f.backend.Configurations()
	require.Len(t, configs, 1)
	assert.Equal(t, uint32(1920), configs[0].Width)
	assert.Equal(t, uint32(1080), configs[0].Height)

	err := f.surface.Configure(f.adapter, f.device, &hal.SurfaceConfig{
		Usage: hal.TextureUsageRenderAttachment, Format: hal.TextureFormatBGRA8Unorm, Width: 1, Height: 1,
	})
	assert.ErrorIs(t, err, hal.ErrUnsupported)
}

func TestPipelineEntryPointChecked(t *testing.T) {
	b := New()
	inst, _ := b.CreateInstance()
	a, _ := inst.RequestAdapter(nil)
	d, err := a.RequestDevice(&hal.DeviceDescriptor{})
	require.NoError(t, err)
	module, err := d.CreateShaderModule(&hal.ShaderModuleDescriptor{Source: hal.ShaderSource{WGSL: triangleWGSL}})
	require.NoError(t, err)
	layout, _ := d.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{})

	_, err = d.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Layout:      layout,
		Vertex:      hal.VertexState{Module: module, EntryPoint: "vert_main"},
		Fragment:    hal.FragmentState{Module: module, EntryPoint: "fs", Targets: []hal.ColorTargetState{{Format: hal.TextureFormatRGBA8Unorm}}},
		Multisample: hal.MultisampleState{Count: 1},
	})
	assert.ErrorContains(t, err, `"vert_main" not found`)
}

func TestFinishWithOpenPass(t *testing.T) {
	f := newFixture(t, 4, 4, hal.PrimitiveState{}, ccwTriangle)
	tex, err := f.surface.GetCurrentTexture()
	require.NoError(t, err)
	view, _ := tex.CreateView()
	enc, _ := f.device.CreateCommandEncoder("open")
	_, err = enc.BeginRenderPass(&hal.RenderPassDescriptor{ColorAttachments: []hal.RenderPassColorAttachment{{View: view}}})
	require.NoError(t, err)
	_, err = enc.Finish()
	assert.ErrorContains(t, err, "render pass not ended")
}

func TestContents(t *testing.T) {
	f := newFixture(t, 4, 4, hal.PrimitiveState{}, ccwTriangle)
	data, ok := Contents(f.buffer)
	require.True(t, ok)
	assert.Equal(t, ccwTriangle, data)
	assert.Equal(t, uint64(len(ccwTriangle)), f.buffer.Size())
}
