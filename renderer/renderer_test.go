package renderer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image/color"
	gomath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-harness/hal"
	"render-harness/headless"
)

type fixedTarget struct{ w, h int }

func (t fixedTarget) FramebufferSize() (int, int) { return t.w, t.h }

func newEngine(t *testing.T, w, h int, opts ...headless.Option) (*RenderEngine, *headless.Backend) {
	t.Helper()
	b := headless.New(opts...)
	re, err := New(b, fixedTarget{w, h})
	require.NoError(t, err)
	t.Cleanup(re.Destroy)
	return re, b
}

func TestNewDeterministic(t *testing.T) {
	first, _ := newEngine(t, 64, 64)
	second, _ := newEngine(t, 64, 64)

	assert.Equal(t, first.PipelineConfig(), second.PipelineConfig())
	assert.Equal(t, first.SurfaceConfig(), second.SurfaceConfig())
	assert.Equal(t, first.VertexData(), second.VertexData())
}

func TestPipelineFixedFunctionState(t *testing.T) {
	re, _ := newEngine(t, 8, 8)
	pc := re.PipelineConfig()

	assert.Equal(t, "vert_main", pc.VertexEntry)
	assert.Equal(t, "frag_main", pc.FragmentEntry)
	assert.Equal(t, hal.PrimitiveTopologyTriangleList, pc.Topology)
	assert.Equal(t, hal.FrontFaceCCW, pc.FrontFace)
	assert.Equal(t, hal.CullModeBack, pc.CullMode)
	assert.Equal(t, hal.PolygonModeFill, pc.PolygonMode)
	assert.Equal(t, hal.BlendModeReplace, pc.Blend)
	assert.Equal(t, hal.ColorWriteMaskAll, pc.WriteMask)
	assert.Equal(t, re.SurfaceConfig().Format, pc.Format)
	assert.Equal(t, uint32(1), pc.SampleCount)
	assert.Equal(t, uint64(VertexStride), pc.Vertex.ArrayStride)

	// The returned copy does not alias engine state.
	pc.Vertex.Attributes[0].ShaderLocation = 7
	assert.Equal(t, uint32(0), re.PipelineConfig().Vertex.Attributes[0].ShaderLocation)
}

func TestSurfaceConfigMatchesTarget(t *testing.T) {
	for _, size := range []struct{ w, h int }{{1, 1}, {1920, 1080}} {
		re, b := newEngine(t, size.w, size.h)
		cfg := re.SurfaceConfig()
		assert.Equal(t, uint32(size.w), cfg.Width)
		assert.Equal(t, uint32(size.h), cfg.Height)
		assert.Equal(t, hal.TextureFormatRGBA8Unorm, cfg.Format)
		assert.Equal(t, hal.PresentModeImmediate, cfg.PresentMode)
		assert.Equal(t, hal.TextureUsageRenderAttachment, cfg.Usage)
		assert.Equal(t, []hal.SurfaceConfig{cfg}, b.Configurations())
	}
}

func TestVertexDataUploaded(t *testing.T) {
	re, _ := newEngine(t, 8, 8)

	want := new(bytes.Buffer)
	for _, f := range []float32{
		1, 0, 0, 1, 1, 1,
		0.5, 0.5, 0, 1, 1, 1,
		-0.5, 0.5, 0, 1, 1, 1,
	} {
		require.NoError(t, binary.Write(want, binary.LittleEndian, gomath.Float32bits(f)))
	}
	assert.Len(t, re.VertexData(), 3*VertexStride)
	assert.Equal(t, want.Bytes(), re.VertexData())

	data, ok := headless.Contents(re.vertexBuffer)
	require.True(t, ok)
	assert.Equal(t, want.Bytes(), data)
}

func TestAdapterRequestOptions(t *testing.T) {
	re, b := newEngine(t, 8, 8)
	opts := b.AdapterOptions()
	require.NotNil(t, opts)
	assert.Equal(t, hal.PowerPreferenceHighPerformance, opts.PowerPreference)
	assert.False(t, opts.ForceFallbackAdapter)
	assert.NotNil(t, opts.CompatibleSurface)
	assert.Equal(t, "headless", re.AdapterInfo().Backend)
}

func TestRenderFrame(t *testing.T) {
	re, b := newEngine(t, 1920, 1080)
	require.NoError(t, re.Render())
	assert.Equal(t, uint64(1), re.FrameCount())
	assert.Equal(t, 1, b.Presented())

	img := b.Frame()
	require.NotNil(t, img)
	background := color.RGBA{128, 255, 128, 255}
	for _, p := range [][2]int{{0, 0}, {1919, 0}, {0, 1079}, {1919, 1079}, {960, 900}} {
		assert.Equal(t, background, img.RGBAAt(p[0], p[1]), "pixel %v", p)
	}
	// Centroid of the triangle, NDC (1/3, 1/3).
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(1280, 360))
}

func TestRenderReleasesFrameObjects(t *testing.T) {
	re, b := newEngine(t, 32, 32)
	before := b.Stats()

	for i := 0; i < 1000; i++ {
		require.NoError(t, re.Render())
		stats := b.Stats()
		for _, k := range headless.FrameKinds {
			require.Zero(t, stats.Live[k], "frame %d: live %s", i, k)
		}
	}

	after := b.Stats()
	assert.Equal(t, before.LiveTotal(), after.LiveTotal())
	assert.Zero(t, after.DoubleReleases)
	assert.Equal(t, 1000, after.Created[headless.KindCommandBuffer])
	assert.Equal(t, uint64(1000), re.FrameCount())
}

func TestNoAdapter(t *testing.T) {
	b := headless.New(headless.WithoutAdapter())
	re, err := New(b, fixedTarget{64, 64})
	require.Error(t, err)
	assert.Nil(t, re)

	assert.ErrorIs(t, err, ErrEnvironment)
	assert.ErrorIs(t, err, hal.ErrNoAdapter)
	assert.Equal(t, KindEnvironment, KindOf(err))

	var ie *InitError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "acquire device", ie.Step)
	assert.Zero(t, b.Stats().LiveTotal())
}

func TestDeviceRefused(t *testing.T) {
	b := headless.New(headless.WithDeviceRefused())
	_, err := New(b, fixedTarget{64, 64})
	assert.ErrorIs(t, err, ErrEnvironment)
	assert.ErrorIs(t, err, hal.ErrDeviceRefused)
	assert.Zero(t, b.Stats().LiveTotal())
}

func TestInvalidWindowSize(t *testing.T) {
	b := headless.New()
	_, err := New(b, fixedTarget{0, 600})
	assert.ErrorIs(t, err, ErrEnvironment)
	assert.ErrorContains(t, err, "invalid window size 0x600")
	assert.Zero(t, b.Stats().LiveTotal())
}

func TestBrokenShader(t *testing.T) {
	b := headless.New()
	_, err := New(b, fixedTarget{64, 64}, WithShader(hal.ShaderSource{WGSL: "@vertex fn vert_main( {"}))
	assert.ErrorIs(t, err, ErrShader)
	assert.Equal(t, KindShader, KindOf(err))
	assert.Zero(t, b.Stats().LiveTotal())
	assert.Zero(t, b.Stats().DoubleReleases)
}

func TestSurfaceLostOnce(t *testing.T) {
	re, b := newEngine(t, 16, 16, headless.WithSurfaceErrors(hal.ErrSurfaceLost))
	require.NoError(t, re.Render())
	assert.Equal(t, 1, b.Presented())
	assert.Len(t, b.Configurations(), 2)
	assert.Equal(t, re.SurfaceConfig(), b.Configurations()[1])
}

func TestSurfaceLostTwice(t *testing.T) {
	re, b := newEngine(t, 16, 16, headless.WithSurfaceErrors(hal.ErrSurfaceLost, hal.ErrSurfaceOutdated))
	err := re.Render()
	assert.ErrorIs(t, err, ErrSurface)
	assert.ErrorIs(t, err, hal.ErrSurfaceOutdated)
	assert.Zero(t, b.Presented())
	assert.Zero(t, re.FrameCount())

	// The next frame recovers.
	require.NoError(t, re.Render())
	assert.Equal(t, 1, b.Presented())
}

func TestSurfaceTimeoutSkipsFrame(t *testing.T) {
	re, b := newEngine(t, 16, 16, headless.WithSurfaceErrors(hal.ErrSurfaceTimeout))
	require.NoError(t, re.Render())
	assert.Zero(t, b.Presented())
	assert.Zero(t, re.FrameCount())
	assert.Len(t, b.Configurations(), 1)
}

func TestFailedSubmitDoesNotWedgeSurface(t *testing.T) {
	re, b := newEngine(t, 16, 16, headless.WithSubmitErrors(hal.ErrUnsupported))
	live := b.Stats().LiveTotal()

	err := re.Render()
	assert.ErrorIs(t, err, ErrResource)
	assert.ErrorIs(t, err, hal.ErrUnsupported)
	assert.Zero(t, b.Presented())
	assert.Equal(t, live, b.Stats().LiveTotal())

	require.NoError(t, re.Render())
	assert.Equal(t, 1, b.Presented())
	assert.Equal(t, uint64(1), re.FrameCount())
}

func TestRenderKeepsBackgroundOpaque(t *testing.T) {
	re, b := newEngine(t, 64, 64)
	require.NoError(t, re.Render())

	img := b.Frame()
	require.NotNil(t, img)
	want := color.RGBA{128, 255, 128, 255}
	assert.Equal(t, want, img.RGBAAt(0, 63))
	assert.Equal(t, want, img.RGBAAt(63, 63))
	assert.Equal(t, want, img.RGBAAt(0, 0))
}

func TestDestroy(t *testing.T) {
	b := headless.New()
	re, err := New(b, fixedTarget{8, 8})
	require.NoError(t, err)
	require.NoError(t, re.Render())

	re.Destroy()
	re.Destroy()
	stats := b.Stats()
	assert.Zero(t, stats.LiveTotal())
	assert.Zero(t, stats.DoubleReleases)

	err = re.Render()
	assert.ErrorIs(t, err, ErrResource)
}
