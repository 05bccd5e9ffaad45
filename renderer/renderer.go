package renderer

import (
	"errors"
	"fmt"

	"render-harness/hal"
)

// ClearColor is the background every frame is cleared to.
var ClearColor = hal.Color{R: 0.5, G: 1.0, B: 0.5, A: 1.0}

type options struct {
	shader hal.ShaderSource
}

type Option func(*options)

// WithShader replaces the embedded triangle program. The source must still
// declare vert_main and frag_main.
func WithShader(src hal.ShaderSource) Option {
	return func(o *options) { o.shader = src }
}

// RenderEngine owns the GPU objects needed to draw one triangle per frame.
// It is not safe for concurrent use; call New and Render from the thread
// that owns the window.
type RenderEngine struct {
	backend  string
	instance hal.Instance
	surface  hal.Surface
	dc       *DeviceContext

	config         hal.SurfaceConfig
	pipelineConfig PipelineConfig

	module       hal.ShaderModule
	layout       hal.PipelineLayout
	pipeline     hal.RenderPipeline
	vertexBuffer hal.Buffer
	vertexData   []byte
	vertexCount  uint32

	frames    uint64
	destroyed bool
}

// New creates a surface on target, acquires a device for it, and builds the
// pipeline and vertex buffer. On failure everything created so far is
// released and an *InitError is returned.
func New(backend hal.Backend, target hal.SurfaceTarget, opts ...Option) (*RenderEngine, error) {
	o := options{shader: TriangleShader()}
	for _, opt := range opts {
		opt(&o)
	}
	propagateLogger(backend)

	re := &RenderEngine{backend: backend.Name()}
	fail := func(step string, kind ErrorKind, err error) (*RenderEngine, error) {
		re.Destroy()
		return nil, &InitError{Step: step, Kind: kind, Err: err}
	}

	instance, err := backend.CreateInstance()
	if err != nil {
		return fail("create instance", KindEnvironment, err)
	}
	re.instance = instance

	surface, err := instance.CreateSurface(target)
	if err != nil {
		return fail("create surface", KindEnvironment, err)
	}
	re.surface = surface

	dc, err := AcquireDevice(instance, surface)
	if err != nil {
		return fail("acquire device", KindEnvironment, err)
	}
	re.dc = dc

	// ── Surface ───────────────────────────────────────────────────────────────
	width, height := target.FramebufferSize()
	if width <= 0 || height <= 0 {
		return fail("configure surface", KindEnvironment, fmt.Errorf("invalid window size %dx%d", width, height))
	}
	re.config = hal.SurfaceConfig{
		Usage:       hal.TextureUsageRenderAttachment,
		Format:      hal.TextureFormatRGBA8Unorm,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: hal.PresentModeImmediate,
	}
	if err := surface.Configure(dc.Adapter, dc.Device, &re.config); err != nil {
		return fail("configure surface", KindEnvironment, err)
	}
	Logger().Info("surface configured", "config", re.config.String())

	// ── Pipeline ──────────────────────────────────────────────────────────────
	pc := DefaultPipelineConfig(re.config.Format)
	if err := pc.Validate(); err != nil {
		return fail("validate pipeline config", KindShader, err)
	}
	re.pipelineConfig = pc

	if err := ValidateShader(o.shader, pc.VertexEntry, pc.FragmentEntry); err != nil {
		return fail("validate shader", KindShader, err)
	}
	re.module, err = dc.Device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: "shaders", Source: o.shader})
	if err != nil {
		return fail("create shader module", KindShader, err)
	}
	re.layout, err = dc.Device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{Label: "pipeline layout"})
	if err != nil {
		return fail("create pipeline layout", KindShader, err)
	}
	re.pipeline, err = dc.Device.CreateRenderPipeline(pc.descriptor(re.layout, re.module))
	if err != nil {
		return fail("create render pipeline", KindShader, err)
	}

	// ── Vertex buffer ─────────────────────────────────────────────────────────
	vertices := TriangleVertices()
	re.vertexData = PackVertices(vertices)
	re.vertexCount = uint32(len(vertices))
	re.vertexBuffer, err = dc.Device.CreateBufferInit(&hal.BufferInitDescriptor{
		Label:    "vertex buffer",
		Contents: re.vertexData,
		Usage:    hal.BufferUsageVertex,
	})
	if err != nil {
		return fail("create vertex buffer", KindResource, err)
	}

	Logger().Info("render engine ready", "backend", re.backend, "adapter", dc.Adapter.Info().Name)
	return re, nil
}

// Render draws one frame: clear, draw the triangle, submit, present. A
// lost or outdated surface is reconfigured and acquisition retried once. A
// timed out acquisition skips the frame and returns nil.
func (re *RenderEngine) Render() error {
	if re.destroyed {
		return &FrameError{Step: "render", Kind: KindResource, Err: errors.New("engine destroyed")}
	}

	tex, err := re.acquire()
	if err != nil {
		if errors.Is(err, hal.ErrSurfaceTimeout) {
			Logger().Debug("frame skipped", "err", err)
			return nil
		}
		return &FrameError{Step: "get surface texture", Kind: KindSurface, Err: err}
	}
	defer tex.Release()

	view, err := tex.CreateView()
	if err != nil {
		return &FrameError{Step: "create texture view", Kind: KindResource, Err: err}
	}
	defer view.Release()

	encoder, err := re.dc.Device.CreateCommandEncoder("encoder")
	if err != nil {
		return &FrameError{Step: "create command encoder", Kind: KindResource, Err: err}
	}
	defer encoder.Release()

	pass, err := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "render pass encoding",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     hal.LoadOpClear,
			StoreOp:    hal.StoreOpStore,
			ClearValue: ClearColor,
		}},
	})
	if err != nil {
		return &FrameError{Step: "begin render pass", Kind: KindResource, Err: err}
	}
	pass.SetPipeline(re.pipeline)
	pass.SetVertexBuffer(0, re.vertexBuffer)
	pass.Draw(re.vertexCount, 1, 0, 0)
	err = pass.End()
	pass.Release()
	if err != nil {
		return &FrameError{Step: "end render pass", Kind: KindResource, Err: err}
	}

	cmd, err := encoder.Finish()
	if err != nil {
		return &FrameError{Step: "finish command encoder", Kind: KindResource, Err: err}
	}
	defer cmd.Release()

	if err := re.dc.Queue.Submit(cmd); err != nil {
		return &FrameError{Step: "submit", Kind: KindResource, Err: err}
	}
	if err := re.surface.Present(); err != nil {
		return &FrameError{Step: "present", Kind: KindSurface, Err: err}
	}

	re.frames++
	Logger().Debug("frame presented", "frame", re.frames)
	return nil
}

func (re *RenderEngine) acquire() (hal.SurfaceTexture, error) {
	tex, err := re.surface.GetCurrentTexture()
	if err == nil || !hal.IsSurfaceRecoverable(err) {
		return tex, err
	}

	Logger().Warn("reconfiguring surface", "reason", err, "config", re.config.String())
	if cerr := re.surface.Configure(re.dc.Adapter, re.dc.Device, &re.config); cerr != nil {
		return nil, fmt.Errorf("failed to reconfigure surface after %v: %w", err, cerr)
	}
	return re.surface.GetCurrentTexture()
}

// Destroy releases every GPU object the engine owns. It is safe to call
// more than once.
func (re *RenderEngine) Destroy() {
	if re.destroyed {
		return
	}
	re.destroyed = true

	if re.vertexBuffer != nil {
		re.vertexBuffer.Release()
	}
	if re.pipeline != nil {
		re.pipeline.Release()
	}
	if re.layout != nil {
		re.layout.Release()
	}
	if re.module != nil {
		re.module.Release()
	}
	if re.surface != nil {
		re.surface.Release()
	}
	if re.dc != nil {
		re.dc.Release()
	}
	if re.instance != nil {
		re.instance.Release()
	}
}

// SurfaceConfig returns the configuration applied to the surface.
func (re *RenderEngine) SurfaceConfig() hal.SurfaceConfig {
	return re.config
}

// PipelineConfig returns a copy of the validated pipeline configuration.
func (re *RenderEngine) PipelineConfig() PipelineConfig {
	return re.pipelineConfig.clone()
}

// VertexData returns a copy of the bytes uploaded to the vertex buffer.
func (re *RenderEngine) VertexData() []byte {
	return append([]byte(nil), re.vertexData...)
}

// FrameCount returns the number of frames presented.
func (re *RenderEngine) FrameCount() uint64 {
	return re.frames
}

func (re *RenderEngine) AdapterInfo() hal.AdapterInfo {
	if re.dc == nil || re.dc.Adapter == nil {
		return hal.AdapterInfo{}
	}
	return re.dc.Adapter.Info()
}
