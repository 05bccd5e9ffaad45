// Package webgpu is the hal backend built on wgpu-native through
// github.com/cogentcore/webgpu. Surfaces are created from glfw windows.
package webgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"render-harness/hal"
)

// GLFWTarget is a surface target backed by a glfw window created with
// ClientAPI NoAPI.
type GLFWTarget interface {
	hal.SurfaceTarget
	GLFWWindow() *glfw.Window
}

type Backend struct {
	logger *slog.Logger
}

var _ hal.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{logger: slog.New(slog.DiscardHandler)}
}

func (b *Backend) Name() string {
	return "webgpu"
}

func (b *Backend) SetLogger(l *slog.Logger) {
	b.logger = l
}

func (b *Backend) CreateInstance() (hal.Instance, error) {
	inst := wgpu.CreateInstance(nil)
	if inst == nil {
		return nil, errors.New("webgpu: failed to create instance")
	}
	return &instance{backend: b, inst: inst}, nil
}

type instance struct {
	backend *Backend
	inst    *wgpu.Instance
}

func (i *instance) CreateSurface(target hal.SurfaceTarget) (hal.Surface, error) {
	gt, ok := target.(GLFWTarget)
	if !ok {
		return nil, fmt.Errorf("webgpu: surface target %T has no glfw window: %w", target, hal.ErrUnsupported)
	}
	s := i.inst.CreateSurface(wgpuglfw.GetSurfaceDescriptor(gt.GLFWWindow()))
	if s == nil {
		return nil, errors.New("webgpu: failed to create surface")
	}
	return &surface{backend: i.backend, surface: s}, nil
}

func (i *instance) RequestAdapter(opts *hal.RequestAdapterOptions) (hal.Adapter, error) {
	o := &wgpu.RequestAdapterOptions{}
	if opts != nil {
		o.PowerPreference = powerPreference(opts.PowerPreference)
		o.ForceFallbackAdapter = opts.ForceFallbackAdapter
		if s, ok := opts.CompatibleSurface.(*surface); ok {
			o.CompatibleSurface = s.surface
		}
	}
	a, err := i.inst.RequestAdapter(o)
	if err != nil {
		return nil, fmt.Errorf("webgpu: %w: %v", hal.ErrNoAdapter, err)
	}
	if a == nil {
		return nil, fmt.Errorf("webgpu: %w", hal.ErrNoAdapter)
	}
	return &adapter{backend: i.backend, adapter: a}, nil
}

func (i *instance) Release() {
	i.inst.Release()
}

type adapter struct {
	backend *Backend
	adapter *wgpu.Adapter
}

func (a *adapter) Info() hal.AdapterInfo {
	info := a.adapter.GetInfo()
	return hal.AdapterInfo{
		Name:       info.Name,
		Driver:     info.DriverDescription,
		Backend:    info.BackendType.String(),
		DeviceType: deviceType(info.AdapterType),
	}
}

func (a *adapter) RequestDevice(desc *hal.DeviceDescriptor) (hal.Device, error) {
	d, err := a.adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: desc.Label})
	if err != nil {
		return nil, fmt.Errorf("webgpu: %w: %v", hal.ErrDeviceRefused, err)
	}
	return &device{backend: a.backend, device: d, queue: &queue{queue: d.GetQueue()}}, nil
}

func (a *adapter) Release() {
	a.adapter.Release()
}

type device struct {
	backend *Backend
	device  *wgpu.Device
	queue   *queue
}

func (d *device) Queue() hal.Queue {
	return d.queue
}

func (d *device) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	m, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: desc.Source.WGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: shader module %q: %w", desc.Label, err)
	}
	return &shaderModule{m}, nil
}

func (d *device) CreatePipelineLayout(desc *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	l, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{Label: desc.Label})
	if err != nil {
		return nil, fmt.Errorf("webgpu: pipeline layout %q: %w", desc.Label, err)
	}
	return &pipelineLayout{l}, nil
}

func (d *device) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	if desc.Primitive.PolygonMode != hal.PolygonModeFill {
		return nil, fmt.Errorf("webgpu: polygon mode %s: %w", desc.Primitive.PolygonMode, hal.ErrUnsupported)
	}
	layout, ok := desc.Layout.(*pipelineLayout)
	if !ok {
		return nil, errors.New("webgpu: render pipeline: foreign pipeline layout")
	}
	vs, ok := desc.Vertex.Module.(*shaderModule)
	if !ok {
		return nil, errors.New("webgpu: render pipeline: foreign vertex module")
	}
	fs, ok := desc.Fragment.Module.(*shaderModule)
	if !ok {
		return nil, errors.New("webgpu: render pipeline: foreign fragment module")
	}

	buffers := make([]wgpu.VertexBufferLayout, 0, len(desc.Vertex.Buffers))
	for _, b := range desc.Vertex.Buffers {
		attrs := make([]wgpu.VertexAttribute, 0, len(b.Attributes))
		for _, a := range b.Attributes {
			attrs = append(attrs, wgpu.VertexAttribute{
				Format:         vertexFormat(a.Format),
				Offset:         a.Offset,
				ShaderLocation: a.ShaderLocation,
			})
		}
		step := wgpu.VertexStepModeVertex
		if b.StepMode == hal.VertexStepModeInstance {
			step = wgpu.VertexStepModeInstance
		}
		buffers = append(buffers, wgpu.VertexBufferLayout{
			ArrayStride: b.ArrayStride,
			StepMode:    step,
			Attributes:  attrs,
		})
	}

	targets := make([]wgpu.ColorTargetState, 0, len(desc.Fragment.Targets))
	for _, t := range desc.Fragment.Targets {
		blend := &wgpu.BlendStateReplace
		if t.Blend == hal.BlendModeAlpha {
			blend = &wgpu.BlendStateAlphaBlending
		}
		targets = append(targets, wgpu.ColorTargetState{
			Format:    textureFormat(t.Format),
			Blend:     blend,
			WriteMask: wgpu.ColorWriteMask(t.WriteMask),
		})
	}

	p, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout.layout,
		Vertex: wgpu.VertexState{
			Module:     vs.module,
			EntryPoint: desc.Vertex.EntryPoint,
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs.module,
			EntryPoint: desc.Fragment.EntryPoint,
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology(desc.Primitive.Topology),
			FrontFace: frontFace(desc.Primitive.FrontFace),
			CullMode:  cullMode(desc.Primitive.CullMode),
		},
		Multisample: wgpu.MultisampleState{
			Count: desc.Multisample.Count,
			Mask:  desc.Multisample.Mask,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: render pipeline %q: %w", desc.Label, err)
	}
	return &renderPipeline{p}, nil
}

func (d *device) CreateBufferInit(desc *hal.BufferInitDescriptor) (hal.Buffer, error) {
	b, err := d.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    desc.Label,
		Contents: desc.Contents,
		Usage:    bufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: buffer %q: %w", desc.Label, err)
	}
	return &buffer{b}, nil
}

func (d *device) CreateCommandEncoder(label string) (hal.CommandEncoder, error) {
	e, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("webgpu: command encoder %q: %w", label, err)
	}
	return &commandEncoder{e}, nil
}

func (d *device) Release() {
	d.device.Release()
}

type queue struct {
	queue *wgpu.Queue
}

func (q *queue) Submit(cmd hal.CommandBuffer) error {
	cb, ok := cmd.(*commandBuffer)
	if !ok {
		return errors.New("webgpu: submit: foreign command buffer")
	}
	q.queue.Submit(cb.buffer)
	return nil
}

func (q *queue) Release() {
	q.queue.Release()
}

type surface struct {
	backend *Backend
	surface *wgpu.Surface
}

func (s *surface) Configure(a hal.Adapter, d hal.Device, config *hal.SurfaceConfig) error {
	wa, ok := a.(*adapter)
	if !ok {
		return errors.New("webgpu: configure: foreign adapter")
	}
	wd, ok := d.(*device)
	if !ok {
		return errors.New("webgpu: configure: foreign device")
	}

	caps := s.surface.GetCapabilities(wa.adapter)
	format := textureFormat(config.Format)
	if !slices.Contains(caps.Formats, format) {
		return fmt.Errorf("webgpu: surface format %s: %w", config.Format, hal.ErrUnsupported)
	}
	alpha := wgpu.CompositeAlphaModeAuto
	if len(caps.AlphaModes) > 0 {
		alpha = caps.AlphaModes[0]
	}

	s.surface.Configure(wa.adapter, wd.device, &wgpu.SurfaceConfiguration{
		Usage:       textureUsage(config.Usage),
		Format:      format,
		Width:       config.Width,
		Height:      config.Height,
		PresentMode: presentMode(config.PresentMode),
		AlphaMode:   alpha,
	})
	s.backend.logger.Debug("webgpu surface configured", "config", config.String())
	return nil
}

// GetCurrentTexture creates the view up front. wgpu-native's acquisition
// status does not reach the Go wrapper: a lost, outdated or timed out surface
// hands back an empty texture that only fails once it is used. That first use
// is mapped to a surface error so the caller can reconfigure.
func (s *surface) GetCurrentTexture() (hal.SurfaceTexture, error) {
	t, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, acquireError(err)
	}
	v, err := t.CreateView(nil)
	if err != nil {
		// The texture has no native handle to release.
		return nil, acquireError(err)
	}
	return &texture{texture: t, view: v}, nil
}

// acquireError maps a failed surface acquisition to the hal sentinels. A
// timeout skips the frame; anything else is treated as an outdated surface.
func acquireError(err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return fmt.Errorf("webgpu: %w: %v", hal.ErrSurfaceTimeout, err)
	}
	return fmt.Errorf("webgpu: %w: %v", hal.ErrSurfaceOutdated, err)
}

func (s *surface) Present() error {
	s.surface.Present()
	return nil
}

func (s *surface) Release() {
	s.surface.Release()
}

type texture struct {
	texture *wgpu.Texture
	// view is the view made at acquisition, handed out by the first
	// CreateView.
	view *wgpu.TextureView
}

func (t *texture) CreateView() (hal.TextureView, error) {
	if v := t.view; v != nil {
		t.view = nil
		return &textureView{v}, nil
	}
	v, err := t.texture.CreateView(nil)
	if err != nil {
		return nil, fmt.Errorf("webgpu: texture view: %w", err)
	}
	return &textureView{v}, nil
}

func (t *texture) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	t.texture.Release()
}

type textureView struct {
	view *wgpu.TextureView
}

func (v *textureView) Release() {
	v.view.Release()
}

type commandEncoder struct {
	encoder *wgpu.CommandEncoder
}

func (e *commandEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) (hal.RenderPass, error) {
	atts := make([]wgpu.RenderPassColorAttachment, 0, len(desc.ColorAttachments))
	for _, a := range desc.ColorAttachments {
		v, ok := a.View.(*textureView)
		if !ok {
			return nil, errors.New("webgpu: render pass: foreign texture view")
		}
		load := wgpu.LoadOpClear
		if a.LoadOp == hal.LoadOpLoad {
			load = wgpu.LoadOpLoad
		}
		store := wgpu.StoreOpStore
		if a.StoreOp == hal.StoreOpDiscard {
			store = wgpu.StoreOpDiscard
		}
		atts = append(atts, wgpu.RenderPassColorAttachment{
			View:    v.view,
			LoadOp:  load,
			StoreOp: store,
			ClearValue: wgpu.Color{
				R: a.ClearValue.R,
				G: a.ClearValue.G,
				B: a.ClearValue.B,
				A: a.ClearValue.A,
			},
		})
	}
	pass := e.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label:            desc.Label,
		ColorAttachments: atts,
	})
	return &renderPass{pass: pass}, nil
}

func (e *commandEncoder) Finish() (hal.CommandBuffer, error) {
	cb, err := e.encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("webgpu: finish: %w", err)
	}
	return &commandBuffer{cb}, nil
}

func (e *commandEncoder) Release() {
	e.encoder.Release()
}

type renderPass struct {
	pass *wgpu.RenderPassEncoder
	err  error
}

func (p *renderPass) SetPipeline(rp hal.RenderPipeline) {
	wp, ok := rp.(*renderPipeline)
	if !ok {
		p.err = errors.New("webgpu: set pipeline: foreign pipeline")
		return
	}
	p.pass.SetPipeline(wp.pipeline)
}

func (p *renderPass) SetVertexBuffer(slot uint32, b hal.Buffer) {
	wb, ok := b.(*buffer)
	if !ok {
		p.err = errors.New("webgpu: set vertex buffer: foreign buffer")
		return
	}
	p.pass.SetVertexBuffer(slot, wb.buffer, 0, wgpu.WholeSize)
}

func (p *renderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *renderPass) End() error {
	if err := p.pass.End(); err != nil {
		return fmt.Errorf("webgpu: end render pass: %w", err)
	}
	return p.err
}

func (p *renderPass) Release() {
	p.pass.Release()
}

type commandBuffer struct {
	buffer *wgpu.CommandBuffer
}

func (c *commandBuffer) Release() {
	c.buffer.Release()
}

type shaderModule struct {
	module *wgpu.ShaderModule
}

func (m *shaderModule) Release() {
	m.module.Release()
}

type pipelineLayout struct {
	layout *wgpu.PipelineLayout
}

func (l *pipelineLayout) Release() {
	l.layout.Release()
}

type renderPipeline struct {
	pipeline *wgpu.RenderPipeline
}

func (p *renderPipeline) Release() {
	p.pipeline.Release()
}

type buffer struct {
	buffer *wgpu.Buffer
}

func (b *buffer) Size() uint64 {
	return b.buffer.GetSize()
}

func (b *buffer) Release() {
	b.buffer.Release()
}
