package headless

import (
	"errors"
	"fmt"
	"image"
	"regexp"

	"render-harness/hal"
)

type instance struct {
	resource
	backend *Backend
}

func (i *instance) CreateSurface(target hal.SurfaceTarget) (hal.Surface, error) {
	if target == nil {
		return nil, fmt.Errorf("headless: nil surface target")
	}
	return &surface{resource: i.backend.tracker.track(KindSurface), backend: i.backend, target: target}, nil
}

func (i *instance) RequestAdapter(opts *hal.RequestAdapterOptions) (hal.Adapter, error) {
	b := i.backend
	if opts == nil {
		opts = &hal.RequestAdapterOptions{}
	}
	recorded := *opts
	b.adapterOpts = &recorded

	if b.noAdapter {
		return nil, fmt.Errorf("headless: %w", hal.ErrNoAdapter)
	}
	if opts.CompatibleSurface != nil {
		if s, ok := opts.CompatibleSurface.(*surface); !ok || s.backend != b {
			return nil, fmt.Errorf("headless: surface from another backend: %w", hal.ErrNoAdapter)
		}
	}
	info := hal.AdapterInfo{
		Name:       "headless rasterizer",
		Driver:     "golang.org/x/image/vector",
		Backend:    "headless",
		DeviceType: hal.DeviceTypeVirtualGPU,
	}
	if b.fallbackOnly {
		if !opts.ForceFallbackAdapter {
			return nil, fmt.Errorf("headless: only a fallback adapter is available: %w", hal.ErrNoAdapter)
		}
		info.Name = "headless fallback rasterizer"
		info.DeviceType = hal.DeviceTypeCPU
	}
	return &adapter{resource: b.tracker.track(KindAdapter), backend: b, info: info}, nil
}

type adapter struct {
	resource
	backend *Backend
	info    hal.AdapterInfo
}

func (a *adapter) Info() hal.AdapterInfo {
	return a.info
}

func (a *adapter) RequestDevice(desc *hal.DeviceDescriptor) (hal.Device, error) {
	if a.backend.refuseDevice {
		return nil, fmt.Errorf("headless: %w", hal.ErrDeviceRefused)
	}
	d := &device{resource: a.backend.tracker.track(KindDevice), backend: a.backend}
	d.queue = &queue{resource: a.backend.tracker.track(KindQueue), backend: a.backend}
	return d, nil
}

type device struct {
	resource
	backend *Backend
	queue   *queue
}

func (d *device) Queue() hal.Queue {
	return d.queue
}

func (d *device) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	if desc.Source.WGSL == "" {
		return nil, fmt.Errorf("headless: shader module %q: %w: WGSL source required", desc.Label, hal.ErrUnsupported)
	}
	return &shaderModule{resource: d.backend.tracker.track(KindShaderModule), source: desc.Source.WGSL}, nil
}

func (d *device) CreatePipelineLayout(desc *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	return &pipelineLayout{resource: d.backend.tracker.track(KindPipelineLayout)}, nil
}

func (d *device) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	if desc.Layout == nil {
		return nil, fmt.Errorf("headless: pipeline %q: missing layout", desc.Label)
	}
	if err := checkEntry(desc.Vertex.Module, desc.Vertex.EntryPoint, "vertex"); err != nil {
		return nil, fmt.Errorf("headless: pipeline %q: %w", desc.Label, err)
	}
	if err := checkEntry(desc.Fragment.Module, desc.Fragment.EntryPoint, "fragment"); err != nil {
		return nil, fmt.Errorf("headless: pipeline %q: %w", desc.Label, err)
	}
	if len(desc.Fragment.Targets) != 1 {
		return nil, fmt.Errorf("headless: pipeline %q: want 1 color target, got %d", desc.Label, len(desc.Fragment.Targets))
	}
	if desc.Fragment.Targets[0].Format != hal.TextureFormatRGBA8Unorm {
		return nil, fmt.Errorf("headless: pipeline %q: target format %s: %w", desc.Label, desc.Fragment.Targets[0].Format, hal.ErrUnsupported)
	}
	if desc.Multisample.Count != 1 {
		return nil, fmt.Errorf("headless: pipeline %q: sample count %d: %w", desc.Label, desc.Multisample.Count, hal.ErrUnsupported)
	}
	if desc.Primitive.PolygonMode != hal.PolygonModeFill {
		return nil, fmt.Errorf("headless: pipeline %q: polygon mode %s: %w", desc.Label, desc.Primitive.PolygonMode, hal.ErrUnsupported)
	}
	return &renderPipeline{resource: d.backend.tracker.track(KindRenderPipeline), desc: *desc}, nil
}

func (d *device) CreateBufferInit(desc *hal.BufferInitDescriptor) (hal.Buffer, error) {
	if len(desc.Contents) == 0 {
		return nil, fmt.Errorf("headless: buffer %q: empty contents", desc.Label)
	}
	data := make([]byte, len(desc.Contents))
	copy(data, desc.Contents)
	return &buffer{resource: d.backend.tracker.track(KindBuffer), data: data, usage: desc.Usage}, nil
}

func (d *device) CreateCommandEncoder(label string) (hal.CommandEncoder, error) {
	return &commandEncoder{resource: d.backend.tracker.track(KindCommandEncoder), backend: d.backend}, nil
}

// Contents returns the bytes held by a buffer created by this backend.
func Contents(b hal.Buffer) ([]byte, bool) {
	hb, ok := b.(*buffer)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), hb.data...), true
}

var entryPattern = regexp.MustCompile(`@(vertex|fragment)\s+fn\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

func checkEntry(m hal.ShaderModule, entry, stage string) error {
	sm, ok := m.(*shaderModule)
	if !ok || sm == nil {
		return fmt.Errorf("%s stage: missing shader module", stage)
	}
	for _, match := range entryPattern.FindAllStringSubmatch(sm.source, -1) {
		if match[1] == stage && match[2] == entry {
			return nil
		}
	}
	return fmt.Errorf("%s stage: entry point %q not found", stage, entry)
}

type shaderModule struct {
	resource
	source string
}

type pipelineLayout struct {
	resource
}

type renderPipeline struct {
	resource
	desc hal.RenderPipelineDescriptor
}

type buffer struct {
	resource
	data  []byte
	usage hal.BufferUsage
}

func (b *buffer) Size() uint64 {
	return uint64(len(b.data))
}

type queue struct {
	resource
	backend *Backend
}

func (q *queue) Submit(cmd hal.CommandBuffer) error {
	cb, ok := cmd.(*commandBuffer)
	if !ok {
		return fmt.Errorf("headless: submit: foreign command buffer")
	}
	if cb.submitted {
		return fmt.Errorf("headless: submit: command buffer already submitted")
	}
	cb.submitted = true
	if err := q.backend.nextSubmitError(); err != nil {
		return fmt.Errorf("headless: submit: %w", err)
	}
	for _, c := range cb.commands {
		if err := c.execute(); err != nil {
			return fmt.Errorf("headless: submit: %w", err)
		}
	}
	return nil
}

type surface struct {
	resource
	backend  *Backend
	target   hal.SurfaceTarget
	config   *hal.SurfaceConfig
	acquired *texture
}

func (s *surface) Configure(a hal.Adapter, d hal.Device, config *hal.SurfaceConfig) error {
	if a == nil || d == nil {
		return fmt.Errorf("headless: configure: adapter and device required")
	}
	if config.Width == 0 || config.Height == 0 {
		return fmt.Errorf("headless: configure: invalid size %dx%d", config.Width, config.Height)
	}
	if config.Format != hal.TextureFormatRGBA8Unorm {
		return fmt.Errorf("headless: configure: format %s: %w", config.Format, hal.ErrUnsupported)
	}
	if config.Usage&hal.TextureUsageRenderAttachment == 0 {
		return fmt.Errorf("headless: configure: render attachment usage required")
	}
	cfg := *config
	s.config = &cfg
	s.acquired = nil
	s.backend.configs = append(s.backend.configs, cfg)
	return nil
}

func (s *surface) GetCurrentTexture() (hal.SurfaceTexture, error) {
	if s.config == nil {
		return nil, fmt.Errorf("headless: surface not configured: %w", hal.ErrSurfaceOutdated)
	}
	if err := s.backend.nextSurfaceError(); err != nil {
		return nil, fmt.Errorf("headless: get current texture: %w", err)
	}
	if s.acquired != nil {
		return nil, errors.New("headless: surface texture already acquired")
	}
	t := &texture{
		resource: s.backend.tracker.track(KindTexture),
		surface:  s,
		img:      image.NewRGBA(image.Rect(0, 0, int(s.config.Width), int(s.config.Height))),
	}
	s.acquired = t
	return t, nil
}

func (s *surface) Present() error {
	if s.acquired == nil {
		return errors.New("headless: present: no texture acquired")
	}
	s.backend.lastFrame = s.acquired.img
	s.backend.presented++
	s.acquired = nil
	return nil
}

type texture struct {
	resource
	surface *surface
	img     *image.RGBA
}

// Release gives the surface back if the frame was abandoned before Present.
func (t *texture) Release() {
	if t.surface != nil && t.surface.acquired == t {
		t.surface.acquired = nil
	}
	t.resource.Release()
}

func (t *texture) CreateView() (hal.TextureView, error) {
	return &textureView{resource: t.t.track(KindTextureView), tex: t}, nil
}

type textureView struct {
	resource
	tex *texture
}
