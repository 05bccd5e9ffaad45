// Package opengl is the hal backend on an OpenGL 4.1 core context. The
// context belongs to the surface target: it is made current when the surface
// is created and frames are shown with the target's SwapBuffers.
//
// Command encoders record closures; the queue runs them on Submit.
package opengl

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"render-harness/hal"
)

// GLTarget is a surface target that owns an OpenGL context.
type GLTarget interface {
	hal.SurfaceTarget
	MakeContextCurrent()
	SwapBuffers()
}

const (
	minMajor = 4
	minMinor = 1
)

type Backend struct {
	logger      *slog.Logger
	initialized bool
}

var _ hal.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{logger: slog.New(slog.DiscardHandler)}
}

func (b *Backend) Name() string {
	return "opengl"
}

func (b *Backend) SetLogger(l *slog.Logger) {
	b.logger = l
}

func (b *Backend) CreateInstance() (hal.Instance, error) {
	return &instance{backend: b}, nil
}

type instance struct {
	backend *Backend
}

func (i *instance) CreateSurface(target hal.SurfaceTarget) (hal.Surface, error) {
	gt, ok := target.(GLTarget)
	if !ok {
		return nil, fmt.Errorf("opengl: surface target %T has no GL context: %w", target, hal.ErrUnsupported)
	}
	gt.MakeContextCurrent()
	if !i.backend.initialized {
		if err := gl.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
		}
		i.backend.initialized = true
	}
	return &surface{backend: i.backend, target: gt}, nil
}

func (i *instance) RequestAdapter(opts *hal.RequestAdapterOptions) (hal.Adapter, error) {
	if !i.backend.initialized {
		return nil, fmt.Errorf("opengl: no context: %w", hal.ErrNoAdapter)
	}
	if opts == nil {
		opts = &hal.RequestAdapterOptions{}
	}
	if opts.CompatibleSurface != nil {
		if _, ok := opts.CompatibleSurface.(*surface); !ok {
			return nil, fmt.Errorf("opengl: surface from another backend: %w", hal.ErrNoAdapter)
		}
	}

	renderer := gl.GoStr(gl.GetString(gl.RENDERER))
	info := hal.AdapterInfo{
		Name:       renderer,
		Driver:     gl.GoStr(gl.GetString(gl.VERSION)),
		Backend:    "opengl",
		DeviceType: hal.DeviceTypeUnknown,
	}
	if isSoftwareRenderer(renderer) {
		info.DeviceType = hal.DeviceTypeCPU
	}
	if opts.ForceFallbackAdapter && info.DeviceType != hal.DeviceTypeCPU {
		return nil, fmt.Errorf("opengl: context renderer %q is not a fallback adapter: %w", renderer, hal.ErrNoAdapter)
	}
	// The context already exists, so the power preference cannot change it.
	i.backend.logger.Debug("opengl adapter", "renderer", renderer, "power_preference", opts.PowerPreference.String())
	return &adapter{backend: i.backend, info: info}, nil
}

func (i *instance) Release() {}

// isSoftwareRenderer reports whether a GL_RENDERER string names a CPU
// rasterizer.
func isSoftwareRenderer(renderer string) bool {
	r := strings.ToLower(renderer)
	for _, s := range []string{"llvmpipe", "softpipe", "swiftshader", "software rasterizer"} {
		if strings.Contains(r, s) {
			return true
		}
	}
	return false
}

// parseVersion extracts major.minor from a GL_VERSION string such as
// "4.6 (Core Profile) Mesa 23.2.1" or "4.1 ATI-4.14.1".
func parseVersion(v string) (major, minor int, err error) {
	field, _, _ := strings.Cut(strings.TrimSpace(v), " ")
	parts := strings.SplitN(field, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("malformed GL version %q", v)
	}
	if major, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, fmt.Errorf("malformed GL version %q: %w", v, err)
	}
	if minor, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("malformed GL version %q: %w", v, err)
	}
	return major, minor, nil
}

type adapter struct {
	backend *Backend
	info    hal.AdapterInfo
}

func (a *adapter) Info() hal.AdapterInfo {
	return a.info
}

func (a *adapter) RequestDevice(desc *hal.DeviceDescriptor) (hal.Device, error) {
	major, minor, err := parseVersion(a.info.Driver)
	if err != nil {
		return nil, fmt.Errorf("opengl: %w: %v", hal.ErrDeviceRefused, err)
	}
	if major < minMajor || (major == minMajor && minor < minMinor) {
		return nil, fmt.Errorf("opengl: version %d.%d below %d.%d: %w", major, minor, minMajor, minMinor, hal.ErrDeviceRefused)
	}
	return &device{backend: a.backend, queue: &queue{}}, nil
}

func (a *adapter) Release() {}

type device struct {
	backend *Backend
	queue   *queue
}

func (d *device) Queue() hal.Queue {
	return d.queue
}

func (d *device) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	if desc.Source.GLSLVertex == "" || desc.Source.GLSLFragment == "" {
		return nil, fmt.Errorf("opengl: shader module %q: %w: GLSL source required", desc.Label, hal.ErrUnsupported)
	}
	vert, err := compileShader(desc.Source.GLSLVertex, gl.VERTEX_SHADER)
	if err != nil {
		return nil, fmt.Errorf("opengl: shader module %q: vertex: %w", desc.Label, err)
	}
	frag, err := compileShader(desc.Source.GLSLFragment, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vert)
		return nil, fmt.Errorf("opengl: shader module %q: fragment: %w", desc.Label, err)
	}
	return &shaderModule{vert: vert, frag: frag}, nil
}

func (d *device) CreatePipelineLayout(desc *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	return &pipelineLayout{}, nil
}

// CreateRenderPipeline links one program from the vertex module's vertex
// stage and the fragment module's fragment stage. GLSL has a single main per
// stage, so entry point names are not looked up.
func (d *device) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	vs, ok := desc.Vertex.Module.(*shaderModule)
	if !ok {
		return nil, errors.New("opengl: render pipeline: foreign vertex module")
	}
	fs, ok := desc.Fragment.Module.(*shaderModule)
	if !ok {
		return nil, errors.New("opengl: render pipeline: foreign fragment module")
	}
	if desc.Multisample.Count > 1 {
		return nil, fmt.Errorf("opengl: sample count %d: %w", desc.Multisample.Count, hal.ErrUnsupported)
	}
	if len(desc.Fragment.Targets) != 1 {
		return nil, fmt.Errorf("opengl: want 1 color target, got %d", len(desc.Fragment.Targets))
	}
	mode, err := drawMode(desc.Primitive.Topology)
	if err != nil {
		return nil, err
	}

	prog, err := linkProgram(vs.vert, fs.frag)
	if err != nil {
		return nil, fmt.Errorf("opengl: render pipeline %q: %w", desc.Label, err)
	}
	p := &renderPipeline{
		program:   prog,
		mode:      mode,
		primitive: desc.Primitive,
		target:    desc.Fragment.Targets[0],
		buffers:   desc.Vertex.Buffers,
	}
	gl.GenVertexArrays(1, &p.vao)
	return p, nil
}

func drawMode(t hal.PrimitiveTopology) (uint32, error) {
	switch t {
	case hal.PrimitiveTopologyTriangleList:
		return gl.TRIANGLES, nil
	case hal.PrimitiveTopologyTriangleStrip:
		return gl.TRIANGLE_STRIP, nil
	case hal.PrimitiveTopologyLineList:
		return gl.LINES, nil
	case hal.PrimitiveTopologyPointList:
		return gl.POINTS, nil
	default:
		return 0, fmt.Errorf("opengl: topology %s: %w", t, hal.ErrUnsupported)
	}
}

func (d *device) CreateBufferInit(desc *hal.BufferInitDescriptor) (hal.Buffer, error) {
	if len(desc.Contents) == 0 {
		return nil, fmt.Errorf("opengl: buffer %q: empty contents", desc.Label)
	}
	b := &buffer{size: uint64(len(desc.Contents))}
	gl.GenBuffers(1, &b.id)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.id)
	gl.BufferData(gl.ARRAY_BUFFER, len(desc.Contents), gl.Ptr(desc.Contents), gl.STATIC_DRAW)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return b, nil
}

func (d *device) CreateCommandEncoder(label string) (hal.CommandEncoder, error) {
	return &commandEncoder{label: label}, nil
}

func (d *device) Release() {}

type queue struct{}

func (q *queue) Submit(cmd hal.CommandBuffer) error {
	cb, ok := cmd.(*commandBuffer)
	if !ok {
		return errors.New("opengl: submit: foreign command buffer")
	}
	for _, op := range cb.ops {
		op()
	}
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("opengl: submit: GL error 0x%x", code)
	}
	return nil
}

func (q *queue) Release() {}

type surface struct {
	backend *Backend
	target  GLTarget
	config  *hal.SurfaceConfig
}

func (s *surface) Configure(a hal.Adapter, d hal.Device, config *hal.SurfaceConfig) error {
	if config.Format != hal.TextureFormatRGBA8Unorm {
		return fmt.Errorf("opengl: surface format %s: %w", config.Format, hal.ErrUnsupported)
	}
	s.target.MakeContextCurrent()
	switch config.PresentMode {
	case hal.PresentModeFifo:
		glfw.SwapInterval(1)
	default:
		glfw.SwapInterval(0)
	}
	cfg := *config
	s.config = &cfg
	s.backend.logger.Debug("opengl surface configured", "config", cfg.String())
	return nil
}

// GetCurrentTexture returns the default framebuffer.
func (s *surface) GetCurrentTexture() (hal.SurfaceTexture, error) {
	if s.config == nil {
		return nil, fmt.Errorf("opengl: surface not configured: %w", hal.ErrSurfaceOutdated)
	}
	return &texture{width: int32(s.config.Width), height: int32(s.config.Height)}, nil
}

func (s *surface) Present() error {
	s.target.SwapBuffers()
	return nil
}

func (s *surface) Release() {}

type texture struct {
	width, height int32
}

func (t *texture) CreateView() (hal.TextureView, error) {
	return &textureView{tex: t}, nil
}

func (t *texture) Release() {}

type textureView struct {
	tex *texture
}

func (v *textureView) Release() {}

type shaderModule struct {
	vert, frag uint32
}

func (m *shaderModule) Release() {
	gl.DeleteShader(m.vert)
	gl.DeleteShader(m.frag)
}

type pipelineLayout struct{}

func (l *pipelineLayout) Release() {}

type renderPipeline struct {
	program   uint32
	vao       uint32
	mode      uint32
	primitive hal.PrimitiveState
	target    hal.ColorTargetState
	buffers   []hal.VertexBufferLayout
}

func (p *renderPipeline) Release() {
	gl.DeleteVertexArrays(1, &p.vao)
	gl.DeleteProgram(p.program)
}

type buffer struct {
	id   uint32
	size uint64
}

func (b *buffer) Size() uint64 {
	return b.size
}

func (b *buffer) Release() {
	gl.DeleteBuffers(1, &b.id)
}
