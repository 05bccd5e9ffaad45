// Package hal is the backend-neutral GPU layer used by the renderer.
//
// The interfaces follow the WebGPU object model: an Instance creates a
// Surface for a window and negotiates an Adapter, the Adapter opens a Device,
// and the Device allocates every other resource. Each backend (webgpu,
// opengl, headless) implements the full set.
//
// Objects are single-owner. Release must be called exactly once by the owner;
// calling any other method after Release is undefined.
package hal

// Backend produces an Instance for one graphics API.
type Backend interface {
	Name() string
	CreateInstance() (Instance, error)
}

// SurfaceTarget is the capability a window hands to the renderer.
// Backends type-assert for whatever extra they need to build a surface.
type SurfaceTarget interface {
	// FramebufferSize returns the drawable size in pixels.
	FramebufferSize() (width, height int)
}

// Instance is the entry point into a backend.
type Instance interface {
	CreateSurface(target SurfaceTarget) (Surface, error)
	// RequestAdapter blocks until the platform answers.
	// It returns an error wrapping ErrNoAdapter if nothing matches.
	RequestAdapter(opts *RequestAdapterOptions) (Adapter, error)
	Release()
}

// Adapter is one physical GPU.
type Adapter interface {
	Info() AdapterInfo
	// RequestDevice blocks until the driver answers.
	// It returns an error wrapping ErrDeviceRefused on refusal.
	RequestDevice(desc *DeviceDescriptor) (Device, error)
	Release()
}

// Device allocates GPU resources.
type Device interface {
	Queue() Queue
	CreateShaderModule(desc *ShaderModuleDescriptor) (ShaderModule, error)
	CreatePipelineLayout(desc *PipelineLayoutDescriptor) (PipelineLayout, error)
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error)
	CreateBufferInit(desc *BufferInitDescriptor) (Buffer, error)
	CreateCommandEncoder(label string) (CommandEncoder, error)
	Release()
}

// Queue executes command buffers in submission order.
type Queue interface {
	Submit(cmd CommandBuffer) error
	Release()
}

// Surface is the presentation target bound to a window.
type Surface interface {
	Configure(adapter Adapter, device Device, config *SurfaceConfig) error
	// GetCurrentTexture returns the next presentable texture. Failures wrap
	// ErrSurfaceLost, ErrSurfaceOutdated or ErrSurfaceTimeout.
	GetCurrentTexture() (SurfaceTexture, error)
	// Present shows the texture last returned by GetCurrentTexture.
	Present() error
	Release()
}

// SurfaceTexture is the swap-chain image of one frame.
type SurfaceTexture interface {
	CreateView() (TextureView, error)
	Release()
}

type TextureView interface {
	Release()
}

// CommandEncoder records commands into a single CommandBuffer.
type CommandEncoder interface {
	BeginRenderPass(desc *RenderPassDescriptor) (RenderPass, error)
	// Finish consumes the encoder. Any render pass begun on it must have
	// been ended first.
	Finish() (CommandBuffer, error)
	Release()
}

// RenderPass records draw calls against the attachments of its descriptor.
type RenderPass interface {
	SetPipeline(pipeline RenderPipeline)
	SetVertexBuffer(slot uint32, buffer Buffer)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	End() error
	Release()
}

type CommandBuffer interface {
	Release()
}

type ShaderModule interface {
	Release()
}

type PipelineLayout interface {
	Release()
}

type RenderPipeline interface {
	Release()
}

type Buffer interface {
	Size() uint64
	Release()
}
