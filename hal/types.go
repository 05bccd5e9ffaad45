package hal

import "fmt"

type PowerPreference uint8

const (
	PowerPreferenceUndefined PowerPreference = iota
	PowerPreferenceLowPower
	PowerPreferenceHighPerformance
)

func (p PowerPreference) String() string {
	switch p {
	case PowerPreferenceLowPower:
		return "low-power"
	case PowerPreferenceHighPerformance:
		return "high-performance"
	default:
		return "undefined"
	}
}

type DeviceType uint8

const (
	DeviceTypeUnknown DeviceType = iota
	DeviceTypeDiscreteGPU
	DeviceTypeIntegratedGPU
	DeviceTypeVirtualGPU
	DeviceTypeCPU
)

func (d DeviceType) String() string {
	switch d {
	case DeviceTypeDiscreteGPU:
		return "Discrete GPU"
	case DeviceTypeIntegratedGPU:
		return "Integrated GPU"
	case DeviceTypeVirtualGPU:
		return "Virtual GPU"
	case DeviceTypeCPU:
		return "CPU"
	default:
		return "Unknown"
	}
}

type AdapterInfo struct {
	Name       string
	Driver     string
	Backend    string
	DeviceType DeviceType
}

type RequestAdapterOptions struct {
	PowerPreference      PowerPreference
	CompatibleSurface    Surface
	ForceFallbackAdapter bool
}

// DeviceDescriptor requests a device with the default feature and limit sets.
type DeviceDescriptor struct {
	Label string
}

type TextureFormat uint8

const (
	TextureFormatUndefined TextureFormat = iota
	TextureFormatRGBA8Unorm
	TextureFormatBGRA8Unorm
)

func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGBA8Unorm:
		return "rgba8unorm"
	case TextureFormatBGRA8Unorm:
		return "bgra8unorm"
	default:
		return "undefined"
	}
}

type TextureUsage uint32

const (
	TextureUsageCopySrc TextureUsage = 1 << iota
	TextureUsageCopyDst
	TextureUsageRenderAttachment
)

type BufferUsage uint32

const (
	BufferUsageCopySrc BufferUsage = 1 << iota
	BufferUsageCopyDst
	BufferUsageVertex
)

type PresentMode uint8

const (
	PresentModeFifo PresentMode = iota
	PresentModeImmediate
	PresentModeMailbox
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	default:
		return "fifo"
	}
}

// SurfaceConfig is applied with Surface.Configure.
type SurfaceConfig struct {
	Usage       TextureUsage
	Format      TextureFormat
	Width       uint32
	Height      uint32
	PresentMode PresentMode
}

func (c SurfaceConfig) String() string {
	return fmt.Sprintf("%dx%d %s %s", c.Width, c.Height, c.Format, c.PresentMode)
}

// ShaderSource carries the program in every language a backend may want.
// WGSL is authoritative; GLSL is the OpenGL translation of the same stages.
type ShaderSource struct {
	WGSL         string
	GLSLVertex   string
	GLSLFragment string
}

type ShaderModuleDescriptor struct {
	Label  string
	Source ShaderSource
}

// PipelineLayoutDescriptor describes a layout with no bind groups and no
// push constants.
type PipelineLayoutDescriptor struct {
	Label string
}

type PrimitiveTopology uint8

const (
	PrimitiveTopologyTriangleList PrimitiveTopology = iota
	PrimitiveTopologyTriangleStrip
	PrimitiveTopologyLineList
	PrimitiveTopologyPointList
)

func (t PrimitiveTopology) String() string {
	switch t {
	case PrimitiveTopologyTriangleList:
		return "triangle-list"
	case PrimitiveTopologyTriangleStrip:
		return "triangle-strip"
	case PrimitiveTopologyLineList:
		return "line-list"
	case PrimitiveTopologyPointList:
		return "point-list"
	default:
		return fmt.Sprintf("PrimitiveTopology(%d)", uint8(t))
	}
}

type FrontFace uint8

const (
	FrontFaceCCW FrontFace = iota
	FrontFaceCW
)

func (f FrontFace) String() string {
	if f == FrontFaceCW {
		return "cw"
	}
	return "ccw"
}

type CullMode uint8

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

func (c CullMode) String() string {
	switch c {
	case CullModeFront:
		return "front"
	case CullModeBack:
		return "back"
	default:
		return "none"
	}
}

type PolygonMode uint8

const (
	PolygonModeFill PolygonMode = iota
	PolygonModeLine
)

func (p PolygonMode) String() string {
	if p == PolygonModeLine {
		return "line"
	}
	return "fill"
}

type BlendMode uint8

const (
	// BlendModeReplace writes the fragment color as is.
	BlendModeReplace BlendMode = iota
	BlendModeAlpha
)

func (b BlendMode) String() string {
	if b == BlendModeAlpha {
		return "alpha"
	}
	return "replace"
}

type ColorWriteMask uint8

const (
	ColorWriteMaskRed ColorWriteMask = 1 << iota
	ColorWriteMaskGreen
	ColorWriteMaskBlue
	ColorWriteMaskAlpha

	ColorWriteMaskAll = ColorWriteMaskRed | ColorWriteMaskGreen | ColorWriteMaskBlue | ColorWriteMaskAlpha
)

type VertexFormat uint8

const (
	VertexFormatFloat32x2 VertexFormat = iota
	VertexFormatFloat32x3
	VertexFormatFloat32x4
)

// Size returns the attribute size in bytes.
func (f VertexFormat) Size() uint64 {
	return uint64(f.Components()) * 4
}

func (f VertexFormat) Components() int {
	switch f {
	case VertexFormatFloat32x2:
		return 2
	case VertexFormatFloat32x3:
		return 3
	case VertexFormatFloat32x4:
		return 4
	default:
		return 0
	}
}

type VertexStepMode uint8

const (
	VertexStepModeVertex VertexStepMode = iota
	VertexStepModeInstance
)

type VertexAttribute struct {
	Format         VertexFormat
	Offset         uint64
	ShaderLocation uint32
}

type VertexBufferLayout struct {
	ArrayStride uint64
	StepMode    VertexStepMode
	Attributes  []VertexAttribute
}

type VertexState struct {
	Module     ShaderModule
	EntryPoint string
	Buffers    []VertexBufferLayout
}

type ColorTargetState struct {
	Format    TextureFormat
	Blend     BlendMode
	WriteMask ColorWriteMask
}

type FragmentState struct {
	Module     ShaderModule
	EntryPoint string
	Targets    []ColorTargetState
}

type PrimitiveState struct {
	Topology    PrimitiveTopology
	FrontFace   FrontFace
	CullMode    CullMode
	PolygonMode PolygonMode
}

type MultisampleState struct {
	Count uint32
	Mask  uint32
}

// RenderPipelineDescriptor has no depth/stencil state: pipelines built through
// hal always render to a single color target.
type RenderPipelineDescriptor struct {
	Label       string
	Layout      PipelineLayout
	Vertex      VertexState
	Fragment    FragmentState
	Primitive   PrimitiveState
	Multisample MultisampleState
}

type BufferInitDescriptor struct {
	Label    string
	Contents []byte
	Usage    BufferUsage
}

type LoadOp uint8

const (
	LoadOpClear LoadOp = iota
	LoadOpLoad
)

type StoreOp uint8

const (
	StoreOpStore StoreOp = iota
	StoreOpDiscard
)

// Color is a linear RGBA color with components in [0, 1].
type Color struct {
	R, G, B, A float64
}

type RenderPassColorAttachment struct {
	View       TextureView
	LoadOp     LoadOp
	StoreOp    StoreOp
	ClearValue Color
}

type RenderPassDescriptor struct {
	Label            string
	ColorAttachments []RenderPassColorAttachment
}
