package webgpu

import (
	"github.com/cogentcore/webgpu/wgpu"

	"render-harness/hal"
)

func powerPreference(p hal.PowerPreference) wgpu.PowerPreference {
	switch p {
	case hal.PowerPreferenceLowPower:
		return wgpu.PowerPreferenceLowPower
	case hal.PowerPreferenceHighPerformance:
		return wgpu.PowerPreferenceHighPerformance
	default:
		return wgpu.PowerPreferenceUndefined
	}
}

func deviceType(t wgpu.AdapterType) hal.DeviceType {
	switch t {
	case wgpu.AdapterTypeDiscreteGPU:
		return hal.DeviceTypeDiscreteGPU
	case wgpu.AdapterTypeIntegratedGPU:
		return hal.DeviceTypeIntegratedGPU
	case wgpu.AdapterTypeCPU:
		return hal.DeviceTypeCPU
	default:
		return hal.DeviceTypeUnknown
	}
}

func textureFormat(f hal.TextureFormat) wgpu.TextureFormat {
	switch f {
	case hal.TextureFormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm
	case hal.TextureFormatBGRA8Unorm:
		return wgpu.TextureFormatBGRA8Unorm
	default:
		return wgpu.TextureFormatUndefined
	}
}

func textureUsage(u hal.TextureUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u&hal.TextureUsageCopySrc != 0 {
		out |= wgpu.TextureUsageCopySrc
	}
	if u&hal.TextureUsageCopyDst != 0 {
		out |= wgpu.TextureUsageCopyDst
	}
	if u&hal.TextureUsageRenderAttachment != 0 {
		out |= wgpu.TextureUsageRenderAttachment
	}
	return out
}

func bufferUsage(u hal.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u&hal.BufferUsageCopySrc != 0 {
		out |= wgpu.BufferUsageCopySrc
	}
	if u&hal.BufferUsageCopyDst != 0 {
		out |= wgpu.BufferUsageCopyDst
	}
	if u&hal.BufferUsageVertex != 0 {
		out |= wgpu.BufferUsageVertex
	}
	return out
}

func presentMode(m hal.PresentMode) wgpu.PresentMode {
	switch m {
	case hal.PresentModeImmediate:
		return wgpu.PresentModeImmediate
	case hal.PresentModeMailbox:
		return wgpu.PresentModeMailbox
	default:
		return wgpu.PresentModeFifo
	}
}

func topology(t hal.PrimitiveTopology) wgpu.PrimitiveTopology {
	switch t {
	case hal.PrimitiveTopologyTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip
	case hal.PrimitiveTopologyLineList:
		return wgpu.PrimitiveTopologyLineList
	case hal.PrimitiveTopologyPointList:
		return wgpu.PrimitiveTopologyPointList
	default:
		return wgpu.PrimitiveTopologyTriangleList
	}
}

func frontFace(f hal.FrontFace) wgpu.FrontFace {
	if f == hal.FrontFaceCW {
		return wgpu.FrontFaceCW
	}
	return wgpu.FrontFaceCCW
}

func cullMode(c hal.CullMode) wgpu.CullMode {
	switch c {
	case hal.CullModeFront:
		return wgpu.CullModeFront
	case hal.CullModeBack:
		return wgpu.CullModeBack
	default:
		return wgpu.CullModeNone
	}
}

func vertexFormat(f hal.VertexFormat) wgpu.VertexFormat {
	switch f {
	case hal.VertexFormatFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case hal.VertexFormatFloat32x4:
		return wgpu.VertexFormatFloat32x4
	default:
		return wgpu.VertexFormatFloat32x3
	}
}
