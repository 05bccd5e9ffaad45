package renderer

import (
	"errors"
	"fmt"

	"render-harness/hal"
)

// PipelineConfig is the fixed-function state of the triangle pipeline. The
// engine validates it once in New and never changes it afterwards.
type PipelineConfig struct {
	VertexEntry   string
	FragmentEntry string
	Topology      hal.PrimitiveTopology
	FrontFace     hal.FrontFace
	CullMode      hal.CullMode
	PolygonMode   hal.PolygonMode
	Blend         hal.BlendMode
	WriteMask     hal.ColorWriteMask
	Format        hal.TextureFormat
	SampleCount   uint32
	Vertex        hal.VertexBufferLayout
}

// DefaultPipelineConfig returns the configuration the engine renders with
// for a surface of the given format.
func DefaultPipelineConfig(format hal.TextureFormat) PipelineConfig {
	return PipelineConfig{
		VertexEntry:   "vert_main",
		FragmentEntry: "frag_main",
		Topology:      hal.PrimitiveTopologyTriangleList,
		FrontFace:     hal.FrontFaceCCW,
		CullMode:      hal.CullModeBack,
		PolygonMode:   hal.PolygonModeFill,
		Blend:         hal.BlendModeReplace,
		WriteMask:     hal.ColorWriteMaskAll,
		Format:        format,
		SampleCount:   1,
		Vertex:        VertexLayout(),
	}
}

// Validate checks the configuration against what a single color target
// without depth or multisampling can render.
func (c PipelineConfig) Validate() error {
	var errs []error
	if c.VertexEntry == "" || c.FragmentEntry == "" {
		errs = append(errs, errors.New("vertex and fragment entry points are required"))
	}
	if c.Topology > hal.PrimitiveTopologyPointList {
		errs = append(errs, fmt.Errorf("unknown topology %s", c.Topology))
	}
	if c.FrontFace > hal.FrontFaceCW {
		errs = append(errs, fmt.Errorf("unknown front face %d", c.FrontFace))
	}
	if c.CullMode > hal.CullModeBack {
		errs = append(errs, fmt.Errorf("unknown cull mode %d", c.CullMode))
	}
	if c.Format == hal.TextureFormatUndefined {
		errs = append(errs, errors.New("color target format is undefined"))
	}
	if c.WriteMask == 0 {
		errs = append(errs, errors.New("color write mask is empty"))
	}
	if c.SampleCount != 1 {
		errs = append(errs, fmt.Errorf("sample count %d, want 1", c.SampleCount))
	}
	if err := validateLayout(c.Vertex); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c PipelineConfig) clone() PipelineConfig {
	c.Vertex.Attributes = append([]hal.VertexAttribute(nil), c.Vertex.Attributes...)
	return c
}

func validateLayout(l hal.VertexBufferLayout) error {
	if l.ArrayStride == 0 {
		return errors.New("vertex layout: zero stride")
	}
	seen := map[uint32]bool{}
	for _, a := range l.Attributes {
		if seen[a.ShaderLocation] {
			return fmt.Errorf("vertex layout: location %d declared twice", a.ShaderLocation)
		}
		seen[a.ShaderLocation] = true
		if a.Format.Size() == 0 {
			return fmt.Errorf("vertex layout: location %d has unknown format", a.ShaderLocation)
		}
		if a.Offset+a.Format.Size() > l.ArrayStride {
			return fmt.Errorf("vertex layout: location %d ends past stride %d", a.ShaderLocation, l.ArrayStride)
		}
	}
	return nil
}

func (c PipelineConfig) descriptor(layout hal.PipelineLayout, module hal.ShaderModule) *hal.RenderPipelineDescriptor {
	return &hal.RenderPipelineDescriptor{
		Label:  "pipeline",
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: c.VertexEntry,
			Buffers:    []hal.VertexBufferLayout{c.Vertex},
		},
		Fragment: hal.FragmentState{
			Module:     module,
			EntryPoint: c.FragmentEntry,
			Targets: []hal.ColorTargetState{{
				Format:    c.Format,
				Blend:     c.Blend,
				WriteMask: c.WriteMask,
			}},
		},
		Primitive: hal.PrimitiveState{
			Topology:    c.Topology,
			FrontFace:   c.FrontFace,
			CullMode:    c.CullMode,
			PolygonMode: c.PolygonMode,
		},
		Multisample: hal.MultisampleState{
			Count: c.SampleCount,
			Mask:  ^uint32(0),
		},
	}
}
