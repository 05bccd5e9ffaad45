package headless

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"render-harness/hal"
	reMath "render-harness/math"
)

const (
	locationPosition = 0
	locationColor    = 1
)

type drawCmd struct {
	dst           *image.RGBA
	desc          hal.RenderPipelineDescriptor
	buffers       map[uint32][]byte
	vertexCount   uint32
	instanceCount uint32
	firstVertex   uint32
}

// attribute locates one vertex attribute inside a bound buffer.
type attribute struct {
	data   []byte
	stride uint64
	offset uint64
	format hal.VertexFormat
}

func (a *attribute) read(i uint32) ([4]float32, error) {
	v := [4]float32{0, 0, 0, 1}
	base := uint64(i)*a.stride + a.offset
	n := a.format.Components()
	if base+uint64(n)*4 > uint64(len(a.data)) {
		return v, fmt.Errorf("vertex %d out of range of %d-byte buffer", i, len(a.data))
	}
	for c := 0; c < n; c++ {
		off := base + uint64(c)*4
		v[c] = math.Float32frombits(binary.LittleEndian.Uint32(a.data[off : off+4]))
	}
	return v, nil
}

func (d *drawCmd) attribute(location uint32) (*attribute, error) {
	for slot, layout := range d.desc.Vertex.Buffers {
		for _, attr := range layout.Attributes {
			if attr.ShaderLocation != location {
				continue
			}
			data, ok := d.buffers[uint32(slot)]
			if !ok {
				return nil, fmt.Errorf("location %d: no vertex buffer bound at slot %d", location, slot)
			}
			return &attribute{data: data, stride: layout.ArrayStride, offset: attr.Offset, format: attr.Format}, nil
		}
	}
	return nil, nil
}

func (d *drawCmd) execute() error {
	if d.desc.Primitive.Topology != hal.PrimitiveTopologyTriangleList {
		return fmt.Errorf("draw: topology %s: %w", d.desc.Primitive.Topology, hal.ErrUnsupported)
	}
	pos, err := d.attribute(locationPosition)
	if err != nil {
		return fmt.Errorf("draw: %w", err)
	}
	if pos == nil {
		return fmt.Errorf("draw: pipeline has no position attribute at location %d", locationPosition)
	}
	col, err := d.attribute(locationColor)
	if err != nil {
		return fmt.Errorf("draw: %w", err)
	}

	op := draw.Src
	if len(d.desc.Fragment.Targets) > 0 && d.desc.Fragment.Targets[0].Blend == hal.BlendModeAlpha {
		op = draw.Over
	}

	for inst := uint32(0); inst < d.instanceCount; inst++ {
		for first := d.firstVertex; first+3 <= d.firstVertex+d.vertexCount; first += 3 {
			var tri [3]reMath.Vec3
			shade := reMath.Vec3Zero
			alpha := float32(0)
			for k := uint32(0); k < 3; k++ {
				p, err := pos.read(first + k)
				if err != nil {
					return fmt.Errorf("draw: %w", err)
				}
				if p[3] != 0 && p[3] != 1 {
					p[0], p[1], p[2] = p[0]/p[3], p[1]/p[3], p[2]/p[3]
				}
				tri[k] = reMath.NewVec3(p[0], p[1], p[2])

				c := [4]float32{1, 1, 1, 1}
				if col != nil {
					if c, err = col.read(first + k); err != nil {
						return fmt.Errorf("draw: %w", err)
					}
				}
				shade = shade.Add(reMath.NewVec3(c[0], c[1], c[2]))
				alpha += c[3]
			}
			if d.culled(tri) {
				continue
			}
			shade = shade.Mul(1.0 / 3).Clamp01()
			fill := toRGBA(hal.Color{R: float64(shade.X), G: float64(shade.Y), B: float64(shade.Z), A: float64(alpha / 3)})
			d.fill(tri, image.NewUniform(fill), op)
		}
	}
	return nil
}

// culled reports whether the triangle is degenerate or removed by the
// pipeline's cull mode. Winding is measured in normalized device
// coordinates, where y points up.
func (d *drawCmd) culled(tri [3]reMath.Vec3) bool {
	e1 := tri[1].Sub(tri[0])
	e2 := tri[2].Sub(tri[0])
	e1.Z, e2.Z = 0, 0
	area := e1.Cross(e2).Z
	if area == 0 {
		return true
	}
	ccw := area > 0
	front := ccw == (d.desc.Primitive.FrontFace == hal.FrontFaceCCW)
	switch d.desc.Primitive.CullMode {
	case hal.CullModeBack:
		return !front
	case hal.CullModeFront:
		return front
	default:
		return false
	}
}

func (d *drawCmd) fill(tri [3]reMath.Vec3, src image.Image, op draw.Op) {
	b := d.dst.Bounds()
	w, h := float32(b.Dx()), float32(b.Dy())
	toPixel := func(v reMath.Vec3) (float32, float32) {
		return (v.X + 1) / 2 * w, (1 - v.Y) / 2 * h
	}

	// Coverage goes to a mask first. Drawing the rasterizer straight onto
	// dst with Src would zero every uncovered pixel in b.
	mask := image.NewAlpha(b)
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.MoveTo(toPixel(tri[0]))
	z.LineTo(toPixel(tri[1]))
	z.LineTo(toPixel(tri[2]))
	z.ClosePath()
	z.Draw(mask, b, image.Opaque, image.Point{})
	draw.DrawMask(d.dst, b, src, image.Point{}, mask, b.Min, op)
}
