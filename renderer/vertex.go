package renderer

import (
	"encoding/binary"
	gomath "math"

	"render-harness/hal"
	"render-harness/math"
)

// Vertex is one triangle corner as laid out in the vertex buffer: position
// then color, each three little-endian float32 values.
type Vertex struct {
	Position math.Vec3
	Color    math.Vec3
}

// VertexStride is the size in bytes of one packed Vertex.
const VertexStride = 24

// TriangleVertices returns the three vertices drawn every frame.
func TriangleVertices() []Vertex {
	return []Vertex{
		{Position: math.NewVec3(1, 0, 0), Color: math.Vec3One},
		{Position: math.NewVec3(0.5, 0.5, 0), Color: math.Vec3One},
		{Position: math.NewVec3(-0.5, 0.5, 0), Color: math.Vec3One},
	}
}

// PackVertices encodes vertices field by field, VertexStride bytes each.
func PackVertices(vertices []Vertex) []byte {
	buf := make([]byte, 0, len(vertices)*VertexStride)
	for _, v := range vertices {
		for _, f := range v.Position.Array() {
			buf = binary.LittleEndian.AppendUint32(buf, gomath.Float32bits(f))
		}
		for _, f := range v.Color.Array() {
			buf = binary.LittleEndian.AppendUint32(buf, gomath.Float32bits(f))
		}
	}
	return buf
}

// VertexLayout describes a buffer of packed vertices: position at shader
// location 0, color at location 1.
func VertexLayout() hal.VertexBufferLayout {
	return hal.VertexBufferLayout{
		ArrayStride: VertexStride,
		StepMode:    hal.VertexStepModeVertex,
		Attributes: []hal.VertexAttribute{
			{Format: hal.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			{Format: hal.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
		},
	}
}
