package renderer

import (
	_ "embed"
	"fmt"
	"regexp"

	"github.com/gogpu/naga"

	"render-harness/hal"
)

//go:embed shaders/triangle.wgsl
var triangleWGSL string

// GLSL 4.10 translation of triangle.wgsl for the OpenGL backend.
//
//go:embed shaders/triangle.vert
var triangleVertGLSL string

//go:embed shaders/triangle.frag
var triangleFragGLSL string

// TriangleShader returns the program the engine draws with.
func TriangleShader() hal.ShaderSource {
	return hal.ShaderSource{
		WGSL:         triangleWGSL,
		GLSLVertex:   triangleVertGLSL,
		GLSLFragment: triangleFragGLSL,
	}
}

var entryPointRe = regexp.MustCompile(`@(vertex|fragment)\s+fn\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// ValidateShader compiles the WGSL source with naga and checks that it
// declares the named vertex and fragment entry points.
func ValidateShader(src hal.ShaderSource, vertexEntry, fragmentEntry string) error {
	spirv, err := naga.Compile(src.WGSL)
	if err != nil {
		return fmt.Errorf("failed to compile shader: %w", err)
	}
	Logger().Debug("shader compiled", "spirv_bytes", len(spirv))

	found := map[string]string{}
	for _, m := range entryPointRe.FindAllStringSubmatch(src.WGSL, -1) {
		found[m[2]] = m[1]
	}
	if found[vertexEntry] != "vertex" {
		return fmt.Errorf("shader has no vertex entry point %q", vertexEntry)
	}
	if found[fragmentEntry] != "fragment" {
		return fmt.Errorf("shader has no fragment entry point %q", fragmentEntry)
	}
	return nil
}
