package opengl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-harness/hal"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in           string
		major, minor int
	}{
		{"4.6 (Core Profile) Mesa 23.2.1", 4, 6},
		{"4.1 ATI-4.14.1", 4, 1},
		{"3.3.0 NVIDIA 535.54", 3, 3},
		{"  4.5.0 ", 4, 5},
	}
	for _, tt := range tests {
		major, minor, err := parseVersion(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.major, major, tt.in)
		assert.Equal(t, tt.minor, minor, tt.in)
	}

	_, _, err := parseVersion("OpenGL ES")
	assert.Error(t, err)
}

func TestIsSoftwareRenderer(t *testing.T) {
	assert.True(t, isSoftwareRenderer("llvmpipe (LLVM 15.0.7, 256 bits)"))
	assert.True(t, isSoftwareRenderer("Google SwiftShader"))
	assert.False(t, isSoftwareRenderer("NVIDIA GeForce RTX 3080/PCIe/SSE2"))
}

func TestOldContextRefused(t *testing.T) {
	a := &adapter{backend: New(), info: hal.AdapterInfo{Driver: "3.3 Mesa"}}
	_, err := a.RequestDevice(&hal.DeviceDescriptor{})
	assert.ErrorIs(t, err, hal.ErrDeviceRefused)
}

func TestCreateSurfaceRejectsPlainTarget(t *testing.T) {
	i := &instance{backend: New()}
	_, err := i.CreateSurface(plainTarget{})
	assert.ErrorIs(t, err, hal.ErrUnsupported)
}

func TestRequestAdapterWithoutContext(t *testing.T) {
	i := &instance{backend: New()}
	_, err := i.RequestAdapter(nil)
	assert.ErrorIs(t, err, hal.ErrNoAdapter)
}

func TestEncoderRecordsPass(t *testing.T) {
	e := &commandEncoder{}
	view := &textureView{tex: &texture{width: 4, height: 4}}
	pass, err := e.BeginRenderPass(&hal.RenderPassDescriptor{ColorAttachments: []hal.RenderPassColorAttachment{{View: view}}})
	require.NoError(t, err)

	_, err = e.Finish()
	assert.Error(t, err)

	pass.Draw(3, 1, 0, 0)
	assert.ErrorContains(t, pass.End(), "no pipeline set")
	assert.Error(t, pass.End())

	cb, err := e.Finish()
	require.NoError(t, err)
	assert.Len(t, cb.(*commandBuffer).ops, 1)
}

type plainTarget struct{}

func (plainTarget) FramebufferSize() (int, int) { return 1, 1 }
