package opengl

import (
	"errors"
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-harness/hal"
)

type commandEncoder struct {
	label    string
	ops      []func()
	pass     *renderPass
	finished bool
}

func (e *commandEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) (hal.RenderPass, error) {
	if e.finished {
		return nil, errors.New("opengl: begin render pass: encoder finished")
	}
	if e.pass != nil {
		return nil, errors.New("opengl: begin render pass: previous pass not ended")
	}
	if len(desc.ColorAttachments) != 1 {
		return nil, fmt.Errorf("opengl: render pass %q: want 1 color attachment, got %d", desc.Label, len(desc.ColorAttachments))
	}
	att := desc.ColorAttachments[0]
	view, ok := att.View.(*textureView)
	if !ok {
		return nil, fmt.Errorf("opengl: render pass %q: foreign texture view", desc.Label)
	}

	w, h := view.tex.width, view.tex.height
	load, clear := att.LoadOp, att.ClearValue
	e.ops = append(e.ops, func() {
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		gl.Viewport(0, 0, w, h)
		if load == hal.LoadOpClear {
			gl.ColorMask(true, true, true, true)
			gl.ClearColor(float32(clear.R), float32(clear.G), float32(clear.B), float32(clear.A))
			gl.Clear(gl.COLOR_BUFFER_BIT)
		}
	})
	e.pass = &renderPass{encoder: e}
	return e.pass, nil
}

func (e *commandEncoder) Finish() (hal.CommandBuffer, error) {
	if e.pass != nil {
		return nil, errors.New("opengl: finish: render pass not ended")
	}
	if e.finished {
		return nil, errors.New("opengl: finish: encoder already finished")
	}
	e.finished = true
	cb := &commandBuffer{ops: e.ops}
	e.ops = nil
	return cb, nil
}

func (e *commandEncoder) Release() {
	e.ops = nil
}

type renderPass struct {
	encoder  *commandEncoder
	pipeline *renderPipeline
	buffers  map[uint32]*buffer
	err      error
}

func (p *renderPass) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *renderPass) record(op func()) {
	p.encoder.ops = append(p.encoder.ops, op)
}

func (p *renderPass) SetPipeline(rp hal.RenderPipeline) {
	gp, ok := rp.(*renderPipeline)
	if !ok {
		p.fail(errors.New("set pipeline: foreign pipeline"))
		return
	}
	p.pipeline = gp
	p.record(func() { applyPipeline(gp) })
}

func applyPipeline(p *renderPipeline) {
	gl.UseProgram(p.program)

	switch p.primitive.CullMode {
	case hal.CullModeNone:
		gl.Disable(gl.CULL_FACE)
	case hal.CullModeFront:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.FRONT)
	case hal.CullModeBack:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	}
	if p.primitive.FrontFace == hal.FrontFaceCW {
		gl.FrontFace(gl.CW)
	} else {
		gl.FrontFace(gl.CCW)
	}
	if p.primitive.PolygonMode == hal.PolygonModeLine {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
	} else {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
	}

	if p.target.Blend == hal.BlendModeAlpha {
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	} else {
		gl.Disable(gl.BLEND)
	}
	m := p.target.WriteMask
	gl.ColorMask(m&hal.ColorWriteMaskRed != 0, m&hal.ColorWriteMaskGreen != 0, m&hal.ColorWriteMaskBlue != 0, m&hal.ColorWriteMaskAlpha != 0)
	gl.Disable(gl.DEPTH_TEST)
}

func (p *renderPass) SetVertexBuffer(slot uint32, b hal.Buffer) {
	gb, ok := b.(*buffer)
	if !ok {
		p.fail(fmt.Errorf("set vertex buffer %d: foreign buffer", slot))
		return
	}
	if p.buffers == nil {
		p.buffers = map[uint32]*buffer{}
	}
	p.buffers[slot] = gb
}

func (p *renderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if p.pipeline == nil {
		p.fail(errors.New("draw: no pipeline set"))
		return
	}
	if firstInstance != 0 {
		p.fail(fmt.Errorf("draw: first instance %d: %w", firstInstance, hal.ErrUnsupported))
		return
	}
	pl := p.pipeline
	bound := make(map[uint32]uint32, len(p.buffers))
	for slot, b := range p.buffers {
		bound[slot] = b.id
	}
	for slot := range pl.buffers {
		if _, ok := bound[uint32(slot)]; !ok {
			p.fail(fmt.Errorf("draw: no vertex buffer bound at slot %d", slot))
			return
		}
	}

	p.record(func() {
		gl.BindVertexArray(pl.vao)
		for slot, layout := range pl.buffers {
			gl.BindBuffer(gl.ARRAY_BUFFER, bound[uint32(slot)])
			for _, a := range layout.Attributes {
				gl.EnableVertexAttribArray(a.ShaderLocation)
				gl.VertexAttribPointer(a.ShaderLocation, int32(a.Format.Components()), gl.FLOAT, false, int32(layout.ArrayStride), gl.PtrOffset(int(a.Offset)))
				if layout.StepMode == hal.VertexStepModeInstance {
					gl.VertexAttribDivisor(a.ShaderLocation, 1)
				} else {
					gl.VertexAttribDivisor(a.ShaderLocation, 0)
				}
			}
		}
		gl.DrawArraysInstanced(pl.mode, int32(firstVertex), int32(vertexCount), int32(instanceCount))
		gl.BindVertexArray(0)
		gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	})
}

func (p *renderPass) End() error {
	if p.encoder.pass != p {
		return errors.New("opengl: render pass already ended")
	}
	p.encoder.pass = nil
	if p.err != nil {
		return fmt.Errorf("opengl: render pass: %w", p.err)
	}
	return nil
}

func (p *renderPass) Release() {}

type commandBuffer struct {
	ops []func()
}

func (c *commandBuffer) Release() {
	c.ops = nil
}
