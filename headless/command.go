package headless

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"render-harness/hal"
)

// command is a recorded operation, executed when its buffer is submitted.
type command interface {
	execute() error
}

type commandEncoder struct {
	resource
	backend  *Backend
	pass     *renderPass
	commands []command
	finished bool
}

func (e *commandEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) (hal.RenderPass, error) {
	if e.finished {
		return nil, errors.New("headless: begin render pass: encoder finished")
	}
	if e.pass != nil {
		return nil, errors.New("headless: begin render pass: previous pass not ended")
	}
	if len(desc.ColorAttachments) != 1 {
		return nil, fmt.Errorf("headless: render pass %q: want 1 color attachment, got %d", desc.Label, len(desc.ColorAttachments))
	}
	att := desc.ColorAttachments[0]
	view, ok := att.View.(*textureView)
	if !ok || view == nil {
		return nil, fmt.Errorf("headless: render pass %q: foreign texture view", desc.Label)
	}

	target := view.tex.img
	if att.StoreOp == hal.StoreOpDiscard {
		target = image.NewRGBA(target.Bounds())
	}
	if att.LoadOp == hal.LoadOpClear {
		e.commands = append(e.commands, &clearCmd{dst: target, color: att.ClearValue})
	}
	e.pass = &renderPass{
		resource: e.backend.tracker.track(KindRenderPass),
		encoder:  e,
		target:   target,
		buffers:  map[uint32]*buffer{},
	}
	return e.pass, nil
}

func (e *commandEncoder) Finish() (hal.CommandBuffer, error) {
	if e.pass != nil {
		return nil, errors.New("headless: finish: render pass not ended")
	}
	if e.finished {
		return nil, errors.New("headless: finish: encoder already finished")
	}
	e.finished = true
	cb := &commandBuffer{resource: e.backend.tracker.track(KindCommandBuffer), commands: e.commands}
	e.commands = nil
	return cb, nil
}

type renderPass struct {
	resource
	encoder  *commandEncoder
	target   *image.RGBA
	pipeline *renderPipeline
	buffers  map[uint32]*buffer
	ended    bool
	err      error
}

func (p *renderPass) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *renderPass) SetPipeline(rp hal.RenderPipeline) {
	hp, ok := rp.(*renderPipeline)
	if !ok || hp == nil {
		p.fail(errors.New("set pipeline: foreign pipeline"))
		return
	}
	p.pipeline = hp
}

func (p *renderPass) SetVertexBuffer(slot uint32, b hal.Buffer) {
	hb, ok := b.(*buffer)
	if !ok || hb == nil {
		p.fail(fmt.Errorf("set vertex buffer %d: foreign buffer", slot))
		return
	}
	if hb.usage&hal.BufferUsageVertex == 0 {
		p.fail(fmt.Errorf("set vertex buffer %d: buffer lacks vertex usage", slot))
		return
	}
	p.buffers[slot] = hb
}

func (p *renderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if p.ended {
		p.fail(errors.New("draw: pass already ended"))
		return
	}
	if p.pipeline == nil {
		p.fail(errors.New("draw: no pipeline set"))
		return
	}
	bound := make(map[uint32][]byte, len(p.buffers))
	for slot, b := range p.buffers {
		bound[slot] = b.data
	}
	p.encoder.commands = append(p.encoder.commands, &drawCmd{
		dst:           p.target,
		desc:          p.pipeline.desc,
		buffers:       bound,
		vertexCount:   vertexCount,
		instanceCount: instanceCount,
		firstVertex:   firstVertex,
	})
}

func (p *renderPass) End() error {
	if p.ended {
		return errors.New("headless: render pass already ended")
	}
	p.ended = true
	p.encoder.pass = nil
	if p.err != nil {
		return fmt.Errorf("headless: render pass: %w", p.err)
	}
	return nil
}

type commandBuffer struct {
	resource
	commands  []command
	submitted bool
}

type clearCmd struct {
	dst   *image.RGBA
	color hal.Color
}

func (c *clearCmd) execute() error {
	draw.Draw(c.dst, c.dst.Bounds(), image.NewUniform(toRGBA(c.color)), image.Point{}, draw.Src)
	return nil
}

// toRGBA converts a linear color to 8-bit channels, rounding to nearest.
func toRGBA(c hal.Color) color.RGBA {
	return color.RGBA{R: unorm8(c.R), G: unorm8(c.G), B: unorm8(c.B), A: unorm8(c.A)}
}

func unorm8(f float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, f)) * 255))
}
