// Package headless is a software hal backend. It rasterizes into in-memory
// RGBA images, keeps the last presented frame, and counts every object it
// hands out so callers can check for leaks.
//
// The pipeline is interpreted as fixed function: the attribute at shader
// location 0 is the clip-space position and the optional attribute at
// location 1 is the vertex color. Shader text is not executed.
package headless

import (
	"fmt"
	"image"

	"render-harness/hal"
)

// Kind identifies a tracked object type.
type Kind int

const (
	KindInstance Kind = iota
	KindSurface
	KindAdapter
	KindDevice
	KindQueue
	KindShaderModule
	KindPipelineLayout
	KindRenderPipeline
	KindBuffer
	KindTexture
	KindTextureView
	KindCommandEncoder
	KindRenderPass
	KindCommandBuffer
	kindCount
)

var kindNames = [kindCount]string{
	"instance", "surface", "adapter", "device", "queue", "shader-module",
	"pipeline-layout", "render-pipeline", "buffer", "texture", "texture-view",
	"command-encoder", "render-pass", "command-buffer",
}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// FrameKinds are the objects created and released inside a single frame.
var FrameKinds = []Kind{KindTexture, KindTextureView, KindCommandEncoder, KindRenderPass, KindCommandBuffer}

// Stats is a snapshot of the object counters.
type Stats struct {
	Live           map[Kind]int
	Created        map[Kind]int
	DoubleReleases int
}

// LiveTotal returns the number of objects not yet released.
func (s Stats) LiveTotal() int {
	n := 0
	for _, c := range s.Live {
		n += c
	}
	return n
}

type tracker struct {
	live           [kindCount]int
	created        [kindCount]int
	doubleReleases int
}

func (t *tracker) track(k Kind) resource {
	t.live[k]++
	t.created[k]++
	return resource{t: t, kind: k}
}

func (t *tracker) stats() Stats {
	s := Stats{
		Live:           make(map[Kind]int, kindCount),
		Created:        make(map[Kind]int, kindCount),
		DoubleReleases: t.doubleReleases,
	}
	for k := Kind(0); k < kindCount; k++ {
		s.Live[k] = t.live[k]
		s.Created[k] = t.created[k]
	}
	return s
}

// resource is embedded by every headless object and supplies Release.
type resource struct {
	t        *tracker
	kind     Kind
	released bool
}

func (r *resource) Release() {
	if r.released {
		r.t.doubleReleases++
		return
	}
	r.released = true
	r.t.live[r.kind]--
}

type Option func(*Backend)

// WithoutAdapter makes every adapter request fail, as on a machine without
// a usable GPU.
func WithoutAdapter() Option {
	return func(b *Backend) { b.noAdapter = true }
}

// WithFallbackOnly exposes only a CPU fallback adapter, which is returned
// only when the request forces the fallback adapter.
func WithFallbackOnly() Option {
	return func(b *Backend) { b.fallbackOnly = true }
}

// WithDeviceRefused makes RequestDevice fail.
func WithDeviceRefused() Option {
	return func(b *Backend) { b.refuseDevice = true }
}

// WithSurfaceErrors queues errors returned by successive GetCurrentTexture
// calls before acquisition starts succeeding.
func WithSurfaceErrors(errs ...error) Option {
	return func(b *Backend) { b.surfaceErrs = append(b.surfaceErrs, errs...) }
}

// WithSubmitErrors queues errors returned by successive Queue.Submit calls.
// A failed submission executes none of its commands.
func WithSubmitErrors(errs ...error) Option {
	return func(b *Backend) { b.submitErrs = append(b.submitErrs, errs...) }
}

// Backend implements hal.Backend.
type Backend struct {
	noAdapter    bool
	fallbackOnly bool
	refuseDevice bool
	surfaceErrs  []error
	submitErrs   []error

	tracker     tracker
	adapterOpts *hal.RequestAdapterOptions
	configs     []hal.SurfaceConfig
	presented   int
	lastFrame   *image.RGBA
}

var _ hal.Backend = (*Backend)(nil)

func New(opts ...Option) *Backend {
	b := &Backend{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Name() string {
	return "headless"
}

func (b *Backend) CreateInstance() (hal.Instance, error) {
	return &instance{resource: b.tracker.track(KindInstance), backend: b}, nil
}

// Stats returns the current object counters.
func (b *Backend) Stats() Stats {
	return b.tracker.stats()
}

// AdapterOptions returns the options of the last adapter request, or nil.
func (b *Backend) AdapterOptions() *hal.RequestAdapterOptions {
	return b.adapterOpts
}

// Configurations returns every surface configuration applied so far.
func (b *Backend) Configurations() []hal.SurfaceConfig {
	return append([]hal.SurfaceConfig(nil), b.configs...)
}

// Presented returns the number of frames presented.
func (b *Backend) Presented() int {
	return b.presented
}

// Frame returns a copy of the last presented frame, or nil.
func (b *Backend) Frame() *image.RGBA {
	if b.lastFrame == nil {
		return nil
	}
	return cloneRGBA(b.lastFrame)
}

func (b *Backend) nextSurfaceError() error {
	if len(b.surfaceErrs) == 0 {
		return nil
	}
	err := b.surfaceErrs[0]
	b.surfaceErrs = b.surfaceErrs[1:]
	return err
}

func (b *Backend) nextSubmitError() error {
	if len(b.submitErrs) == 0 {
		return nil
	}
	err := b.submitErrs[0]
	b.submitErrs = b.submitErrs[1:]
	return err
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
