package core

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

// ClientAPI selects the context glfw creates for the window.
type ClientAPI int

const (
	// ClientAPINone creates no context; the window is presented to by WebGPU.
	ClientAPINone ClientAPI = iota
	// ClientAPIOpenGL creates an OpenGL 4.1 core context.
	ClientAPIOpenGL
)

type Window struct {
	Handle *glfw.Window
	Width  int
	Height int
	Title  string

	api     ClientAPI
	pending []Event
}

type WindowConfig struct {
	Width      int
	Height     int
	Title      string
	Resizable  bool
	Fullscreen bool
	ClientAPI  ClientAPI
}

func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		Width:      1920,
		Height:     1080,
		Title:      "render-harness",
		Resizable:  false,
		Fullscreen: false,
		ClientAPI:  ClientAPINone,
	}
}

func NewWindow(config WindowConfig) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	glfw.DefaultWindowHints()
	switch config.ClientAPI {
	case ClientAPIOpenGL:
		glfw.WindowHint(glfw.ClientAPI, glfw.OpenGLAPI)
		glfw.WindowHint(glfw.ContextVersionMajor, 4)
		glfw.WindowHint(glfw.ContextVersionMinor, 1)
		glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
		glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	default:
		glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	}
	glfw.WindowHint(glfw.Resizable, boolToInt(config.Resizable))

	monitor := (*glfw.Monitor)(nil)
	if config.Fullscreen {
		monitor = glfw.GetPrimaryMonitor()
	}

	handle, err := glfw.CreateWindow(config.Width, config.Height, config.Title, monitor, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	window := &Window{
		Handle: handle,
		Width:  config.Width,
		Height: config.Height,
		Title:  config.Title,
		api:    config.ClientAPI,
	}

	handle.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		window.Width = width
		window.Height = height
		window.pending = append(window.pending, Event{Signal: SignalResize, Width: width, Height: height})
	})

	return window, nil
}

// FramebufferSize returns the drawable size in pixels, which differs from
// the window size on high-DPI displays.
func (w *Window) FramebufferSize() (int, int) {
	return w.Handle.GetFramebufferSize()
}

func (w *Window) GLFWWindow() *glfw.Window {
	return w.Handle
}

func (w *Window) MakeContextCurrent() {
	if w.api == ClientAPIOpenGL {
		w.Handle.MakeContextCurrent()
	}
}

func (w *Window) SwapBuffers() {
	if w.api == ClientAPIOpenGL {
		w.Handle.SwapBuffers()
	}
}

func (w *Window) ShouldClose() bool {
	return w.Handle.ShouldClose()
}

// Poll pumps the glfw event queue and reports what happened since the last
// call: resizes in order, then Close if the user asked to close the window,
// otherwise a Redraw request.
func (w *Window) Poll() []Event {
	glfw.PollEvents()
	events := w.pending
	w.pending = nil
	if w.Handle.ShouldClose() {
		return append(events, Event{Signal: SignalClose})
	}
	return append(events, Event{Signal: SignalRedraw})
}

func (w *Window) SetTitle(title string) {
	w.Handle.SetTitle(title)
	w.Title = title
}

func (w *Window) Destroy() {
	w.Handle.Destroy()
	glfw.Terminate()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
