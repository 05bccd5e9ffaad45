package core

// Offscreen is a window-less surface target of fixed size. It asks for a
// redraw on every poll and never closes.
type Offscreen struct {
	Width  int
	Height int
}

func (o *Offscreen) FramebufferSize() (int, int) {
	return o.Width, o.Height
}

func (o *Offscreen) Poll() []Event {
	return []Event{{Signal: SignalRedraw}}
}
