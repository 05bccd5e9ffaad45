package renderer

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures by what the caller can do about them.
type ErrorKind int

const (
	// KindEnvironment means the machine or window cannot host the engine:
	// no adapter, a refused device, or an unusable window size.
	KindEnvironment ErrorKind = iota + 1
	// KindSurface means no frame target could be acquired, even after
	// reconfiguring the surface once.
	KindSurface
	KindShader
	KindResource
)

func (k ErrorKind) String() string {
	switch k {
	case KindEnvironment:
		return "environment"
	case KindSurface:
		return "surface"
	case KindShader:
		return "shader"
	case KindResource:
		return "resource"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Kind sentinels, matched with errors.Is against *InitError and *FrameError.
var (
	ErrEnvironment = &kindError{KindEnvironment}
	ErrSurface     = &kindError{KindSurface}
	ErrShader      = &kindError{KindShader}
	ErrResource    = &kindError{KindResource}
)

type kindError struct {
	kind ErrorKind
}

func (e *kindError) Error() string {
	return e.kind.String() + " error"
}

func sentinel(k ErrorKind) error {
	switch k {
	case KindEnvironment:
		return ErrEnvironment
	case KindSurface:
		return ErrSurface
	case KindShader:
		return ErrShader
	case KindResource:
		return ErrResource
	default:
		return nil
	}
}

// InitError is returned by New. Step names the construction step that failed.
type InitError struct {
	Step string
	Kind ErrorKind
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Step, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

func (e *InitError) Is(target error) bool {
	return target == sentinel(e.Kind)
}

// FrameError is returned by Render.
type FrameError struct {
	Step string
	Kind ErrorKind
	Err  error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame: failed to %s: %v", e.Step, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

func (e *FrameError) Is(target error) bool {
	return target == sentinel(e.Kind)
}

// KindOf returns the kind of an engine error, or 0 if err carries none.
func KindOf(err error) ErrorKind {
	var ie *InitError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	var fe *FrameError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
