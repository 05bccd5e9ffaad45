package hal

import "errors"

var (
	ErrNoAdapter       = errors.New("no compatible adapter")
	ErrDeviceRefused   = errors.New("device request refused")
	ErrSurfaceLost     = errors.New("surface lost")
	ErrSurfaceOutdated = errors.New("surface outdated")
	ErrSurfaceTimeout  = errors.New("surface texture timeout")
	ErrUnsupported     = errors.New("unsupported by backend")
)

// IsSurfaceRecoverable reports whether reconfiguring the surface may let the
// next GetCurrentTexture succeed.
func IsSurfaceRecoverable(err error) bool {
	return errors.Is(err, ErrSurfaceLost) || errors.Is(err, ErrSurfaceOutdated)
}
