package viewport

import "errors"

var (
	// ErrInvalidRequest marks a request rejected by validation before it
	// reaches the surface: non-positive scale or duration, or a geometry
	// with too few points.
	ErrInvalidRequest = errors.New("invalid viewport request")

	// ErrNotInitialized is returned by a surface used before Initialize
	// has completed.
	ErrNotInitialized = errors.New("map surface not initialized")

	// ErrDisposed is returned by a surface used after Dispose.
	ErrDisposed = errors.New("map surface disposed")

	// ErrSuperseded is reported by a transition handle whose request was
	// cancelled because a newer request replaced it.
	ErrSuperseded = errors.New("transition superseded")
)

// MinGeometryPoints is the smallest point count a FitTo geometry may have.
const MinGeometryPoints = 3
