// Package viewport translates semantic map intents into viewport change
// requests and forwards them to a map surface. The controller holds no
// state beyond the spatial reference established at initialization; each
// operation is independent.
package viewport

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/kass/go-map-viewpoint/pkg/models"
)

// Transition is the handle for an in-flight viewport change. Immediate
// changes return an already-completed handle. Issuing a new request to
// the same surface cancels the previous transition (a surface contract,
// observable through Err reporting ErrSuperseded).
type Transition interface {
	// Done is closed when the transition finishes, is cancelled or is
	// superseded by a newer request.
	Done() <-chan struct{}
	// Cancel stops the transition, leaving the viewport wherever the
	// animation had reached. Safe to call more than once.
	Cancel()
	// Err returns nil after normal completion, or the reason the
	// transition ended early. Undefined before Done is closed.
	Err() error
}

// MapSurface consumes viewport change requests. The library ships an
// R-Tree backed implementation in pkg/surface; tests substitute fakes.
type MapSurface interface {
	Apply(Request) (Transition, error)
}

// Controller validates viewpoint intents, turns them into Request values
// and forwards them to the surface. Surface failures are written to the
// log sink and returned; they never panic.
type Controller struct {
	surface MapSurface
	sr      models.SpatialReference
	logger  *log.Logger
}

// NewController wires a controller to a surface. The spatial reference is
// the one the surface was initialized with; it stamps every location the
// controller constructs. A nil logger discards output.
func NewController(surface MapSurface, sr models.SpatialReference, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Controller{surface: surface, sr: sr, logger: logger}
}

// SpatialReference returns the coordinate system the controller stamps
// onto locations it constructs.
func (c *Controller) SpatialReference() models.SpatialReference {
	return c.sr
}

// Location builds a location from raw coordinates in the controller's
// spatial reference.
func (c *Controller) Location(x, y float64) models.Location {
	return models.NewLocation(x, y, c.sr)
}

// AnimateTo requests an animated transition to center at the given
// location and scale over the given duration. Scale and duration must be
// positive.
func (c *Controller) AnimateTo(center models.Location, scale models.Scale, duration time.Duration) (Transition, error) {
	if !scale.Valid() {
		return nil, fmt.Errorf("%w: scale must be positive, got %v", ErrInvalidRequest, scale)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive, got %v", ErrInvalidRequest, duration)
	}
	return c.forward(AnimatedTo{
		Center:   c.stamp(center),
		Scale:    scale,
		Duration: duration,
	})
}

// CenterOn requests an immediate recenter on the given location at the
// given scale. Scale must be positive.
func (c *Controller) CenterOn(center models.Location, scale models.Scale) (Transition, error) {
	if !scale.Valid() {
		return nil, fmt.Errorf("%w: scale must be positive, got %v", ErrInvalidRequest, scale)
	}
	return c.forward(CenteredOn{Center: c.stamp(center), Scale: scale})
}

// FitTo requests a viewport that encloses the whole geometry. The
// geometry must contain at least MinGeometryPoints points.
func (c *Controller) FitTo(geometry models.Geometry) (Transition, error) {
	if geometry.Len() < MinGeometryPoints {
		return nil, fmt.Errorf("%w: geometry needs at least %d points, got %d",
			ErrInvalidRequest, MinGeometryPoints, geometry.Len())
	}
	stamped := make([]models.Location, geometry.Len())
	for i, p := range geometry.Points {
		stamped[i] = c.stamp(p)
	}
	return c.forward(FitTo{Geometry: models.NewGeometry(stamped...)})
}

// forward hands a validated request to the surface. With no surface
// attached the request is a no-op: the reference flow never issues
// requests before initialization completes.
func (c *Controller) forward(req Request) (Transition, error) {
	if c.surface == nil {
		c.logger.Printf("viewport: dropping %T, no surface attached", req)
		return nil, nil
	}
	t, err := c.surface.Apply(req)
	if err != nil {
		c.logger.Printf("viewport: apply %T: %v", req, err)
		return nil, err
	}
	return t, nil
}

// stamp fills in the controller's spatial reference on locations built
// from raw coordinate pairs.
func (c *Controller) stamp(l models.Location) models.Location {
	if l.SR.IsZero() {
		l.SR = c.sr
	}
	return l
}
