package viewport

import (
	"time"

	"github.com/kass/go-map-viewpoint/pkg/models"
)

// Request is a single viewport change handed to a MapSurface. It is a
// closed union: exactly one of AnimatedTo, CenteredOn or FitTo. Requests
// are built per intent, consumed immediately and then discarded.
type Request interface {
	viewportRequest()
}

// AnimatedTo moves the viewport to a center and scale with an animated
// transition of the given duration.
type AnimatedTo struct {
	Center   models.Location
	Scale    models.Scale
	Duration time.Duration
}

// CenteredOn recenters the viewport on a point at the given scale with no
// animation.
type CenteredOn struct {
	Center models.Location
	Scale  models.Scale
}

// FitTo resizes the viewport so the whole geometry is visible.
type FitTo struct {
	Geometry models.Geometry
}

func (AnimatedTo) viewportRequest() {}
func (CenteredOn) viewportRequest() {}
func (FitTo) viewportRequest()      {}
