// Package surface implements an in-process map surface: basemap features
// held in an R-Tree index plus a current viewpoint that viewport requests
// are resolved against. It stands in for the mapping engine the viewport
// controller drives.
package surface

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kass/go-map-viewpoint/pkg/basemap"
	"github.com/kass/go-map-viewpoint/pkg/models"
	"github.com/kass/go-map-viewpoint/pkg/viewport"
)

const (
	// DefaultWidth and DefaultHeight are the viewport size in pixels.
	DefaultWidth  = 800
	DefaultHeight = 700

	defaultFrameInterval = time.Second / 30

	// fitPadding is the margin added around a fitted geometry.
	fitPadding = 0.1

	// Starting viewpoint: central London at city scale.
	startX     = -14093
	startY     = 6711377
	startScale = 5000
)

// Options configures a surface. Zero values pick defaults.
type Options struct {
	// Width and Height are the viewport size in pixels.
	Width  int
	Height int
	// FrameInterval is the animation frame period. Tests shorten it.
	FrameInterval time.Duration
	// Logger receives surface lifecycle messages. Nil discards them.
	Logger *log.Logger
}

// Surface is a thread-safe MapSurface implementation.
type Surface struct {
	mu            sync.RWMutex
	index         *featureIndex
	sr            models.SpatialReference
	vp            models.Viewpoint
	active        *transition
	initialized   bool
	width, height int
	frameInterval time.Duration
	logger        *log.Logger
	disposed      atomic.Bool
}

// New creates an uninitialized surface. Call Initialize (or
// InitializeFrom) before applying requests.
func New(opts Options) *Surface {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = defaultFrameInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Surface{
		index:         newFeatureIndex(),
		width:         opts.Width,
		height:        opts.Height,
		frameInterval: opts.FrameInterval,
		logger:        opts.Logger,
	}
}

// Initialize loads the built-in basemap for the given style and sets the
// starting viewpoint. It returns the spatial reference all subsequent
// locations are interpreted in.
func (s *Surface) Initialize(style basemap.Style) (models.SpatialReference, error) {
	features, err := basemap.Generate(style)
	if err != nil {
		return models.SpatialReference{}, fmt.Errorf("load basemap: %w", err)
	}
	return s.InitializeFrom(features)
}

// InitializeFrom initializes the surface with an explicit feature set,
// e.g. one loaded from GeoJSON, a snapshot file or PostGIS. Calling it on
// an already initialized surface is a no-op returning the existing
// spatial reference.
func (s *Surface) InitializeFrom(features []models.Feature) (models.SpatialReference, error) {
	if s.disposed.Load() {
		return models.SpatialReference{}, viewport.ErrDisposed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return s.sr, nil
	}

	s.index.IndexFeatures(features)
	s.sr = models.WebMercator()
	s.vp = models.Viewpoint{
		Center: models.NewLocation(startX, startY, s.sr),
		Scale:  startScale,
	}
	s.initialized = true
	s.logger.Printf("surface: initialized with %d features", s.index.Size())
	return s.sr, nil
}

// ReplaceFeatures swaps the basemap feature set without touching the
// viewpoint. Used by basemap hot reload.
func (s *Surface) ReplaceFeatures(features []models.Feature) error {
	if s.disposed.Load() {
		return viewport.ErrDisposed
	}
	s.mu.RLock()
	initialized := s.initialized
	s.mu.RUnlock()
	if !initialized {
		return viewport.ErrNotInitialized
	}

	s.index.Clear()
	s.index.IndexFeatures(features)
	s.logger.Printf("surface: basemap replaced, %d features", s.index.Size())
	return nil
}

// Apply consumes one viewport request. CenteredOn and FitTo resolve
// immediately; AnimatedTo starts an animator goroutine. A new request
// supersedes the in-flight transition, cancelling its handle.
func (s *Surface) Apply(req viewport.Request) (viewport.Transition, error) {
	if s.disposed.Load() {
		return nil, viewport.ErrDisposed
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return nil, viewport.ErrNotInitialized
	}

	prev := s.active
	s.active = nil

	var t *transition
	switch r := req.(type) {
	case viewport.CenteredOn:
		s.vp = models.Viewpoint{Center: r.Center, Scale: r.Scale}
		t = completedTransition()

	case viewport.FitTo:
		box := r.Geometry.Bounds().Expand(fitPadding)
		s.vp = models.Viewpoint{
			Center: box.Center(),
			Scale:  models.ScaleForExtent(box, s.width, s.height),
		}
		t = completedTransition()

	case viewport.AnimatedTo:
		ctx, cancel := context.WithCancel(context.Background())
		t = newTransition(cancel)
		s.active = t
		target := models.Viewpoint{Center: r.Center, Scale: r.Scale}
		go s.runAnimation(ctx, t, s.vp, target, r.Duration)
	}
	s.mu.Unlock()

	if prev != nil {
		prev.abort(viewport.ErrSuperseded)
	}
	return t, nil
}

// SetViewpointAnimated animates the viewport to a center and scale over
// the given duration.
func (s *Surface) SetViewpointAnimated(center models.Location, scale models.Scale, duration time.Duration) (viewport.Transition, error) {
	return s.Apply(viewport.AnimatedTo{Center: center, Scale: scale, Duration: duration})
}

// SetViewpointCentered recenters the viewport immediately.
func (s *Surface) SetViewpointCentered(center models.Location, scale models.Scale) (viewport.Transition, error) {
	return s.Apply(viewport.CenteredOn{Center: center, Scale: scale})
}

// SetViewpointToFit resizes the viewport to enclose the geometry.
func (s *Surface) SetViewpointToFit(geometry models.Geometry) (viewport.Transition, error) {
	return s.Apply(viewport.FitTo{Geometry: geometry})
}

// Viewpoint returns a snapshot of the current viewpoint.
func (s *Surface) Viewpoint() models.Viewpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vp
}

// SpatialReference returns the surface's working coordinate system. Zero
// before initialization.
func (s *Surface) SpatialReference() models.SpatialReference {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sr
}

// Size returns the viewport size in pixels.
func (s *Surface) Size() (width, height int) {
	return s.width, s.height
}

// FeatureCount returns the number of indexed basemap features.
func (s *Surface) FeatureCount() int64 {
	return s.index.Size()
}

// VisibleFeatures returns the basemap features intersecting the current
// viewport extent.
func (s *Surface) VisibleFeatures() ([]models.Feature, error) {
	s.mu.RLock()
	vp := s.vp
	s.mu.RUnlock()
	return s.FeaturesIn(vp.Extent(s.width, s.height))
}

// FeaturesIn returns the basemap features intersecting an arbitrary box,
// e.g. the extent of a renderer's interpolated camera.
func (s *Surface) FeaturesIn(box models.BoundingBox) ([]models.Feature, error) {
	s.mu.RLock()
	initialized := s.initialized
	s.mu.RUnlock()

	if !initialized {
		return nil, viewport.ErrNotInitialized
	}
	return s.index.SearchBox(box)
}

// Dispose releases the surface. It is idempotent: calling it twice, or
// on a surface that was never initialized, is safe. Any in-flight
// transition is cancelled with ErrDisposed.
func (s *Surface) Dispose() {
	if !s.disposed.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	prev := s.active
	s.active = nil
	s.initialized = false
	s.mu.Unlock()

	if prev != nil {
		prev.abort(viewport.ErrDisposed)
	}
	s.index.Clear()
	s.logger.Printf("surface: disposed")
}

func validateRequest(req viewport.Request) error {
	switch r := req.(type) {
	case viewport.AnimatedTo:
		if !r.Scale.Valid() {
			return fmt.Errorf("%w: scale must be positive, got %v", viewport.ErrInvalidRequest, r.Scale)
		}
		if r.Duration <= 0 {
			return fmt.Errorf("%w: duration must be positive, got %v", viewport.ErrInvalidRequest, r.Duration)
		}
	case viewport.CenteredOn:
		if !r.Scale.Valid() {
			return fmt.Errorf("%w: scale must be positive, got %v", viewport.ErrInvalidRequest, r.Scale)
		}
	case viewport.FitTo:
		if r.Geometry.Len() < viewport.MinGeometryPoints {
			return fmt.Errorf("%w: geometry needs at least %d points, got %d",
				viewport.ErrInvalidRequest, viewport.MinGeometryPoints, r.Geometry.Len())
		}
	default:
		return fmt.Errorf("%w: unsupported request type %T", viewport.ErrInvalidRequest, req)
	}
	return nil
}
