package viewport

import (
	"bytes"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-map-viewpoint/pkg/models"
)

// recordingSurface captures every request it is handed.
type recordingSurface struct {
	requests []Request
	err      error
}

func (r *recordingSurface) Apply(req Request) (Transition, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.requests = append(r.requests, req)
	return doneTransition{}, nil
}

type doneTransition struct{}

func (doneTransition) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (doneTransition) Cancel()    {}
func (doneTransition) Err() error { return nil }

func newTestController(s MapSurface) *Controller {
	return NewController(s, models.WebMercator(), nil)
}

func TestAnimateTo(t *testing.T) {
	rec := &recordingSurface{}
	ctrl := newTestController(rec)

	tr, err := ctrl.AnimateTo(ctrl.Location(-14093, 6711377), 5000, 7*time.Second)
	require.NoError(t, err)
	require.NotNil(t, tr)

	require.Len(t, rec.requests, 1)
	req, ok := rec.requests[0].(AnimatedTo)
	require.True(t, ok, "expected AnimatedTo, got %T", rec.requests[0])

	assert.Equal(t, models.NewLocation(-14093, 6711377, models.WebMercator()), req.Center)
	assert.Equal(t, models.Scale(5000), req.Scale)
	assert.Equal(t, 7*time.Second, req.Duration)
}

func TestCenterOn(t *testing.T) {
	rec := &recordingSurface{}
	ctrl := newTestController(rec)

	tr, err := ctrl.CenterOn(ctrl.Location(-12153, 6710527), 5000)
	require.NoError(t, err)
	require.NotNil(t, tr)

	require.Len(t, rec.requests, 1)
	req, ok := rec.requests[0].(CenteredOn)
	require.True(t, ok, "expected CenteredOn, got %T", rec.requests[0])

	assert.Equal(t, models.NewLocation(-12153, 6710527, models.WebMercator()), req.Center)
	assert.Equal(t, models.Scale(5000), req.Scale)
}

func TestFitTo(t *testing.T) {
	rec := &recordingSurface{}
	ctrl := newTestController(rec)

	geometry := models.NewGeometry(
		ctrl.Location(-13823, 6710390),
		ctrl.Location(-13823, 6710150),
		ctrl.Location(-14680, 6710390),
		ctrl.Location(-14680, 6710150),
	)

	tr, err := ctrl.FitTo(geometry)
	require.NoError(t, err)
	require.NotNil(t, tr)

	require.Len(t, rec.requests, 1)
	req, ok := rec.requests[0].(FitTo)
	require.True(t, ok, "expected FitTo, got %T", rec.requests[0])

	sr := models.WebMercator()
	assert.Equal(t, []models.Location{
		models.NewLocation(-13823, 6710390, sr),
		models.NewLocation(-13823, 6710150, sr),
		models.NewLocation(-14680, 6710390, sr),
		models.NewLocation(-14680, 6710150, sr),
	}, req.Geometry.Points)
}

func TestRejectNonPositiveScale(t *testing.T) {
	testCases := []struct {
		name  string
		scale models.Scale
	}{
		{"zero", 0},
		{"negative", -5000},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recordingSurface{}
			ctrl := newTestController(rec)

			_, err := ctrl.AnimateTo(ctrl.Location(0, 0), tc.scale, time.Second)
			assert.ErrorIs(t, err, ErrInvalidRequest)

			_, err = ctrl.CenterOn(ctrl.Location(0, 0), tc.scale)
			assert.ErrorIs(t, err, ErrInvalidRequest)

			assert.Empty(t, rec.requests, "invalid requests must not be forwarded")
		})
	}
}

func TestRejectNonPositiveDuration(t *testing.T) {
	rec := &recordingSurface{}
	ctrl := newTestController(rec)

	for _, d := range []time.Duration{0, -time.Second} {
		_, err := ctrl.AnimateTo(ctrl.Location(0, 0), 5000, d)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	}
	assert.Empty(t, rec.requests)
}

func TestRejectSmallGeometry(t *testing.T) {
	rec := &recordingSurface{}
	ctrl := newTestController(rec)

	for n := 0; n < MinGeometryPoints; n++ {
		points := make([]models.Location, n)
		for i := range points {
			points[i] = ctrl.Location(float64(i), float64(i))
		}
		_, err := ctrl.FitTo(models.NewGeometry(points...))
		assert.ErrorIs(t, err, ErrInvalidRequest, "geometry with %d points", n)
	}
	assert.Empty(t, rec.requests)
}

func TestNoSurfaceIsNoOp(t *testing.T) {
	ctrl := newTestController(nil)

	tr, err := ctrl.CenterOn(ctrl.Location(-12153, 6710527), 5000)
	assert.NoError(t, err)
	assert.Nil(t, tr)

	// Validation still applies before the no-op short circuit.
	_, err = ctrl.CenterOn(ctrl.Location(0, 0), -1)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSurfaceFailureIsLoggedNotFatal(t *testing.T) {
	var buf bytes.Buffer
	surfaceErr := errors.New("engine exploded")
	ctrl := NewController(&recordingSurface{err: surfaceErr}, models.WebMercator(), log.New(&buf, "", 0))

	tr, err := ctrl.CenterOn(ctrl.Location(0, 0), 5000)
	assert.Nil(t, tr)
	assert.ErrorIs(t, err, surfaceErr)
	assert.Contains(t, buf.String(), "engine exploded")
}

func TestSpatialReferenceStamping(t *testing.T) {
	rec := &recordingSurface{}
	ctrl := newTestController(rec)

	// Raw coordinates pick up the controller's spatial reference.
	_, err := ctrl.CenterOn(models.Location{X: 1, Y: 2}, 5000)
	require.NoError(t, err)
	assert.Equal(t, models.WebMercator(), rec.requests[0].(CenteredOn).Center.SR)

	// An explicit spatial reference is left alone.
	_, err = ctrl.CenterOn(models.NewLocation(1, 2, models.WGS84()), 5000)
	require.NoError(t, err)
	assert.Equal(t, models.WGS84(), rec.requests[1].(CenteredOn).Center.SR)
}
