package surface

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/kass/go-map-viewpoint/pkg/models"
)

// transition implements viewport.Transition for this surface. Immediate
// viewport changes get an already-finished handle; animated changes get
// one wired to the animator's context.
type transition struct {
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	err    error
	cancel context.CancelFunc
}

func newTransition(cancel context.CancelFunc) *transition {
	return &transition{done: make(chan struct{}), cancel: cancel}
}

func completedTransition() *transition {
	t := &transition{done: make(chan struct{})}
	t.finish(nil)
	return t
}

func (t *transition) Done() <-chan struct{} {
	return t.done
}

func (t *transition) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *transition) Cancel() {
	t.abort(context.Canceled)
}

// abort ends the transition early with the given reason. The first
// outcome recorded wins; later aborts and the animator's own completion
// are no-ops.
func (t *transition) abort(reason error) {
	t.finish(reason)
	if t.cancel != nil {
		t.cancel()
	}
}

func (t *transition) finish(err error) {
	t.once.Do(func() {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		close(t.done)
	})
}

// runAnimation drives one animated viewpoint change from start to target
// over the requested duration, easing frame by frame until the deadline.
// The final frame snaps exactly to the target.
func (s *Surface) runAnimation(ctx context.Context, t *transition, from, to models.Viewpoint, d time.Duration) {
	ticker := time.NewTicker(s.frameInterval)
	defer ticker.Stop()
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			// abort already recorded the reason
			return
		case now := <-ticker.C:
			p := float64(now.Sub(start)) / float64(d)
			if p >= 1 {
				if s.animFrame(t, to) {
					t.finish(nil)
				}
				return
			}
			if !s.animFrame(t, interpolate(from, to, smoothstep(p))) {
				return
			}
		}
	}
}

// animFrame writes one animation frame, refusing the write when the
// transition is no longer the surface's active one. A superseded animator
// must never clobber the viewpoint set by its successor.
func (s *Surface) animFrame(owner *transition, vp models.Viewpoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != owner {
		return false
	}
	s.vp = vp
	return true
}

func smoothstep(p float64) float64 {
	return p * p * (3 - 2*p)
}

// interpolate eases between two viewpoints: linear for the center and
// rotation, geometric for the scale so zooms feel uniform.
func interpolate(from, to models.Viewpoint, e float64) models.Viewpoint {
	scale := from.Scale
	if from.Scale > 0 && to.Scale > 0 {
		scale = models.Scale(float64(from.Scale) * math.Pow(float64(to.Scale)/float64(from.Scale), e))
	}
	return models.Viewpoint{
		Center: models.Location{
			X:  from.Center.X + (to.Center.X-from.Center.X)*e,
			Y:  from.Center.Y + (to.Center.Y-from.Center.Y)*e,
			SR: to.Center.SR,
		},
		Scale:    scale,
		Rotation: from.Rotation + (to.Rotation-from.Rotation)*e,
	}
}
