package surface

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"

	"github.com/kass/go-map-viewpoint/pkg/models"
)

const (
	tolerance   = 0.5 // m, minimum rect size for degenerate bounds
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

// spatialFeature wraps a feature to implement rtreego.Spatial.
type spatialFeature struct {
	feature models.Feature
	rect    *rtreego.Rect
}

func (sf *spatialFeature) Bounds() *rtreego.Rect {
	return sf.rect
}

// featureIndex is a thread-safe R-Tree over basemap features.
type featureIndex struct {
	tree      *rtreego.Rtree
	mu        sync.RWMutex
	itemCount atomic.Int64
}

func newFeatureIndex() *featureIndex {
	return &featureIndex{
		tree: rtreego.NewTree(dimensions, minChildren, maxChildren),
	}
}

// IndexFeatures inserts a batch of features, building rects in parallel
// across CPU cores before the synchronized tree insert.
func (ix *featureIndex) IndexFeatures(features []models.Feature) {
	if len(features) == 0 {
		return
	}

	numCPU := runtime.NumCPU()
	items := make([]rtreego.Spatial, len(features))
	var wg sync.WaitGroup

	batchSize := len(features) / numCPU
	if batchSize < 1 {
		batchSize = 1
		numCPU = len(features)
	}

	for i := 0; i < numCPU && i*batchSize < len(features); i++ {
		wg.Add(1)
		start := i * batchSize
		end := start + batchSize
		if end > len(features) {
			end = len(features)
		}

		go func(start, end int) {
			defer wg.Done()
			for j := start; j < end; j++ {
				f := features[j]
				if f.Geometry.Len() == 0 {
					continue
				}
				items[j] = &spatialFeature{feature: f, rect: featureRect(f)}
			}
		}(start, end)
	}

	wg.Wait()

	ix.mu.Lock()
	defer ix.mu.Unlock()

	count := int64(0)
	for _, item := range items {
		if item != nil {
			ix.tree.Insert(item)
			count++
		}
	}
	ix.itemCount.Add(count)
}

// SearchBox returns all features whose bounds intersect the given box.
func (ix *featureIndex) SearchBox(box models.BoundingBox) ([]models.Feature, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	bounds, err := boxRect(box)
	if err != nil {
		return nil, err
	}

	results := ix.tree.SearchIntersect(bounds)

	// rtreego can return near misses from padded rects, so verify
	// against the exact geometry bounds.
	features := make([]models.Feature, 0, len(results))
	for _, result := range results {
		item, ok := result.(*spatialFeature)
		if !ok {
			continue
		}
		if item.feature.Bounds().Intersects(box) {
			features = append(features, item.feature)
		}
	}

	return features, nil
}

// Size returns the number of indexed features.
func (ix *featureIndex) Size() int64 {
	return ix.itemCount.Load()
}

// Clear removes all features from the index.
func (ix *featureIndex) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.tree = rtreego.NewTree(dimensions, minChildren, maxChildren)
	ix.itemCount.Store(0)
}

func featureRect(f models.Feature) *rtreego.Rect {
	b := f.Bounds()
	w := b.Width()
	h := b.Height()
	if w < tolerance {
		w = tolerance
	}
	if h < tolerance {
		h = tolerance
	}
	rect, err := rtreego.NewRect(rtreego.Point{b.BottomLeft.X, b.BottomLeft.Y}, []float64{w, h})
	if err != nil {
		// Only reachable with NaN coordinates; fall back to a unit rect
		// at the origin so the insert cannot poison the tree.
		rect, _ = rtreego.NewRect(rtreego.Point{0, 0}, []float64{tolerance, tolerance})
	}
	return rect
}

func boxRect(box models.BoundingBox) (*rtreego.Rect, error) {
	w := box.Width()
	h := box.Height()
	if w < tolerance {
		w = tolerance
	}
	if h < tolerance {
		h = tolerance
	}
	return rtreego.NewRect(rtreego.Point{box.BottomLeft.X, box.BottomLeft.Y}, []float64{w, h})
}
