package surface

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-map-viewpoint/pkg/models"
)

func pointFeature(id string, x, y float64) models.Feature {
	return models.Feature{
		ID:       id,
		Kind:     models.FeaturePoint,
		Geometry: models.NewGeometry(models.NewLocation(x, y, models.WebMercator())),
	}
}

func randomFeatures(n int) []models.Feature {
	features := make([]models.Feature, n)
	for i := range features {
		features[i] = pointFeature(
			fmt.Sprintf("p%d", i),
			rand.Float64()*2000000-1000000,
			rand.Float64()*2000000+6000000,
		)
	}
	return features
}

func TestIndexAndSearchBox(t *testing.T) {
	ix := newFeatureIndex()
	sr := models.WebMercator()

	features := []models.Feature{
		pointFeature("london", -14093, 6711377),
		pointFeature("waterloo", -12153, 6710527),
		pointFeature("sydney", 16832000, -4009000),
		{
			ID:   "thames",
			Kind: models.FeaturePolyline,
			Geometry: models.NewGeometry(
				models.NewLocation(-26000, 6709000, sr),
				models.NewLocation(-3000, 6711000, sr),
			),
		},
	}
	ix.IndexFeatures(features)
	require.Equal(t, int64(len(features)), ix.Size())

	// A box over central London hits the two stations and the river.
	box := models.NewBoundingBox(
		models.NewLocation(-20000, 6705000, sr),
		models.NewLocation(-10000, 6715000, sr),
	)
	results, err := ix.SearchBox(box)
	require.NoError(t, err)
	require.Len(t, results, 3)

	ids := make([]string, len(results))
	for i, f := range results {
		ids[i] = f.ID
	}
	assert.ElementsMatch(t, []string{"london", "waterloo", "thames"}, ids)
}

func TestSearchBoxExcludesNearMisses(t *testing.T) {
	ix := newFeatureIndex()
	sr := models.WebMercator()

	ix.IndexFeatures([]models.Feature{pointFeature("a", 100, 100)})

	// The query box ends just short of the point; the padded index rect
	// would still intersect, so the post-filter must drop it.
	box := models.NewBoundingBox(
		models.NewLocation(0, 0, sr),
		models.NewLocation(99, 99, sr),
	)
	results, err := ix.SearchBox(box)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndexSkipsEmptyGeometry(t *testing.T) {
	ix := newFeatureIndex()
	ix.IndexFeatures([]models.Feature{
		pointFeature("a", 0, 0),
		{ID: "empty", Kind: models.FeaturePoint},
	})
	assert.Equal(t, int64(1), ix.Size())
}

func TestClear(t *testing.T) {
	ix := newFeatureIndex()
	ix.IndexFeatures(randomFeatures(100))
	require.Equal(t, int64(100), ix.Size())

	ix.Clear()
	assert.Equal(t, int64(0), ix.Size())

	box := models.NewBoundingBox(
		models.NewLocation(-1000000, 6000000, models.WebMercator()),
		models.NewLocation(1000000, 8000000, models.WebMercator()),
	)
	results, err := ix.SearchBox(box)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestParallelIndexing(t *testing.T) {
	ix := newFeatureIndex()
	features := randomFeatures(10000)

	start := time.Now()
	ix.IndexFeatures(features)
	t.Logf("Indexed %d features in %v", len(features), time.Since(start))

	assert.Equal(t, int64(len(features)), ix.Size())
}

func BenchmarkSearchBoxIndex(b *testing.B) {
	ix := newFeatureIndex()
	ix.IndexFeatures(randomFeatures(100000))
	sr := models.WebMercator()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x := rand.Float64()*1800000 - 1000000
		y := rand.Float64()*1800000 + 6000000
		box := models.NewBoundingBox(
			models.NewLocation(x, y, sr),
			models.NewLocation(x+50000, y+50000, sr),
		)
		_, _ = ix.SearchBox(box)
	}
}
