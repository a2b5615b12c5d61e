package basemap

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-map-viewpoint/pkg/models"
)

func TestParseStyle(t *testing.T) {
	for _, name := range []string{"imagery-labels", "streets", "oceans"} {
		style, err := ParseStyle(name)
		require.NoError(t, err)
		assert.Equal(t, Style(name), style)
	}

	_, err := ParseStyle("topographic")
	assert.Error(t, err)
}

func TestGenerateImageryLabels(t *testing.T) {
	features, err := Generate(StyleImageryLabels)
	require.NoError(t, err)
	require.NotEmpty(t, features)

	byID := make(map[string]models.Feature, len(features))
	for _, f := range features {
		assert.Equal(t, models.WebMercator(), f.Geometry.Points[0].SR)
		byID[f.ID] = f
	}

	waterloo, ok := byID["waterloo"]
	require.True(t, ok)
	assert.Equal(t, "Waterloo Station", waterloo.Label)
	assert.Equal(t, models.FeaturePoint, waterloo.Kind)
	// Waterloo in Web Mercator meters, within projection slack.
	assert.InDelta(t, -12153, waterloo.Geometry.Points[0].X, 1000)
	assert.InDelta(t, 6710527, waterloo.Geometry.Points[0].Y, 1000)

	thames, ok := byID["thames"]
	require.True(t, ok)
	assert.Equal(t, models.FeaturePolyline, thames.Kind)
	assert.GreaterOrEqual(t, thames.Geometry.Len(), 3)
}

func TestGenerateStreetsIsSupersetAndDeterministic(t *testing.T) {
	base, err := Generate(StyleImageryLabels)
	require.NoError(t, err)

	streets, err := Generate(StyleStreets)
	require.NoError(t, err)
	assert.Greater(t, len(streets), len(base))

	again, err := Generate(StyleStreets)
	require.NoError(t, err)
	assert.Equal(t, streets, again, "same style must generate the same feature set")
}

func TestGenerateOceans(t *testing.T) {
	features, err := Generate(StyleOceans)
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, models.FeaturePolyline, features[0].Kind)
	assert.Empty(t, features[0].Label)
}

func TestGenerateUnknownStyle(t *testing.T) {
	_, err := Generate(Style("satellite"))
	assert.Error(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	features, err := Generate(StyleStreets)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "basemap.gob")
	require.NoError(t, SaveSnapshot(path, features))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, features, loaded)
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.gob"))
	assert.Error(t, err)
}

const sampleGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"name": "Waterloo Station", "id": "waterloo"},
      "geometry": {"type": "Point", "coordinates": [-0.1134, 51.5031]}
    },
    {
      "type": "Feature",
      "properties": {"name": "River Thames"},
      "geometry": {"type": "LineString", "coordinates": [[-0.236, 51.487], [-0.18, 51.485], [-0.145, 51.4855]]}
    },
    {
      "type": "Feature",
      "properties": {"name": "Hyde Park"},
      "geometry": {"type": "Polygon", "coordinates": [[[-0.175, 51.507], [-0.152, 51.508], [-0.165, 51.502], [-0.175, 51.507]]]}
    }
  ]
}`

func TestLoadGeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "london.geojson")
	require.NoError(t, os.WriteFile(path, []byte(sampleGeoJSON), 0o644))

	features, err := LoadGeoJSON(path)
	require.NoError(t, err)
	require.Len(t, features, 2, "the polygon is skipped")

	assert.Equal(t, "waterloo", features[0].ID)
	assert.Equal(t, "Waterloo Station", features[0].Label)
	assert.Equal(t, models.FeaturePoint, features[0].Kind)
	assert.Equal(t, models.WebMercator(), features[0].Geometry.Points[0].SR)

	assert.Equal(t, "River Thames", features[1].Label)
	assert.Equal(t, models.FeaturePolyline, features[1].Kind)
	assert.Equal(t, 3, features[1].Geometry.Len())
}

func TestLoadGeoJSONRejectsNonCollection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "point.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type": "Point", "coordinates": [0, 0]}`), 0o644))

	_, err := LoadGeoJSON(path)
	assert.ErrorContains(t, err, "FeatureCollection")
}

func TestLoadFileDispatch(t *testing.T) {
	dir := t.TempDir()

	geojsonPath := filepath.Join(dir, "map.geojson")
	require.NoError(t, os.WriteFile(geojsonPath, []byte(sampleGeoJSON), 0o644))
	features, err := LoadFile(geojsonPath)
	require.NoError(t, err)
	assert.Len(t, features, 2)

	gobPath := filepath.Join(dir, "map.gob")
	require.NoError(t, SaveSnapshot(gobPath, features))
	loaded, err := LoadFile(gobPath)
	require.NoError(t, err)
	assert.Equal(t, features, loaded)

	_, err = LoadFile(filepath.Join(dir, "map.shp"))
	assert.ErrorContains(t, err, "unsupported basemap file")
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.geojson")
	require.NoError(t, os.WriteFile(path, []byte(sampleGeoJSON), 0o644))

	var reloads atomic.Int64
	w, err := NewWatcher(path, nil, func(features []models.Feature) {
		if len(features) == 2 {
			reloads.Add(1)
		}
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte(sampleGeoJSON), 0o644))

	require.Eventually(t, func() bool {
		return reloads.Load() >= 1
	}, 3*time.Second, 20*time.Millisecond, "watcher never fired")
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "live.geojson")
	require.NoError(t, os.WriteFile(path, []byte(sampleGeoJSON), 0o644))

	var reloads atomic.Int64
	w, err := NewWatcher(path, nil, func([]models.Feature) {
		reloads.Add(1)
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.geojson"), []byte(sampleGeoJSON), 0o644))

	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, reloads.Load())
}

func TestWatcherCloseTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.geojson")
	require.NoError(t, os.WriteFile(path, []byte(sampleGeoJSON), 0o644))

	w, err := NewWatcher(path, nil, func([]models.Feature) {})
	require.NoError(t, err)

	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
