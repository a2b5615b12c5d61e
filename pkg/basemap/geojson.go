package basemap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kass/go-map-viewpoint/pkg/models"
)

// geoJSON mirrors the subset of a FeatureCollection this package reads:
// Point and LineString features with WGS84 coordinates.
type geoJSON struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

type geoJSONFeature struct {
	Type       string          `json:"type"`
	Properties map[string]any  `json:"properties"`
	Geometry   geoJSONGeometry `json:"geometry"`
}

type geoJSONGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// LoadGeoJSON reads a FeatureCollection of Point and LineString features
// and projects them into Web Mercator. Unsupported geometry types are
// skipped, not errors.
func LoadGeoJSON(path string) ([]models.Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read basemap file: %w", err)
	}

	var fc geoJSON
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse basemap geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("parse basemap geojson: expected FeatureCollection, got %q", fc.Type)
	}

	features := make([]models.Feature, 0, len(fc.Features))
	for i, gf := range fc.Features {
		f, ok, err := convertFeature(i, gf)
		if err != nil {
			return nil, err
		}
		if ok {
			features = append(features, f)
		}
	}
	return features, nil
}

func convertFeature(i int, gf geoJSONFeature) (models.Feature, bool, error) {
	f := models.Feature{
		ID:    fmt.Sprintf("geojson-%d", i),
		Label: stringProp(gf.Properties, "name"),
	}
	if id := stringProp(gf.Properties, "id"); id != "" {
		f.ID = id
	}

	switch gf.Geometry.Type {
	case "Point":
		var coord [2]float64
		if err := json.Unmarshal(gf.Geometry.Coordinates, &coord); err != nil {
			return models.Feature{}, false, fmt.Errorf("feature %d: point coordinates: %w", i, err)
		}
		f.Kind = models.FeaturePoint
		f.Geometry = models.NewGeometry(models.WebMercatorFromLonLat(coord[0], coord[1]))

	case "LineString":
		var coords [][2]float64
		if err := json.Unmarshal(gf.Geometry.Coordinates, &coords); err != nil {
			return models.Feature{}, false, fmt.Errorf("feature %d: line coordinates: %w", i, err)
		}
		points := make([]models.Location, len(coords))
		for j, c := range coords {
			points[j] = models.WebMercatorFromLonLat(c[0], c[1])
		}
		f.Kind = models.FeaturePolyline
		f.Geometry = models.NewGeometry(points...)

	default:
		return models.Feature{}, false, nil
	}

	return f, true, nil
}

func stringProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

// LoadFile loads a basemap feature set, dispatching on file extension:
// .json/.geojson for GeoJSON, .gob for snapshots.
func LoadFile(path string) ([]models.Feature, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".geojson":
		return LoadGeoJSON(path)
	case ".gob":
		return LoadSnapshot(path)
	default:
		return nil, fmt.Errorf("unsupported basemap file %q", path)
	}
}
