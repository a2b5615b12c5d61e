// Package basemap supplies the feature layers a surface indexes: built-in
// styled sets around central London, GeoJSON files, and gob snapshots,
// with optional hot reload of file-based sources.
package basemap

import (
	"fmt"
	"sort"

	"github.com/kass/go-map-viewpoint/pkg/models"
)

// Style selects one of the built-in basemap feature sets.
type Style string

const (
	// StyleImageryLabels is imagery with labeled landmarks, the default.
	StyleImageryLabels Style = "imagery-labels"
	// StyleStreets adds street polylines to the labeled landmarks.
	StyleStreets Style = "streets"
	// StyleOceans carries only water features, unlabeled.
	StyleOceans Style = "oceans"
)

// ParseStyle maps a user-supplied name to a Style.
func ParseStyle(name string) (Style, error) {
	switch Style(name) {
	case StyleImageryLabels, StyleStreets, StyleOceans:
		return Style(name), nil
	default:
		return "", fmt.Errorf("unknown basemap style %q", name)
	}
}

// landmark is a built-in labeled point authored in WGS84 degrees.
type landmark struct {
	id    string
	label string
	lon   float64
	lat   float64
}

var landmarks = []landmark{
	{"trafalgar", "Trafalgar Square", -0.1281, 51.5080},
	{"waterloo", "Waterloo Station", -0.1134, 51.5031},
	{"bigben", "Big Ben", -0.1246, 51.5007},
	{"westminster", "Westminster Abbey", -0.1273, 51.4994},
	{"londoneye", "London Eye", -0.1196, 51.5033},
	{"stpauls", "St Paul's Cathedral", -0.0984, 51.5138},
	{"towerbridge", "Tower Bridge", -0.0754, 51.5055},
	{"buckingham", "Buckingham Palace", -0.1419, 51.5014},
	{"kingscross", "King's Cross", -0.1233, 51.5308},
}

// thames traces the river through central London, west to east.
var thames = [][2]float64{
	{-0.2360, 51.4870},
	{-0.1800, 51.4850},
	{-0.1450, 51.4855},
	{-0.1220, 51.5005},
	{-0.1170, 51.5095},
	{-0.0986, 51.5090},
	{-0.0750, 51.5070},
	{-0.0470, 51.5080},
	{-0.0280, 51.5045},
}

var streets = map[string][][2]float64{
	"The Strand": {
		{-0.1280, 51.5085},
		{-0.1195, 51.5110},
		{-0.1130, 51.5122},
	},
	"Whitehall": {
		{-0.1270, 51.5062},
		{-0.1258, 51.5030},
		{-0.1246, 51.5010},
	},
	"Westminster Bridge Rd": {
		{-0.1246, 51.5007},
		{-0.1180, 51.5000},
		{-0.1120, 51.4985},
	},
}

// Generate returns the deterministic built-in feature set for a style,
// projected into Web Mercator.
func Generate(style Style) ([]models.Feature, error) {
	switch style {
	case StyleImageryLabels:
		features := pointFeatures(true)
		features = append(features, lineFeature("thames", "River Thames", thames))
		return features, nil

	case StyleStreets:
		features := pointFeatures(true)
		features = append(features, lineFeature("thames", "River Thames", thames))
		names := make([]string, 0, len(streets))
		for name := range streets {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			features = append(features, lineFeature("street-"+name, name, streets[name]))
		}
		return features, nil

	case StyleOceans:
		return []models.Feature{lineFeature("thames", "", thames)}, nil

	default:
		return nil, fmt.Errorf("unknown basemap style %q", style)
	}
}

func pointFeatures(labeled bool) []models.Feature {
	features := make([]models.Feature, 0, len(landmarks))
	for _, lm := range landmarks {
		label := ""
		if labeled {
			label = lm.label
		}
		features = append(features, models.Feature{
			ID:       lm.id,
			Label:    label,
			Kind:     models.FeaturePoint,
			Geometry: models.NewGeometry(models.WebMercatorFromLonLat(lm.lon, lm.lat)),
		})
	}
	return features
}

func lineFeature(id, label string, lonLats [][2]float64) models.Feature {
	points := make([]models.Location, len(lonLats))
	for i, ll := range lonLats {
		points[i] = models.WebMercatorFromLonLat(ll[0], ll[1])
	}
	return models.Feature{
		ID:       id,
		Label:    label,
		Kind:     models.FeaturePolyline,
		Geometry: models.NewGeometry(points...),
	}
}
