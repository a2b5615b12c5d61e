package models

// FeatureKind distinguishes the geometry role of a basemap feature.
type FeatureKind string

const (
	// FeaturePoint is a single labeled marker.
	FeaturePoint FeatureKind = "point"
	// FeaturePolyline is an open line through two or more locations.
	FeaturePolyline FeatureKind = "polyline"
)

// Feature is one basemap element: a marker or a polyline with an
// optional label. Features are what the surface indexes and renders.
type Feature struct {
	ID       string      `json:"id"`
	Label    string      `json:"label,omitempty"`
	Kind     FeatureKind `json:"kind"`
	Geometry Geometry    `json:"geometry"`
}

// Bounds returns the bounding box of the feature's geometry.
func (f Feature) Bounds() BoundingBox {
	return f.Geometry.Bounds()
}
