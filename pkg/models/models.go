// Package models defines the spatial types shared across the viewpoint
// library: spatial references, locations, geometries, bounding boxes and
// viewpoints.
package models

import "math"

const (
	// WKIDWebMercator is the well-known ID of the Web Mercator projection.
	WKIDWebMercator = 3857
	// WKIDWGS84 is the well-known ID of the WGS84 geographic system.
	WKIDWGS84 = 4326

	webMercatorRadius = 6378137.0 // m

	// ReferencePixelMeters is the OGC standard rendering pixel (0.28 mm),
	// used to convert a scale denominator into ground resolution.
	ReferencePixelMeters = 0.00028
)

// SpatialReference identifies the coordinate system used to interpret
// raw coordinate pairs.
type SpatialReference struct {
	WKID int `json:"wkid"`
}

// WebMercator returns the Web Mercator (EPSG:3857) spatial reference.
func WebMercator() SpatialReference {
	return SpatialReference{WKID: WKIDWebMercator}
}

// WGS84 returns the WGS84 (EPSG:4326) spatial reference.
func WGS84() SpatialReference {
	return SpatialReference{WKID: WKIDWGS84}
}

// IsZero reports whether the spatial reference has not been set.
func (s SpatialReference) IsZero() bool {
	return s.WKID == 0
}

// Location is a 2D coordinate pair interpreted in a spatial reference.
// Locations are values: construct once, copy freely.
type Location struct {
	X  float64          `json:"x"`
	Y  float64          `json:"y"`
	SR SpatialReference `json:"sr"`
}

// NewLocation creates a location from raw coordinates and the spatial
// reference they are expressed in.
func NewLocation(x, y float64, sr SpatialReference) Location {
	return Location{X: x, Y: y, SR: sr}
}

// WebMercatorFromLonLat projects WGS84 degrees into Web Mercator meters.
func WebMercatorFromLonLat(lon, lat float64) Location {
	x := webMercatorRadius * lon * math.Pi / 180.0
	y := webMercatorRadius * math.Log(math.Tan(math.Pi/4.0+lat*math.Pi/360.0))
	return Location{X: x, Y: y, SR: WebMercator()}
}

// LonLatFromWebMercator unprojects Web Mercator meters back to WGS84 degrees.
func LonLatFromWebMercator(l Location) (lon, lat float64) {
	lon = l.X / webMercatorRadius * 180.0 / math.Pi
	lat = (2.0*math.Atan(math.Exp(l.Y/webMercatorRadius)) - math.Pi/2.0) * 180.0 / math.Pi
	return lon, lat
}

// Scale is a map scale denominator. Valid scales are strictly positive.
type Scale float64

// Valid reports whether the scale can be used in a viewpoint.
func (s Scale) Valid() bool {
	return s > 0 && !math.IsInf(float64(s), 1)
}

// Resolution returns the ground resolution in meters per pixel at this
// scale, using the OGC reference pixel.
func (s Scale) Resolution() float64 {
	return float64(s) * ReferencePixelMeters
}

// BoundingBox is a rectangular area defined by two corners.
type BoundingBox struct {
	BottomLeft Location
	TopRight   Location
}

// NewBoundingBox normalizes two corner locations into a bounding box.
func NewBoundingBox(a, b Location) BoundingBox {
	return BoundingBox{
		BottomLeft: Location{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), SR: a.SR},
		TopRight:   Location{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), SR: a.SR},
	}
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() Location {
	return Location{
		X:  (b.BottomLeft.X + b.TopRight.X) / 2,
		Y:  (b.BottomLeft.Y + b.TopRight.Y) / 2,
		SR: b.BottomLeft.SR,
	}
}

// Width returns the horizontal extent of the box in coordinate units.
func (b BoundingBox) Width() float64 {
	return b.TopRight.X - b.BottomLeft.X
}

// Height returns the vertical extent of the box in coordinate units.
func (b BoundingBox) Height() float64 {
	return b.TopRight.Y - b.BottomLeft.Y
}

// Intersects reports whether two boxes overlap (edges touching counts).
func (b BoundingBox) Intersects(o BoundingBox) bool {
	return b.BottomLeft.X <= o.TopRight.X && b.TopRight.X >= o.BottomLeft.X &&
		b.BottomLeft.Y <= o.TopRight.Y && b.TopRight.Y >= o.BottomLeft.Y
}

// Contains reports whether the location lies within the box (inclusive).
func (b BoundingBox) Contains(l Location) bool {
	return l.X >= b.BottomLeft.X && l.X <= b.TopRight.X &&
		l.Y >= b.BottomLeft.Y && l.Y <= b.TopRight.Y
}

// Expand grows the box by the given fraction of its size on every side.
// A degenerate box is padded by an absolute minimum so it stays usable
// as a viewport extent.
func (b BoundingBox) Expand(fraction float64) BoundingBox {
	padX := b.Width() * fraction
	padY := b.Height() * fraction
	const minPad = 1.0
	if padX < minPad {
		padX = minPad
	}
	if padY < minPad {
		padY = minPad
	}
	return BoundingBox{
		BottomLeft: Location{X: b.BottomLeft.X - padX, Y: b.BottomLeft.Y - padY, SR: b.BottomLeft.SR},
		TopRight:   Location{X: b.TopRight.X + padX, Y: b.TopRight.Y + padY, SR: b.TopRight.SR},
	}
}

// Geometry is an ordered sequence of locations describing an open or
// closed shape. Point order is preserved from construction.
type Geometry struct {
	Points []Location `json:"points"`
}

// NewGeometry builds a geometry from locations in the given order.
func NewGeometry(points ...Location) Geometry {
	pts := make([]Location, len(points))
	copy(pts, points)
	return Geometry{Points: pts}
}

// Len returns the number of points in the geometry.
func (g Geometry) Len() int {
	return len(g.Points)
}

// Bounds returns the smallest bounding box enclosing all points.
// The zero box is returned for an empty geometry.
func (g Geometry) Bounds() BoundingBox {
	if len(g.Points) == 0 {
		return BoundingBox{}
	}
	box := BoundingBox{BottomLeft: g.Points[0], TopRight: g.Points[0]}
	for _, p := range g.Points[1:] {
		box.BottomLeft.X = math.Min(box.BottomLeft.X, p.X)
		box.BottomLeft.Y = math.Min(box.BottomLeft.Y, p.Y)
		box.TopRight.X = math.Max(box.TopRight.X, p.X)
		box.TopRight.Y = math.Max(box.TopRight.Y, p.Y)
	}
	return box
}

// Viewpoint is the visible extent of a map: a center, a scale and a
// rotation in degrees.
type Viewpoint struct {
	Center   Location `json:"center"`
	Scale    Scale    `json:"scale"`
	Rotation float64  `json:"rotation"`
}

// Extent returns the bounding box visible at this viewpoint on a surface
// of the given pixel size. Rotation does not affect the extent.
func (v Viewpoint) Extent(widthPx, heightPx int) BoundingBox {
	res := v.Scale.Resolution()
	halfW := res * float64(widthPx) / 2
	halfH := res * float64(heightPx) / 2
	return BoundingBox{
		BottomLeft: Location{X: v.Center.X - halfW, Y: v.Center.Y - halfH, SR: v.Center.SR},
		TopRight:   Location{X: v.Center.X + halfW, Y: v.Center.Y + halfH, SR: v.Center.SR},
	}
}

// ScaleForExtent returns the smallest scale at which the whole box fits a
// surface of the given pixel size.
func ScaleForExtent(box BoundingBox, widthPx, heightPx int) Scale {
	if widthPx <= 0 || heightPx <= 0 {
		return 0
	}
	resX := box.Width() / (ReferencePixelMeters * float64(widthPx))
	resY := box.Height() / (ReferencePixelMeters * float64(heightPx))
	return Scale(math.Max(resX, resY))
}
