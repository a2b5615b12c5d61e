// Package config loads viewer configuration: surface size and style,
// basemap source, and named viewpoint bookmarks.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kass/go-map-viewpoint/pkg/models"
)

// Config is the root of the YAML configuration file.
type Config struct {
	Surface   Surface    `yaml:"surface"`
	Basemap   Basemap    `yaml:"basemap"`
	Bookmarks []Bookmark `yaml:"bookmarks"`
}

// Surface configures the viewport dimensions and built-in basemap style.
type Surface struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Style  string `yaml:"style"`
}

// Basemap points at an optional file-based feature source. When Watch is
// set the viewer reloads the file on change.
type Basemap struct {
	File  string `yaml:"file,omitempty"`
	Watch bool   `yaml:"watch,omitempty"`
}

// Point is a raw coordinate pair in the surface's spatial reference.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Bookmark is a named viewpoint target. Point bookmarks carry x/y/scale
// (plus an optional duration that makes them animated); fit bookmarks
// carry the point list to enclose instead.
type Bookmark struct {
	Name            string  `yaml:"name"`
	X               float64 `yaml:"x,omitempty"`
	Y               float64 `yaml:"y,omitempty"`
	Scale           float64 `yaml:"scale,omitempty"`
	DurationSeconds float64 `yaml:"duration,omitempty"`
	Fit             []Point `yaml:"fit,omitempty"`
}

// IsFit reports whether the bookmark targets a geometry rather than a
// point.
func (b Bookmark) IsFit() bool {
	return len(b.Fit) > 0
}

// IsAnimated reports whether a point bookmark requests an animated
// transition.
func (b Bookmark) IsAnimated() bool {
	return !b.IsFit() && b.DurationSeconds > 0
}

// Geometry builds the fit geometry in the given spatial reference,
// preserving point order.
func (b Bookmark) Geometry(sr models.SpatialReference) models.Geometry {
	points := make([]models.Location, len(b.Fit))
	for i, p := range b.Fit {
		points[i] = models.NewLocation(p.X, p.Y, sr)
	}
	return models.NewGeometry(points...)
}

// Default returns the built-in configuration: the three London bookmarks
// on an imagery basemap.
func Default() Config {
	return Config{
		Surface: Surface{
			Width:  800,
			Height: 700,
			Style:  "imagery-labels",
		},
		Bookmarks: []Bookmark{
			{Name: "london", X: -14093, Y: 6711377, Scale: 5000, DurationSeconds: 7},
			{Name: "waterloo", X: -12153, Y: 6710527, Scale: 5000},
			{Name: "westminster", Fit: []Point{
				{X: -13823, Y: 6710390},
				{X: -13823, Y: 6710150},
				{X: -14680, Y: 6710390},
				{X: -14680, Y: 6710150},
			}},
		},
	}
}

// Load reads a config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate applies the same rules the viewport controller enforces, so a
// bad config fails at startup instead of on the first key press.
func (c Config) Validate() error {
	if c.Surface.Width <= 0 || c.Surface.Height <= 0 {
		return fmt.Errorf("config: surface size must be positive, got %dx%d",
			c.Surface.Width, c.Surface.Height)
	}
	seen := make(map[string]bool, len(c.Bookmarks))
	for _, b := range c.Bookmarks {
		if b.Name == "" {
			return fmt.Errorf("config: bookmark without a name")
		}
		if seen[b.Name] {
			return fmt.Errorf("config: duplicate bookmark %q", b.Name)
		}
		seen[b.Name] = true

		if b.IsFit() {
			if len(b.Fit) < 3 {
				return fmt.Errorf("config: bookmark %q: fit needs at least 3 points, got %d",
					b.Name, len(b.Fit))
			}
			continue
		}
		if b.Scale <= 0 {
			return fmt.Errorf("config: bookmark %q: scale must be positive, got %v", b.Name, b.Scale)
		}
		if b.DurationSeconds < 0 {
			return fmt.Errorf("config: bookmark %q: duration cannot be negative", b.Name)
		}
	}
	return nil
}

// Bookmark looks a bookmark up by name.
func (c Config) Bookmark(name string) (Bookmark, bool) {
	for _, b := range c.Bookmarks {
		if b.Name == name {
			return b, true
		}
	}
	return Bookmark{}, false
}
