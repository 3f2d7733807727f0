// Package config loads the markermap scene description.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/geo/s2"
	"gopkg.in/yaml.v3"

	"github.com/phanxgames/willowmap"
)

// Config is the root of the YAML scene file.
type Config struct {
	Title  string `yaml:"title,omitempty"`
	Width  int    `yaml:"width,omitempty"`
	Height int    `yaml:"height,omitempty"`

	Map   Map   `yaml:"map"`
	Icons Icons `yaml:"icons,omitempty"`

	Markers []Marker `yaml:"markers,omitempty"`
	// GeoJSON is a path, relative to the config file, of a FeatureCollection
	// appended to Markers.
	GeoJSON string `yaml:"geojson,omitempty"`
	// GeoJSONInline allows defining the collection directly in the file.
	GeoJSONInline *willowmap.GeoJSONFeatureCollection `yaml:"geojson_inline,omitempty"`

	dir string
}

// Map is the initial view.
type Map struct {
	Center    [2]float64 `yaml:"center"` // [lat, lng]
	Zoom      float64    `yaml:"zoom"`
	MinZoom   float64    `yaml:"min_zoom,omitempty"`
	MaxZoom   float64    `yaml:"max_zoom,omitempty"`
	Graticule *bool      `yaml:"graticule,omitempty"`
}

// Icons selects the marker icon source.
type Icons struct {
	URLTemplate string   `yaml:"url_template,omitempty"`
	Colors      []string `yaml:"colors,omitempty"`
}

// Marker is a marker entry.
type Marker struct {
	ID        string  `yaml:"id"`
	Lat       float64 `yaml:"lat"`
	Lng       float64 `yaml:"lng"`
	Color     string  `yaml:"color,omitempty"`
	Popup     string  `yaml:"popup,omitempty"`
	Tooltip   string  `yaml:"tooltip,omitempty"`
	PopupOpen bool    `yaml:"popup_open,omitempty"`
}

// Load reads and parses the YAML configuration file at path and applies
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Title == "" {
		c.Title = "Marker Map"
	}
	if c.Width <= 0 {
		c.Width = 1024
	}
	if c.Height <= 0 {
		c.Height = 768
	}
	if c.Map.MaxZoom == 0 {
		c.Map.MaxZoom = 18
	}
	if c.Map.Zoom == 0 {
		c.Map.Zoom = 3
	}
}

// Validate checks ranges that would otherwise produce an unusable view.
func (c *Config) Validate() error {
	if c.Map.MinZoom > c.Map.MaxZoom {
		return fmt.Errorf("map: min_zoom %g above max_zoom %g", c.Map.MinZoom, c.Map.MaxZoom)
	}
	if lat := c.Map.Center[0]; lat < -90 || lat > 90 {
		return fmt.Errorf("map: center latitude %g out of range", lat)
	}
	for i, m := range c.Markers {
		if m.Lat < -90 || m.Lat > 90 || m.Lng < -180 || m.Lng > 180 {
			return fmt.Errorf("markers[%d] %q: position (%g, %g) out of range", i, m.ID, m.Lat, m.Lng)
		}
	}
	return nil
}

// MapConfig converts the view settings.
func (c *Config) MapConfig() willowmap.MapConfig {
	graticule := true
	if c.Map.Graticule != nil {
		graticule = *c.Map.Graticule
	}
	return willowmap.MapConfig{
		Width:      c.Width,
		Height:     c.Height,
		Center:     s2.LatLngFromDegrees(c.Map.Center[0], c.Map.Center[1]),
		Zoom:       c.Map.Zoom,
		MinZoom:    c.Map.MinZoom,
		MaxZoom:    c.Map.MaxZoom,
		Background: willowmap.Color{R: 0.09, G: 0.11, B: 0.15, A: 1},
		Graticule:  graticule,
	}
}

// IconOptions converts the icon settings.
func (c *Config) IconOptions() []willowmap.IconCacheOption {
	var opts []willowmap.IconCacheOption
	if c.Icons.URLTemplate != "" {
		opts = append(opts, willowmap.WithURLTemplate(c.Icons.URLTemplate))
	}
	if len(c.Icons.Colors) > 0 {
		opts = append(opts, willowmap.WithIconColors(c.Icons.Colors...))
	}
	return opts
}

// LoadMarkers returns the configured markers followed by the GeoJSON ones.
func (c *Config) LoadMarkers() ([]willowmap.Marker, error) {
	markers := make([]willowmap.Marker, 0, len(c.Markers))
	for _, m := range c.Markers {
		markers = append(markers, willowmap.Marker{
			ID:        m.ID,
			Position:  s2.LatLngFromDegrees(m.Lat, m.Lng),
			IconColor: m.Color,
			Popup:     m.Popup,
			Tooltip:   m.Tooltip,
			PopupOpen: m.PopupOpen,
		})
	}
	if c.GeoJSONInline != nil {
		markers = append(markers, c.GeoJSONInline.Markers()...)
	}
	if c.GeoJSON != "" {
		path := c.GeoJSON
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		fromFile, err := willowmap.MarkersFromGeoJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		markers = append(markers, fromFile...)
	}
	return markers, nil
}
