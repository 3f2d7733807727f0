package willowmap

import (
	"encoding/json"
	"fmt"

	"github.com/golang/geo/s2"
)

// GeoJSONFeatureCollection is a GeoJSON document of Point features.
type GeoJSONFeatureCollection struct {
	Type     string           `json:"type" yaml:"type"`
	Features []GeoJSONFeature `json:"features" yaml:"features"`
}

// GeoJSONFeature is a single feature. Marker fields are read from Properties:
// id, color, popup, tooltip (or name) and popupOpen.
type GeoJSONFeature struct {
	ID         any             `json:"id,omitempty" yaml:"id,omitempty"`
	Type       string          `json:"type" yaml:"type"`
	Properties map[string]any  `json:"properties" yaml:"properties"`
	Geometry   GeoJSONGeometry `json:"geometry" yaml:"geometry"`
}

// GeoJSONGeometry holds point coordinates as [lon, lat].
type GeoJSONGeometry struct {
	Type        string    `json:"type" yaml:"type"`
	Coordinates []float64 `json:"coordinates" yaml:"coordinates"`
}

// MarkersFromGeoJSON decodes a FeatureCollection and converts its Point
// features. Other geometries are skipped.
func MarkersFromGeoJSON(data []byte) ([]Marker, error) {
	var fc GeoJSONFeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("willowmap: decode geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("willowmap: decode geojson: unexpected type %q", fc.Type)
	}
	return fc.Markers(), nil
}

// Markers converts the collection's Point features, in order.
func (fc GeoJSONFeatureCollection) Markers() []Marker {
	markers := make([]Marker, 0, len(fc.Features))
	for i, f := range fc.Features {
		mk, ok := f.Marker()
		if !ok {
			continue
		}
		if mk.ID == "" {
			mk.ID = fmt.Sprintf("feature-%d", i)
		}
		markers = append(markers, mk)
	}
	return markers
}

// Marker converts a Point feature. It reports false for other geometries.
func (f GeoJSONFeature) Marker() (Marker, bool) {
	if f.Geometry.Type != "Point" || len(f.Geometry.Coordinates) < 2 {
		return Marker{}, false
	}
	lon, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
	mk := Marker{
		ID:        propString(f.Properties, "id"),
		Position:  s2.LatLngFromDegrees(lat, lon),
		IconColor: propString(f.Properties, "color"),
		Popup:     propString(f.Properties, "popup"),
		Tooltip:   propString(f.Properties, "tooltip"),
	}
	if mk.ID == "" && f.ID != nil {
		mk.ID = fmt.Sprint(f.ID)
	}
	if mk.Tooltip == "" {
		mk.Tooltip = propString(f.Properties, "name")
	}
	if v, ok := f.Properties["popupOpen"].(bool); ok {
		mk.PopupOpen = v
	}
	return mk, true
}

func propString(props map[string]any, key string) string {
	switch v := props[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
