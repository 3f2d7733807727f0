package willowmap

import (
	"math"

	"github.com/golang/geo/s2"
)

// MaxLatitude is the latitude at which Web Mercator becomes square.
const MaxLatitude = 85.0511287798

// EarthRadiusMeters is the mean earth radius used for distances.
const EarthRadiusMeters = 6371008.8

// CRS converts between geographic and pixel coordinates at a zoom level.
type CRS interface {
	// Project returns the pixel position of ll at zoom.
	Project(ll s2.LatLng, zoom float64) Vec2
	// Unproject is the inverse of Project.
	Unproject(p Vec2, zoom float64) s2.LatLng
	// Scale returns the world size in pixels at zoom.
	Scale(zoom float64) float64
}

// WebMercator is the spherical Mercator projection used by slippy maps
// (EPSG:3857) with 256 px tiles.
var WebMercator CRS = webMercator{tileSize: 256}

type webMercator struct {
	tileSize float64
}

func (w webMercator) Scale(zoom float64) float64 {
	return w.tileSize * math.Exp2(zoom)
}

func (w webMercator) Project(ll s2.LatLng, zoom float64) Vec2 {
	lat := math.Max(-MaxLatitude, math.Min(MaxLatitude, ll.Lat.Degrees()))
	lng := ll.Lng.Degrees()
	scale := w.Scale(zoom)

	sin := math.Sin(lat * math.Pi / 180)
	return Vec2{
		X: (lng + 180) / 360 * scale,
		Y: (0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)) * scale,
	}
}

func (w webMercator) Unproject(p Vec2, zoom float64) s2.LatLng {
	scale := w.Scale(zoom)
	lng := p.X/scale*360 - 180
	n := math.Pi - 2*math.Pi*p.Y/scale
	lat := 180 / math.Pi * math.Atan(math.Sinh(n))
	return s2.LatLngFromDegrees(lat, lng)
}

// ZoomScale returns the scale factor between two zoom levels, 2^(to-from).
func ZoomScale(to, from float64) float64 {
	return math.Exp2(to - from)
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b s2.LatLng) float64 {
	return a.Distance(b).Radians() * EarthRadiusMeters
}
