package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// DefaultOrigin is substituted when the client cannot report its position
// (permission denied, timeout, or no geolocation support). San José, Costa Rica.
var DefaultOrigin = Point{Lat: 9.9281, Lng: -84.0907}

// Point represents a geographic coordinate with latitude and longitude.
// Callers standardize on (lat, lng) ordering throughout.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both coordinates are finite and within range.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// FromNullable builds a point from optional coordinates. The second return
// value is false when either coordinate is missing or not a usable number.
func FromNullable(lat, lng *float64) (Point, bool) {
	if lat == nil || lng == nil {
		return Point{}, false
	}
	p := Point{Lat: *lat, Lng: *lng}
	if !p.Valid() {
		return Point{}, false
	}
	return p, true
}

// ResolveOrigin returns the client-reported position when usable, otherwise fallback.
func ResolveOrigin(reported *Point, fallback Point) Point {
	if reported != nil && reported.Valid() {
		return *reported
	}
	return fallback
}

// HaversineKm returns the great-circle distance between a and b in kilometers.
func HaversineKm(a, b Point) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)

	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLng/2), 2)
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
