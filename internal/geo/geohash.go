// Package geo provides coordinate types and distance helpers for place discovery.
package geo

import "strings"

// MarkerPrecision is the geohash precision used for map marker cells.
// Six characters is roughly a 1.2 km x 0.6 km cell, coarse enough to group
// nearby places on the map view.
const MarkerPrecision = 6

// base32 is the geohash base32 alphabet.
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// Encode encodes latitude and longitude into a geohash string with the specified precision.
// A precision below 1 falls back to MarkerPrecision.
func Encode(lat, lng float64, precision int) string {
	if precision < 1 {
		precision = MarkerPrecision
	}

	latRange := [2]float64{-90.0, 90.0}
	lngRange := [2]float64{-180.0, 180.0}

	var hash strings.Builder
	hash.Grow(precision)

	bits := 0
	var ch uint

	even := true
	for hash.Len() < precision {
		if even {
			mid := (lngRange[0] + lngRange[1]) / 2
			if lng > mid {
				ch |= 1 << (4 - bits)
				lngRange[0] = mid
			} else {
				lngRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if lat > mid {
				ch |= 1 << (4 - bits)
				latRange[0] = mid
			} else {
				latRange[1] = mid
			}
		}

		even = !even
		bits++

		if bits == 5 {
			hash.WriteByte(base32[ch])
			bits = 0
			ch = 0
		}
	}

	return hash.String()
}

// Cell returns the map marker cell for a point.
func (p Point) Cell() string {
	return Encode(p.Lat, p.Lng, MarkerPrecision)
}
