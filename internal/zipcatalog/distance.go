package zipcatalog

import (
	"math"
	"sort"
)

const (
	earthRadiusMiles  = 3958.8
	milesPerDegreeLat = 69.0
)

// DistanceMiles returns the great-circle distance between two points using
// the haversine formula.
func DistanceMiles(lat1, lng1, lat2, lng2 float64) float64 {
	const rad = math.Pi / 180

	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(a))
}

func sortByDistance(zips []ZipInfo, lat, lng float64) {
	sort.Slice(zips, func(i, j int) bool {
		return DistanceMiles(lat, lng, zips[i].Lat, zips[i].Lng) <
			DistanceMiles(lat, lng, zips[j].Lat, zips[j].Lng)
	})
}
