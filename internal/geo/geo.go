// Package geo provides the great-circle distance calculation shared by
// the Filter stage's geographic-scope check and the Correlator's
// geographic-window match. No vector/geospatial library appears
// anywhere in the reference set, so this is a direct haversine
// implementation on stdlib math.
package geo

import "math"

const earthRadiusKM = 6371.0

// DistanceKM returns the great-circle distance in kilometers between two
// lat/lon points.
func DistanceKM(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}
