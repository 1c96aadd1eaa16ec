package timeclock

import "math"

const earthRadiusMeters = 6371000.0

// Geofence is a circular boundary around a partner site.
type Geofence struct {
	Lat     float64
	Lng     float64
	RadiusM float64
}

// Contains reports whether the point lies within the fence radius.
func (g Geofence) Contains(lat, lng float64) bool {
	return DistanceMeters(g.Lat, g.Lng, lat, lng) <= g.RadiusM
}

// DistanceMeters is the great-circle distance between two coordinates.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
