package routing

import (
	"math"

	"github.com/fire-team/ticket-router/internal/models"
)

const earthRadiusKm = 6371.0

func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLon := degreesToRadians(lon2 - lon1)

	lat1R := degreesToRadians(lat1)
	lat2R := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1R)*math.Cos(lat2R)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func degreesToRadians(d float64) float64 {
	return d * math.Pi / 180
}

// nearestOffice returns the index of the office closest to (lat, lon), or -1
// when no office carries coordinates.
func nearestOffice(lat, lon float64, offices []models.Office) (int, float64) {
	best := -1
	bestDist := 0.0
	for i, o := range offices {
		if !o.HasCoordinates() {
			continue
		}
		d := HaversineKm(lat, lon, *o.Latitude, *o.Longitude)
		if best == -1 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, bestDist
}
