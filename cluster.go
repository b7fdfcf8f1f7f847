package main

import (
	"math"

	"github.com/google/uuid"
)

// This file implements the geospatial clustering step that collapses nearby
// fields into one forecast fetch. The algorithm is a greedy single pass:
// fields are visited in input order, the first unprocessed field becomes a
// cluster representative, and every later unprocessed field within the
// radius joins that cluster. The result is order-dependent and
// representative-biased; it is a cost-reduction heuristic, not an optimal
// geographic grouping.

const earthRadiusKm = 6371.0

// haversineKm returns the great-circle distance between two points in km.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// clusterLocations groups fields so that every member of a cluster lies
// within radiusKm of the cluster's representative. Every input field ends up
// in exactly one cluster, and identical input yields identical clusters.
func clusterLocations(locations []FieldLocation, radiusKm float64) []LocationCluster {
	clusters := make([]LocationCluster, 0, len(locations))
	processed := make([]bool, len(locations))

	for i, location := range locations {
		if processed[i] {
			continue
		}
		processed[i] = true

		cluster := LocationCluster{
			ClusterID:      uuid.New(),
			Representative: location,
			Members:        []FieldLocation{location},
		}

		for j := i + 1; j < len(locations); j++ {
			if processed[j] {
				continue
			}
			candidate := locations[j]
			distance := haversineKm(location.Latitude, location.Longitude, candidate.Latitude, candidate.Longitude)
			if distance <= radiusKm {
				cluster.Members = append(cluster.Members, candidate)
				processed[j] = true
			}
		}

		clusters = append(clusters, cluster)
	}

	return clusters
}
