package main

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testField(name string, lat, lon float64) FieldLocation {
	return FieldLocation{FieldID: uuid.New(), Name: name, Latitude: lat, Longitude: lon}
}

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		expectedKm             float64
		delta                  float64
	}{
		{"same point", 50.0, -100.0, 50.0, -100.0, 0.0, 0.0001},
		{"one hundredth degree of latitude", 50.0, -100.0, 50.01, -100.0, 1.112, 0.01},
		{"Berlin to Paris", 52.5200, 13.4050, 48.8566, 2.3522, 877.5, 5.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := haversineKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.expectedKm, got, tt.delta)
		})
	}
}

func TestClusterLocationsGroupsNearbyFields(t *testing.T) {
	north1 := testField("north-1", 50.000, -100.000)
	north2 := testField("north-2", 50.005, -100.000)
	north3 := testField("north-3", 50.000, -100.007)
	south1 := testField("south-1", 51.000, -100.000)
	south2 := testField("south-2", 51.005, -100.000)

	clusters := clusterLocations([]FieldLocation{north1, north2, north3, south1, south2}, 2.0)

	require.Len(t, clusters, 2)
	assert.Equal(t, north1.FieldID, clusters[0].Representative.FieldID)
	assert.Len(t, clusters[0].Members, 3)
	assert.Equal(t, south1.FieldID, clusters[1].Representative.FieldID)
	assert.Len(t, clusters[1].Members, 2)
}

func TestClusterLocationsEveryFieldInExactlyOneCluster(t *testing.T) {
	fields := []FieldLocation{
		testField("a", 50.0, -100.0),
		testField("b", 50.5, -100.5),
		testField("c", 51.0, -101.0),
		testField("d", 50.001, -100.001),
	}

	clusters := clusterLocations(fields, 5.0)

	seen := make(map[uuid.UUID]int)
	for _, cluster := range clusters {
		for _, member := range cluster.Members {
			seen[member.FieldID]++
		}
	}
	require.Len(t, seen, len(fields))
	for id, count := range seen {
		assert.Equal(t, 1, count, "field %s assigned to %d clusters", id, count)
	}
}

func TestClusterLocationsDeterministicForIdenticalInput(t *testing.T) {
	fields := []FieldLocation{
		testField("a", 50.0, -100.0),
		testField("b", 50.05, -100.0),
		testField("c", 52.0, -100.0),
	}

	first := clusterLocations(fields, 10.0)
	second := clusterLocations(fields, 10.0)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Representative.FieldID, second[i].Representative.FieldID)
		require.Equal(t, len(first[i].Members), len(second[i].Members))
		for j := range first[i].Members {
			assert.Equal(t, first[i].Members[j].FieldID, second[i].Members[j].FieldID)
		}
	}
}

func TestClusterLocationsSingleClusterWithinRadius(t *testing.T) {
	fields := []FieldLocation{
		testField("a", 50.0, -100.0),
		testField("b", 50.01, -100.01),
		testField("c", 50.02, -100.02),
	}

	clusters := clusterLocations(fields, 50.0)

	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Members, 3)
}

func TestClusterLocationsFieldOutsideRadiusStartsNewCluster(t *testing.T) {
	near := testField("near", 50.0, -100.0)
	far := testField("far", 50.0, -99.0) // roughly 71 km east

	clusters := clusterLocations([]FieldLocation{near, far}, 10.0)

	require.Len(t, clusters, 2)
	assert.Len(t, clusters[0].Members, 1)
	assert.Len(t, clusters[1].Members, 1)
}

func TestClusterLocationsEmptyInput(t *testing.T) {
	clusters := clusterLocations(nil, 10.0)
	assert.Empty(t, clusters)
}
