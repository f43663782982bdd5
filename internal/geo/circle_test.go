package geo

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCircles_RingShape(t *testing.T) {
	center := GeoPoint{Lat: 32.9978, Lng: -96.7733}
	circles := BuildCircles(center, []float64{1, 3, 5}, map[string]int64{
		"1_mile": 12000,
		"3_mile": 98000,
	})
	require.Len(t, circles, 3)

	for _, c := range circles {
		require.Len(t, c.Ring, 65)
		assert.Equal(t, c.Ring[0], c.Ring[64], "ring must be closed")
		// Vertex 16 sits at 90 degrees: due north by radius/69 degrees.
		assert.InDelta(t, center.Lat+c.RadiusMiles/69.0, c.Ring[16].Lat, 1e-9)
		assert.InDelta(t, center.Lng, c.Ring[16].Lng, 1e-9)
		// Vertex 0 sits due east, scaled by cos(latitude).
		wantLng := center.Lng + c.RadiusMiles/(69.0*math.Cos(center.Lat*math.Pi/180))
		assert.InDelta(t, wantLng, c.Ring[0].Lng, 1e-9)
	}

	assert.Equal(t, int64(12000), circles[0].Population)
	assert.Equal(t, int64(98000), circles[1].Population)
	assert.Zero(t, circles[2].Population)
}

func TestBuildCircles_Colors(t *testing.T) {
	circles := BuildCircles(GeoPoint{Lat: 40, Lng: -75}, []float64{1, 3, 5, 10}, nil)
	require.Len(t, circles, 4)
	assert.Equal(t, "#FF6B6B", circles[0].Color)
	assert.Equal(t, "#4ECDC4", circles[1].Color)
	assert.Equal(t, "#45B7D1", circles[2].Color)
	assert.Equal(t, NeutralColor, circles[3].Color)
}

func TestMapCircle_MarshalJSON(t *testing.T) {
	circles := BuildCircles(GeoPoint{Lat: 40, Lng: -75}, []float64{3}, map[string]int64{"3_mile": 1234567})
	data, err := json.Marshal(circles[0])
	require.NoError(t, err)

	var out struct {
		Type     string `json:"type"`
		Geometry struct {
			Type        string         `json:"type"`
			Coordinates [][][2]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, "Feature", out.Type)
	assert.Equal(t, "Polygon", out.Geometry.Type)
	require.Len(t, out.Geometry.Coordinates, 1)
	assert.Len(t, out.Geometry.Coordinates[0], 65)
	assert.Equal(t, "1,234,567", out.Properties["population_formatted"])
	assert.Equal(t, "#4ECDC4", out.Properties["color"])
	assert.InDelta(t, 3.0, out.Properties["radius_miles"], 1e-9)
}

func TestFeatureCollection(t *testing.T) {
	circles := BuildCircles(GeoPoint{Lat: 40, Lng: -75}, []float64{1, 3}, nil)
	data, err := json.Marshal(FeatureCollection(circles))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"FeatureCollection"`)
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "0", FormatCount(0))
	assert.Equal(t, "999", FormatCount(999))
	assert.Equal(t, "12,345", FormatCount(12345))
}
