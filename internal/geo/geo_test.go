package geo_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/fixlite/internal/geo"
)

func TestDistanceZeroForSamePoint(t *testing.T) {
	p := geo.Point{Lat: 48.8566, Lng: 2.3522}
	require.Equal(t, 0.0, geo.DistanceKM(p, p))
}

func TestDistanceParisToLyon(t *testing.T) {
	paris := geo.Point{Lat: 48.8566, Lng: 2.3522}
	lyon := geo.Point{Lat: 45.7640, Lng: 4.8357}

	d := geo.DistanceKM(paris, lyon)
	// straight-line distance is roughly 392 km
	require.InDelta(t, 392, d, 5)
	require.InDelta(t, d, geo.DistanceKM(lyon, paris), 1e-9)
}

func TestDistanceOneDegreeLatitude(t *testing.T) {
	a := geo.Point{Lat: 0, Lng: 0}
	b := geo.Point{Lat: 1, Lng: 0}
	// one degree of latitude on a 6371 km sphere
	require.InDelta(t, 111.19, geo.DistanceKM(a, b), 0.05)
}

func TestPointValid(t *testing.T) {
	require.True(t, geo.Point{Lat: 0, Lng: 0}.Valid())
	require.True(t, geo.Point{Lat: -90, Lng: 180}.Valid())
	require.False(t, geo.Point{Lat: 90.0001, Lng: 0}.Valid())
	require.False(t, geo.Point{Lat: 0, Lng: -180.5}.Valid())
	require.False(t, geo.Point{Lat: math.NaN(), Lng: 0}.Valid())
	require.False(t, geo.Point{Lat: 0, Lng: math.Inf(1)}.Valid())
}
