// Package tilemath implements slippy-map tile arithmetic in the Web
// Mercator projection: converting coordinates to tile indices, tile indices
// back to bounding boxes, and enumerating the tiles covering an area.
//
// All functions are pure; nothing here touches the network or the disk.
package tilemath

import (
	"errors"
	"math"
)

// MaxLatitude is the Web Mercator latitude limit. Latitudes beyond it are
// clamped, matching what every tile server renders.
const MaxLatitude = 85.0511

// ErrNoValidCoordinates is returned when an area calculation receives no
// usable points.
var ErrNoValidCoordinates = errors.New("no valid coordinates")

// Tile identifies one map tile by its x/y index at a zoom level.
type Tile struct {
	X, Y, Zoom int
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat, Lng float64
}

// Valid reports whether the coordinate is finite and within range.
func (p LatLng) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Bounds is a geographic bounding box.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// LatLngToTile returns the tile containing the coordinate at the given zoom.
// Latitude is clamped to ±MaxLatitude and the indices to [0, 2^zoom−1], so
// every input maps to a real tile.
func LatLngToTile(lat, lng float64, zoom int) Tile {
	lat = math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
	n := float64(int(1) << uint(zoom))

	x := int(math.Floor((lng + 180) / 360 * n))
	latRad := lat * math.Pi / 180
	y := int(math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n))

	max := int(n) - 1
	if x < 0 {
		x = 0
	} else if x > max {
		x = max
	}
	if y < 0 {
		y = 0
	} else if y > max {
		y = max
	}
	return Tile{X: x, Y: y, Zoom: zoom}
}

// TileToBounds returns the geographic bounding box a tile covers.
func TileToBounds(t Tile) Bounds {
	n := float64(int(1) << uint(t.Zoom))
	minLng := float64(t.X)/n*360 - 180
	maxLng := float64(t.X+1)/n*360 - 180
	maxLat := tileLat(float64(t.Y), n)
	minLat := tileLat(float64(t.Y+1), n)
	return Bounds{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}
}

func tileLat(y, n float64) float64 {
	rad := math.Atan(math.Sinh(math.Pi * (1 - 2*y/n)))
	return rad * 180 / math.Pi
}

// CalculateBufferedBounds returns the bounding box of the valid points,
// expanded by bufferKm in every direction. The longitude expansion is
// corrected for the latitude of the box so the buffer stays roughly
// bufferKm wide on the ground.
func CalculateBufferedBounds(points []LatLng, bufferKm float64) (Bounds, error) {
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLng, maxLng := math.Inf(1), math.Inf(-1)
	valid := 0
	for _, p := range points {
		if !p.Valid() {
			continue
		}
		valid++
		minLat = math.Min(minLat, p.Lat)
		maxLat = math.Max(maxLat, p.Lat)
		minLng = math.Min(minLng, p.Lng)
		maxLng = math.Max(maxLng, p.Lng)
	}
	if valid == 0 {
		return Bounds{}, ErrNoValidCoordinates
	}

	// one degree of latitude is ~111 km everywhere; a degree of longitude
	// shrinks with cos(latitude)
	latDelta := bufferKm / 111.0
	meanLat := (minLat + maxLat) / 2 * math.Pi / 180
	cos := math.Cos(meanLat)
	if cos < 0.01 {
		cos = 0.01
	}
	lngDelta := bufferKm / (111.0 * cos)

	return Bounds{
		MinLat: math.Max(-90, minLat-latDelta),
		MaxLat: math.Min(90, maxLat+latDelta),
		MinLng: math.Max(-180, minLng-lngDelta),
		MaxLng: math.Min(180, maxLng+lngDelta),
	}, nil
}

// TilesForBounds enumerates every tile covering the bounds at each zoom in
// [minZoom, maxZoom], both inclusive.
func TilesForBounds(b Bounds, minZoom, maxZoom int) []Tile {
	var tiles []Tile
	for z := minZoom; z <= maxZoom; z++ {
		// north-west corner has the smallest indices
		tl := LatLngToTile(b.MaxLat, b.MinLng, z)
		br := LatLngToTile(b.MinLat, b.MaxLng, z)
		for x := tl.X; x <= br.X; x++ {
			for y := tl.Y; y <= br.Y; y++ {
				tiles = append(tiles, Tile{X: x, Y: y, Zoom: z})
			}
		}
	}
	return tiles
}

// EstimateDownloadSize predicts the byte cost of fetching tileCount tiles.
func EstimateDownloadSize(tileCount int, averageTileSize int64) int64 {
	return int64(tileCount) * averageTileSize
}
