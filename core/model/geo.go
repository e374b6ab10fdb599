package model

import "math"

const earthRadiusMetres = 6371000.0

// Point is a planar position in metres.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between two points in metres.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Centroid returns the mean of the given points. ok is false for an empty set.
func Centroid(pts []Point) (c Point, ok bool) {
	if len(pts) == 0 {
		return Point{}, false
	}
	for _, p := range pts {
		c.X += p.X
		c.Y += p.Y
	}
	n := float64(len(pts))
	return Point{X: c.X / n, Y: c.Y / n}, true
}

type latLon struct{ lat, lon float64 }

// project maps WGS84 coordinates onto a local equirectangular plane centred
// on the mean position. Terminal-sized extents keep the error far below a
// bay length.
func project(coords []latLon) []Point {
	if len(coords) == 0 {
		return nil
	}
	var lat0, lon0 float64
	for _, c := range coords {
		lat0 += c.lat
		lon0 += c.lon
	}
	lat0 /= float64(len(coords))
	lon0 /= float64(len(coords))
	cos0 := math.Cos(lat0 * math.Pi / 180)
	out := make([]Point, len(coords))
	for i, c := range coords {
		out[i] = Point{
			X: earthRadiusMetres * (c.lon - lon0) * math.Pi / 180 * cos0,
			Y: earthRadiusMetres * (c.lat - lat0) * math.Pi / 180,
		}
	}
	return out
}
