package tileindex

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gogpu/ggtile"
)

// DefaultTileSize is the edge length of a tile in document units.
const DefaultTileSize = 256

// ErrInvalidKey is returned by ParseKey for malformed keys.
var ErrInvalidKey = errors.New("tileindex: invalid tile key")

// Coord is an integer tile address.
type Coord struct {
	X, Y int
}

// Key returns the canonical "x,y" string form of the coordinate.
func (c Coord) Key() string {
	return strconv.Itoa(c.X) + "," + strconv.Itoa(c.Y)
}

// String implements fmt.Stringer.
func (c Coord) String() string {
	return c.Key()
}

// Rect returns the document-space rectangle covered by the tile.
func (c Coord) Rect(tileSize float64) ggtile.Rect {
	x := float64(c.X) * tileSize
	y := float64(c.Y) * tileSize
	return ggtile.Rect{MinX: x, MinY: y, MaxX: x + tileSize, MaxY: y + tileSize}
}

// ParseKey converts an "x,y" key back into a Coord.
func ParseKey(key string) (Coord, error) {
	xs, ys, ok := strings.Cut(key, ",")
	if !ok {
		return Coord{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return Coord{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return Coord{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return Coord{X: x, Y: y}, nil
}

// VisibleTiles returns every tile overlapping r, in row-major order.
// Returns nil if r is degenerate (max <= min on either axis) or tileSize
// is not positive.
func VisibleTiles(r ggtile.Rect, tileSize float64) []Coord {
	if r.MaxX <= r.MinX || r.MaxY <= r.MinY || tileSize <= 0 {
		return nil
	}

	minX := int(math.Floor(r.MinX / tileSize))
	minY := int(math.Floor(r.MinY / tileSize))
	maxX := lastIndex(r.MaxX, tileSize)
	maxY := lastIndex(r.MaxY, tileSize)

	coords := make([]Coord, 0, (maxX-minX+1)*(maxY-minY+1))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			coords = append(coords, Coord{X: x, Y: y})
		}
	}
	return coords
}

// Keys returns the keys of every tile overlapping r.
func Keys(r ggtile.Rect, tileSize float64) []string {
	coords := VisibleTiles(r, tileSize)
	keys := make([]string, len(coords))
	for i, c := range coords {
		keys[i] = c.Key()
	}
	return keys
}

// lastIndex returns the index of the tile containing a maximum coordinate.
// A coordinate exactly on a boundary belongs to the previous tile.
func lastIndex(maxCoord, tileSize float64) int {
	q := maxCoord / tileSize
	f := math.Floor(q)
	if q == f {
		f--
	}
	return int(f)
}
