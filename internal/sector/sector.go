// Package sector partitions 3D space into fixed-size cubes for coarse
// geographic indexing. The hasher is pure and deterministic; it holds no
// state beyond its tuning.
package sector

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// Hasher maps galactic coordinates (light-years) to sector identifiers.
type Hasher struct {
	grid        float64
	digestBytes int
}

// New creates a hasher for cubes of side grid light-years, producing ids of
// digestBytes bytes (twice that in hex characters). Changing either value
// invalidates every stored sector id.
func New(grid float64, digestBytes int) *Hasher {
	return &Hasher{grid: grid, digestBytes: digestBytes}
}

// Grid returns the cube side in light-years
func (h *Hasher) Grid() float64 {
	return h.grid
}

// SectorID returns the sector id for a point
func (h *Hasher) SectorID(x, y, z float64) string {
	return h.cellID(h.cell(x), h.cell(y), h.cell(z))
}

// NearbySectors returns the ids of every sector intersecting the bounding
// box of a sphere of the given radius around (x, y, z). The box over-includes
// corners, so there are no false negatives for points within the radius.
func (h *Hasher) NearbySectors(x, y, z, radius float64) []string {
	if radius < 0 {
		radius = 0
	}

	minX, maxX := h.cellFloor(x-radius), h.cellCeil(x+radius)
	minY, maxY := h.cellFloor(y-radius), h.cellCeil(y+radius)
	minZ, maxZ := h.cellFloor(z-radius), h.cellCeil(z+radius)

	sectors := make([]string, 0, (maxX-minX+1)*(maxY-minY+1)*(maxZ-minZ+1))
	for cx := minX; cx <= maxX; cx++ {
		for cy := minY; cy <= maxY; cy++ {
			for cz := minZ; cz <= maxZ; cz++ {
				sectors = append(sectors, h.cellID(cx, cy, cz))
			}
		}
	}
	return sectors
}

func (h *Hasher) cell(c float64) int64 {
	return int64(math.Floor(c / h.grid))
}

func (h *Hasher) cellFloor(c float64) int64 {
	return int64(math.Floor(c / h.grid))
}

func (h *Hasher) cellCeil(c float64) int64 {
	return int64(math.Ceil(c / h.grid))
}

func (h *Hasher) cellID(cx, cy, cz int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%d:%d", cx, cy, cz)))
	return hex.EncodeToString(sum[:h.digestBytes])
}

// ContentID returns a fixed-length content hash over the given parts joined
// with "|". Used as the locations primary key.
func ContentID(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:8])
}
