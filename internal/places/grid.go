// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package places

import (
	"math"
	"sync"

	"github.com/tomtom215/mealwise/internal/models"
)

// metersPerDegree is the approximate length of one degree of latitude.
const metersPerDegree = 111_000.0

// spatialGrid divides the map into square cells so a radius query only visits
// the cells around the query point instead of every record.
//
// Time Complexity:
//   - Insert: O(1)
//   - Query nearby: O(k) where k = records in the visited cells
//   - Remove: O(cell size)
type spatialGrid struct {
	mu       sync.RWMutex
	cells    map[cellKey][]*models.RestaurantRecord
	cellSize float64 // degrees
	byID     map[string]*models.RestaurantRecord
}

type cellKey struct {
	X, Y int
}

// newSpatialGrid creates a grid whose cells are roughly cellMeters wide.
func newSpatialGrid(cellMeters float64) *spatialGrid {
	if cellMeters <= 0 {
		cellMeters = 1000
	}
	return &spatialGrid{
		cells:    make(map[cellKey][]*models.RestaurantRecord),
		cellSize: cellMeters / metersPerDegree,
		byID:     make(map[string]*models.RestaurantRecord),
	}
}

func (g *spatialGrid) keyFor(c models.Coordinates) cellKey {
	lng := c.Longitude
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return cellKey{
		X: int(math.Floor(lng / g.cellSize)),
		Y: int(math.Floor(c.Latitude / g.cellSize)),
	}
}

// insert adds r, replacing any record with the same id.
func (g *spatialGrid) insert(r *models.RestaurantRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.byID[r.ID]; ok {
		g.removeFromCellLocked(existing)
	}
	key := g.keyFor(r.Location)
	g.cells[key] = append(g.cells[key], r)
	g.byID[r.ID] = r
}

func (g *spatialGrid) removeFromCellLocked(r *models.RestaurantRecord) {
	key := g.keyFor(r.Location)
	cell := g.cells[key]
	for i, e := range cell {
		if e.ID == r.ID {
			cell[i] = cell[len(cell)-1]
			cell = cell[:len(cell)-1]
			break
		}
	}
	if len(cell) == 0 {
		delete(g.cells, key)
		return
	}
	g.cells[key] = cell
}

func (g *spatialGrid) get(id string) (*models.RestaurantRecord, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.byID[id]
	return r, ok
}

// nearby returns the records within radiusMeters of center. Longitude cells
// narrow toward the poles, so the horizontal search span widens with latitude.
func (g *spatialGrid) nearby(center models.Coordinates, radiusMeters float64) []*models.RestaurantRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()

	radiusDeg := radiusMeters / metersPerDegree
	spanY := int(math.Ceil(radiusDeg/g.cellSize)) + 1
	cosLat := math.Max(math.Cos(center.Latitude*math.Pi/180), 0.01)
	spanX := int(math.Ceil(radiusDeg/cosLat/g.cellSize)) + 1
	origin := g.keyFor(center)

	var out []*models.RestaurantRecord
	for dx := -spanX; dx <= spanX; dx++ {
		for dy := -spanY; dy <= spanY; dy++ {
			for _, r := range g.cells[cellKey{X: origin.X + dx, Y: origin.Y + dy}] {
				if models.DistanceMeters(center, r.Location) <= radiusMeters {
					out = append(out, r)
				}
			}
		}
	}
	return out
}

func (g *spatialGrid) size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byID)
}
