package correlator

import "math"

// cellSizeKM is the spatial grid bucket size spec.md §4.5 names ("grid
// buckets of ~1 km") for candidate cluster lookup.
const cellSizeKM = 1.0

const kmPerDegreeLat = 111.0

type gridKey struct {
	lat, lon int
}

// spatialGrid indexes active cluster ids by a coarse lat/lon grid so
// Match only has to consider clusters near a report's location instead
// of scanning every active cluster.
type spatialGrid struct {
	buckets map[gridKey]map[string]struct{}
}

func newSpatialGrid() *spatialGrid {
	return &spatialGrid{buckets: make(map[gridKey]map[string]struct{})}
}

func (g *spatialGrid) keyFor(lat, lon float64) gridKey {
	latDeg := cellSizeKM / kmPerDegreeLat
	lonScale := math.Cos(lat * math.Pi / 180)
	if math.Abs(lonScale) < 0.01 {
		lonScale = 0.01
	}
	lonDeg := cellSizeKM / (kmPerDegreeLat * lonScale)
	return gridKey{
		lat: int(math.Floor(lat / latDeg)),
		lon: int(math.Floor(lon / lonDeg)),
	}
}

// Insert registers clusterID at (lat, lon).
func (g *spatialGrid) Insert(clusterID string, lat, lon float64) {
	k := g.keyFor(lat, lon)
	if g.buckets[k] == nil {
		g.buckets[k] = make(map[string]struct{})
	}
	g.buckets[k][clusterID] = struct{}{}
}

// Remove deregisters clusterID from (lat, lon).
func (g *spatialGrid) Remove(clusterID string, lat, lon float64) {
	k := g.keyFor(lat, lon)
	if b, ok := g.buckets[k]; ok {
		delete(b, clusterID)
		if len(b) == 0 {
			delete(g.buckets, k)
		}
	}
}

// Move relocates clusterID from its old bucket to its new one.
func (g *spatialGrid) Move(clusterID string, oldLat, oldLon, newLat, newLon float64) {
	g.Remove(clusterID, oldLat, oldLon)
	g.Insert(clusterID, newLat, newLon)
}

// Candidates returns every cluster id registered within radiusKM of
// (lat, lon), conservatively over-including neighboring buckets; the
// caller applies the exact distance check.
func (g *spatialGrid) Candidates(lat, lon, radiusKM float64) []string {
	reach := int(math.Ceil(radiusKM/cellSizeKM)) + 1
	center := g.keyFor(lat, lon)

	seen := make(map[string]struct{})
	var out []string
	for dLat := -reach; dLat <= reach; dLat++ {
		for dLon := -reach; dLon <= reach; dLon++ {
			k := gridKey{lat: center.lat + dLat, lon: center.lon + dLon}
			for id := range g.buckets[k] {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}
