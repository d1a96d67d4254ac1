// Starting-position placement (generation pass 4) and procedural city names.
package world

import (
	"math"
	"math/rand"
	"sort"
)

// MinStartSeparation returns the minimum pairwise distance between starting
// positions: a quarter of the smaller map dimension, never below 2.
func MinStartSeparation(width, height int) int {
	d := min(width, height) / 4
	if d < 2 {
		d = 2
	}
	return d
}

// startScore evaluates how good a tile is as a starting position.
// Prefers: fertile land, food nearby, fresh terrain variety.
func startScore(g *Grid, t *Tile) float64 {
	if !t.Terrain.Passable() {
		return 0
	}

	score := 0.0
	switch t.Terrain {
	case TerrainGrassland:
		score += 3.0
	case TerrainPlains:
		score += 3.0
	case TerrainCoast:
		score += 2.5
	case TerrainHills:
		score += 2.0
	case TerrainDesert, TerrainTundra:
		score += 0.3
	}

	// Yield of the surrounding ring.
	terrainTypes := make(map[Terrain]bool)
	for _, c := range g.TilesInRange(t.Coord, 2) {
		nt := g.Tile(c)
		y := nt.Yield()
		score += float64(y.Food)*0.3 + float64(y.Production)*0.2
		if nt.Terrain.Passable() {
			terrainTypes[nt.Terrain] = true
		}
	}
	score += float64(len(terrainTypes)) * 0.3

	return score
}

// PlaceStarts chooses n well-separated land tiles, best first. Separation starts at
// MinStartSeparation and relaxes one step at a time only if n tiles cannot be found.
// Every chosen start is guaranteed a basic food resource within two tiles.
func PlaceStarts(g *Grid, n int) []HexCoord {
	type scored struct {
		coord HexCoord
		score float64
	}
	var candidates []scored
	for i := range g.tiles {
		t := &g.tiles[i]
		if s := startScore(g, t); s > 0 {
			candidates = append(candidates, scored{t.Coord, s})
		}
	}

	// Sort by score descending; ties by row-major position keep it deterministic.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return g.index(candidates[i].coord) < g.index(candidates[j].coord)
	})

	var starts []HexCoord
	for sep := MinStartSeparation(g.Width, g.Height); sep >= 1; sep-- {
		starts = starts[:0]
		for _, c := range candidates {
			if len(starts) >= n {
				break
			}
			if tooClose(c.coord, starts, sep) {
				continue
			}
			starts = append(starts, c.coord)
		}
		if len(starts) >= n {
			break
		}
	}

	for _, s := range starts {
		ensureFood(g, s)
	}
	return starts
}

func tooClose(coord HexCoord, existing []HexCoord, minDist int) bool {
	for _, s := range existing {
		if Distance(coord, s) < minDist {
			return true
		}
	}
	return false
}

// ensureFood guarantees a food resource within two tiles of a start. If none is
// present, wheat goes on the best nearby farmable tile; failing that, the closest
// passable tile becomes plains with wheat.
func ensureFood(g *Grid, start HexCoord) {
	nearby := g.TilesInRange(start, 2)
	for _, c := range nearby {
		if g.Tile(c).Resource.IsFood() {
			return
		}
	}

	var fallback *Tile
	for _, c := range nearby {
		if c == start {
			continue
		}
		t := g.Tile(c)
		if t.Resource != ResourceNone || !t.Terrain.Passable() {
			continue
		}
		switch t.Terrain {
		case TerrainGrassland, TerrainPlains:
			t.Resource = ResourceWheat
			return
		case TerrainCoast:
			t.Resource = ResourceFish
			return
		}
		if fallback == nil || Distance(start, c) < Distance(start, fallback.Coord) {
			fallback = t
		}
	}
	if fallback == nil {
		// Everything nearby already carries a resource or is impassable; use the start itself.
		fallback = g.Tile(start)
	}
	fallback.Terrain = TerrainPlains
	fallback.Features = 0
	fallback.Resource = ResourceWheat
}

var namePrefixes = []string{
	"Iron", "Green", "Ash", "Stone", "Mill", "Cross", "Black",
	"Silver", "Red", "White", "Dark", "Bright", "High", "Low",
	"Old", "New", "Far", "Deep", "Long", "Broad", "Gold", "Frost",
	"Storm", "Thorn", "Elm", "Oak", "Pine", "Copper", "River",
}

var nameSuffixes = []string{
	"haven", "ford", "hollow", "wick", "bridge", "gate", "keep",
	"stead", "wood", "field", "dale", "crest", "vale", "port",
	"town", "bury", "marsh", "well", "brook", "cliff", "moor",
	"ridge", "watch", "fall", "rest", "point", "reach", "helm",
}

// CityNames produces count distinct procedural names by combining syllables.
func CityNames(seed int64, count int) []string {
	rng := rand.New(rand.NewSource(seed))
	maxNames := len(namePrefixes) * len(nameSuffixes)
	if count > maxNames {
		count = maxNames
	}

	used := make(map[string]bool)
	names := make([]string, 0, count)
	for len(names) < count {
		name := namePrefixes[rng.Intn(len(namePrefixes))] + nameSuffixes[rng.Intn(len(nameSuffixes))]
		if !used[name] {
			used[name] = true
			names = append(names, name)
		}
	}
	return names
}

// StartQuality returns the log-scaled score of a start, used by the genmap report.
func StartQuality(g *Grid, c HexCoord) float64 {
	t := g.Tile(c)
	if t == nil {
		return 0
	}
	return math.Log1p(startScore(g, t))
}
