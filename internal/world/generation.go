// World generation using layered simplex noise.
// Four fixed passes: base terrain, feature overlay, resource placement, starting positions.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Width           int
	Height          int
	Seed            int64   // Same seed, same map
	Players         int     // Number of starting positions to place
	SeaLevel        float64 // Elevation threshold for ocean (0.0–1.0)
	HillLevel       float64 // Elevation threshold for hills
	MountainLevel   float64 // Elevation threshold for mountains
	ResourceDensity float64 // Target fraction of land tiles carrying a resource
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig(width, height int, seed int64, players int) GenConfig {
	return GenConfig{
		Width:           width,
		Height:          height,
		Seed:            seed,
		Players:         players,
		SeaLevel:        0.30,
		HillLevel:       0.62,
		MountainLevel:   0.78,
		ResourceDensity: 0.12,
	}
}

// Generated is the output of the generation pipeline.
type Generated struct {
	Grid   *Grid
	Starts []HexCoord
}

// Generate runs the four-pass pipeline. Starting positions are only placed when
// cfg.Players > 0; fewer than requested are returned if the map cannot fit them.
func Generate(cfg GenConfig) Generated {
	g := NewGrid(cfg.Width, cfg.Height)

	elevNoise := opensimplex.NewNormalized(cfg.Seed)
	moistNoise := opensimplex.NewNormalized(cfg.Seed + 1)

	generateTerrain(g, cfg, elevNoise, moistNoise)
	overlayFeatures(g, rand.New(rand.NewSource(cfg.Seed+100)))
	placeResources(g, cfg, rand.New(rand.NewSource(cfg.Seed+200)))

	var starts []HexCoord
	if cfg.Players > 0 {
		starts = PlaceStarts(g, cfg.Players)
	}
	return Generated{Grid: g, Starts: starts}
}

// generateTerrain is pass 1: noise elevation with a falloff toward the map edges,
// then terrain derived from elevation, moisture, and latitude.
func generateTerrain(g *Grid, cfg GenConfig, elevNoise, moistNoise opensimplex.Noise) {
	cx := float64(cfg.Width-1)/2 + float64(cfg.Height-1)/4
	cy := float64(cfg.Height-1) * math.Sqrt(3.0) / 4.0
	halfW := math.Max(float64(cfg.Width)/2, 1)
	halfH := math.Max(float64(cfg.Height)*math.Sqrt(3.0)/4.0, 1)

	for i := range g.tiles {
		t := &g.tiles[i]
		q, r := t.Coord.Q, t.Coord.R

		// Hex axial → cartesian: x = q + r*0.5, y = r * sqrt(3)/2
		x := float64(q) + float64(r)*0.5
		y := float64(r) * math.Sqrt(3.0) / 2.0

		elev := octaveNoise(elevNoise, x, y, 4, 0.09, 0.5)
		moist := octaveNoise(moistNoise, x, y, 3, 0.07, 0.5)

		// Continental shaping: push the rim toward ocean.
		dx := (x - cx) / halfW
		dy := (y - cy) / halfH
		dist := math.Max(math.Abs(dx), math.Abs(dy))
		falloff := 1.0 - math.Pow(dist, 3.0)
		if falloff < 0 {
			falloff = 0
		}
		elev *= 0.4 + 0.6*falloff

		// Latitude: 0 at the equator row, 1 at the top and bottom rows.
		lat := 0.0
		if cfg.Height > 1 {
			lat = math.Abs(float64(r)-float64(cfg.Height-1)/2) / (float64(cfg.Height-1) / 2)
		}

		t.Elevation = elev
		t.Moisture = moist
		t.Terrain = deriveTerrain(elev, moist, lat, cfg)
	}

	markCoast(g)
}

// deriveTerrain determines terrain type from environmental parameters.
func deriveTerrain(elev, moist, lat float64, cfg GenConfig) Terrain {
	if elev < cfg.SeaLevel {
		return TerrainOcean
	}
	if elev > cfg.MountainLevel {
		return TerrainMountain
	}
	if elev > cfg.HillLevel {
		return TerrainHills
	}
	if lat > 0.85 {
		return TerrainTundra
	}
	if moist < 0.35 && lat < 0.5 {
		return TerrainDesert
	}
	if moist > 0.5 {
		return TerrainGrassland
	}
	return TerrainPlains
}

// markCoast converts low land next to ocean into coast.
func markCoast(g *Grid) {
	var toMark []int
	for i := range g.tiles {
		t := &g.tiles[i]
		if t.Terrain == TerrainOcean || t.Terrain == TerrainMountain || t.Terrain == TerrainHills {
			continue
		}
		for _, n := range g.Neighbors(t.Coord) {
			if g.Tile(n).Terrain == TerrainOcean {
				toMark = append(toMark, i)
				break
			}
		}
	}
	for _, i := range toMark {
		g.tiles[i].Terrain = TerrainCoast
	}
}

// featureFor rolls the pass 2 feature for one tile, conditioned on terrain.
// Moisture shifts forest/jungle/marsh odds.
func featureFor(t *Tile, rng *rand.Rand) FeatureSet {
	roll := rng.Float64()
	wet := t.Moisture > 0.55
	switch t.Terrain {
	case TerrainGrassland:
		switch {
		case wet && t.Elevation < 0.45 && roll < 0.10:
			return FeatureSet(FeatureMarsh)
		case wet && roll < 0.30:
			return FeatureSet(FeatureJungle)
		case roll < 0.45:
			return FeatureSet(FeatureForest)
		}
	case TerrainPlains:
		if roll < 0.20 {
			return FeatureSet(FeatureForest)
		}
	case TerrainHills:
		if roll < 0.20 {
			return FeatureSet(FeatureForest)
		}
	case TerrainTundra:
		if roll < 0.15 {
			return FeatureSet(FeatureForest)
		}
	case TerrainDesert:
		if roll < 0.06 {
			return FeatureSet(FeatureOasis)
		}
	case TerrainCoast:
		if wet && roll < 0.08 {
			return FeatureSet(FeatureMarsh)
		}
	}
	return 0
}

// overlayFeatures is pass 2. Ocean and mountain tiles never receive features.
func overlayFeatures(g *Grid, rng *rand.Rand) {
	for i := range g.tiles {
		t := &g.tiles[i]
		if !t.Terrain.Passable() {
			continue
		}
		t.Features = featureFor(t, rng)
	}
}

// suitableResources lists the resources allowed on a tile by terrain and features.
func suitableResources(t *Tile) []Resource {
	switch t.Terrain {
	case TerrainCoast:
		return []Resource{ResourceFish}
	case TerrainHills:
		return []Resource{ResourceIron, ResourceStone, ResourceGold}
	case TerrainGrassland:
		if t.Features.Has(FeatureJungle) {
			return []Resource{ResourceSpices}
		}
		return []Resource{ResourceWheat, ResourceCattle, ResourceHorses}
	case TerrainPlains:
		return []Resource{ResourceWheat, ResourceHorses, ResourceStone}
	case TerrainDesert:
		return []Resource{ResourceGold, ResourceStone}
	case TerrainTundra:
		return []Resource{ResourceStone}
	}
	return nil
}

// placeResources is pass 3: visit land tiles in a seeded order and drop a suitable
// resource until the density target is met or suitable tiles run out.
func placeResources(g *Grid, cfg GenConfig, rng *rand.Rand) {
	var land []int
	for i := range g.tiles {
		if g.tiles[i].Terrain.Passable() {
			land = append(land, i)
		}
	}
	target := int(math.Round(float64(len(land)) * cfg.ResourceDensity))
	if target == 0 {
		return
	}

	rng.Shuffle(len(land), func(i, j int) {
		land[i], land[j] = land[j], land[i]
	})

	placed := 0
	for _, i := range land {
		if placed >= target {
			break
		}
		t := &g.tiles[i]
		options := suitableResources(t)
		if len(options) == 0 {
			continue
		}
		t.Resource = options[rng.Intn(len(options))]
		placed++
	}
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
