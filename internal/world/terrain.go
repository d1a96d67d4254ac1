package world

import "encoding/json"

// Terrain types for hex tiles.
type Terrain uint8

const (
	TerrainOcean     Terrain = iota // Impassable for land units
	TerrainCoast                    // Shoreline land next to ocean; fishing
	TerrainGrassland                // Best food
	TerrainPlains                   // Food and production
	TerrainDesert                   // Harsh; oasis possible
	TerrainTundra                   // Cold; poor yields
	TerrainHills                    // Production, +25% defense, +1 move cost
	TerrainMountain                 // Impassable
)

var terrainNames = [...]string{
	TerrainOcean:     "ocean",
	TerrainCoast:     "coast",
	TerrainGrassland: "grassland",
	TerrainPlains:    "plains",
	TerrainDesert:    "desert",
	TerrainTundra:    "tundra",
	TerrainHills:     "hills",
	TerrainMountain:  "mountain",
}

func (t Terrain) String() string {
	if int(t) < len(terrainNames) {
		return terrainNames[t]
	}
	return "unknown"
}

// Passable reports whether land units may enter the terrain.
func (t Terrain) Passable() bool {
	return t != TerrainOcean && t != TerrainMountain
}

// Feature is a single terrain feature overlay.
type Feature uint8

const (
	FeatureForest Feature = 1 << iota
	FeatureJungle
	FeatureOasis
	FeatureMarsh
)

// FeatureSet is the set of features present on a tile.
type FeatureSet uint8

// Has reports whether f is in the set.
func (fs FeatureSet) Has(f Feature) bool { return fs&FeatureSet(f) != 0 }

// With returns the set with f added.
func (fs FeatureSet) With(f Feature) FeatureSet { return fs | FeatureSet(f) }

// Names lists the features in a stable order.
func (fs FeatureSet) Names() []string {
	var names []string
	for _, f := range []struct {
		f    Feature
		name string
	}{
		{FeatureForest, "forest"},
		{FeatureJungle, "jungle"},
		{FeatureOasis, "oasis"},
		{FeatureMarsh, "marsh"},
	} {
		if fs.Has(f.f) {
			names = append(names, f.name)
		}
	}
	return names
}

// Resource enumerates special resources placed on tiles.
type Resource uint8

const (
	ResourceNone Resource = iota
	ResourceWheat
	ResourceCattle
	ResourceFish
	ResourceIron
	ResourceHorses
	ResourceStone
	ResourceGold
	ResourceSpices
)

var resourceNames = [...]string{
	ResourceNone:   "",
	ResourceWheat:  "wheat",
	ResourceCattle: "cattle",
	ResourceFish:   "fish",
	ResourceIron:   "iron",
	ResourceHorses: "horses",
	ResourceStone:  "stone",
	ResourceGold:   "gold",
	ResourceSpices: "spices",
}

func (r Resource) String() string {
	if int(r) < len(resourceNames) {
		return resourceNames[r]
	}
	return "unknown"
}

// IsFood reports whether the resource counts as a basic food source for start balancing.
func (r Resource) IsFood() bool {
	return r == ResourceWheat || r == ResourceCattle || r == ResourceFish
}

// Improvement is a worker-built tile upgrade.
type Improvement uint8

const (
	ImprovementNone Improvement = iota
	ImprovementFarm
	ImprovementMine
	ImprovementPasture
	ImprovementLumberMill
	ImprovementQuarry
	ImprovementPlantation
	ImprovementFishery
)

var improvementNames = [...]string{
	ImprovementNone:       "",
	ImprovementFarm:       "farm",
	ImprovementMine:       "mine",
	ImprovementPasture:    "pasture",
	ImprovementLumberMill: "lumber_mill",
	ImprovementQuarry:     "quarry",
	ImprovementPlantation: "plantation",
	ImprovementFishery:    "fishery",
}

func (i Improvement) String() string {
	if int(i) < len(improvementNames) {
		return improvementNames[i]
	}
	return "unknown"
}

// ParseImprovement maps a wire name to an Improvement. Empty maps to ImprovementNone.
func ParseImprovement(name string) (Improvement, bool) {
	for i, n := range improvementNames {
		if n == name {
			return Improvement(i), true
		}
	}
	return ImprovementNone, false
}

func (i Improvement) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

func (i *Improvement) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	parsed, _ := ParseImprovement(name)
	*i = parsed
	return nil
}

// Visibility is a per-player knowledge level for one tile.
type Visibility uint8

const (
	VisibilityHidden Visibility = iota
	VisibilityDiscovered
	VisibilityVisible
)

func (v Visibility) String() string {
	switch v {
	case VisibilityDiscovered:
		return "discovered"
	case VisibilityVisible:
		return "visible"
	default:
		return "hidden"
	}
}

// Yield is a bundle of per-turn outputs produced by a tile or city.
type Yield struct {
	Food       int `json:"food"`
	Production int `json:"production"`
	Gold       int `json:"gold"`
	Science    int `json:"science"`
	Culture    int `json:"culture"`
	Faith      int `json:"faith"`
}

// Plus returns the component-wise sum.
func (y Yield) Plus(o Yield) Yield {
	return Yield{
		Food:       y.Food + o.Food,
		Production: y.Production + o.Production,
		Gold:       y.Gold + o.Gold,
		Science:    y.Science + o.Science,
		Culture:    y.Culture + o.Culture,
		Faith:      y.Faith + o.Faith,
	}
}

// Total sums every component; used for tile ranking.
func (y Yield) Total() int {
	return y.Food + y.Production + y.Gold + y.Science + y.Culture + y.Faith
}

// TerrainYield returns the base yield of a terrain type.
func TerrainYield(t Terrain) Yield {
	switch t {
	case TerrainCoast:
		return Yield{Food: 2, Gold: 1}
	case TerrainGrassland:
		return Yield{Food: 2}
	case TerrainPlains:
		return Yield{Food: 1, Production: 1}
	case TerrainDesert:
		return Yield{}
	case TerrainTundra:
		return Yield{Food: 1}
	case TerrainHills:
		return Yield{Production: 2}
	case TerrainOcean:
		return Yield{Food: 1}
	default:
		return Yield{}
	}
}

func featureYield(fs FeatureSet) Yield {
	var y Yield
	if fs.Has(FeatureForest) {
		y.Production++
	}
	if fs.Has(FeatureJungle) {
		y.Food++
	}
	if fs.Has(FeatureOasis) {
		y.Food += 3
		y.Gold++
	}
	if fs.Has(FeatureMarsh) {
		y.Food--
	}
	return y
}

// ResourceYield returns the flat yield bonus of a resource.
func ResourceYield(r Resource) Yield {
	switch r {
	case ResourceWheat:
		return Yield{Food: 1}
	case ResourceCattle:
		return Yield{Food: 1, Production: 1}
	case ResourceFish:
		return Yield{Food: 2}
	case ResourceIron:
		return Yield{Production: 2}
	case ResourceHorses:
		return Yield{Production: 1, Gold: 1}
	case ResourceStone:
		return Yield{Production: 1}
	case ResourceGold:
		return Yield{Gold: 3}
	case ResourceSpices:
		return Yield{Gold: 2, Culture: 1}
	default:
		return Yield{}
	}
}

// ImprovementYield returns the terrain-derived yield an improvement adds to a tile.
func ImprovementYield(imp Improvement, t Terrain) Yield {
	switch imp {
	case ImprovementFarm:
		if t == TerrainGrassland {
			return Yield{Food: 2}
		}
		return Yield{Food: 1}
	case ImprovementMine:
		if t == TerrainHills {
			return Yield{Production: 2}
		}
		return Yield{Production: 1}
	case ImprovementPasture:
		return Yield{Food: 1, Production: 1}
	case ImprovementLumberMill:
		return Yield{Production: 2}
	case ImprovementQuarry:
		return Yield{Production: 1, Gold: 1}
	case ImprovementPlantation:
		return Yield{Gold: 2}
	case ImprovementFishery:
		return Yield{Food: 1, Gold: 1}
	default:
		return Yield{}
	}
}

// ValidImprovements lists the improvements a worker may build on the tile, best first.
func ValidImprovements(t *Tile) []Improvement {
	if t == nil || !t.Terrain.Passable() {
		return nil
	}
	var out []Improvement
	switch t.Resource {
	case ResourceCattle, ResourceHorses:
		out = append(out, ImprovementPasture)
	case ResourceStone:
		out = append(out, ImprovementQuarry)
	case ResourceSpices:
		out = append(out, ImprovementPlantation)
	case ResourceFish:
		out = append(out, ImprovementFishery)
	case ResourceIron, ResourceGold:
		out = append(out, ImprovementMine)
	}
	if t.Features.Has(FeatureForest) {
		out = append(out, ImprovementLumberMill)
	}
	switch t.Terrain {
	case TerrainHills:
		out = appendUnique(out, ImprovementMine)
	case TerrainGrassland, TerrainPlains:
		out = append(out, ImprovementFarm)
	case TerrainDesert:
		if t.Features.Has(FeatureOasis) {
			out = append(out, ImprovementFarm)
		}
	case TerrainCoast:
		out = appendUnique(out, ImprovementFishery)
	case TerrainTundra:
		out = append(out, ImprovementFarm)
	}
	return out
}

func appendUnique(list []Improvement, imp Improvement) []Improvement {
	for _, i := range list {
		if i == imp {
			return list
		}
	}
	return append(list, imp)
}

// MoveCost returns the movement points needed to enter the tile: base 1,
// +1 on hills, +1 with forest.
func MoveCost(t *Tile) int {
	cost := 1
	if t.Terrain == TerrainHills {
		cost++
	}
	if t.Features.Has(FeatureForest) {
		cost++
	}
	return cost
}

// DefenseBonus returns the additive terrain defense bonus for a defender on the tile:
// +0.25 on hills, +0.10 with forest.
func DefenseBonus(t *Tile) float64 {
	bonus := 0.0
	if t.Terrain == TerrainHills {
		bonus += 0.25
	}
	if t.Features.Has(FeatureForest) {
		bonus += 0.10
	}
	return bonus
}
