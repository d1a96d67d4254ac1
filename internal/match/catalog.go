package match

import (
	"sort"

	"github.com/talgya/hexfront/internal/world"
)

// UnitType names a kind of unit.
type UnitType string

const (
	UnitSettler  UnitType = "settler"
	UnitWorker   UnitType = "worker"
	UnitScout    UnitType = "scout"
	UnitWarrior  UnitType = "warrior"
	UnitArcher   UnitType = "archer"
	UnitSpearman UnitType = "spearman"
	UnitHorseman UnitType = "horseman"
)

// UnitSpec holds the static stats of a unit type.
type UnitSpec struct {
	Strength  int
	MaxHealth int
	Movement  int
	Cost      int
	Vision    int
	Requires  TechID // Empty = available from the start
}

// Military reports whether the unit type can attack.
func (s UnitSpec) Military() bool { return s.Strength > 0 }

var unitSpecs = map[UnitType]UnitSpec{
	UnitSettler:  {Strength: 0, MaxHealth: 100, Movement: 2, Cost: 40, Vision: 2},
	UnitWorker:   {Strength: 0, MaxHealth: 100, Movement: 2, Cost: 25, Vision: 2},
	UnitScout:    {Strength: 4, MaxHealth: 100, Movement: 3, Cost: 15, Vision: 3},
	UnitWarrior:  {Strength: 8, MaxHealth: 100, Movement: 2, Cost: 20, Vision: 2},
	UnitArcher:   {Strength: 10, MaxHealth: 100, Movement: 2, Cost: 30, Vision: 2, Requires: TechArchery},
	UnitSpearman: {Strength: 12, MaxHealth: 100, Movement: 2, Cost: 35, Vision: 2, Requires: TechBronzeWorking},
	UnitHorseman: {Strength: 12, MaxHealth: 100, Movement: 4, Cost: 40, Vision: 2, Requires: TechAnimalHusbandry},
}

// UnitSpecFor looks up a unit type.
func UnitSpecFor(t UnitType) (UnitSpec, bool) {
	s, ok := unitSpecs[t]
	return s, ok
}

// UnitTypes lists every unit type in a stable order.
func UnitTypes() []UnitType {
	out := make([]UnitType, 0, len(unitSpecs))
	for t := range unitSpecs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BuildingType names a city building.
type BuildingType string

const (
	BuildingGranary  BuildingType = "granary"
	BuildingWorkshop BuildingType = "workshop"
	BuildingLibrary  BuildingType = "library"
	BuildingMarket   BuildingType = "market"
	BuildingMonument BuildingType = "monument"
	BuildingShrine   BuildingType = "shrine"
	BuildingWalls    BuildingType = "walls"
)

// BuildingSpec holds the static stats of a building.
type BuildingSpec struct {
	Cost        int
	Yield       world.Yield
	HealthBonus int
	Requires    TechID
}

var buildingSpecs = map[BuildingType]BuildingSpec{
	BuildingGranary:  {Cost: 40, Yield: world.Yield{Food: 2}, Requires: TechPottery},
	BuildingWorkshop: {Cost: 50, Yield: world.Yield{Production: 2}, Requires: TechMining},
	BuildingLibrary:  {Cost: 60, Yield: world.Yield{Science: 3}, Requires: TechWriting},
	BuildingMarket:   {Cost: 60, Yield: world.Yield{Gold: 3}, Requires: TechCurrency},
	BuildingMonument: {Cost: 30, Yield: world.Yield{Culture: 2}},
	BuildingShrine:   {Cost: 30, Yield: world.Yield{Faith: 2}},
	BuildingWalls:    {Cost: 50, HealthBonus: 50, Requires: TechMasonry},
}

// BuildingSpecFor looks up a building type.
func BuildingSpecFor(b BuildingType) (BuildingSpec, bool) {
	s, ok := buildingSpecs[b]
	return s, ok
}

// BuildingTypes lists every building in a stable order.
func BuildingTypes() []BuildingType {
	out := make([]BuildingType, 0, len(buildingSpecs))
	for b := range buildingSpecs {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TechID names a technology.
type TechID string

const (
	TechAgriculture     TechID = "agriculture"
	TechPottery         TechID = "pottery"
	TechAnimalHusbandry TechID = "animal_husbandry"
	TechMining          TechID = "mining"
	TechArchery         TechID = "archery"
	TechBronzeWorking   TechID = "bronze_working"
	TechWriting         TechID = "writing"
	TechTheWheel        TechID = "the_wheel"
	TechCurrency        TechID = "currency"
	TechMasonry         TechID = "masonry"
)

// TechCategory groups technologies for AI personality preferences.
type TechCategory string

const (
	CategoryEconomy  TechCategory = "economy"
	CategoryMilitary TechCategory = "military"
	CategoryScience  TechCategory = "science"
	CategoryCulture  TechCategory = "culture"
)

// TechSpec holds a technology's completion threshold and prerequisites.
type TechSpec struct {
	Cost     int
	Category TechCategory
	Requires []TechID
}

var techSpecs = map[TechID]TechSpec{
	TechAgriculture:     {Cost: 20, Category: CategoryEconomy},
	TechPottery:         {Cost: 35, Category: CategoryEconomy, Requires: []TechID{TechAgriculture}},
	TechAnimalHusbandry: {Cost: 35, Category: CategoryMilitary, Requires: []TechID{TechAgriculture}},
	TechMining:          {Cost: 35, Category: CategoryEconomy},
	TechArchery:         {Cost: 40, Category: CategoryMilitary},
	TechMasonry:         {Cost: 45, Category: CategoryCulture, Requires: []TechID{TechMining}},
	TechBronzeWorking:   {Cost: 60, Category: CategoryMilitary, Requires: []TechID{TechMining}},
	TechTheWheel:        {Cost: 60, Category: CategoryEconomy, Requires: []TechID{TechAnimalHusbandry}},
	TechWriting:         {Cost: 100, Category: CategoryScience, Requires: []TechID{TechPottery}},
	TechCurrency:        {Cost: 100, Category: CategoryEconomy, Requires: []TechID{TechBronzeWorking}},
}

// TechSpecFor looks up a technology.
func TechSpecFor(t TechID) (TechSpec, bool) {
	s, ok := techSpecs[t]
	return s, ok
}

// TechIDs lists every technology in a stable order.
func TechIDs() []TechID {
	out := make([]TechID, 0, len(techSpecs))
	for t := range techSpecs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
