package ai

import (
	"sort"

	"github.com/talgya/hexfront/internal/match"
	"github.com/talgya/hexfront/internal/world"
)

// KnownUnit is an enemy unit seen during the last refresh.
type KnownUnit struct {
	ID       match.UnitID
	Type     match.UnitType
	Position world.HexCoord
}

// Knowledge is one AI seat's private view of the map. It is derived from the
// match state each turn and never written back.
type Knowledge struct {
	Explored    map[world.HexCoord]bool
	EnemyUnits  map[match.PlayerID][]KnownUnit      // Replaced every refresh
	EnemyCities map[match.PlayerID][]world.HexCoord // Last known, kept across turns
	RefreshedAt int                                 // Turn of the last refresh
}

func newKnowledge() *Knowledge {
	return &Knowledge{
		Explored:    make(map[world.HexCoord]bool),
		EnemyUnits:  make(map[match.PlayerID][]KnownUnit),
		EnemyCities: make(map[match.PlayerID][]world.HexCoord),
	}
}

// Vision radii for the AI's own bookkeeping.
const (
	baseVision     = 2
	scoutVision    = 3
	cityVision     = 2
	hardVisionPlus = 1
)

func visionFor(u *match.Unit, d match.Difficulty) int {
	r := baseVision
	if u.Type == match.UnitScout {
		r = scoutVision
	}
	if d == match.DifficultyHard {
		r += hardVisionPlus
	}
	return r
}

// refresh marks every tile currently in sight as explored and records the
// enemy units and cities on them.
func (k *Knowledge) refresh(s *match.State, p *match.Player) {
	visible := make(map[world.HexCoord]bool)
	for _, u := range s.UnitsOf(p.ID) {
		for _, c := range s.Grid.TilesInRange(u.Position, visionFor(u, p.Difficulty)) {
			visible[c] = true
		}
	}
	cr := cityVision
	if p.Difficulty == match.DifficultyHard {
		cr += hardVisionPlus
	}
	for _, city := range s.CitiesOf(p.ID) {
		for _, c := range s.Grid.TilesInRange(city.Position, cr) {
			visible[c] = true
		}
	}

	coords := make([]world.HexCoord, 0, len(visible))
	for c := range visible {
		coords = append(coords, c)
	}
	sortCoords(coords)

	k.EnemyUnits = make(map[match.PlayerID][]KnownUnit)
	for _, c := range coords {
		k.Explored[c] = true
		if u := s.UnitAt(c); u != nil && u.Owner != p.ID {
			k.EnemyUnits[u.Owner] = append(k.EnemyUnits[u.Owner], KnownUnit{ID: u.ID, Type: u.Type, Position: c})
		}
		if city := s.CityAt(c); city != nil && city.Owner != p.ID {
			k.rememberCity(city.Owner, c)
		}
	}
	// Forget cities that no longer stand where we saw them.
	for owner, cities := range k.EnemyCities {
		kept := cities[:0]
		for _, c := range cities {
			if !visible[c] {
				kept = append(kept, c)
				continue
			}
			if city := s.CityAt(c); city != nil && city.Owner == owner {
				kept = append(kept, c)
			}
		}
		k.EnemyCities[owner] = kept
	}
	k.RefreshedAt = s.Turn
}

func (k *Knowledge) rememberCity(owner match.PlayerID, c world.HexCoord) {
	for _, have := range k.EnemyCities[owner] {
		if have == c {
			return
		}
	}
	k.EnemyCities[owner] = append(k.EnemyCities[owner], c)
}

// ExploredFraction is the share of the map this seat has seen.
func (k *Knowledge) ExploredFraction(g *world.Grid) float64 {
	if g.TileCount() == 0 {
		return 0
	}
	return float64(len(k.Explored)) / float64(g.TileCount())
}

func (k *Knowledge) allEnemyUnits() []KnownUnit {
	var out []KnownUnit
	for _, owner := range sortedOwners(k.EnemyUnits) {
		out = append(out, k.EnemyUnits[owner]...)
	}
	return out
}

func (k *Knowledge) allEnemyCities() []world.HexCoord {
	var out []world.HexCoord
	for _, owner := range sortedOwners(k.EnemyCities) {
		out = append(out, k.EnemyCities[owner]...)
	}
	return out
}

func sortedOwners[V any](m map[match.PlayerID]V) []match.PlayerID {
	out := make([]match.PlayerID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// sortCoords orders coordinates row by row so map iteration never leaks into plans.
func sortCoords(cs []world.HexCoord) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].R != cs[j].R {
			return cs[i].R < cs[j].R
		}
		return cs[i].Q < cs[j].Q
	})
}
