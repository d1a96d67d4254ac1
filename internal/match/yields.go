package match

import "github.com/talgya/hexfront/internal/world"

// CityYield sums a city's per-turn output: worked tiles (terrain, resource, and
// improvement yields), building bonuses, and one science per citizen.
func (s *State) CityYield(c *City) world.Yield {
	var y world.Yield
	for _, coord := range c.WorkedTiles {
		if t := s.Grid.Tile(coord); t != nil {
			y = y.Plus(t.Yield())
		}
	}
	for _, b := range c.Buildings {
		if spec, ok := BuildingSpecFor(b); ok {
			y = y.Plus(spec.Yield)
		}
	}
	y.Science += c.Population
	return y
}

// PlayerYield sums the yields of all of a player's cities.
func (s *State) PlayerYield(id PlayerID) world.Yield {
	var y world.Yield
	for _, c := range s.CitiesOf(id) {
		y = y.Plus(s.CityYield(c))
	}
	return y
}

// BestUnworkedTiles returns up to n tiles within two of a city that are not already
// worked by any city, ranked by total yield. Impassable tiles are skipped.
func (s *State) BestUnworkedTiles(c *City, n int) []world.HexCoord {
	worked := make(map[world.HexCoord]bool)
	for _, other := range s.Cities {
		for _, wt := range other.WorkedTiles {
			worked[wt] = true
		}
	}

	var best []world.HexCoord
	for len(best) < n {
		found := false
		var pick world.HexCoord
		pickYield := -1
		for _, coord := range s.Grid.TilesInRange(c.Position, 2) {
			t := s.Grid.Tile(coord)
			if worked[coord] || !t.Terrain.Passable() {
				continue
			}
			if total := t.Yield().Total(); total > pickYield {
				pick, pickYield, found = coord, total, true
			}
		}
		if !found {
			break
		}
		worked[pick] = true
		best = append(best, pick)
	}
	return best
}
