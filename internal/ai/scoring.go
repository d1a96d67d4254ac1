package ai

import (
	"math"

	"github.com/talgya/hexfront/internal/match"
	"github.com/talgya/hexfront/internal/world"
)

// Settling and threat tunables.
const (
	settleSearchRadius = 6
	settleScoreRadius  = 2
	settleDistanceCost = 0.3
	resourceBonus      = 2.0

	ThreatThreshold   = 5.0
	threatRadius      = 4
	threatCap         = 20.0
	cityThreatFactor  = 1.5
	settlerAdjacency  = 10.0
	defaultEnemyPower = 8
)

func terrainSettleScore(t world.Terrain) float64 {
	switch t {
	case world.TerrainGrassland:
		return 2
	case world.TerrainPlains:
		return 1.5
	case world.TerrainHills, world.TerrainCoast:
		return 1
	case world.TerrainDesert, world.TerrainTundra:
		return -1
	}
	return 0
}

func personalitySettleMultiplier(p match.Personality) float64 {
	switch p {
	case match.PersonalityEconomic, match.PersonalityExpansive:
		return 1.25
	case match.PersonalityAggressive:
		return 0.9
	}
	return 1.0
}

// SettleScore rates a founding site by the terrain and resources within two
// tiles, scaled by personality.
func SettleScore(g *world.Grid, site world.HexCoord, p match.Personality) float64 {
	score := 0.0
	for _, c := range g.TilesInRange(site, settleScoreRadius) {
		t := g.Tile(c)
		score += terrainSettleScore(t.Terrain)
		if t.Resource != world.ResourceNone {
			score += resourceBonus
		}
	}
	return score * personalitySettleMultiplier(p)
}

// canFound reports whether a city could be founded at c right now.
func canFound(s *match.State, c world.HexCoord, minDistance int) bool {
	t := s.Grid.Tile(c)
	if t == nil || !t.Terrain.Passable() || t.CityID != "" {
		return false
	}
	for _, city := range s.Cities {
		if world.Distance(city.Position, c) < minDistance {
			return false
		}
	}
	return true
}

// bestSettleSite searches around a settler for the highest-scoring legal site,
// net of a per-tile distance penalty. ok is false when no site qualifies.
func bestSettleSite(s *match.State, from world.HexCoord, p match.Personality, minDistance int) (site world.HexCoord, score float64, ok bool) {
	best := math.Inf(-1)
	for _, c := range s.Grid.TilesInRange(from, settleSearchRadius) {
		if !canFound(s, c, minDistance) {
			continue
		}
		if u := s.UnitAt(c); u != nil && c != from {
			continue
		}
		v := SettleScore(s.Grid, c, p) - settleDistanceCost*float64(world.Distance(from, c))
		if v > best {
			best, site, ok = v, c, true
		}
	}
	return site, best, ok
}

// ThreatFrom scores how dangerous one enemy unit is to a player's holdings:
// strength decayed by distance, weighted up near cities and next to settlers,
// capped at threatCap. Holdings farther than threatRadius are ignored.
func ThreatFrom(s *match.State, owner match.PlayerID, enemy KnownUnit) float64 {
	strength := float64(defaultEnemyPower)
	if spec, ok := match.UnitSpecFor(enemy.Type); ok {
		strength = float64(spec.Strength)
	}
	if strength <= 0 {
		return 0
	}

	worst := 0.0
	for _, u := range s.UnitsOf(owner) {
		d := world.Distance(u.Position, enemy.Position)
		if d > threatRadius {
			continue
		}
		level := strength / float64(d+1)
		if u.Type == match.UnitSettler && d <= 1 {
			level += settlerAdjacency
		}
		worst = math.Max(worst, level)
	}
	for _, c := range s.CitiesOf(owner) {
		d := world.Distance(c.Position, enemy.Position)
		if d > threatRadius {
			continue
		}
		worst = math.Max(worst, strength/float64(d+1)*cityThreatFactor)
	}
	return math.Min(worst, threatCap)
}

// maxThreat returns the highest threat among known enemy units and the unit posing it.
func maxThreat(s *match.State, owner match.PlayerID, k *Knowledge) (float64, *KnownUnit) {
	best := 0.0
	var who *KnownUnit
	enemies := k.allEnemyUnits()
	for i := range enemies {
		if t := ThreatFrom(s, owner, enemies[i]); t > best {
			best, who = t, &enemies[i]
		}
	}
	return best, who
}
