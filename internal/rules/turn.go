package rules

import (
	"log/slog"

	"github.com/talgya/hexfront/internal/match"
)

// Turn boundary tunables.
const (
	healPerRound     = 10
	foodPerCitizen   = 2
	growthBase       = 10
	growthPerCitizen = 5
)

// advanceTurn moves play to the next alive seat. It reports whether the seat
// index wrapped, in which case the turn counter was incremented and the round
// resolved.
func advanceTurn(s *match.State) bool {
	n := len(s.Players)
	next, wrapped := nextAlive(s, s.CurrentPlayer)

	if wrapped {
		s.Turn++
		resolveRound(s)
		if s.Phase == match.PhaseEnded {
			return true
		}
		if !s.Players[next].Alive {
			// The seat died during resolution; take the first alive seat after it.
			for i := 1; i <= n; i++ {
				cand := (next + i) % n
				if s.Players[cand].Alive {
					next = cand
					break
				}
			}
		}
	}

	s.CurrentPlayer = next
	for _, u := range s.UnitsOf(s.Players[next].ID) {
		u.Movement = u.MaxMovement
		u.Acted = false
	}
	return wrapped
}

// nextAlive returns the seat after from, skipping dead players, and whether the
// search passed the end of the seat list.
func nextAlive(s *match.State, from int) (int, bool) {
	n := len(s.Players)
	wrapped := false
	idx := from
	for i := 0; i < n; i++ {
		idx++
		if idx >= n {
			idx = 0
			wrapped = true
		}
		if s.Players[idx].Alive {
			return idx, wrapped
		}
	}
	return from, wrapped
}

// resolveRound runs the once-per-round accrual: yields, growth, production,
// research, healing, deaths, score, then victory.
func resolveRound(s *match.State) {
	for _, p := range s.AlivePlayers() {
		y := s.PlayerYield(p.ID)
		p.Resources.AddYield(y)

		for _, c := range s.CitiesOf(p.ID) {
			cy := s.CityYield(c)
			growCity(s, c, cy.Food)
			advanceProduction(s, c, cy.Production)
		}

		advanceResearch(p, y.Science)

		for _, u := range s.UnitsOf(p.ID) {
			if !u.Acted && u.Health < u.MaxHealth {
				u.Health = min(u.MaxHealth, u.Health+healPerRound)
			}
		}
	}

	for _, p := range s.AlivePlayers() {
		if len(p.Units) == 0 && len(p.Cities) == 0 {
			p.Alive = false
			slog.Debug("player eliminated", "game", s.ID, "player", p.ID, "turn", s.Turn)
		}
	}
	for _, p := range s.Players {
		p.Score = Score(s, p)
	}

	if v := evaluateVictory(s); v != nil {
		s.Victory = v
		s.Phase = match.PhaseEnded
	}
}

func growCity(s *match.State, c *match.City, food int) {
	c.FoodStored += food - c.Population*foodPerCitizen
	if c.FoodStored < 0 {
		c.FoodStored = 0
		return
	}
	if c.FoodStored >= growthBase+growthPerCitizen*c.Population {
		c.Population++
		c.FoodStored = 0
		c.WorkedTiles = append(c.WorkedTiles, s.BestUnworkedTiles(c, 1)...)
	}
}

func advanceProduction(s *match.State, c *match.City, production int) {
	prod := c.Production
	if prod == nil {
		return
	}
	prod.Stored += production
	if prod.Stored < prod.Required {
		return
	}

	switch prod.Kind {
	case match.ProduceUnit:
		at, ok := s.FreeTileNear(c.Position)
		if !ok {
			// No room; hold the finished unit until a tile frees up.
			return
		}
		if _, err := s.SpawnUnit(c.Owner, match.UnitType(prod.Target), at); err != nil {
			slog.Warn("production spawn failed", "game", s.ID, "city", c.ID, "error", err)
			return
		}
		s.RefreshVisibility(c.Owner)
	case match.ProduceBuilding:
		b := match.BuildingType(prod.Target)
		if !c.HasBuilding(b) {
			c.Buildings = append(c.Buildings, b)
			if spec, ok := match.BuildingSpecFor(b); ok && spec.HealthBonus > 0 {
				c.MaxHealth += spec.HealthBonus
				c.Health += spec.HealthBonus
			}
		}
	}
	c.Production = nil
}

func advanceResearch(p *match.Player, science int) {
	if p.CurrentResearch == "" {
		return
	}
	tp, ok := p.Techs[p.CurrentResearch]
	if !ok {
		return
	}
	tp.Progress += science
	if tp.Progress >= tp.Required {
		tp.Researched = true
		p.CurrentResearch = ""
	}
}

// Score is 10 per city, 2 per unit, and one per ten stockpiled resources.
func Score(s *match.State, p *match.Player) int {
	return len(p.Cities)*10 + len(p.Units)*2 + p.Resources.Total()/10
}

// evaluateVictory checks domination, then the turn-limit score victory.
// Science and culture are accepted in configs but not evaluated.
func evaluateVictory(s *match.State) *match.Victory {
	alive := s.AlivePlayers()
	if len(alive) == 0 {
		return &match.Victory{Type: match.VictoryDomination, Turn: s.Turn}
	}
	if s.Config.HasVictory(match.VictoryDomination) && len(alive) == 1 {
		return &match.Victory{Winner: alive[0].ID, Type: match.VictoryDomination, Turn: s.Turn}
	}
	if s.Config.HasVictory(match.VictoryScore) && s.Config.TurnLimit > 0 && s.Turn >= s.Config.TurnLimit {
		var best *match.Player
		for _, p := range alive {
			if best == nil || p.Score > best.Score {
				best = p
			}
		}
		if best != nil {
			return &match.Victory{Winner: best.ID, Type: match.VictoryScore, Turn: s.Turn}
		}
	}
	return nil
}
