package ai

import "github.com/talgya/hexfront/internal/match"

// Posture is the AI's strategic mode for one turn.
type Posture string

const (
	PostureDefend  Posture = "defend"
	PostureExplore Posture = "explore"
	PostureExpand  Posture = "expand"
	PostureAttack  Posture = "attack"
)

// Posture thresholds.
const (
	earlyGameTurns   = 15
	exploreFraction  = 0.25
	cityCap          = 4
	expansiveCityCap = 6
	attackArmySize   = 4
	expandUntilTurn  = 50
)

func cityCapFor(p match.Personality) int {
	if p == match.PersonalityExpansive {
		return expansiveCityCap
	}
	return cityCap
}

// classify picks a posture with ordered checks: threat, exploration, expansion,
// aggression, then a turn-based default.
func classify(s *match.State, p *match.Player, k *Knowledge) Posture {
	if threat, _ := maxThreat(s, p.ID, k); threat > ThreatThreshold {
		return PostureDefend
	}
	if s.Turn < earlyGameTurns && k.ExploredFraction(s.Grid) < exploreFraction {
		return PostureExplore
	}

	settlers, military := 0, 0
	for _, u := range s.UnitsOf(p.ID) {
		if u.Type == match.UnitSettler {
			settlers++
		}
		if u.Spec().Military() && u.Type != match.UnitScout {
			military++
		}
	}
	if settlers > 0 && len(p.Cities) < cityCapFor(p.Personality) {
		return PostureExpand
	}
	if p.Personality == match.PersonalityAggressive && military >= attackArmySize {
		return PostureAttack
	}
	if s.Turn < expandUntilTurn {
		return PostureExpand
	}
	return PostureDefend
}
