// Package ai plans turns for computer-controlled seats. The planner reads the
// match state and returns actions; it never mutates the state itself.
package ai

import (
	"sort"

	"github.com/talgya/hexfront/internal/entropy"
	"github.com/talgya/hexfront/internal/match"
	"github.com/talgya/hexfront/internal/rules"
)

// Tuning holds the difficulty-dependent planning knobs.
type Tuning struct {
	MistakeChance float64 // Probability of dropping each candidate
	MaxActions    int     // Cap on actions before the closing end_turn
}

// TuningFor returns the knobs for a difficulty. Unknown difficulties plan as normal.
func TuningFor(d match.Difficulty) Tuning {
	switch d {
	case match.DifficultyEasy:
		return Tuning{MistakeChance: 0.25, MaxActions: 4}
	case match.DifficultyHard:
		return Tuning{MistakeChance: 0.02, MaxActions: 16}
	default:
		return Tuning{MistakeChance: 0.10, MaxActions: 8}
	}
}

// Plan is the output of one planning pass.
type Plan struct {
	Player     match.PlayerID
	Turn       int
	Posture    Posture
	Candidates []Candidate // Kept candidates, highest priority first
	Actions    []rules.Action
}

// Planner generates turns for AI seats in one match. It keeps a knowledge
// cache per seat and is not safe for concurrent use; the owning room serializes calls.
type Planner struct {
	rng       *entropy.Source
	knowledge map[match.PlayerID]*Knowledge
	tuning    func(match.Difficulty) Tuning
}

// NewPlanner creates a planner drawing mistake rolls from rng.
func NewPlanner(rng *entropy.Source) *Planner {
	return &Planner{
		rng:       rng,
		knowledge: make(map[match.PlayerID]*Knowledge),
		tuning:    TuningFor,
	}
}

// Knowledge returns a seat's cache, creating it on first use.
func (pl *Planner) Knowledge(id match.PlayerID) *Knowledge {
	k, ok := pl.knowledge[id]
	if !ok {
		k = newKnowledge()
		pl.knowledge[id] = k
	}
	return k
}

// Forget drops a seat's cache.
func (pl *Planner) Forget(id match.PlayerID) {
	delete(pl.knowledge, id)
}

// Plan builds the action list for a seat's turn. The list always ends with end_turn.
func (pl *Planner) Plan(s *match.State, id match.PlayerID) Plan {
	plan := Plan{Player: id, Turn: s.Turn}
	p := s.Player(id)
	if p == nil || !p.Alive || s.Grid == nil {
		plan.Actions = []rules.Action{rules.EndTurn{Player: id}}
		return plan
	}

	k := pl.Knowledge(id)
	k.refresh(s, p)

	pc := &planContext{s: s, p: p, k: k}
	pc.posture = classify(s, p, k)
	plan.Posture = pc.posture

	var cands []Candidate
	for _, u := range s.UnitsOf(id) {
		cands = append(cands, pc.unitCandidates(u)...)
	}
	for _, c := range s.CitiesOf(id) {
		if cand, ok := pc.productionCandidate(c); ok {
			cands = append(cands, cand)
		}
	}
	if cand, ok := pc.researchCandidate(); ok {
		cands = append(cands, cand)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Priority > cands[j].Priority
	})

	tuning := pl.tuning(p.Difficulty)
	kept := cands[:0]
	for _, c := range cands {
		if pl.rng.Chance(tuning.MistakeChance) {
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) > tuning.MaxActions {
		kept = kept[:tuning.MaxActions]
	}

	plan.Candidates = kept
	plan.Actions = make([]rules.Action, 0, len(kept)+1)
	for _, c := range kept {
		plan.Actions = append(plan.Actions, c.Action)
	}
	plan.Actions = append(plan.Actions, rules.EndTurn{Player: id})
	return plan
}
