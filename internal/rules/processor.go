package rules

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/hexfront/internal/entropy"
	"github.com/talgya/hexfront/internal/match"
)

// MinCityDistance is the closest two cities may be founded.
const MinCityDistance = 3

// Result is the outcome of applying one action.
type Result struct {
	Success bool
	Message string
	Err     error          // Set when Success is false; see KindOf
	State   *match.State   // The new state on success, the untouched input on failure
	Victory *match.Victory // Set when this action ended the match
	Rounds  int            // Turn boundaries resolved by this action (0 or 1)
}

// Processor applies actions to match states. Apply never mutates its input:
// handlers run against a clone that replaces the input only on success.
type Processor struct {
	rng *entropy.Source
	now func() time.Time
}

// NewProcessor creates a processor drawing combat rolls from rng.
func NewProcessor(rng *entropy.Source) *Processor {
	return &Processor{rng: rng, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the timestamp source for history entries.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// Apply validates an action against the state and applies it.
func (p *Processor) Apply(s *match.State, a Action) (res Result) {
	fail := func(err error) Result {
		msg := err.Error()
		return Result{Message: msg, Err: err, State: s}
	}

	if a == nil {
		return fail(invalid("action required"))
	}
	if err := a.check(); err != nil {
		return fail(err)
	}
	if s.Phase != match.PhaseActive {
		return fail(violation(ErrGameNotActive, "game is not active"))
	}
	if s.CurrentPlayerID() != a.Actor() {
		return fail(violation(ErrNotYourTurn, "not your turn"))
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("action handler panicked", "game", s.ID, "action", a.Type(), "panic", r)
			res = fail(internal(fmt.Errorf("%s: %v", a.Type(), r)))
		}
	}()

	work := s.Clone()
	turnBefore := work.Turn

	var msg string
	var err error
	switch act := a.(type) {
	case MoveUnit:
		msg, err = p.moveUnit(work, act)
	case AttackUnit:
		msg, err = p.attackUnit(work, act)
	case FoundCity:
		msg, err = p.foundCity(work, act)
	case BuildImprovement:
		msg, err = p.buildImprovement(work, act)
	case ChangeProduction:
		msg, err = p.changeProduction(work, act)
	case ResearchTechnology:
		msg, err = p.researchTechnology(work, act)
	case EndTurn:
		msg, err = p.endTurn(work, act)
	default:
		err = internal(fmt.Errorf("unhandled action type %T", a))
	}
	if err != nil {
		return fail(err)
	}

	now := p.now()
	work.History = append(work.History, match.HistoryEntry{
		Turn:     turnBefore,
		PlayerID: a.Actor(),
		Kind:     string(a.Type()),
		Summary:  msg,
		At:       now,
	})
	work.UpdatedAt = now

	res = Result{
		Success: true,
		Message: msg,
		State:   work,
		Rounds:  work.Turn - turnBefore,
	}
	if work.Victory != nil && s.Victory == nil {
		res.Victory = work.Victory
	}
	return res
}

func ownedUnit(s *match.State, player match.PlayerID, id match.UnitID) (*match.Unit, error) {
	u, ok := s.Units[id]
	if !ok {
		return nil, violation(ErrUnitNotFound, "unit %s not found", id)
	}
	if u.Owner != player {
		return nil, violation(ErrNotOwner, "unit %s does not belong to you", id)
	}
	return u, nil
}
