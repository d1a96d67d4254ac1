package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/hexfront/internal/ai"
	"github.com/talgya/hexfront/internal/entropy"
	"github.com/talgya/hexfront/internal/match"
	"github.com/talgya/hexfront/internal/persistence"
	"github.com/talgya/hexfront/internal/rules"
)

type participant struct {
	name      string
	connected bool
}

// Room is one live match. Every field is guarded by mu; all mutation of the
// match, including timer and AI callbacks, happens with mu held. The state
// pointer is replaced on every change and a published state is never modified.
type Room struct {
	mu sync.Mutex

	id           string
	m            *Manager
	state        *match.State
	creator      match.PlayerID
	participants map[match.PlayerID]*participant
	autopilot    map[match.PlayerID]bool // Human seats handed to the AI on leave
	lastActivity time.Time
	lastSaved    time.Time
	closed       bool

	proc    *rules.Processor
	planner *ai.Planner
	log     *slog.Logger

	tasks     map[*task]struct{}
	turnTimer *task
	aiTask    *task
}

func newRoom(m *Manager, s *match.State) *Room {
	seed := s.Config.Seed
	return &Room{
		id:           s.ID,
		m:            m,
		state:        s,
		participants: make(map[match.PlayerID]*participant),
		autopilot:    make(map[match.PlayerID]bool),
		lastActivity: m.opts.Now(),
		proc:         rules.NewProcessor(entropy.New(seed)).WithClock(m.opts.Now),
		planner:      ai.NewPlanner(entropy.New(seed + 1)),
		log:          slog.With("game", s.ID),
		tasks:        make(map[*task]struct{}),
	}
}

// task is a cancellable callback owned by a room. It runs with the room lock
// held and does nothing once cancelled or once the room is closed.
type task struct {
	name      string
	timer     *time.Timer
	cancelled bool
}

// schedule runs fn after d. r.mu must be held.
func (r *Room) schedule(name string, d time.Duration, fn func()) *task {
	t := &task{name: name}
	r.tasks[t] = struct{}{}
	t.timer = time.AfterFunc(d, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.tasks, t)
		if t.cancelled || r.closed {
			return
		}
		t.cancelled = true
		defer r.recoverTask(t.name)
		fn()
	})
	return t
}

func (r *Room) recoverTask(name string) {
	if v := recover(); v != nil {
		r.log.Error("room task panicked", "task", name, "panic", v)
	}
}

// cancel stops a pending task. r.mu must be held.
func (r *Room) cancel(t *task) {
	if t == nil {
		return
	}
	t.cancelled = true
	t.timer.Stop()
	delete(r.tasks, t)
}

// cancelAll stops every pending task. r.mu must be held.
func (r *Room) cancelAll() {
	for t := range r.tasks {
		t.cancelled = true
		t.timer.Stop()
	}
	r.tasks = make(map[*task]struct{})
	r.turnTimer = nil
	r.aiTask = nil
}

func (r *Room) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func (r *Room) broadcast(ev Event) {
	ev.GameID = r.id
	r.m.bus.Broadcast(r.id, ev)
}

func (r *Room) send(player match.PlayerID, ev Event) {
	ev.GameID = r.id
	r.m.bus.Send(r.id, player, ev)
}

// mutate applies fn to a copy of the state and publishes it on success.
func (r *Room) mutate(fn func(s *match.State) error) error {
	next := r.state.Clone()
	if err := fn(next); err != nil {
		return err
	}
	next.UpdatedAt = r.m.opts.Now()
	r.state = next
	r.lastActivity = next.UpdatedAt
	return nil
}

func (r *Room) connectedCount() int {
	n := 0
	for _, p := range r.participants {
		if p.connected {
			n++
		}
	}
	return n
}

// apply runs one action through the processor and, on success, publishes the
// result and reschedules timers. r.mu must be held.
func (r *Room) apply(a rules.Action, ev EventType) rules.Result {
	turn, seat := r.state.Turn, r.state.CurrentPlayer
	res := r.proc.Apply(r.state, a)
	if !res.Success {
		if rules.KindOf(res.Err) == rules.KindInternal {
			r.log.Error("action failed internally", "action", a.Type(), "player", a.Actor(), "error", res.Err)
		}
		return res
	}

	r.state = res.State
	r.lastActivity = r.m.opts.Now()
	r.broadcast(Event{
		Type:     ev,
		PlayerID: a.Actor(),
		Action:   envelopeOf(a),
		Message:  res.Message,
		State:    r.state,
	})

	if res.Victory != nil {
		r.log.Info("game over", "winner", res.Victory.Winner, "victory", res.Victory.Type, "turn", res.Victory.Turn)
		r.broadcast(Event{
			Type:        EventGameOver,
			Winner:      res.Victory.Winner,
			VictoryType: res.Victory.Type,
			State:       r.state,
		})
		r.cancelAll()
		r.checkpointAsync(persistence.SaveAuto, "final")
		return res
	}
	if res.Rounds > 0 {
		r.log.Debug("turn boundary", "turn", r.state.Turn)
		if r.m.opts.CheckpointEveryTurn {
			r.checkpointAsync(persistence.SaveCheckpoint, fmt.Sprintf("turn %d", r.state.Turn))
		}
	}
	if r.state.Turn != turn || r.state.CurrentPlayer != seat {
		r.afterTurnChange()
	}
	return res
}

// afterTurnChange rearms the turn timer and, for AI seats, schedules the AI turn.
// r.mu must be held.
func (r *Room) afterTurnChange() {
	r.cancel(r.turnTimer)
	r.turnTimer = nil
	r.cancel(r.aiTask)
	r.aiTask = nil

	s := r.state
	if s.Phase != match.PhaseActive {
		return
	}
	cur := s.Current()
	if cur == nil {
		return
	}
	turn, seat := s.Turn, s.CurrentPlayer

	if cur.IsAI {
		r.broadcast(Event{Type: EventAIThinking, PlayerID: cur.ID})
		r.aiTask = r.schedule("ai-start", r.m.opts.AIStartDelay, func() {
			r.aiTask = nil
			r.startAITurn(turn, seat)
		})
		return
	}
	if limit := s.Config.TurnTimeLimit; limit > 0 {
		r.turnTimer = r.schedule("turn-timer", limit, func() {
			r.turnTimer = nil
			r.onTurnTimeout(turn, seat)
		})
	}
}

func (r *Room) stillOn(turn, seat int) bool {
	return r.state.Phase == match.PhaseActive && r.state.Turn == turn && r.state.CurrentPlayer == seat
}

// aiOn reports whether the AI still controls the current seat of (turn, seat).
func (r *Room) aiOn(turn, seat int) bool {
	cur := r.state.Current()
	return r.stillOn(turn, seat) && cur != nil && cur.IsAI
}

func (r *Room) onTurnTimeout(turn, seat int) {
	if !r.stillOn(turn, seat) {
		return
	}
	id := r.state.CurrentPlayerID()
	r.log.Info("turn timed out", "player", id, "turn", turn)
	res := r.apply(rules.EndTurn{Player: id}, EventTurnTimeout)
	if !res.Success {
		r.log.Error("forced end turn rejected", "player", id, "error", res.Err)
	}
}

func (r *Room) startAITurn(turn, seat int) {
	if !r.aiOn(turn, seat) {
		return
	}
	id := r.state.CurrentPlayerID()
	plan := r.plan(id)
	r.log.Debug("ai plan", "player", id, "posture", plan.Posture, "actions", len(plan.Actions))
	r.aiStep(plan.Actions, 0, turn, seat)
}

// plan runs the planner, falling back to a bare end_turn if it panics.
func (r *Room) plan(id match.PlayerID) (plan ai.Plan) {
	defer func() {
		if v := recover(); v != nil {
			r.log.Error("ai planner panicked", "player", id, "panic", v)
			plan = ai.Plan{Player: id, Actions: []rules.Action{rules.EndTurn{Player: id}}}
		}
	}()
	return r.planner.Plan(r.state, id)
}

// aiStep applies actions[i] and schedules the next one. A rejected action is
// skipped; the chain stops once the seat or turn changes.
func (r *Room) aiStep(actions []rules.Action, i, turn, seat int) {
	if !r.aiOn(turn, seat) {
		return
	}
	if i >= len(actions) {
		actions = []rules.Action{rules.EndTurn{Player: r.state.CurrentPlayerID()}}
		i = 0
	}

	a := actions[i]
	res := r.apply(a, EventAIAction)
	if !res.Success {
		r.log.Debug("ai action rejected", "action", a.Type(), "reason", res.Message)
	}
	if !r.stillOn(turn, seat) {
		return
	}
	next := i + 1
	r.aiTask = r.schedule("ai-action", r.m.opts.AIActionDelay, func() {
		r.aiTask = nil
		r.aiStep(actions, next, turn, seat)
	})
}

// record serializes the current state into a save record. r.mu must be held.
func (r *Room) record(kind persistence.SaveType, name string) (*persistence.SaveRecord, error) {
	stateJSON, gridJSON, err := match.Encode(r.state)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = fmt.Sprintf("%s turn %d", kind, r.state.Turn)
	}
	r.lastSaved = r.state.UpdatedAt
	return &persistence.SaveRecord{
		GameID:     r.id,
		SaveName:   name,
		TurnNumber: r.state.Turn,
		SaveType:   kind,
		StateJSON:  stateJSON,
		GridJSON:   gridJSON,
		CreatedAt:  r.m.opts.Now(),
	}, nil
}

// checkpointAsync serializes under the lock and saves in the background.
// r.mu must be held.
func (r *Room) checkpointAsync(kind persistence.SaveType, name string) {
	if r.m.saver == nil {
		return
	}
	rec, err := r.record(kind, name)
	if err != nil {
		r.log.Error("checkpoint encode failed", "error", err)
		return
	}
	r.m.saveAsync(rec)
}
