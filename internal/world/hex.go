// Package world provides the hex grid, terrain, visibility overlay, and map generation.
// Uses axial coordinates (q, r) for the hex grid.
package world

import "fmt"

// HexCoord represents a position on the hex grid using axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

// Add returns the coordinate offset by d.
func (h HexCoord) Add(d HexCoord) HexCoord {
	return HexCoord{Q: h.Q + d.Q, R: h.R + d.R}
}

func (h HexCoord) String() string {
	return fmt.Sprintf("(%d,%d)", h.Q, h.R)
}

// HexNeighborDirections defines the six neighbor offsets in axial coordinates.
var HexNeighborDirections = [6]HexCoord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// Neighbors returns the six adjacent hex coordinates, regardless of map bounds.
func (h HexCoord) Neighbors() [6]HexCoord {
	var result [6]HexCoord
	for i, dir := range HexNeighborDirections {
		result[i] = h.Add(dir)
	}
	return result
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())
	// Max of the three absolute differences in cube coordinates.
	m := dq
	if dr > m {
		m = dr
	}
	if ds > m {
		m = ds
	}
	return m
}

// StepToward returns the single greedy step from one coordinate toward another.
// The larger of the two axial deltas is reduced first; ties reduce q.
// This is not pathfinding: obstacles are not considered.
func StepToward(from, to HexCoord) HexCoord {
	steps := GreedySteps(from, to)
	if len(steps) == 0 {
		return from
	}
	return steps[0]
}

// GreedySteps returns the candidate greedy steps from one coordinate toward another,
// primary axis first. Callers that find the primary step blocked may fall back to
// the secondary one. Empty when from == to.
func GreedySteps(from, to HexCoord) []HexCoord {
	dq := to.Q - from.Q
	dr := to.R - from.R
	if dq == 0 && dr == 0 {
		return nil
	}

	qStep := HexCoord{Q: from.Q + sign(dq), R: from.R}
	rStep := HexCoord{Q: from.Q, R: from.R + sign(dr)}

	switch {
	case dr == 0:
		return []HexCoord{qStep}
	case dq == 0:
		return []HexCoord{rStep}
	case abs(dq) >= abs(dr):
		return []HexCoord{qStep, rStep}
	default:
		return []HexCoord{rStep, qStep}
	}
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
