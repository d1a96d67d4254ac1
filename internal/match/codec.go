package match

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/talgya/hexfront/internal/world"
)

// Encode serializes a state and its grid separately, the shape of a save record.
func Encode(s *State) (stateJSON, gridJSON []byte, err error) {
	shallow := *s
	shallow.Grid = nil
	stateJSON, err = json.Marshal(&shallow)
	if err != nil {
		return nil, nil, fmt.Errorf("encode state: %w", err)
	}
	gridJSON, err = json.Marshal(s.Grid)
	if err != nil {
		return nil, nil, fmt.Errorf("encode grid: %w", err)
	}
	return stateJSON, gridJSON, nil
}

// Decode restores a state serialized by Encode. A lobby has no grid yet; its
// null grid decodes to a nil Grid.
func Decode(stateJSON, gridJSON []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(stateJSON, &s); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if g := bytes.TrimSpace(gridJSON); len(g) > 0 && !bytes.Equal(g, []byte("null")) {
		var grid world.Grid
		if err := json.Unmarshal(g, &grid); err != nil {
			return nil, fmt.Errorf("decode grid: %w", err)
		}
		s.Grid = &grid
	}
	if s.Units == nil {
		s.Units = make(map[UnitID]*Unit)
	}
	if s.Cities == nil {
		s.Cities = make(map[CityID]*City)
	}
	return &s, nil
}
