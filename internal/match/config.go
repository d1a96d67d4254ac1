package match

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// VictoryCondition names a rule that can end the match at a turn boundary.
type VictoryCondition string

const (
	VictoryDomination VictoryCondition = "domination"
	VictoryScore      VictoryCondition = "score"
	VictoryScience    VictoryCondition = "science"
	VictoryCulture    VictoryCondition = "culture"
)

// Config bounds.
const (
	MinMapDimension = 10
	MaxMapDimension = 100
	MinPlayers      = 2
	MaxPlayers      = 8
)

// MapSize is the map's width and height in tiles.
type MapSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Config is the per-match configuration consumed at room creation.
type Config struct {
	MapSize           MapSize            `json:"mapSize"`
	MaxPlayers        int                `json:"maxPlayers"`
	TurnTimeLimit     time.Duration      `json:"turnTimeLimit"` // Seconds on the wire; 0 = unlimited
	VictoryConditions []VictoryCondition `json:"victoryConditions"`
	StartingResources Resources          `json:"startingResources"`
	TurnLimit         int                `json:"turnLimit"` // Score victory is declared once the turn counter reaches this
	Seed              int64              `json:"seed"`      // 0 = random
}

// DefaultConfig returns a standard two-to-four player setup.
func DefaultConfig() Config {
	return Config{
		MapSize:           MapSize{Width: 20, Height: 20},
		MaxPlayers:        4,
		TurnTimeLimit:     0,
		VictoryConditions: []VictoryCondition{VictoryDomination, VictoryScore},
		StartingResources: Resources{Food: 10, Production: 10, Gold: 25},
		TurnLimit:         200,
	}
}

// ErrInvalidConfig wraps every configuration range violation.
var ErrInvalidConfig = errors.New("invalid game config")

// Validate checks the configured ranges.
func (c Config) Validate() error {
	if c.MapSize.Width < MinMapDimension || c.MapSize.Width > MaxMapDimension {
		return fmt.Errorf("%w: map width %d not in [%d,%d]", ErrInvalidConfig, c.MapSize.Width, MinMapDimension, MaxMapDimension)
	}
	if c.MapSize.Height < MinMapDimension || c.MapSize.Height > MaxMapDimension {
		return fmt.Errorf("%w: map height %d not in [%d,%d]", ErrInvalidConfig, c.MapSize.Height, MinMapDimension, MaxMapDimension)
	}
	if c.MaxPlayers < MinPlayers || c.MaxPlayers > MaxPlayers {
		return fmt.Errorf("%w: max players %d not in [%d,%d]", ErrInvalidConfig, c.MaxPlayers, MinPlayers, MaxPlayers)
	}
	if c.TurnTimeLimit < 0 {
		return fmt.Errorf("%w: negative turn time limit", ErrInvalidConfig)
	}
	if c.TurnLimit < 0 {
		return fmt.Errorf("%w: negative turn limit", ErrInvalidConfig)
	}
	if c.StartingResources.anyNegative() {
		return fmt.Errorf("%w: negative starting resources", ErrInvalidConfig)
	}
	for _, v := range c.VictoryConditions {
		switch v {
		case VictoryDomination, VictoryScore, VictoryScience, VictoryCulture:
		default:
			return fmt.Errorf("%w: unknown victory condition %q", ErrInvalidConfig, v)
		}
	}
	return nil
}

type configAlias Config

// configJSON carries the turn time limit as seconds.
type configJSON struct {
	configAlias
	TurnTimeLimit float64 `json:"turnTimeLimit"`
}

// MarshalJSON writes TurnTimeLimit as a number of seconds.
func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(configJSON{configAlias: configAlias(c), TurnTimeLimit: c.TurnTimeLimit.Seconds()})
}

// UnmarshalJSON reads TurnTimeLimit as a number of seconds. Fields absent from
// the input keep their current values, so a partial document overrides defaults.
func (c *Config) UnmarshalJSON(b []byte) error {
	aux := configJSON{configAlias: configAlias(*c), TurnTimeLimit: c.TurnTimeLimit.Seconds()}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*c = Config(aux.configAlias)
	c.TurnTimeLimit = time.Duration(math.Round(aux.TurnTimeLimit * float64(time.Second)))
	return nil
}

// HasVictory reports whether a victory condition is enabled.
func (c Config) HasVictory(v VictoryCondition) bool {
	for _, cond := range c.VictoryConditions {
		if cond == v {
			return true
		}
	}
	return false
}
