package world

import (
	"encoding/json"
	"fmt"
)

// Tile represents a single hex on the world map. Units and cities are referenced
// by id only; the authoritative objects live in the match state.
type Tile struct {
	Coord       HexCoord    `json:"coord"`
	Terrain     Terrain     `json:"terrain"`
	Features    FeatureSet  `json:"features,omitempty"`
	Resource    Resource    `json:"resource,omitempty"`
	Improvement Improvement `json:"improvement,omitempty"`
	UnitID      string      `json:"unit_id,omitempty"`
	CityID      string      `json:"city_id,omitempty"`

	// Generation inputs, kept for scoring and debugging.
	Elevation float64 `json:"elevation"`
	Moisture  float64 `json:"moisture"`
}

// Yield returns the tile's total yield: terrain base, features, resource, and improvement.
func (t *Tile) Yield() Yield {
	y := TerrainYield(t.Terrain).
		Plus(featureYield(t.Features)).
		Plus(ResourceYield(t.Resource)).
		Plus(ImprovementYield(t.Improvement, t.Terrain))
	if y.Food < 0 {
		y.Food = 0
	}
	return y
}

// Grid is a rectangular axial hex map: q in [0, Width), r in [0, Height).
// Per-player visibility is an overlay indexed like the tile slice.
type Grid struct {
	Width  int
	Height int

	tiles      []Tile
	visibility map[string][]Visibility
}

// NewGrid creates a grid of ocean tiles with every coordinate initialized.
func NewGrid(width, height int) *Grid {
	g := &Grid{
		Width:      width,
		Height:     height,
		tiles:      make([]Tile, width*height),
		visibility: make(map[string][]Visibility),
	}
	for r := 0; r < height; r++ {
		for q := 0; q < width; q++ {
			g.tiles[r*width+q].Coord = HexCoord{Q: q, R: r}
		}
	}
	return g
}

// InBounds returns true if the coordinate lies on the map.
func (g *Grid) InBounds(c HexCoord) bool {
	return c.Q >= 0 && c.Q < g.Width && c.R >= 0 && c.R < g.Height
}

func (g *Grid) index(c HexCoord) int {
	return c.R*g.Width + c.Q
}

// Tile returns the tile at the coordinate, or nil if out of bounds.
func (g *Grid) Tile(c HexCoord) *Tile {
	if !g.InBounds(c) {
		return nil
	}
	return &g.tiles[g.index(c)]
}

// Tiles returns every tile in row-major order. The slice aliases grid storage.
func (g *Grid) Tiles() []Tile {
	return g.tiles
}

// TileCount returns the total number of tiles.
func (g *Grid) TileCount() int {
	return len(g.tiles)
}

// Neighbors returns the in-bounds neighbors of a coordinate (up to 6).
func (g *Grid) Neighbors(c HexCoord) []HexCoord {
	out := make([]HexCoord, 0, 6)
	for _, n := range c.Neighbors() {
		if g.InBounds(n) {
			out = append(out, n)
		}
	}
	return out
}

// TilesInRange returns every in-bounds coordinate with distance <= radius of center,
// center included.
func (g *Grid) TilesInRange(center HexCoord, radius int) []HexCoord {
	if radius < 0 {
		return nil
	}
	var out []HexCoord
	for dq := -radius; dq <= radius; dq++ {
		lo := max(-radius, -dq-radius)
		hi := min(radius, -dq+radius)
		for dr := lo; dr <= hi; dr++ {
			c := HexCoord{Q: center.Q + dq, R: center.R + dr}
			if g.InBounds(c) {
				out = append(out, c)
			}
		}
	}
	return out
}

func (g *Grid) playerVisibility(player string) []Visibility {
	v, ok := g.visibility[player]
	if !ok {
		v = make([]Visibility, len(g.tiles))
		g.visibility[player] = v
	}
	return v
}

// SetVisibility records a player's visibility level for a tile.
func (g *Grid) SetVisibility(player string, c HexCoord, v Visibility) {
	if !g.InBounds(c) {
		return
	}
	g.playerVisibility(player)[g.index(c)] = v
}

// GetVisibility returns a player's visibility level for a tile. Unknown players see nothing.
func (g *Grid) GetVisibility(player string, c HexCoord) Visibility {
	v, ok := g.visibility[player]
	if !ok || !g.InBounds(c) {
		return VisibilityHidden
	}
	return v[g.index(c)]
}

// RevealAround marks every tile within radius of center visible for the player.
func (g *Grid) RevealAround(player string, center HexCoord, radius int) {
	v := g.playerVisibility(player)
	for _, c := range g.TilesInRange(center, radius) {
		v[g.index(c)] = VisibilityVisible
	}
}

// FadeVisible demotes every visible tile of a player to discovered.
func (g *Grid) FadeVisible(player string) {
	v, ok := g.visibility[player]
	if !ok {
		return
	}
	for i, level := range v {
		if level == VisibilityVisible {
			v[i] = VisibilityDiscovered
		}
	}
}

// Clone returns a deep copy of the grid including visibility.
func (g *Grid) Clone() *Grid {
	c := &Grid{
		Width:      g.Width,
		Height:     g.Height,
		tiles:      make([]Tile, len(g.tiles)),
		visibility: make(map[string][]Visibility, len(g.visibility)),
	}
	copy(c.tiles, g.tiles)
	for p, v := range g.visibility {
		vv := make([]Visibility, len(v))
		copy(vv, v)
		c.visibility[p] = vv
	}
	return c
}

// CountTerrain returns a summary of terrain type distribution.
func (g *Grid) CountTerrain() map[Terrain]int {
	counts := make(map[Terrain]int)
	for i := range g.tiles {
		counts[g.tiles[i].Terrain]++
	}
	return counts
}

func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d, tiles=%d)", g.Width, g.Height, len(g.tiles))
}

// gridJSON is the flat wire form: width, height, and tiles[r][q].
type gridJSON struct {
	Width      int                       `json:"width"`
	Height     int                       `json:"height"`
	Tiles      [][]Tile                  `json:"tiles"`
	Visibility map[string][][]Visibility `json:"visibility,omitempty"`
}

func (g *Grid) MarshalJSON() ([]byte, error) {
	out := gridJSON{
		Width:  g.Width,
		Height: g.Height,
		Tiles:  make([][]Tile, g.Height),
	}
	for r := 0; r < g.Height; r++ {
		out.Tiles[r] = g.tiles[r*g.Width : (r+1)*g.Width]
	}
	if len(g.visibility) > 0 {
		out.Visibility = make(map[string][][]Visibility, len(g.visibility))
		for p, v := range g.visibility {
			rows := make([][]Visibility, g.Height)
			for r := 0; r < g.Height; r++ {
				rows[r] = v[r*g.Width : (r+1)*g.Width]
			}
			out.Visibility[p] = rows
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a grid. Tile coordinates are rebuilt from their array
// position so the axial layout is identical to the one serialized.
func (g *Grid) UnmarshalJSON(b []byte) error {
	var in gridJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	if in.Width <= 0 || in.Height <= 0 {
		return fmt.Errorf("grid: invalid dimensions %dx%d", in.Width, in.Height)
	}
	if len(in.Tiles) != in.Height {
		return fmt.Errorf("grid: expected %d rows, got %d", in.Height, len(in.Tiles))
	}

	restored := NewGrid(in.Width, in.Height)
	for r, row := range in.Tiles {
		if len(row) != in.Width {
			return fmt.Errorf("grid: row %d has %d tiles, expected %d", r, len(row), in.Width)
		}
		for q, t := range row {
			t.Coord = HexCoord{Q: q, R: r}
			restored.tiles[r*in.Width+q] = t
		}
	}
	for p, rows := range in.Visibility {
		v := make([]Visibility, 0, len(restored.tiles))
		for _, row := range rows {
			v = append(v, row...)
		}
		if len(v) != len(restored.tiles) {
			return fmt.Errorf("grid: visibility for %s has %d entries", p, len(v))
		}
		restored.visibility[p] = v
	}

	*g = *restored
	return nil
}
