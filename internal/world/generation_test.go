package world

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestGenerateIsDeterministic(t *testing.T) {
	a := Generate(DefaultGenConfig(20, 20, 42, 2))
	b := Generate(DefaultGenConfig(20, 20, 42, 2))

	ja, _ := json.Marshal(a.Grid)
	jb, _ := json.Marshal(b.Grid)
	if !bytes.Equal(ja, jb) {
		t.Fatal("same seed produced different maps")
	}
	if len(a.Starts) != len(b.Starts) {
		t.Fatal("same seed produced different start counts")
	}
	for i := range a.Starts {
		if a.Starts[i] != b.Starts[i] {
			t.Fatalf("start %d differs: %v vs %v", i, a.Starts[i], b.Starts[i])
		}
	}

	c := Generate(DefaultGenConfig(20, 20, 43, 2))
	jc, _ := json.Marshal(c.Grid)
	if bytes.Equal(ja, jc) {
		t.Error("different seeds produced identical maps")
	}
}

func TestGenerateRules(t *testing.T) {
	for _, seed := range []int64{1, 42, 99, 2024} {
		gen := Generate(DefaultGenConfig(30, 24, seed, 4))
		g := gen.Grid

		if g.TileCount() != 30*24 {
			t.Fatalf("seed %d: expected %d tiles, got %d", seed, 30*24, g.TileCount())
		}

		for _, tile := range g.Tiles() {
			if !tile.Terrain.Passable() && tile.Features != 0 {
				t.Errorf("seed %d: %v has features on %v", seed, tile.Coord, tile.Terrain)
			}
			switch tile.Resource {
			case ResourceFish:
				if tile.Terrain != TerrainCoast {
					t.Errorf("seed %d: fish on %v", seed, tile.Terrain)
				}
			case ResourceIron:
				if tile.Terrain != TerrainHills {
					t.Errorf("seed %d: iron on %v", seed, tile.Terrain)
				}
			}
			if tile.Resource != ResourceNone && !tile.Terrain.Passable() {
				t.Errorf("seed %d: resource on impassable %v", seed, tile.Coord)
			}
		}

		// Edges lean toward water: the corner tile is never mountain or hills.
		corner := g.Tile(HexCoord{0, 0})
		if corner.Terrain == TerrainMountain || corner.Terrain == TerrainHills {
			t.Errorf("seed %d: corner tile is %v", seed, corner.Terrain)
		}

		for _, s := range gen.Starts {
			if !g.Tile(s).Terrain.Passable() {
				t.Errorf("seed %d: start %v on impassable terrain", seed, s)
			}
			if !hasFoodNearby(g, s) {
				t.Errorf("seed %d: start %v has no food nearby", seed, s)
			}
		}
	}
}

func hasFoodNearby(g *Grid, c HexCoord) bool {
	for _, n := range g.TilesInRange(c, 2) {
		if g.Tile(n).Resource.IsFood() {
			return true
		}
	}
	return false
}

func flatGrid(w, h int, terrain Terrain) *Grid {
	g := NewGrid(w, h)
	for i := range g.tiles {
		g.tiles[i].Terrain = terrain
	}
	return g
}

func TestPlaceStartsSeparation(t *testing.T) {
	g := flatGrid(20, 20, TerrainGrassland)
	starts := PlaceStarts(g, 4)

	if len(starts) != 4 {
		t.Fatalf("expected 4 starts, got %d", len(starts))
	}
	minSep := MinStartSeparation(20, 20)
	for i := range starts {
		for j := i + 1; j < len(starts); j++ {
			if d := Distance(starts[i], starts[j]); d < minSep {
				t.Errorf("starts %v and %v only %d apart (min %d)", starts[i], starts[j], d, minSep)
			}
		}
		if !hasFoodNearby(g, starts[i]) {
			t.Errorf("start %v has no food nearby", starts[i])
		}
	}
}

func TestPlaceStartsRelaxesSeparation(t *testing.T) {
	g := flatGrid(10, 10, TerrainPlains)
	starts := PlaceStarts(g, 8)
	if len(starts) != 8 {
		t.Fatalf("expected separation to relax to fit 8 starts, got %d", len(starts))
	}
}

func TestEnsureFoodOnBarrenLand(t *testing.T) {
	g := flatGrid(10, 10, TerrainDesert)
	start := HexCoord{5, 5}
	ensureFood(g, start)
	if !hasFoodNearby(g, start) {
		t.Fatal("expected food to be placed near a desert start")
	}
}

func TestCityNamesDistinct(t *testing.T) {
	names := CityNames(42, 30)
	if len(names) != 30 {
		t.Fatalf("expected 30 names, got %d", len(names))
	}
	seen := make(map[string]bool)
	for _, n := range names {
		if seen[n] {
			t.Errorf("duplicate name %q", n)
		}
		seen[n] = true
	}
	again := CityNames(42, 30)
	for i := range names {
		if names[i] != again[i] {
			t.Fatal("names not deterministic for a seed")
		}
	}
}
