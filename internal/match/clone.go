package match

// Clone returns a deep copy of the state. Mutating the copy never affects the original.
func (s *State) Clone() *State {
	c := *s

	c.Players = make([]*Player, len(s.Players))
	for i, p := range s.Players {
		c.Players[i] = p.clone()
	}

	if s.Grid != nil {
		c.Grid = s.Grid.Clone()
	}

	c.Units = make(map[UnitID]*Unit, len(s.Units))
	for id, u := range s.Units {
		uu := *u
		c.Units[id] = &uu
	}

	c.Cities = make(map[CityID]*City, len(s.Cities))
	for id, city := range s.Cities {
		c.Cities[id] = city.clone()
	}

	if s.History != nil {
		c.History = make([]HistoryEntry, len(s.History))
		copy(c.History, s.History)
	}

	c.Config.VictoryConditions = cloneSlice(s.Config.VictoryConditions)

	if s.Victory != nil {
		v := *s.Victory
		c.Victory = &v
	}
	return &c
}

func (p *Player) clone() *Player {
	c := *p
	if p.Techs != nil {
		c.Techs = make(map[TechID]*TechProgress, len(p.Techs))
		for id, tp := range p.Techs {
			t := *tp
			c.Techs[id] = &t
		}
	}
	c.Units = cloneSlice(p.Units)
	c.Cities = cloneSlice(p.Cities)
	c.CityNames = cloneSlice(p.CityNames)
	return &c
}

func (city *City) clone() *City {
	c := *city
	if city.Production != nil {
		prod := *city.Production
		c.Production = &prod
	}
	c.Buildings = cloneSlice(city.Buildings)
	c.WorkedTiles = cloneSlice(city.WorkedTiles)
	return &c
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
