package match

import "github.com/talgya/hexfront/internal/world"

// Resources is a player's stockpile. Every component stays >= 0.
type Resources struct {
	Food       int `json:"food"`
	Production int `json:"production"`
	Gold       int `json:"gold"`
	Science    int `json:"science"`
	Culture    int `json:"culture"`
	Faith      int `json:"faith"`
}

// AddYield accumulates a yield, clamping each component at zero.
func (r *Resources) AddYield(y world.Yield) {
	r.Food = max(0, r.Food+y.Food)
	r.Production = max(0, r.Production+y.Production)
	r.Gold = max(0, r.Gold+y.Gold)
	r.Science = max(0, r.Science+y.Science)
	r.Culture = max(0, r.Culture+y.Culture)
	r.Faith = max(0, r.Faith+y.Faith)
}

// Total sums every component.
func (r Resources) Total() int {
	return r.Food + r.Production + r.Gold + r.Science + r.Culture + r.Faith
}

func (r Resources) anyNegative() bool {
	return r.Food < 0 || r.Production < 0 || r.Gold < 0 || r.Science < 0 || r.Culture < 0 || r.Faith < 0
}
