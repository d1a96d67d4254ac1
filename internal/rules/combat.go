package rules

import "math"

// Combat roll bounds.
const (
	MinDamageMultiplier = 0.8
	MaxDamageMultiplier = 1.2
)

// Damage computes combat damage: base = max(1, atk - def*(1+defenseBonus)),
// scaled by the roll and floored. The result is never negative.
func Damage(attackStrength, defenseStrength int, defenseBonus, multiplier float64) int {
	base := math.Max(1, float64(attackStrength)-float64(defenseStrength)*(1+defenseBonus))
	dmg := int(math.Floor(base * multiplier))
	if dmg < 0 {
		return 0
	}
	return dmg
}

// RollMultiplier draws a damage multiplier in [0.8, 1.2].
func (p *Processor) RollMultiplier() float64 {
	return p.rng.Range(MinDamageMultiplier, MaxDamageMultiplier)
}
