// Package torg holds the game vocabulary shared by missions, operatives and reports.
package torg

import (
	"fmt"
	"strings"
)

// Clearance is the access tier an operative holds and a dispatch requires.
type Clearance string

const (
	ClearanceAny   Clearance = "ANY"
	ClearanceAlpha Clearance = "ALPHA"
	ClearanceBeta  Clearance = "BETA"
	ClearanceGamma Clearance = "GAMMA"
	ClearanceDelta Clearance = "DELTA"
	ClearanceOmega Clearance = "OMEGA"
)

// clearanceTiers is ordered by ascending minimum XP.
var clearanceTiers = []struct {
	level Clearance
	minXP int
}{
	{ClearanceAny, -1},
	{ClearanceAlpha, 0},
	{ClearanceBeta, 50},
	{ClearanceGamma, 200},
	{ClearanceDelta, 500},
	{ClearanceOmega, 1000},
}

// Clearances lists every clearance in ascending order.
func Clearances() []Clearance {
	out := make([]Clearance, 0, len(clearanceTiers))
	for _, tier := range clearanceTiers {
		out = append(out, tier.level)
	}
	return out
}

// ParseClearance accepts the upper- or lower-case clearance name.
func ParseClearance(value string) (Clearance, error) {
	candidate := Clearance(strings.ToUpper(strings.TrimSpace(value)))
	if candidate.Valid() {
		return candidate, nil
	}
	return "", fmt.Errorf("unknown clearance %q", value)
}

// Valid reports whether c is a known clearance.
func (c Clearance) Valid() bool {
	return c.rank() >= 0
}

// MinXP is the experience at which the clearance is reached.
func (c Clearance) MinXP() int {
	if rank := c.rank(); rank >= 0 {
		return clearanceTiers[rank].minXP
	}
	return clearanceTiers[0].minXP
}

// Allows reports whether a holder of c may see something requiring required.
func (c Clearance) Allows(required Clearance) bool {
	return c.rank() >= required.rank()
}

func (c Clearance) String() string {
	return string(c)
}

func (c Clearance) rank() int {
	for index, tier := range clearanceTiers {
		if tier.level == c {
			return index
		}
	}
	return -1
}

// ClearanceForXP returns the highest clearance whose minimum XP is reached.
func ClearanceForXP(xp int) Clearance {
	result := ClearanceAny
	for _, tier := range clearanceTiers {
		if xp >= tier.minXP {
			result = tier.level
		}
	}
	return result
}
