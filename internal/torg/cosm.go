package torg

import (
	"fmt"
	"strings"
)

// Cosm is a reality with its own axioms.
type Cosm string

const (
	CosmAysle          Cosm = "AYSLE"
	CosmCoreEarth      Cosm = "CORE_EARTH"
	CosmCyberpapacy    Cosm = "CYBERPAPACY"
	CosmLivingLand     Cosm = "LIVING_LAND"
	CosmNileEmpire     Cosm = "NILE_EMPIRE"
	CosmOrrorsh        Cosm = "ORRORSH"
	CosmPanPacifica    Cosm = "PAN_PACIFICA"
	CosmTharkold       Cosm = "THARKOLD"
	CosmAkasha         Cosm = "AKASHA"
	CosmAysleTharkold  Cosm = "AYSLE_THARKOLD"
	CosmElfame         Cosm = "ELFAME"
	CosmFairyTaleAysle Cosm = "FAIRY_TALE_AYSLE"
	CosmMechopotamia   Cosm = "MECHOPOTAMIA"
	CosmDeadWorld      Cosm = "THE_DEAD_WORLD"
	CosmTombspace      Cosm = "TOMBSPACE"
	CosmUkhaan         Cosm = "UKHAAN"
	CosmWaldeck        Cosm = "WALDECK"
)

// Axioms are the four limits of a cosm.
type Axioms struct {
	Magic  int
	Social int
	Spirit int
	Tech   int
}

var cosmAxioms = []struct {
	cosm   Cosm
	axioms Axioms
}{
	{CosmAysle, Axioms{24, 16, 18, 14}},
	{CosmCoreEarth, Axioms{9, 23, 10, 23}},
	{CosmCyberpapacy, Axioms{14, 18, 16, 26}},
	{CosmLivingLand, Axioms{1, 7, 24, 6}},
	{CosmNileEmpire, Axioms{14, 20, 18, 20}},
	{CosmOrrorsh, Axioms{16, 18, 16, 18}},
	{CosmPanPacifica, Axioms{4, 24, 8, 24}},
	{CosmTharkold, Axioms{12, 25, 4, 25}},
	{CosmAkasha, Axioms{1, 26, 1, 28}},
	{CosmAysleTharkold, Axioms{24, 25, 18, 25}},
	{CosmElfame, Axioms{24, 11, 18, 14}},
	{CosmFairyTaleAysle, Axioms{24, 16, 18, 14}},
	{CosmMechopotamia, Axioms{9, 9, 12, 8}},
	{CosmDeadWorld, Axioms{3, 7, 4, 8}},
	{CosmTombspace, Axioms{0, 0, 0, 0}},
	{CosmUkhaan, Axioms{8, 27, 5, 27}},
	{CosmWaldeck, Axioms{14, 11, 2, 12}},
}

// Cosms lists all known cosms in declaration order.
func Cosms() []Cosm {
	out := make([]Cosm, 0, len(cosmAxioms))
	for _, entry := range cosmAxioms {
		out = append(out, entry.cosm)
	}
	return out
}

// ParseCosm accepts the cosm name in any case.
func ParseCosm(value string) (Cosm, error) {
	candidate := Cosm(strings.ToUpper(strings.TrimSpace(value)))
	if _, ok := candidate.lookup(); ok {
		return candidate, nil
	}
	return "", fmt.Errorf("unknown cosm %q", value)
}

// Axioms returns the axioms of the cosm, zero for unknown cosms.
func (c Cosm) Axioms() Axioms {
	axioms, _ := c.lookup()
	return axioms
}

func (c Cosm) Valid() bool {
	_, ok := c.lookup()
	return ok
}

func (c Cosm) String() string {
	return string(c)
}

func (c Cosm) lookup() (Axioms, bool) {
	for _, entry := range cosmAxioms {
		if entry.cosm == c {
			return entry.axioms, true
		}
	}
	return Axioms{}, false
}
