package torg

import "testing"

func TestClearanceForXPFollowsTiers(t *testing.T) {
	cases := []struct {
		xp   int
		want Clearance
	}{
		{-5, ClearanceAny},
		{-1, ClearanceAny},
		{0, ClearanceAlpha},
		{49, ClearanceAlpha},
		{50, ClearanceBeta},
		{199, ClearanceBeta},
		{200, ClearanceGamma},
		{500, ClearanceDelta},
		{999, ClearanceDelta},
		{1000, ClearanceOmega},
		{25000, ClearanceOmega},
	}
	for _, tc := range cases {
		if got := ClearanceForXP(tc.xp); got != tc.want {
			t.Fatalf("ClearanceForXP(%d) = %s, want %s", tc.xp, got, tc.want)
		}
	}
}

func TestClearanceAllows(t *testing.T) {
	if !ClearanceGamma.Allows(ClearanceBeta) {
		t.Fatal("gamma should allow beta dispatches")
	}
	if ClearanceAlpha.Allows(ClearanceDelta) {
		t.Fatal("alpha must not allow delta dispatches")
	}
	if !ClearanceAlpha.Allows(ClearanceAny) {
		t.Fatal("every clearance allows ANY")
	}
}

func TestParseClearance(t *testing.T) {
	got, err := ParseClearance(" beta ")
	if err != nil || got != ClearanceBeta {
		t.Fatalf("unexpected parse result %s, %v", got, err)
	}
	if _, err := ParseClearance("epsilon"); err == nil {
		t.Fatal("expected error for unknown clearance")
	}
	if ClearanceOmega.MinXP() != 1000 {
		t.Fatalf("unexpected omega minimum %d", ClearanceOmega.MinXP())
	}
}

func TestCosmAxioms(t *testing.T) {
	if len(Cosms()) != 17 {
		t.Fatalf("expected 17 cosms, got %d", len(Cosms()))
	}
	axioms := CosmCoreEarth.Axioms()
	if axioms != (Axioms{Magic: 9, Social: 23, Spirit: 10, Tech: 23}) {
		t.Fatalf("unexpected core earth axioms %+v", axioms)
	}
	cosm, err := ParseCosm("living_land")
	if err != nil || cosm != CosmLivingLand {
		t.Fatalf("unexpected cosm %s, %v", cosm, err)
	}
	if Cosm("NARNIA").Valid() {
		t.Fatal("unknown cosm reported valid")
	}
}

func TestSuccessStateOrdering(t *testing.T) {
	if Outstanding.Compare(Good) <= 0 {
		t.Fatal("outstanding should rank above good")
	}
	if Failure.Compare(Success) >= 0 {
		t.Fatal("failure should rank below success")
	}
	if _, err := ParseSuccessState("meh"); err == nil {
		t.Fatal("expected unknown success state error")
	}
}

func TestParseLanguage(t *testing.T) {
	if lang, err := ParseLanguage("DE"); err != nil || lang != LanguageGerman {
		t.Fatalf("unexpected language %s, %v", lang, err)
	}
	if _, err := ParseLanguage("fr"); err == nil {
		t.Fatal("expected unsupported language error")
	}
}
