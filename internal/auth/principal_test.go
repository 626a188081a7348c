package auth

import (
	"testing"

	"github.com/Paladins-Inn/delphi-council/internal/persons"
)

func TestPrincipalReadOnly(t *testing.T) {
	player := Principal{PersonID: "p-1", Roles: []persons.RoleName{persons.RolePerson}}
	orga := Principal{PersonID: "p-2", Roles: []persons.RoleName{persons.RolePerson, persons.RoleOrga}}
	admin := Principal{PersonID: "p-3", Roles: []persons.RoleName{persons.RoleAdmin}}

	if !player.ReadOnly(false) || player.ReadOnly(true) {
		t.Fatalf("player must be read-only unless explicitly allowed")
	}
	if orga.ReadOnly(false) || admin.ReadOnly(false) {
		t.Fatalf("orga and admin must never be read-only")
	}
	if !player.CanEdit("p-1") || player.CanEdit("p-2") || player.CanEdit("") {
		t.Fatalf("player may only edit own records")
	}
	if (Principal{}).CanEdit("") {
		t.Fatalf("anonymous principals must not edit")
	}
}

func TestPrincipalFromClaimsDropsUnknownRoles(t *testing.T) {
	principal := PrincipalFromClaims(SessionClaims{PersonID: "p-1", Roles: []string{"GM", "WIZARD", "judge"}})
	if !principal.IsGM() || !principal.IsJudge() || len(principal.Roles) != 2 {
		t.Fatalf("unexpected roles %v", principal.Roles)
	}
	if !principal.Authenticated() {
		t.Fatalf("expected authenticated principal")
	}
}

func TestPrincipalCanAward(t *testing.T) {
	cases := map[persons.RoleName]bool{
		persons.RolePerson: false,
		persons.RoleGM:     false,
		persons.RoleJudge:  true,
		persons.RoleOrga:   true,
		persons.RoleAdmin:  true,
	}
	for role, want := range cases {
		principal := Principal{PersonID: "p-1", Roles: []persons.RoleName{role}}
		if got := principal.CanAward(); got != want {
			t.Fatalf("CanAward for %s = %v, want %v", role, got, want)
		}
	}
}

func TestPrincipalFromPersonUsesStoredRoles(t *testing.T) {
	person := &persons.Person{
		Username:  "quin",
		FirstName: "Quin",
		LastName:  "Sebastian",
		Locale:    "de",
		Roles:     []persons.Role{{PersonID: "p-1", Name: persons.RoleJudge}},
	}
	person.ID = "p-1"

	principal := PrincipalFromPerson(person)
	if principal.PersonID != "p-1" || principal.Username != "quin" || principal.Locale != "de" {
		t.Fatalf("unexpected principal %+v", principal)
	}
	if !principal.IsJudge() || principal.IsOrga() || len(principal.Roles) != 1 {
		t.Fatalf("unexpected roles %v", principal.Roles)
	}
	if PrincipalFromPerson(nil).Authenticated() {
		t.Fatalf("expected anonymous principal without a person")
	}
}
