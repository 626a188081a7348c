package auth

import (
	"slices"

	"github.com/Paladins-Inn/delphi-council/internal/persons"
)

// Principal is the logged-in person acting on a request.
type Principal struct {
	PersonID    string
	Username    string
	DisplayName string
	Locale      string
	Roles       []persons.RoleName
}

// PrincipalFromClaims converts validated session claims. Unknown role names are dropped.
func PrincipalFromClaims(claims SessionClaims) Principal {
	roles := make([]persons.RoleName, 0, len(claims.Roles))
	for _, name := range claims.Roles {
		if role, err := persons.ParseRole(name); err == nil {
			roles = append(roles, role)
		}
	}
	return Principal{
		PersonID:    claims.PersonID,
		Username:    claims.Username,
		DisplayName: claims.DisplayName,
		Locale:      claims.Locale,
		Roles:       roles,
	}
}

// PrincipalFromPerson builds the principal from the stored person, so role
// changes apply to running sessions.
func PrincipalFromPerson(person *persons.Person) Principal {
	if person == nil {
		return Principal{}
	}
	return PrincipalFromClaims(SessionClaims{
		PersonID:    person.ID,
		Username:    person.Username,
		DisplayName: person.DisplayName(),
		Locale:      person.Locale,
		Roles:       person.RoleNames(),
	})
}

// Authenticated reports whether the principal belongs to a person.
func (p Principal) Authenticated() bool {
	return p.PersonID != ""
}

// HasRole reports whether the principal holds role.
func (p Principal) HasRole(role persons.RoleName) bool {
	return slices.Contains(p.Roles, role)
}

func (p Principal) IsGM() bool    { return p.HasRole(persons.RoleGM) }
func (p Principal) IsJudge() bool { return p.HasRole(persons.RoleJudge) }
func (p Principal) IsOrga() bool  { return p.HasRole(persons.RoleOrga) }
func (p Principal) IsAdmin() bool { return p.HasRole(persons.RoleAdmin) }

// ReadOnly is true unless the principal is orga or admin, or allow grants
// access for the record at hand (the owner editing their own data).
func (p Principal) ReadOnly(allow bool) bool {
	return !p.IsOrga() && !p.IsAdmin() && !allow
}

// CanAward reports whether the principal may set experience, money and
// player of operatives.
func (p Principal) CanAward() bool {
	return p.IsAdmin() || p.IsOrga() || p.IsJudge()
}

// CanEdit reports whether the principal may change a record owned by ownerID.
func (p Principal) CanEdit(ownerID string) bool {
	return !p.ReadOnly(p.Authenticated() && ownerID != "" && ownerID == p.PersonID)
}
