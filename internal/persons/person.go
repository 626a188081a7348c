package persons

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// DeletedName replaces every name of a deleted person.
const DeletedName = "-deleted-"

const (
	accountValidFor     = 10 * 365 * 24 * time.Hour
	credentialsValidFor = 5 * 365 * 24 * time.Hour
	gravatarBaseURL     = "https://www.gravatar.com/avatar/"
)

// RoleName is a permission granted to a person.
type RoleName string

const (
	RolePerson RoleName = "PERSON"
	RoleGM     RoleName = "GM"
	RoleJudge  RoleName = "JUDGE"
	RoleOrga   RoleName = "ORGA"
	RoleAdmin  RoleName = "ADMIN"
)

// AllRoles lists every role in ascending order of privilege.
func AllRoles() []RoleName {
	return []RoleName{RolePerson, RoleGM, RoleJudge, RoleOrga, RoleAdmin}
}

// ParseRole accepts the role name in any case.
func ParseRole(value string) (RoleName, error) {
	candidate := RoleName(strings.ToUpper(strings.TrimSpace(value)))
	if slices.Contains(AllRoles(), candidate) {
		return candidate, nil
	}
	return "", fmt.Errorf("unknown role %q", value)
}

// Role is one row of the person role collection.
type Role struct {
	PersonID string   `gorm:"column:person_id;primaryKey;size:36"`
	Name     RoleName `gorm:"column:role;primaryKey;size:20"`
}

// TableName exposes the table backing person roles.
func (Role) TableName() string {
	return "person_roles"
}

// SecurityStatus tracks whether an account may log in.
type SecurityStatus struct {
	Enabled            bool       `gorm:"column:account_enabled;not null"`
	Locked             bool       `gorm:"column:account_locked;not null"`
	Expiry             time.Time  `gorm:"column:account_expiry;not null"`
	CredentialsChanged time.Time  `gorm:"column:credentials_changed;not null"`
	LastLogin          *time.Time `gorm:"column:last_login"`
	Deleted            *time.Time `gorm:"column:deleted"`
}

// NewSecurityStatus returns the status of a fresh, not yet confirmed account.
func NewSecurityStatus(now time.Time) SecurityStatus {
	return SecurityStatus{
		Enabled:            false,
		Expiry:             now.Add(accountValidFor),
		CredentialsChanged: now,
	}
}

var (
	ErrAccountDisabled    = errors.New("persons: account disabled")
	ErrAccountLocked      = errors.New("persons: account locked")
	ErrAccountExpired     = errors.New("persons: account expired")
	ErrCredentialsExpired = errors.New("persons: credentials expired")
	ErrAccountDeleted     = errors.New("persons: account deleted")
)

// CheckLogin returns the first reason the account may not log in at now.
func (s SecurityStatus) CheckLogin(now time.Time) error {
	switch {
	case s.Deleted != nil:
		return ErrAccountDeleted
	case !s.Enabled:
		return ErrAccountDisabled
	case s.Locked:
		return ErrAccountLocked
	case !now.Before(s.Expiry):
		return ErrAccountExpired
	case !now.Before(s.CredentialsChanged.Add(credentialsValidFor)):
		return ErrCredentialsExpired
	}
	return nil
}

// Person is an account of the information system.
type Person struct {
	store.Base
	Username     string         `gorm:"column:username;size:20;not null;uniqueIndex"`
	Name         string         `gorm:"column:name;size:100;not null;uniqueIndex"`
	FirstName    string         `gorm:"column:first_name;size:100;not null"`
	LastName     string         `gorm:"column:last_name;size:100;not null"`
	Email        string         `gorm:"column:email;size:100;not null;uniqueIndex"`
	PasswordHash string         `gorm:"column:password;size:100;not null"`
	Locale       string         `gorm:"column:locale;size:20;not null"`
	Status       SecurityStatus `gorm:"embedded"`
	Avatar       []byte         `gorm:"column:avatar"`
	UseGravatar  bool           `gorm:"column:gravatar;not null"`
	Roles        []Role         `gorm:"foreignKey:PersonID;constraint:OnDelete:CASCADE"`
}

// TableName exposes the table backing persons.
func (Person) TableName() string {
	return "persons"
}

// IsDeleted reports whether the person was marked deleted.
func (p *Person) IsDeleted() bool {
	return p.Status.Deleted != nil
}

// DisplayName is the name shown in lists; deleted persons are masked.
func (p *Person) DisplayName() string {
	if p.IsDeleted() {
		return DeletedName
	}
	if p.Name != "" {
		return p.Name
	}
	return p.Username
}

// FullName joins first and last name; deleted persons are masked.
func (p *Person) FullName() string {
	if p.IsDeleted() {
		return DeletedName
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// HasRole reports whether the person holds role.
func (p *Person) HasRole(role RoleName) bool {
	for _, granted := range p.Roles {
		if granted.Name == role {
			return true
		}
	}
	return false
}

// RoleNames returns the granted roles as plain strings.
func (p *Person) RoleNames() []string {
	names := make([]string, 0, len(p.Roles))
	for _, role := range p.Roles {
		names = append(names, string(role.Name))
	}
	slices.Sort(names)
	return names
}

// SetPassword stores the bcrypt hash of password and restarts the credential validity.
func (p *Person) SetPassword(password string, now time.Time) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.PasswordHash = string(hash)
	p.Status.CredentialsChanged = now
	return nil
}

// CheckPassword compares password with the stored hash.
func (p *Person) CheckPassword(password string) bool {
	if p.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) == nil
}

// GravatarURL is the gravatar image of the person's email address.
func (p *Person) GravatarURL() string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(p.Email))))
	return gravatarBaseURL + hex.EncodeToString(sum[:])
}

// AvatarURL returns the image to show for the person, or "" when none is set.
func (p *Person) AvatarURL() string {
	switch {
	case p.IsDeleted():
		return ""
	case p.UseGravatar:
		return p.GravatarURL()
	case len(p.Avatar) > 0:
		return "/person/" + p.ID + "/avatar"
	}
	return ""
}

func (p *Person) clone() *Person {
	copied := *p
	copied.Roles = append([]Role(nil), p.Roles...)
	copied.Avatar = append([]byte(nil), p.Avatar...)
	return &copied
}
