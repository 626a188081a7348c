// Package operatives manages the player characters (Storm Knights).
package operatives

import (
	"strings"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/persons"
	"github.com/Paladins-Inn/delphi-council/internal/store"
	"github.com/Paladins-Inn/delphi-council/internal/torg"
)

// Operative is a player's character.
type Operative struct {
	store.Base
	PlayerID  string          `gorm:"column:player_id;size:36;not null;index"`
	Player    *persons.Person `gorm:"foreignKey:PlayerID;constraint:OnDelete:RESTRICT"`
	Code      string          `gorm:"column:code;size:100"`
	Name      string          `gorm:"column:name;size:100;not null"`
	FirstName string          `gorm:"column:first_name;size:100;not null;uniqueIndex:operatives_name_uk,priority:2"`
	LastName  string          `gorm:"column:last_name;size:100;not null;uniqueIndex:operatives_name_uk,priority:1"`
	Cosm      torg.Cosm       `gorm:"column:cosm;size:50;not null"`
	Clearance torg.Clearance  `gorm:"column:clearance;size:50;not null"`
	XP        int             `gorm:"column:xp;not null"`
	Money     int             `gorm:"column:money;not null"`
	Avatar    []byte          `gorm:"column:avatar"`
	Token     []byte          `gorm:"column:token"`
	Deleted   *time.Time      `gorm:"column:deleted;index"`
}

// TableName exposes the table backing operatives.
func (Operative) TableName() string {
	return "operatives"
}

// NewOperative returns a fresh Core Earth operative of the player.
func NewOperative(playerID string) *Operative {
	operative := &Operative{PlayerID: playerID, Cosm: torg.CosmCoreEarth}
	operative.SetXP(0)
	return operative
}

// SetXP stores the experience and derives the clearance from it.
func (o *Operative) SetXP(xp int) {
	o.XP = xp
	o.Clearance = torg.ClearanceForXP(xp)
}

// IsDeleted reports whether the operative was retired.
func (o *Operative) IsDeleted() bool {
	return o.Deleted != nil
}

// DisplayName is the name shown in lists; retired operatives are masked.
func (o *Operative) DisplayName() string {
	if o.IsDeleted() {
		return persons.DeletedName
	}
	if o.Name != "" {
		return o.Name
	}
	return o.FullName()
}

// FullName is "<first> <last>".
func (o *Operative) FullName() string {
	return strings.TrimSpace(o.FirstName + " " + o.LastName)
}

// PlayerName is the display name of the owning person.
func (o *Operative) PlayerName() string {
	if o.Player == nil {
		return ""
	}
	return o.Player.DisplayName()
}

// AvatarURL returns the avatar image path, "" when none was uploaded.
func (o *Operative) AvatarURL() string {
	if len(o.Avatar) == 0 {
		return ""
	}
	return "/operative/" + o.ID + "/avatar"
}

// TokenURL returns the token image path, "" when none was uploaded.
func (o *Operative) TokenURL() string {
	if len(o.Token) == 0 {
		return ""
	}
	return "/operative/" + o.ID + "/token"
}

func (o *Operative) normalize() {
	o.Code = strings.TrimSpace(o.Code)
	o.Name = strings.TrimSpace(o.Name)
	o.FirstName = strings.TrimSpace(o.FirstName)
	o.LastName = strings.TrimSpace(o.LastName)
	if o.Name == "" {
		o.Name = o.FullName()
	}
	if o.Cosm == "" {
		o.Cosm = torg.CosmCoreEarth
	}
	o.Clearance = torg.ClearanceForXP(o.XP)
}

// Validate checks the declared column constraints.
func (o *Operative) Validate() error {
	if strings.TrimSpace(o.PlayerID) == "" {
		return store.Invalid("player", "is required")
	}
	for field, value := range map[string]string{
		"name":      o.Name,
		"firstName": o.FirstName,
		"lastName":  o.LastName,
	} {
		if value == "" {
			return store.Invalid(field, "is required")
		}
		if len([]rune(value)) > 100 {
			return store.Invalid(field, "must have at most 100 characters")
		}
	}
	if len([]rune(o.Code)) > 100 {
		return store.Invalid("code", "must have at most 100 characters")
	}
	if !o.Cosm.Valid() {
		return store.Invalid("cosm", "unknown cosm %q", o.Cosm)
	}
	if o.XP < 0 {
		return store.Invalid("xp", "must not be negative")
	}
	return nil
}
