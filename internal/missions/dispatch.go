// Package missions manages dispatches (missions and operations) and game
// master owned special missions.
package missions

import (
	"fmt"
	"strings"

	"github.com/Paladins-Inn/delphi-council/internal/store"
	"github.com/Paladins-Inn/delphi-council/internal/torg"
)

// Kind separates the two flavours of dispatch sharing one table.
type Kind string

const (
	KindMission   Kind = "mission"
	KindOperation Kind = "operation"
)

// ParseKind accepts "mission" or "operation"; empty means mission.
func ParseKind(value string) (Kind, error) {
	switch kind := Kind(strings.ToLower(strings.TrimSpace(value))); kind {
	case "":
		return KindMission, nil
	case KindMission, KindOperation:
		return kind, nil
	}
	return "", fmt.Errorf("unknown dispatch kind %q", value)
}

const (
	DefaultPayment = 250
	MinPayment     = 100
	MaxPayment     = 1000
	PaymentStep    = 50
	DefaultXP      = 5
	MinXP          = 1
	MaxXP          = 50
)

// Dispatch is a mission definition players can undertake.
type Dispatch struct {
	store.Base
	Kind                  Kind           `gorm:"column:kind;size:20;not null;index"`
	Language              torg.Language  `gorm:"column:language;size:3;not null"`
	Code                  string         `gorm:"column:code;size:20;not null;uniqueIndex"`
	Name                  string         `gorm:"column:title;size:100;not null;uniqueIndex"`
	Image                 string         `gorm:"column:image;size:100"`
	Description           string         `gorm:"column:description;size:4000;not null"`
	Payment               int            `gorm:"column:payment;not null"`
	XP                    int            `gorm:"column:xp;not null"`
	ObjectivesSuccess     string         `gorm:"column:objectives_success;size:4000"`
	ObjectivesGood        string         `gorm:"column:objectives_good;size:4000"`
	ObjectivesOutstanding string         `gorm:"column:objectives_outstanding;size:4000"`
	Clearance             torg.Clearance `gorm:"column:clearance;size:20;not null;index"`
	Publication           string         `gorm:"column:publication;size:100"`
}

// TableName exposes the table backing dispatches.
func (Dispatch) TableName() string {
	return "dispatches"
}

// NewDispatch returns a dispatch with the form defaults.
func NewDispatch(kind Kind) *Dispatch {
	if kind == "" {
		kind = KindMission
	}
	return &Dispatch{
		Kind:      kind,
		Language:  torg.LanguageEnglish,
		Payment:   DefaultPayment,
		XP:        DefaultXP,
		Clearance: torg.ClearanceAlpha,
	}
}

// ShortName is "<code>: <name>".
func (d *Dispatch) ShortName() string {
	if d.Code == "" {
		return d.Name
	}
	return d.Code + ": " + d.Name
}

// Objectives returns the objective text for the given outcome.
func (d *Dispatch) Objectives(state torg.SuccessState) string {
	switch state {
	case torg.Success:
		return d.ObjectivesSuccess
	case torg.Good:
		return d.ObjectivesGood
	case torg.Outstanding:
		return d.ObjectivesOutstanding
	}
	return ""
}

func (d *Dispatch) normalize() {
	d.Code = strings.TrimSpace(d.Code)
	d.Name = strings.TrimSpace(d.Name)
	d.Image = strings.TrimSpace(d.Image)
	d.Publication = strings.TrimSpace(d.Publication)
	if d.Kind == "" {
		d.Kind = KindMission
	}
	if d.Language == "" {
		d.Language = torg.LanguageEnglish
	}
	if d.Clearance == "" {
		d.Clearance = torg.ClearanceAlpha
	}
}

// Validate checks the declared column constraints.
func (d *Dispatch) Validate() error {
	if _, err := ParseKind(string(d.Kind)); err != nil {
		return store.Invalid("kind", "%v", err)
	}
	if _, err := torg.ParseLanguage(string(d.Language)); err != nil {
		return store.Invalid("language", "%v", err)
	}
	if err := checkLength("code", d.Code, 1, 20); err != nil {
		return err
	}
	if err := checkLength("name", d.Name, 1, 100); err != nil {
		return err
	}
	if err := checkLength("description", d.Description, 1, 4000); err != nil {
		return err
	}
	if err := checkLength("image", d.Image, 0, 100); err != nil {
		return err
	}
	if err := checkLength("publication", d.Publication, 0, 100); err != nil {
		return err
	}
	for field, text := range map[string]string{
		"objectivesSuccess":     d.ObjectivesSuccess,
		"objectivesGood":        d.ObjectivesGood,
		"objectivesOutstanding": d.ObjectivesOutstanding,
	} {
		if err := checkLength(field, text, 0, 4000); err != nil {
			return err
		}
	}
	if d.Payment < MinPayment || d.Payment > MaxPayment || d.Payment%PaymentStep != 0 {
		return store.Invalid("payment", "must be between %d and %d in steps of %d", MinPayment, MaxPayment, PaymentStep)
	}
	if d.XP < MinXP || d.XP > MaxXP {
		return store.Invalid("xp", "must be between %d and %d", MinXP, MaxXP)
	}
	if !d.Clearance.Valid() {
		return store.Invalid("clearance", "unknown clearance %q", d.Clearance)
	}
	return nil
}

func checkLength(field, value string, minimum, maximum int) error {
	length := len([]rune(value))
	if length < minimum {
		if minimum == 1 {
			return store.Invalid(field, "is required")
		}
		return store.Invalid(field, "must have at least %d characters", minimum)
	}
	if length > maximum {
		return store.Invalid(field, "must have at most %d characters", maximum)
	}
	return nil
}
