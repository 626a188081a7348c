package torg

import (
	"fmt"
	"strings"
)

// SuccessState is the outcome tier of a played mission.
type SuccessState string

const (
	Failure     SuccessState = "FAILURE"
	Success     SuccessState = "SUCCESS"
	Good        SuccessState = "GOOD"
	Outstanding SuccessState = "OUTSTANDING"
)

var successStates = []SuccessState{Failure, Success, Good, Outstanding}

// SuccessStates lists the outcomes from worst to best.
func SuccessStates() []SuccessState {
	return append([]SuccessState(nil), successStates...)
}

// ParseSuccessState accepts the outcome name in any case.
func ParseSuccessState(value string) (SuccessState, error) {
	candidate := SuccessState(strings.ToUpper(strings.TrimSpace(value)))
	if candidate.Valid() {
		return candidate, nil
	}
	return "", fmt.Errorf("unknown success state %q", value)
}

func (s SuccessState) Valid() bool {
	return s.rank() >= 0
}

// Compare orders outcomes: negative when s is worse than other.
func (s SuccessState) Compare(other SuccessState) int {
	return s.rank() - other.rank()
}

func (s SuccessState) String() string {
	return string(s)
}

func (s SuccessState) rank() int {
	for index, state := range successStates {
		if state == s {
			return index
		}
	}
	return -1
}

// Language of a dispatch text.
type Language string

const (
	LanguageGerman  Language = "de"
	LanguageEnglish Language = "en"
)

// Languages lists the supported dispatch languages.
func Languages() []Language {
	return []Language{LanguageGerman, LanguageEnglish}
}

// ParseLanguage accepts "de" or "en" in any case.
func ParseLanguage(value string) (Language, error) {
	switch candidate := Language(strings.ToLower(strings.TrimSpace(value))); candidate {
	case LanguageGerman, LanguageEnglish:
		return candidate, nil
	}
	return "", fmt.Errorf("unknown language %q", value)
}
