package model

import (
	"fmt"
	"strings"
)

// MutationKind identifies a player settings command
type MutationKind string

const (
	MutationToggle   MutationKind = "toggle"
	MutationPosition MutationKind = "position"
	MutationLanguage MutationKind = "language"
)

// Mutation is a change requested by a player command
type Mutation struct {
	Kind     MutationKind
	Position HUDPosition
	Language string
}

// ToggleHUD flips HUD visibility
func ToggleHUD() Mutation {
	return Mutation{Kind: MutationToggle}
}

// SetPosition moves the HUD to the given anchor
func SetPosition(p HUDPosition) Mutation {
	return Mutation{Kind: MutationPosition, Position: p}
}

// SetLanguage switches the HUD language
func SetLanguage(lang string) Mutation {
	return Mutation{Kind: MutationLanguage, Language: strings.ToLower(strings.TrimSpace(lang))}
}

// ParseMutation builds a mutation from a command name and its raw argument
func ParseMutation(kind, arg string) (Mutation, error) {
	switch MutationKind(strings.ToLower(strings.TrimSpace(kind))) {
	case MutationToggle:
		return ToggleHUD(), nil
	case MutationPosition:
		p, err := ParsePosition(arg)
		if err != nil {
			return Mutation{}, err
		}
		return SetPosition(p), nil
	case MutationLanguage:
		if strings.TrimSpace(arg) == "" {
			return Mutation{}, ErrUnsupportedLanguage
		}
		return SetLanguage(arg), nil
	default:
		return Mutation{}, fmt.Errorf("%w: %q", ErrUnknownMutation, kind)
	}
}

// Validate checks the mutation against the supported languages
func (m Mutation) Validate(supportedLanguages []string) error {
	switch m.Kind {
	case MutationToggle:
		return nil
	case MutationPosition:
		if !m.Position.Valid() {
			return ErrInvalidPosition
		}
		return nil
	case MutationLanguage:
		for _, l := range supportedLanguages {
			if strings.EqualFold(l, m.Language) {
				return nil
			}
		}
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, m.Language)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMutation, m.Kind)
	}
}

// Apply changes the persisted preference fields. It reports whether anything
// changed.
func (m Mutation) Apply(s *PlayerSettings) bool {
	switch m.Kind {
	case MutationToggle:
		s.HUDEnabled = !s.HUDEnabled
		return true
	case MutationPosition:
		if s.HUDPosition == m.Position {
			return false
		}
		s.HUDPosition = m.Position
		return true
	case MutationLanguage:
		if s.Language == m.Language {
			return false
		}
		s.Language = m.Language
		return true
	}
	return false
}
