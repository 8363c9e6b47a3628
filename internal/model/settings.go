package model

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"
)

// PlayerID uniquely identifies a player (a 64-bit platform id rendered as a string)
type PlayerID string

// HUDPosition is the screen anchor for a player's HUD.
// The numeric values are the 1-based codes players type and storage persists.
type HUDPosition int

const (
	PositionTopLeft HUDPosition = iota + 1
	PositionBottomLeft
	PositionTopRight
	PositionBottomRight
	PositionCenter
)

// DefaultPosition is used for players without a stored preference
const DefaultPosition = PositionTopRight

// Valid reports whether p is one of the five known anchors
func (p HUDPosition) Valid() bool {
	return p >= PositionTopLeft && p <= PositionCenter
}

func (p HUDPosition) String() string {
	switch p {
	case PositionTopLeft:
		return "TopLeft"
	case PositionBottomLeft:
		return "BottomLeft"
	case PositionTopRight:
		return "TopRight"
	case PositionBottomRight:
		return "BottomRight"
	case PositionCenter:
		return "Center"
	default:
		return fmt.Sprintf("HUDPosition(%d)", int(p))
	}
}

// ParsePosition accepts either the 1-based code ("3") or the name ("TopRight")
func ParsePosition(s string) (HUDPosition, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		p := HUDPosition(n)
		if !p.Valid() {
			return 0, ErrInvalidPosition
		}
		return p, nil
	}
	for p := PositionTopLeft; p <= PositionCenter; p++ {
		if strings.EqualFold(p.String(), s) {
			return p, nil
		}
	}
	return 0, ErrInvalidPosition
}

// Custom data keys. Only keys that are enabled and resolved are ever present.
const (
	CustomDataCredits    = "credits"
	CustomDataPlaytime   = "playtime"
	CustomDataLastSignIn = "last_signin"
	CustomDataDisplay1   = "custom1"
	CustomDataDisplay2   = "custom2"
	CustomDataDisplay3   = "custom3"
)

// PlayerSettings holds a player's HUD preferences and the read-only custom
// data fetched for display. Only HUDEnabled, HUDPosition and Language are
// persisted by this system.
type PlayerSettings struct {
	ID          PlayerID
	HUDEnabled  bool
	HUDPosition HUDPosition
	Language    string

	// Derived from externally owned tables; never written back
	Credits         int64
	PlaytimeSeconds int64
	LastSignIn      *time.Time
	Custom          map[string]string

	LastUpdated time.Time
}

// NewPlayerSettings creates settings with documented defaults
func NewPlayerSettings(id PlayerID, language string) (PlayerSettings, error) {
	if id == "" {
		return PlayerSettings{}, ErrEmptyPlayerID
	}
	return DefaultSettings(id, language), nil
}

// DefaultSettings builds defaults without validating id. Callers that accept
// ids from outside should use NewPlayerSettings.
func DefaultSettings(id PlayerID, language string) PlayerSettings {
	return PlayerSettings{
		ID:          id,
		HUDEnabled:  true,
		HUDPosition: DefaultPosition,
		Language:    language,
	}
}

// Clone returns a deep copy so cache entries are never aliased
func (s PlayerSettings) Clone() PlayerSettings {
	out := s
	if s.LastSignIn != nil {
		t := *s.LastSignIn
		out.LastSignIn = &t
	}
	if s.Custom != nil {
		out.Custom = maps.Clone(s.Custom)
	}
	return out
}

// SamePreferences compares only the persisted fields
func (s PlayerSettings) SamePreferences(o PlayerSettings) bool {
	return s.ID == o.ID &&
		s.HUDEnabled == o.HUDEnabled &&
		s.HUDPosition == o.HUDPosition &&
		s.Language == o.Language
}

// ApplyCustomData merges fetched custom data. Keys that are absent or fail to
// parse leave the previous value untouched.
func (s *PlayerSettings) ApplyCustomData(values map[string]string) {
	for key, raw := range values {
		raw = strings.TrimSpace(raw)
		switch key {
		case CustomDataCredits:
			if n, ok := parseInt(raw); ok {
				s.Credits = n
			}
		case CustomDataPlaytime:
			if n, ok := parseInt(raw); ok {
				s.PlaytimeSeconds = n
			}
		case CustomDataLastSignIn:
			if t, ok := parseTimestamp(raw); ok {
				s.LastSignIn = &t
			}
		case CustomDataDisplay1, CustomDataDisplay2, CustomDataDisplay3:
			if s.Custom == nil {
				s.Custom = make(map[string]string)
			}
			s.Custom[key] = raw
		}
	}
}

func parseInt(raw string) (int64, bool) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, true
	}
	// Decimal columns come back as "123.00"
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
		return time.Unix(n, 0).UTC(), true
	}
	return time.Time{}, false
}
