package response

import (
	"time"

	"github.com/mcoot/ingamehud/internal/model"
)

// Settings represents a player's settings in API responses
type Settings struct {
	PlayerID        string            `json:"player_id"`
	Phase           string            `json:"phase"`
	HUDEnabled      bool              `json:"hud_enabled"`
	HUDPosition     int               `json:"hud_position"`
	PositionName    string            `json:"hud_position_name"`
	Language        string            `json:"language"`
	Credits         int64             `json:"credits,omitempty"`
	PlaytimeSeconds int64             `json:"playtime_seconds,omitempty"`
	LastSignIn      *time.Time        `json:"last_signin,omitempty"`
	Custom          map[string]string `json:"custom,omitempty"`
	LastUpdated     *time.Time        `json:"last_updated,omitempty"`
}

// SettingsFromModel converts model.PlayerSettings
func SettingsFromModel(s model.PlayerSettings, phase string) Settings {
	var updated *time.Time
	if !s.LastUpdated.IsZero() {
		t := s.LastUpdated
		updated = &t
	}
	return Settings{
		PlayerID:        string(s.ID),
		Phase:           phase,
		HUDEnabled:      s.HUDEnabled,
		HUDPosition:     int(s.HUDPosition),
		PositionName:    s.HUDPosition.String(),
		Language:        s.Language,
		Credits:         s.Credits,
		PlaytimeSeconds: s.PlaytimeSeconds,
		LastSignIn:      s.LastSignIn,
		Custom:          s.Custom,
		LastUpdated:     updated,
	}
}

// CommandResponse is the response after applying a command
type CommandResponse struct {
	Settings Settings `json:"settings"`
	// Saved is false when the save did not finish before the response
	Saved bool `json:"saved"`
}

// PlayerList is the response for listing tracked players
type PlayerList struct {
	Players []string `json:"players"`
}

// Health is the response for the health check
type Health struct {
	Status           string `json:"status"`
	StorageConnected bool   `json:"storage_connected"`
	StorageProvider  string `json:"storage_provider,omitempty"`
}
