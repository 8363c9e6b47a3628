package redis

import (
	"fmt"

	"github.com/mcoot/ingamehud/internal/model"
)

// Key prefix for all HUD data
const keyPrefix = "ingamehud"

// Hash fields of a settings record
const (
	fieldEnabled   = "hud_enabled"
	fieldPosition  = "hud_position"
	fieldLanguage  = "language"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// settingsKey returns the Redis key for a player's settings hash
func settingsKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:settings:%s", keyPrefix, id)
}
