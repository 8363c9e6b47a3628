// Package display defines the HUD output channel. Drawing the text on screen
// belongs to the host; this package only decides what the block says.
package display

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mcoot/ingamehud/internal/model"
)

// Display shows or hides a player's HUD text block
type Display interface {
	Show(settings model.PlayerSettings)
	Remove(id model.PlayerID)
}

// Render builds the text block for a player
func Render(s model.PlayerSettings) string {
	var b strings.Builder
	if s.Credits != 0 {
		fmt.Fprintf(&b, "Credits: %d\n", s.Credits)
	}
	if s.PlaytimeSeconds != 0 {
		fmt.Fprintf(&b, "Playtime: %s\n", formatPlaytime(s.PlaytimeSeconds))
	}
	if s.LastSignIn != nil {
		fmt.Fprintf(&b, "Last sign-in: %s\n", s.LastSignIn.Format("2006-01-02"))
	}
	for _, key := range []string{model.CustomDataDisplay1, model.CustomDataDisplay2, model.CustomDataDisplay3} {
		if v := s.Custom[key]; v != "" {
			b.WriteString(v)
			b.WriteByte('\n')
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func formatPlaytime(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// LogDisplay writes display requests to the log. Used when the process runs
// without a host attached.
type LogDisplay struct {
	logger *slog.Logger
}

// NewLogDisplay creates a LogDisplay
func NewLogDisplay(logger *slog.Logger) *LogDisplay {
	return &LogDisplay{logger: logger}
}

// Ensure LogDisplay implements Display
var _ Display = (*LogDisplay)(nil)

func (d *LogDisplay) Show(s model.PlayerSettings) {
	d.logger.Debug("hud shown",
		slog.String("player_id", string(s.ID)),
		slog.String("position", s.HUDPosition.String()),
		slog.String("language", s.Language),
		slog.String("text", Render(s)),
	)
}

func (d *LogDisplay) Remove(id model.PlayerID) {
	d.logger.Debug("hud removed", slog.String("player_id", string(id)))
}
