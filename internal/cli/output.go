package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Settings:
		o.printSettings(v)
	case CommandResult:
		o.printSettings(v.Settings)
		if !v.Saved {
			o.printf("Warning: change applied but not yet saved\n")
		}
	case PlayerList:
		o.printPlayerList(v)
	case HealthResult:
		o.printHealthResult(v)
	case CheckResult:
		o.printCheckResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, format, args...)
}

// Settings response type (matches API)
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
}

// CommandResult response type
type CommandResult struct {
	Settings Settings `json:"settings"`
	Saved    bool     `json:"saved"`
}

// PlayerList response type
type PlayerList struct {
	Players []string `json:"players"`
}

// HealthResult response type
type HealthResult struct {
	Status           string `json:"status"`
	StorageConnected bool   `json:"storage_connected"`
	StorageProvider  string `json:"storage_provider,omitempty"`
}

// CheckResult reports a local storage check
type CheckResult struct {
	Provider string         `json:"provider,omitempty"`
	Attempts []CheckAttempt `json:"attempts"`
}

// CheckAttempt is one provider tried during a check
type CheckAttempt struct {
	Provider string `json:"provider"`
	Error    string `json:"error,omitempty"`
}

func (o *Output) printSettings(s Settings) {
	enabled := "off"
	if s.HUDEnabled {
		enabled = "on"
	}
	o.printf("Player: %s (%s)\n", s.PlayerID, s.Phase)
	o.printf("HUD: %s\n", enabled)
	o.printf("Position: %s (%d)\n", s.PositionName, s.HUDPosition)
	o.printf("Language: %s\n", s.Language)

	if s.Credits != 0 {
		o.printf("Credits: %d\n", s.Credits)
	}
	if s.PlaytimeSeconds != 0 {
		o.printf("Playtime: %s\n", time.Duration(s.PlaytimeSeconds)*time.Second)
	}
	if s.LastSignIn != nil {
		o.printf("Last sign-in: %s\n", s.LastSignIn.Format(time.DateOnly))
	}

	keys := make([]string, 0, len(s.Custom))
	for k := range s.Custom {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		o.printf("%s: %s\n", k, s.Custom[k])
	}
}

func (o *Output) printPlayerList(l PlayerList) {
	if len(l.Players) == 0 {
		o.printf("No players connected\n")
		return
	}
	o.printf("Players (%d):\n", len(l.Players))
	o.printf("  %s\n", strings.Join(l.Players, "\n  "))
}

func (o *Output) printHealthResult(h HealthResult) {
	o.printf("Status: %s\n", h.Status)
	if h.StorageConnected {
		o.printf("Storage: %s\n", h.StorageProvider)
	} else {
		o.printf("Storage: disconnected (settings will not persist)\n")
	}
}

func (o *Output) printCheckResult(c CheckResult) {
	for _, a := range c.Attempts {
		if a.Error != "" {
			o.printf("  %s: unavailable (%s)\n", a.Provider, a.Error)
		} else {
			o.printf("  %s: ok\n", a.Provider)
		}
	}
	if c.Provider == "" {
		o.printf("No storage provider available\n")
		return
	}
	o.printf("Active provider: %s\n", c.Provider)
}
