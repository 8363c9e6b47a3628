package storage

import (
	"regexp"

	"github.com/mcoot/ingamehud/internal/model"
)

// CustomField locates one read-only custom data value in an externally owned table
type CustomField struct {
	Enabled  bool   `yaml:"enabled"`
	Schema   string `yaml:"schema"`
	Table    string `yaml:"table"`
	Column   string `yaml:"column"`
	IDColumn string `yaml:"id_column"`
}

// NamedField pairs a field with the custom data key it resolves
type NamedField struct {
	Key string
	CustomField
}

// CustomDataConfig lists the custom data sources shown on the HUD
type CustomDataConfig struct {
	Credits  CustomField `yaml:"credits"`
	Playtime CustomField `yaml:"playtime"`
	Signin   CustomField `yaml:"signin"`
	Display1 CustomField `yaml:"display1"`
	Display2 CustomField `yaml:"display2"`
	Display3 CustomField `yaml:"display3"`
}

// DefaultCustomDataConfig mirrors the tables most servers already have
func DefaultCustomDataConfig() CustomDataConfig {
	return CustomDataConfig{
		Credits: CustomField{
			Table:    "store_players",
			Column:   "credits",
			IDColumn: "steam_id",
		},
		Playtime: CustomField{
			Enabled:  true,
			Table:    "players_stats",
			Column:   "playtime",
			IDColumn: "steam_id",
		},
		Signin: CustomField{
			Enabled:  true,
			Table:    "player_signin",
			Column:   "last_signin",
			IDColumn: "steamid64",
		},
	}
}

// Enabled returns only the fields that should be queried, in display order
func (c CustomDataConfig) Enabled() []NamedField {
	all := []NamedField{
		{Key: model.CustomDataCredits, CustomField: c.Credits},
		{Key: model.CustomDataPlaytime, CustomField: c.Playtime},
		{Key: model.CustomDataLastSignIn, CustomField: c.Signin},
		{Key: model.CustomDataDisplay1, CustomField: c.Display1},
		{Key: model.CustomDataDisplay2, CustomField: c.Display2},
		{Key: model.CustomDataDisplay3, CustomField: c.Display3},
	}
	var out []NamedField
	for _, f := range all {
		if f.Enabled {
			out = append(out, f)
		}
	}
	return out
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]{0,63}$`)

// ValidIdentifier reports whether s can be safely quoted as a table, schema
// or column name. Custom data identifiers come from configuration and are
// interpolated into queries, so anything else is rejected.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}
