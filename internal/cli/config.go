package cli

import (
	"os"
)

// Config holds CLI configuration
type Config struct {
	ServerURL  string
	ConfigPath string
	EnvFile    string
	Output     string
	Verbose    bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:  getEnvOrDefault("HUD_SERVER", "http://127.0.0.1:8090"),
		ConfigPath: os.Getenv("HUD_CONFIG"),
		Output:     "text",
		Verbose:    false,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
