package mysql

import (
	"net"
	"strconv"
	"time"

	driver "github.com/go-sql-driver/mysql"
)

// Config holds the MySQL connection settings
type Config struct {
	Enabled        bool          `yaml:"enabled"`
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Database       string        `yaml:"database"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	MaxOpenConns   int           `yaml:"max_open_conns"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// DefaultConfig returns a disabled config pointing at a local server
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		Host:           "localhost",
		Port:           3306,
		Database:       "cs2_hud",
		Username:       "root",
		MaxOpenConns:   10,
		ConnectTimeout: 5 * time.Second,
	}
}

// DSN renders the connection string for the driver
func (c Config) DSN() string {
	dc := driver.NewConfig()
	dc.User = c.Username
	dc.Passwd = c.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	dc.DBName = c.Database
	dc.ParseTime = true
	dc.Loc = time.UTC
	dc.Timeout = c.ConnectTimeout
	dc.Params = map[string]string{"charset": "utf8mb4"}
	return dc.FormatDSN()
}
