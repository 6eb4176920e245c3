// Package config holds runtime settings for the sync client.
package config

import (
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/opsync/internal/flagx"
	"github.com/dmitrijs2005/opsync/internal/timex"
)

// Config holds runtime settings for the sync client.
//
// Fields:
//   - ServerEndpointAddr: base URL of the sync server (scheme://host:port).
//   - DatabaseDSN: path of the local SQLite database.
//   - PushPageSize: budget of operations per push request.
//   - PullPageSize: records requested per pull page.
//   - HTTPTimeout: timeout applied to every sync request.
type Config struct {
	ServerEndpointAddr string
	DatabaseDSN        string
	PushPageSize       int
	PullPageSize       int
	HTTPTimeout        time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.DatabaseDSN = "opsync.db"
	c.PushPageSize = 100
	c.PullPageSize = 100
	c.HTTPTimeout = 30 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

// jsonConfig is a DTO used exclusively for JSON unmarshalling. Zero values
// mean "not set" and keep the previous layer's value.
type jsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	DatabaseDSN        string         `json:"database_dsn"`
	PushPageSize       int            `json:"push_page_size"`
	PullPageSize       int            `json:"pull_page_size"`
	HTTPTimeout        timex.Duration `json:"http_timeout"`
}

func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.PushPageSize > 0 {
		cfg.PushPageSize = jc.PushPageSize
	}
	if jc.PullPageSize > 0 {
		cfg.PullPageSize = jc.PullPageSize
	}
	if jc.HTTPTimeout.Duration > 0 {
		cfg.HTTPTimeout = jc.HTTPTimeout.Duration
	}
}

func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d"})

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "base URL of the sync server")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "path of the local database")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
