package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds all user-facing configuration for tilewalk.
type Config struct {
	Data   DataConfig   `toml:"data"`
	Feed   FeedConfig   `toml:"feed"`
	Tiles  TilesConfig  `toml:"tiles"`
	Fetch  FetchConfig  `toml:"fetch"`
	Server ServerConfig `toml:"server"`
}

type DataConfig struct {
	Dir string `toml:"dir"`
}

type FeedConfig struct {
	URL string `toml:"url"`
}

type TilesConfig struct {
	URLTemplate string `toml:"url_template"`
	Zoom        int    `toml:"zoom"`
	Dir         string `toml:"dir"`
}

type FetchConfig struct {
	RateLimit  float64 `toml:"rate_limit"`
	UserAgent  string  `toml:"user_agent"`
	FlushEvery int     `toml:"flush_every"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Defaults returns a Config populated with built-in default values.
// The 2 req/s fetch rate is the 500 ms inter-request spacing the tile
// service tolerates.
func Defaults() *Config {
	return &Config{
		Data: DataConfig{Dir: "data"},
		Feed: FeedConfig{URL: ""},
		Tiles: TilesConfig{
			URLTemplate: "",
			Zoom:        11,
			Dir:         "tiles",
		},
		Fetch: FetchConfig{
			RateLimit:  2.0,
			UserAgent:  "tilewalk/1.0 (+https://github.com/mapfeed/tilewalk)",
			FlushEvery: 20,
		},
		Server: ServerConfig{Host: "localhost", Port: 8080},
	}
}

// Load reads a TOML config file. If the file does not exist, built-in
// defaults are returned without error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
