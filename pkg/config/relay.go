package config

import (
	goflag "flag"

	flag "github.com/spf13/pflag"
)

type RelayConfig struct {
	Relay struct {
		Debug       bool   `fig:"debug"`
		DefaultRoom string `fig:"defaultRoom" default:"default"`
		Frontend    string `fig:"frontend" default:"./web"`
		Origin      string `fig:"origin"`
		Monitoring  Monitoring
		Room        Room
		Server      Server
	}
}

// allows custom config path
var relayConfigPath string

func NewRelayConfig() (conf RelayConfig) {
	if err := LoadConfig(&conf, relayConfigPath); err != nil {
		panic(err)
	}
	return
}

func (c *RelayConfig) ParseFlags() {
	c.AddFlags(flag.CommandLine)
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.Parse()
}

func (c *RelayConfig) AddFlags(fs *flag.FlagSet) *RelayConfig {
	fs.StringVarP(&relayConfigPath, "conf", "c", relayConfigPath, "Set custom configuration file path")
	fs.BoolVarP(&c.Relay.Debug, "debug", "d", c.Relay.Debug, "Set debug logging level")
	fs.StringVarP(&c.Relay.Server.Address, "address", "a", c.Relay.Server.Address, "Relay server address")
	fs.IntVarP(&c.Relay.Monitoring.Port, "monitoring.port", "", c.Relay.Monitoring.Port, "Monitoring server port")
	return c
}
