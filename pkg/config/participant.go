package config

import (
	goflag "flag"
	"time"

	flag "github.com/spf13/pflag"
)

type ParticipantConfig struct {
	Participant struct {
		Debug bool   `fig:"debug"`
		Relay string `fig:"relay" default:"ws://localhost:8000/ws"`
		Room  string `fig:"room" default:"default"`
		// Random walk for soak testing relay deployments.
		Walk struct {
			Enabled  bool          `fig:"enabled"`
			Interval time.Duration `fig:"interval" default:"2s"`
			MaxStep  float64       `fig:"maxStep" default:"300"`
		}
	}
	Proximity Proximity
	Webrtc    Webrtc
}

// allows custom config path
var participantConfigPath string

func NewParticipantConfig() (conf ParticipantConfig) {
	if err := LoadConfig(&conf, participantConfigPath); err != nil {
		panic(err)
	}
	if err := conf.Proximity.Validate(); err != nil {
		panic(err)
	}
	return
}

func (c *ParticipantConfig) ParseFlags() {
	c.AddFlags(flag.CommandLine)
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.Parse()
}

func (c *ParticipantConfig) AddFlags(fs *flag.FlagSet) *ParticipantConfig {
	fs.StringVarP(&participantConfigPath, "conf", "c", participantConfigPath, "Set custom configuration file path")
	fs.BoolVarP(&c.Participant.Debug, "debug", "d", c.Participant.Debug, "Set debug logging level")
	fs.StringVarP(&c.Participant.Relay, "relay", "r", c.Participant.Relay, "Relay websocket URL")
	fs.StringVarP(&c.Participant.Room, "room", "", c.Participant.Room, "Room to join")
	fs.BoolVarP(&c.Participant.Walk.Enabled, "walk", "w", c.Participant.Walk.Enabled, "Enable random walking")
	return c
}
