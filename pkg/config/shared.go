package config

import "fmt"

type Server struct {
	Address string `fig:"address" default:":8000"`
	Https   bool   `fig:"https"`
	Tls     struct {
		Address string `fig:"address" default:":443"`
		Domain  string `fig:"domain"`
		Cert    string `fig:"cert"`
		Key     string `fig:"key"`
	}
}

type Monitoring struct {
	Port             int    `fig:"port" default:"6601"`
	URLPrefix        string `fig:"urlPrefix"`
	MetricEnabled    bool   `fig:"metric"`
	ProfilingEnabled bool   `fig:"profiling"`
}

func (m Monitoring) IsEnabled() bool { return m.MetricEnabled || m.ProfilingEnabled }

// Room describes the authoritative bounds of every room.
type Room struct {
	Width  float64 `fig:"width" default:"1500"`
	Height float64 `fig:"height" default:"5000"`
	// New participants spawn inside [0,width) x [0,min(height,spawnBand)).
	SpawnBand float64 `fig:"spawnBand" default:"700"`
}

// Proximity holds the distance thresholds of the admission decision.
type Proximity struct {
	MinDistance        float64 `fig:"minDistance" default:"100"`
	MaxDistance        float64 `fig:"maxDistance" default:"600"`
	ConnectionDistance float64 `fig:"connectionDistance" default:"2000"`
}

// Validate checks that every pair with nonzero closeness is also
// connection-eligible.
func (p Proximity) Validate() error {
	if p.ConnectionDistance < p.MaxDistance {
		return fmt.Errorf("connectionDistance %v < maxDistance %v", p.ConnectionDistance, p.MaxDistance)
	}
	return nil
}

type Webrtc struct {
	DisableDefaultInterceptors bool        `fig:"disableDefaultInterceptors"`
	IceServers                 []IceServer `fig:"iceServers"`
	LogLevel                   int         `fig:"logLevel" default:"3"`
}

type IceServer struct {
	Urls       string `fig:"urls" json:"urls,omitempty"`
	Username   string `fig:"username" json:"username,omitempty"`
	Credential string `fig:"credential" json:"credential,omitempty"`
}

// WithDefaultIce falls back to a public STUN server when no ICE
// servers are configured.
func (w Webrtc) WithDefaultIce() Webrtc {
	if len(w.IceServers) == 0 {
		w.IceServers = []IceServer{{Urls: "stun:stun.l.google.com:19302"}}
	}
	return w
}
