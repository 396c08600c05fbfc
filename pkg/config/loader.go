package config

import (
	"errors"

	"github.com/kkyr/fig"
)

const EnvPrefix = "SOCIAL"

// LoadConfig loads a configuration file into the given struct.
// The path param specifies a custom path to the configuration file.
// Reads and puts environment variables with the prefix SOCIAL_.
// Params from the config should be in uppercase separated with _.
// A missing file is not an error: defaults and env vars still apply.
func LoadConfig(config any, path string) error {
	dirs := []string{".", "configs", "../../configs"}
	if path != "" {
		dirs = []string{path}
	}
	err := fig.Load(config, fig.File("config.yaml"), fig.Dirs(dirs...), fig.UseEnv(EnvPrefix))
	if errors.Is(err, fig.ErrFileNotFound) {
		return fig.Load(config, fig.IgnoreFile(), fig.UseEnv(EnvPrefix))
	}
	return err
}
