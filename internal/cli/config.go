package cli

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/canopyviz/canopy/pkg/pipeline"
)

// defaultConfigFile is picked up from the working directory when present.
const defaultConfigFile = "canopy.toml"

// Config holds project-level defaults loaded from canopy.toml. Flags given
// on the command line take precedence over config values.
type Config struct {
	Resolutions []int    `toml:"resolutions"`
	MinSize     int      `toml:"min_size"`
	Output      string   `toml:"output"`
	Formats     []string `toml:"formats"`
	Detailed    bool     `toml:"detailed"`
	Annotate    bool     `toml:"annotate"`
}

// loadConfig reads a TOML config file. With an empty path it tries
// canopy.toml in the working directory and reports found=false when the file
// does not exist; an explicit path that cannot be read is an error.
func loadConfig(path string) (cfg Config, found bool, err error) {
	explicit := path != ""
	if path == "" {
		path = defaultConfigFile
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) && !explicit {
			return Config{}, false, nil
		}
		return Config{}, false, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, true, nil
}

// apply fills unset pipeline options from the config.
func (c Config) apply(opts *pipeline.Options) {
	if len(opts.Resolutions) == 0 {
		opts.Resolutions = c.Resolutions
	}
	if opts.MinSize == 0 {
		opts.MinSize = c.MinSize
	}
	if opts.OutputDir == "" {
		opts.OutputDir = c.Output
	}
	if len(opts.Formats) == 0 {
		opts.Formats = c.Formats
	}
	if !opts.Detailed {
		opts.Detailed = c.Detailed
	}
	if !opts.Annotate {
		opts.Annotate = c.Annotate
	}
}
