package parfor

import (
	"runtime"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
)

// Config is the file/environment form of the scheduler options. Every field
// can be set from YAML or from its PARFOR_* environment variable; the
// environment wins.
type Config struct {
	Workers            int           `yaml:"workers" env:"PARFOR_WORKERS" env-default:"0" env-description:"target thread count, 0 means GOMAXPROCS"`
	FirstBundleDivisor int           `yaml:"first_bundle_divisor" env:"PARFOR_FIRST_BUNDLE_DIVISOR" env-default:"10" env-description:"first bundle is items/(workers*divisor)"`
	TargetBundleTime   time.Duration `yaml:"target_bundle_time" env:"PARFOR_TARGET_BUNDLE_TIME" env-default:"5ms" env-description:"wall time each adaptive bundle aims for"`
	CostEpsilon        time.Duration `yaml:"cost_epsilon" env:"PARFOR_COST_EPSILON" env-default:"1us" env-description:"run time below which items are treated as free"`
	MaxErrors          int           `yaml:"max_errors" env:"PARFOR_MAX_ERRORS" env-default:"0" env-description:"item errors stored per run, 0 means unlimited"`
	RaisePanics        bool          `yaml:"raise_panics" env:"PARFOR_RAISE_PANICS" env-default:"false" env-description:"re-raise callback panics in the caller instead of returning them as errors"`
	LogLevel           string        `yaml:"log_level" env:"PARFOR_LOG_LEVEL" env-default:"info" env-description:"logging level such as debug, info, warn"`
}

// LoadConfig reads the configuration from the YAML file at path, if path is
// not empty, and then from the environment. The result is validated.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to read config from environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid field, wrapping [ErrInvalidConfig].
func (c *Config) Validate() error {
	switch {
	case c.Workers < 0:
		return errors.Wrapf(ErrInvalidConfig, "workers must be >= 0, got %d", c.Workers)
	case c.FirstBundleDivisor <= 0:
		return errors.Wrapf(ErrInvalidConfig, "first_bundle_divisor must be > 0, got %d", c.FirstBundleDivisor)
	case c.TargetBundleTime <= 0:
		return errors.Wrapf(ErrInvalidConfig, "target_bundle_time must be > 0, got %s", c.TargetBundleTime)
	case c.CostEpsilon < 0:
		return errors.Wrapf(ErrInvalidConfig, "cost_epsilon must be >= 0, got %s", c.CostEpsilon)
	case c.MaxErrors < 0:
		return errors.Wrapf(ErrInvalidConfig, "max_errors must be >= 0, got %d", c.MaxErrors)
	}
	return nil
}

// CPUs returns the thread count to pass to [New].
func (c *Config) CPUs() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Options converts the configuration to scheduler options. Logging is left
// to the caller, see [WithLogger].
func (c *Config) Options() []Option {
	return []Option{
		WithFirstBundleDivisor(c.FirstBundleDivisor),
		WithTargetBundleTime(c.TargetBundleTime),
		WithCostEpsilon(c.CostEpsilon),
		WithMaxErrors(c.MaxErrors),
		WithPanicAsError(!c.RaisePanics),
	}
}
