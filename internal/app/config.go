package app

import (
	"errors"
	"fmt"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ScriptPath string // .hcl workflow scripts, a file or a directory

	Driver    string // "webdriver" or "devtools"
	DriverURL string // remote end / debugger URL

	LogFormat     string
	LogLevel      string
	StatusPort    int // 0 disables the status server
	WorkerCount   int // concurrency the session safely tolerates
	QueueCapacity int // pending-phase bound; 0 means unbounded
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ScriptPath == "" {
		return nil, errors.New("ScriptPath is a required configuration field and cannot be empty")
	}
	switch cfg.Driver {
	case "webdriver", "devtools":
	default:
		return nil, fmt.Errorf("unknown driver %q: must be 'webdriver' or 'devtools'", cfg.Driver)
	}
	if cfg.DriverURL == "" {
		return nil, errors.New("DriverURL is a required configuration field and cannot be empty")
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	return &cfg, nil
}
