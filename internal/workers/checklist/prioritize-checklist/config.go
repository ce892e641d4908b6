// internal/workers/checklist/prioritize-checklist/config.go
package prioritizechecklist

import "time"

type Config struct {
	Timeout time.Duration

	// Boost is how many priority slots a group moves up per matching signal.
	Boost int
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
		Boost:   2,
	}
}
