// internal/workers/checklist/enrich-checklist/config.go
package enrichchecklist

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		// Budget for one collaborator round trip plus prompt assembly.
		Timeout: 90 * time.Second,
	}
}
