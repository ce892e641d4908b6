// internal/workers/verification/verify-document/config.go
package verifydocument

import "time"

type Config struct {
	Timeout time.Duration

	// MaxDocumentChars caps how much extracted document text goes into the
	// prompt.
	MaxDocumentChars int

	// Verdict field length bounds. Oversized fields are truncated, never
	// rejected.
	MaxShortReason    int
	MaxNotes          int
	MaxTechnicalNotes int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:           90 * time.Second,
		MaxDocumentChars:  8000,
		MaxShortReason:    200,
		MaxNotes:          500,
		MaxTechnicalNotes: 1000,
	}
}
