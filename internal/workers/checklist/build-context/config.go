// internal/workers/checklist/build-context/config.go
package buildcontext

import "time"

// Config carries the derivation thresholds. Cut points are ordered
// low < borderline < sufficient < strong for financial labels and
// weak < moderate < strong for ties; the defaults below are the documented
// choices, overridable from the engine config section.
type Config struct {
	Timeout time.Duration

	FinancialBorderline float64
	FinancialSufficient float64
	FinancialStrong     float64

	TiesModerate float64
	TiesStrong   float64

	// FundsPerDay maps country code to the per-day funds estimate used when
	// the rule set carries no financial rule. DefaultFundsPerDay applies to
	// unlisted countries. MinStayDays is the floor for the estimate basis so
	// a 3-day trip still requires a sane minimum.
	FundsPerDay        map[string]float64
	DefaultFundsPerDay float64
	MinStayDays        int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:             10 * time.Second,
		FinancialBorderline: 0.7,
		FinancialSufficient: 1.0,
		FinancialStrong:     1.5,
		TiesModerate:        0.4,
		TiesStrong:          0.7,
		FundsPerDay: map[string]float64{
			"US": 120,
			"GB": 100,
			"DE": 80,
			"FR": 80,
			"IT": 80,
			"ES": 80,
		},
		DefaultFundsPerDay: 75,
		MinStayDays:        30,
	}
}
