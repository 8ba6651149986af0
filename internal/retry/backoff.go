package retry

import (
	"math"
	"time"
)

// Delay returns how long to wait after the given zero-indexed attempt failed:
// min(InitialDelay * ExponentialBase^attempt, MaxDelay).
func Delay(attempt int, cfg Config) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if cfg.MaxDelay <= 0 || cfg.InitialDelay <= 0 {
		return 0
	}

	base := cfg.ExponentialBase
	if base <= 0 {
		base = 1
	}

	d := float64(cfg.InitialDelay) * math.Pow(base, float64(attempt))
	if math.IsNaN(d) || math.IsInf(d, 0) || d >= float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(d)
}
