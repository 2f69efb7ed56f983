package matcher

import (
	"errors"
	"fmt"
	"math"
)

// Config holds matcher configuration
type Config struct {
	DateWindowDays     int     // Days either side of the receipt date (default: 5)
	AmountTolerance    float64 // Absolute amount tolerance (default: 1.00)
	AmountTolerancePct float64 // Relative tolerance as a fraction of the receipt amount (default: 0.05)

	AmountWeight float64 // default: 0.45
	DateWeight   float64 // default: 0.35
	TextWeight   float64 // default: 0.20

	WindowEdgeScore float64 // Sub-score at the edge of a window (default: 50)
	MinScore        float64 // Matches below this confidence are discarded (default: 40)
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		DateWindowDays:     5,
		AmountTolerance:    1.00,
		AmountTolerancePct: 0.05,
		AmountWeight:       0.45,
		DateWeight:         0.35,
		TextWeight:         0.20,
		WindowEdgeScore:    50,
		MinScore:           40,
	}
}

// Validate rejects configurations the scorer cannot work with.
func (c Config) Validate() error {
	var errs []error
	for name, v := range map[string]float64{
		"amount tolerance":     c.AmountTolerance,
		"amount tolerance pct": c.AmountTolerancePct,
		"amount weight":        c.AmountWeight,
		"date weight":          c.DateWeight,
		"text weight":          c.TextWeight,
		"window edge score":    c.WindowEdgeScore,
		"min score":            c.MinScore,
	} {
		if !IsFinite(v) {
			errs = append(errs, fmt.Errorf("%s must be a finite number, got %v", name, v))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if c.DateWindowDays < 0 {
		errs = append(errs, fmt.Errorf("date window must be >= 0, got %d", c.DateWindowDays))
	}
	if c.AmountTolerance < 0 {
		errs = append(errs, fmt.Errorf("amount tolerance must be >= 0, got %v", c.AmountTolerance))
	}
	if c.AmountTolerancePct < 0 || c.AmountTolerancePct > 1 {
		errs = append(errs, fmt.Errorf("amount tolerance pct must be in [0,1], got %v", c.AmountTolerancePct))
	}
	if c.AmountWeight < 0 || c.DateWeight < 0 || c.TextWeight < 0 {
		errs = append(errs, errors.New("weights must be >= 0"))
	}
	if c.AmountWeight+c.DateWeight+c.TextWeight <= 0 {
		errs = append(errs, errors.New("at least one weight must be positive"))
	}
	if c.WindowEdgeScore < 0 || c.WindowEdgeScore > 100 {
		errs = append(errs, fmt.Errorf("window edge score must be in [0,100], got %v", c.WindowEdgeScore))
	}
	if c.MinScore < 0 || c.MinScore > 100 {
		errs = append(errs, fmt.Errorf("min score must be in [0,100], got %v", c.MinScore))
	}
	return errors.Join(errs...)
}

// IsFinite reports whether v is neither NaN nor an infinity.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
