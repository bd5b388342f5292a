// Package validation provides centralized input validation for weatherd.
package validation

import (
	"fmt"
	"unicode"
)

// =============================================================================
// Sensor ID Validation
// =============================================================================

// SensorIDRules defines the validation rules for sensor identifiers.
type SensorIDRules struct {
	MinLength    int
	MaxLength    int
	AllowDots    bool
	AllowHyphens bool
	AllowUnders  bool
}

// DefaultSensorIDRules returns the default rules for sensor IDs.
// IDs end up in cache keys, log lines and file names, so the charset
// is kept narrow.
func DefaultSensorIDRules() SensorIDRules {
	return SensorIDRules{
		MinLength:    1,
		MaxLength:    64,
		AllowDots:    true,
		AllowHyphens: true,
		AllowUnders:  true,
	}
}

// ValidateSensorID validates a sensor ID according to the given rules.
func ValidateSensorID(id string, rules SensorIDRules) error {
	if len(id) < rules.MinLength {
		return fmt.Errorf("sensor id too short: minimum %d characters required", rules.MinLength)
	}
	if len(id) > rules.MaxLength {
		return fmt.Errorf("sensor id too long: maximum %d characters allowed", rules.MaxLength)
	}

	if id == "." || id == ".." {
		return fmt.Errorf("sensor id cannot be '.' or '..'")
	}

	for i, r := range id {
		if r < 32 || r == 127 {
			return fmt.Errorf("sensor id cannot contain control characters at position %d", i)
		}
		if r == '/' || r == '\\' {
			return fmt.Errorf("sensor id cannot contain path separators at position %d", i)
		}
		if !isAllowedIDChar(r, rules) {
			return fmt.Errorf("invalid character '%c' at position %d", r, i)
		}
	}

	return nil
}

func isAllowedIDChar(r rune, rules SensorIDRules) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.':
		return rules.AllowDots
	case '-':
		return rules.AllowHyphens
	case '_':
		return rules.AllowUnders
	}
	return false
}

// ValidateDefaultSensorID validates a sensor ID with the default rules.
func ValidateDefaultSensorID(id string) error {
	return ValidateSensorID(id, DefaultSensorIDRules())
}

// =============================================================================
// Temperature Validation
// =============================================================================

// ValidateTemperature checks a reading against the accepted range.
func ValidateTemperature(value, min, max float64) error {
	if value != value { // NaN
		return fmt.Errorf("temperature cannot be NaN")
	}
	if value < min || value > max {
		return fmt.Errorf("temperature %.2f outside [%.0f, %.0f]", value, min, max)
	}
	return nil
}
