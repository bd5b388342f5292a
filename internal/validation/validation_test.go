package validation

import (
	"math"
	"strings"
	"testing"
)

func TestValidateSensorID_Accepts(t *testing.T) {
	valid := []string{
		"sensor_01",
		"roof-east",
		"lab.floor2.north",
		"A1",
		"x",
	}
	for _, id := range valid {
		if err := ValidateDefaultSensorID(id); err != nil {
			t.Errorf("expected %q valid, got %v", id, err)
		}
	}
}

func TestValidateSensorID_Rejects(t *testing.T) {
	invalid := []string{
		"",
		".",
		"..",
		"a/b",
		"a\\b",
		"has space",
		"tab\there",
		"ctrl\x01char",
		strings.Repeat("x", 65),
	}
	for _, id := range invalid {
		if err := ValidateDefaultSensorID(id); err == nil {
			t.Errorf("expected %q rejected", id)
		}
	}
}

func TestValidateSensorID_CustomRules(t *testing.T) {
	rules := SensorIDRules{MinLength: 3, MaxLength: 8, AllowUnders: true}

	if err := ValidateSensorID("ab", rules); err == nil {
		t.Error("expected too-short id rejected")
	}
	if err := ValidateSensorID("abc.def", rules); err == nil {
		t.Error("expected dot rejected when disallowed")
	}
	if err := ValidateSensorID("abc_def", rules); err != nil {
		t.Errorf("expected underscore allowed: %v", err)
	}
}

func TestValidateTemperature(t *testing.T) {
	if err := ValidateTemperature(21.5, -50, 60); err != nil {
		t.Errorf("expected in-range accepted: %v", err)
	}
	if err := ValidateTemperature(-50, -50, 60); err != nil {
		t.Errorf("expected lower bound inclusive: %v", err)
	}
	if err := ValidateTemperature(60, -50, 60); err != nil {
		t.Errorf("expected upper bound inclusive: %v", err)
	}
	if err := ValidateTemperature(60.01, -50, 60); err == nil {
		t.Error("expected above-range rejected")
	}
	if err := ValidateTemperature(-50.01, -50, 60); err == nil {
		t.Error("expected below-range rejected")
	}
	if err := ValidateTemperature(math.NaN(), -50, 60); err == nil {
		t.Error("expected NaN rejected")
	}
}
