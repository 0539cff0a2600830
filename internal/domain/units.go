package domain

import (
	"fmt"
	"strings"
)

// CmPerInch is the fixed inch to centimetre factor.
const CmPerInch = 2.54

// Unit is a presentation unit for lengths. Storage is always inches.
type Unit string

const (
	UnitInches Unit = "in"
	UnitCm     Unit = "cm"
)

// ParseUnit accepts common spellings of in/cm.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "in", "inch", "inches", `"`:
		return UnitInches, nil
	case "cm", "centimeter", "centimeters", "centimetre", "centimetres":
		return UnitCm, nil
	default:
		return "", fmt.Errorf("unknown unit %q", s)
	}
}

// InchesToCm converts inches to centimetres.
func InchesToCm(v float64) float64 { return v * CmPerInch }

// CmToInches converts centimetres to inches.
func CmToInches(v float64) float64 { return v / CmPerInch }

// ToInches converts a value expressed in u to inches.
func ToInches(v float64, u Unit) float64 {
	if u == UnitCm {
		return CmToInches(v)
	}
	return v
}

// FromInches converts an inch value to u for display.
func FromInches(v float64, u Unit) float64 {
	if u == UnitCm {
		return InchesToCm(v)
	}
	return v
}

// FormatLength renders an inch value in the given unit.
func FormatLength(valueIn *float64, u Unit) string {
	if valueIn == nil {
		return ""
	}
	return fmt.Sprintf("%.2f %s", FromInches(*valueIn, u), u)
}
