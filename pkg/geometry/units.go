package geometry

import (
	"fmt"
	"strings"
)

// LengthUnit is a linear unit used for buffer and query distances.
type LengthUnit int

const (
	UnitUnknown LengthUnit = iota
	Feet
	USSurveyFeet
	Meters
	Kilometers
	Miles
	NauticalMiles
	Yards
)

type unitInfo struct {
	name     string
	meters   float64
	esriCode int
	esriName string
	aliases  []string
}

var units = map[LengthUnit]unitInfo{
	Feet:          {"feet", 0.3048, 9002, "esriSRUnit_Foot", []string{"foot", "ft", "esrisrunit_foot", "esrifeet"}},
	USSurveyFeet:  {"us-feet", 1200.0 / 3937.0, 9003, "esriSRUnit_SurveyFoot", []string{"us-foot", "survey-feet", "esrisrunit_surveyfoot"}},
	Meters:        {"meters", 1, 9001, "esriSRUnit_Meter", []string{"meter", "metres", "m", "esrisrunit_meter", "esrimeters"}},
	Kilometers:    {"kilometers", 1000, 9036, "esriSRUnit_Kilometer", []string{"kilometer", "km", "esrisrunit_kilometer", "esrikilometers"}},
	Miles:         {"miles", 1609.344, 9093, "esriSRUnit_StatuteMile", []string{"mile", "mi", "esrisrunit_statutemile", "esrimiles"}},
	NauticalMiles: {"nautical-miles", 1852, 9030, "esriSRUnit_NauticalMile", []string{"nautical-mile", "nmi", "nm", "esrisrunit_nauticalmile", "esrinauticalmiles"}},
	Yards:         {"yards", 0.9144, 9096, "esriSRUnit_InternationalYard", []string{"yard", "yd", "esrisrunit_internationalyard", "esriyards"}},
}

// ParseUnit resolves a unit from its name, abbreviation or Esri constant.
func ParseUnit(s string) (LengthUnit, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for u, info := range units {
		if key == info.name {
			return u, nil
		}
		for _, a := range info.aliases {
			if key == a {
				return u, nil
			}
		}
	}
	return UnitUnknown, fmt.Errorf("%w: unknown length unit %q", ErrGeometry, s)
}

// Valid reports whether u is a known unit.
func (u LengthUnit) Valid() bool {
	_, ok := units[u]
	return ok
}

// Meters returns the length of one u in metres, or 0 for an unknown unit.
func (u LengthUnit) Meters() float64 {
	return units[u].meters
}

// EsriCode returns the esriSRUnit_* constant for the unit.
func (u LengthUnit) EsriCode() int {
	return units[u].esriCode
}

// EsriName returns the esriSRUnit_* name accepted by feature-service queries.
func (u LengthUnit) EsriName() string {
	return units[u].esriName
}

// String returns the canonical unit name.
func (u LengthUnit) String() string {
	if info, ok := units[u]; ok {
		return info.name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (u LengthUnit) MarshalText() ([]byte, error) {
	if !u.Valid() {
		return nil, fmt.Errorf("%w: unknown length unit %d", ErrGeometry, int(u))
	}
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *LengthUnit) UnmarshalText(text []byte) error {
	parsed, err := ParseUnit(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// ToMeters converts a distance expressed in u to metres.
func ToMeters(distance float64, u LengthUnit) (float64, error) {
	if !u.Valid() {
		return 0, fmt.Errorf("%w: unknown length unit %d", ErrGeometry, int(u))
	}
	return distance * u.Meters(), nil
}
