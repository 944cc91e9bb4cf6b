package schema

import (
	"errors"
	"fmt"
)

// MaxNameLen is the maximum length of a channel name.
const MaxNameLen = 64

// Validation errors.
var (
	ErrEmptyName        = errors.New("channel name is empty")
	ErrNameTooLong      = errors.New("channel name too long")
	ErrUnknownTypeID    = errors.New("unknown type id")
	ErrKindMismatch     = errors.New("value kind not valid for type")
	ErrUnitMismatch     = errors.New("unit not valid for type")
	ErrUnknownEventFlag = errors.New("unknown event flag")
	ErrTimerPeriod      = errors.New("timer period must be positive")
	ErrThresholdKind    = errors.New("threshold flags require a numeric kind")
)

// TypeID identifies what a channel measures or controls.
type TypeID uint16

const (
	TypeNone TypeID = iota
	TypeVoltage
	TypeCurrent
	TypePower
	TypeTemperature
	TypeRelativeHumidity
	TypeLuminosity
	TypePressure
	TypeDistance
	TypePresence
	TypeSwitch
	TypeGeneric
)

// String returns the type name.
func (t TypeID) String() string {
	names := []string{
		"none", "voltage", "current", "power", "temperature",
		"relativeHumidity", "luminosity", "pressure", "distance",
		"presence", "switch", "generic",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "none"
}

// Unit is the measurement unit of a channel value.
type Unit uint8

const (
	UnitNone Unit = iota
	UnitVolt
	UnitMillivolt
	UnitAmpere
	UnitMilliampere
	UnitWatt
	UnitKilowatt
	UnitCelsius
	UnitFahrenheit
	UnitKelvin
	UnitPercent
	UnitLux
	UnitPascal
	UnitMeter
	UnitMillimeter
)

// String returns the unit name.
func (u Unit) String() string {
	names := []string{
		"", "V", "mV", "A", "mA", "W", "kW",
		"degC", "degF", "K", "%", "lx", "Pa", "m", "mm",
	}
	if int(u) < len(names) {
		return names[u]
	}
	return ""
}

// typeInfo describes the legal kinds and units for a type.
type typeInfo struct {
	kinds []ValueKind
	units []Unit
}

var typeTable = map[TypeID]typeInfo{
	TypeVoltage:          {numericKinds, []Unit{UnitVolt, UnitMillivolt}},
	TypeCurrent:          {numericKinds, []Unit{UnitAmpere, UnitMilliampere}},
	TypePower:            {numericKinds, []Unit{UnitWatt, UnitKilowatt}},
	TypeTemperature:      {numericKinds, []Unit{UnitCelsius, UnitFahrenheit, UnitKelvin}},
	TypeRelativeHumidity: {numericKinds, []Unit{UnitPercent}},
	TypeLuminosity:       {numericKinds, []Unit{UnitLux}},
	TypePressure:         {numericKinds, []Unit{UnitPascal}},
	TypeDistance:         {numericKinds, []Unit{UnitMeter, UnitMillimeter}},
	TypePresence:         {[]ValueKind{KindBool}, []Unit{UnitNone}},
	TypeSwitch:           {[]ValueKind{KindBool}, []Unit{UnitNone}},
	TypeGeneric:          {[]ValueKind{KindRaw}, []Unit{UnitNone}},
}

var numericKinds = []ValueKind{KindInt32, KindFloat32}

// Schema describes a channel: what it measures, how the value is
// represented, and its unit. Immutable after registration.
type Schema struct {
	TypeID TypeID
	Unit   Unit
	Kind   ValueKind
	Name   string
}

// String returns a compact description, e.g. "thermo (temperature, int32, degC)".
func (s Schema) String() string {
	return fmt.Sprintf("%s (%s, %s, %s)", s.Name, s.TypeID, s.Kind, s.Unit)
}

// Validate checks that the schema is internally consistent: the name is
// present and bounded, the type is known, and the kind and unit are
// legal for the type.
func Validate(s Schema) error {
	if s.Name == "" {
		return ErrEmptyName
	}
	if len(s.Name) > MaxNameLen {
		return ErrNameTooLong
	}
	info, ok := typeTable[s.TypeID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTypeID, s.TypeID)
	}
	if !containsKind(info.kinds, s.Kind) {
		return fmt.Errorf("%w: %s on %s", ErrKindMismatch, s.Kind, s.TypeID)
	}
	if !containsUnit(info.units, s.Unit) {
		return fmt.Errorf("%w: %s on %s", ErrUnitMismatch, s.Unit, s.TypeID)
	}
	return nil
}

func containsKind(kinds []ValueKind, k ValueKind) bool {
	for _, v := range kinds {
		if v == k {
			return true
		}
	}
	return false
}

func containsUnit(units []Unit, u Unit) bool {
	for _, v := range units {
		if v == u {
			return true
		}
	}
	return false
}
