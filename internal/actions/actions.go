// Package actions maps device-agnostic action names to the hub's low-level
// characteristic writes. Resolution is a pure table lookup: synonyms are
// equal citizens and out-of-range numeric input clamps instead of failing.
package actions

import (
	"strconv"
	"strings"
)

// Operation is a single characteristic write derived from an action.
// Operations from one action apply in declaration order.
type Operation struct {
	Characteristic string
	Value          any
}

// resolver converts a raw action value into characteristic operations.
type resolver func(value any) []Operation

// table maps lowercase action names (synonyms included) to resolvers.
var table = map[string]resolver{
	"on":    onOff,
	"power": onOff,

	"brightness": rangeOp("Brightness", 0, 100),
	"dim":        rangeOp("Brightness", 0, 100),
	"hue":        rangeOp("Hue", 0, 360),
	"saturation": rangeOp("Saturation", 0, 100),
	"speed":      rangeOp("RotationSpeed", 0, 100),
	"position":   rangeOp("TargetPosition", 0, 100),
	"tilt":       rangeOp("TargetHorizontalTiltAngle", -90, 90),

	"targettemperature": rangeOp("TargetTemperature", 10, 38),
	"temperature":       rangeOp("TargetTemperature", 10, 38),

	"lock":   lockState,
	"garage": garageState,

	"thermostatmode": thermostatMode,
	"mode":           thermostatMode,

	"color": colorCompound,
}

// Resolve maps an action name and value to characteristic operations.
// ok is false for an unknown action name; a known action may still yield
// zero operations (e.g. a color action with no sub-fields).
func Resolve(action string, value any) (ops []Operation, ok bool) {
	r, ok := table[strings.ToLower(action)]
	if !ok {
		return nil, false
	}
	return r(value), true
}

func onOff(value any) []Operation {
	return []Operation{{Characteristic: "On", Value: truthy(value)}}
}

// lockState maps truthy to secured (1), falsy to unsecured (0).
func lockState(value any) []Operation {
	state := 0
	if truthy(value) {
		state = 1
	}
	return []Operation{{Characteristic: "LockTargetState", Value: state}}
}

// garageState maps truthy to open intent (0), falsy to close intent (1).
// Note the inverted polarity relative to lock.
func garageState(value any) []Operation {
	state := 1
	if truthy(value) {
		state = 0
	}
	return []Operation{{Characteristic: "TargetDoorState", Value: state}}
}

// rangeOp builds a resolver clamping numeric input into [min, max].
func rangeOp(characteristic string, min, max float64) resolver {
	return func(value any) []Operation {
		return []Operation{{Characteristic: characteristic, Value: clamp(toFloat(value), min, max)}}
	}
}

// thermostatModes maps recognized labels to the hub's heating/cooling enum.
var thermostatModes = map[string]int{
	"off":  0,
	"heat": 1,
	"cool": 2,
	"auto": 3,
}

func thermostatMode(value any) []Operation {
	if s, isString := value.(string); isString {
		if mode, known := thermostatModes[strings.ToLower(s)]; known {
			return []Operation{{Characteristic: "TargetHeatingCoolingState", Value: mode}}
		}
	}
	// Unrecognized labels and non-strings fall back to a numeric read.
	return []Operation{{Characteristic: "TargetHeatingCoolingState", Value: int(toFloat(value))}}
}

// colorCompound emits one operation per present sub-field, hue before
// saturation. Absent sub-fields contribute nothing; there is no default
// substitution.
func colorCompound(value any) []Operation {
	fields, isMap := value.(map[string]any)
	if !isMap {
		return []Operation{}
	}

	ops := make([]Operation, 0, 2)
	if h, present := fields["hue"]; present {
		ops = append(ops, Operation{Characteristic: "Hue", Value: clamp(toFloat(h), 0, 360)})
	}
	if s, present := fields["saturation"]; present {
		ops = append(ops, Operation{Characteristic: "Saturation", Value: clamp(toFloat(s), 0, 100)})
	}
	return ops
}

// truthy coerces an arbitrary JSON value to a boolean intent. The string
// forms "false", "0" and "off" are explicit negatives.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "false", "0", "off", "no":
			return false
		}
		return true
	default:
		return false
	}
}

// toFloat reads a numeric value from JSON input, tolerating numeric
// strings. Anything else reads as 0 and gets clamped into range.
func toFloat(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
