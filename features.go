package linefollow

import (
	"fmt"
	"math"
)

// lineFeatures is one line sensor frame.
type lineFeatures struct {
	lookAhead  float64 // lk_norm, how far ahead the line reaches, 0..1
	lineFrac   float64 // len_pct / 100, visible line length, 0..1
	lateralErr float64 // err_m, signed offset from centerline, meters
	valid      bool
}

// featuresFromReadings decodes a sensor frame. When the valid flag is
// down the numeric readings are ignored and a zero frame is returned.
// lk_norm is optional, it only feeds telemetry.
func featuresFromReadings(readings map[string]interface{}) (lineFeatures, error) {
	valid, err := boolValue(readings, "valid")
	if err != nil {
		return lineFeatures{}, err
	}
	if !valid {
		return lineFeatures{}, nil
	}

	lenPct, err := floatValue(readings, "len_pct")
	if err != nil {
		return lineFeatures{}, err
	}
	errM, err := floatValue(readings, "err_m")
	if err != nil {
		return lineFeatures{}, err
	}

	lk := 0.0
	if _, ok := readings["lk_norm"]; ok {
		lk, err = floatValue(readings, "lk_norm")
		if err != nil {
			return lineFeatures{}, err
		}
	}

	return lineFeatures{
		lookAhead:  lk,
		lineFrac:   lenPct / 100,
		lateralErr: errM,
		valid:      true,
	}, nil
}

func floatValue(m map[string]interface{}, key string) (float64, error) {
	raw, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("%q missing", key)
	}
	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int64:
		v = float64(x)
	default:
		return 0, fmt.Errorf("%q has type %T, want a number", key, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not finite", key)
	}
	return v, nil
}

func boolValue(m map[string]interface{}, key string) (bool, error) {
	raw, ok := m[key]
	if !ok {
		return false, fmt.Errorf("%q missing", key)
	}
	if b, ok := raw.(bool); ok {
		return b, nil
	}
	v, err := floatValue(m, key)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}
