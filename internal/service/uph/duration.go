package uph

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"uph-engine/internal/storage"
)

var ErrInvalidDuration = errors.New("invalid duration")

// ParseDuration converts a raw cycle duration into whole seconds.
// Accepted shapes: a number of seconds, a numeric string, an "HH:MM:SS"
// string, a map or DurationValue carrying seconds. Anything else, and any
// result that is not strictly positive, is ErrInvalidDuration.
func ParseDuration(v any) (int64, error) {
	seconds, err := rawSeconds(v)
	if err != nil {
		return 0, err
	}

	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDuration, v)
	}

	rounded := int64(math.Round(seconds))
	if rounded <= 0 {
		return 0, fmt.Errorf("%w: non-positive value %v", ErrInvalidDuration, v)
	}

	return rounded, nil
}

func rawSeconds(v any) (float64, error) {
	switch d := v.(type) {
	case int:
		return float64(d), nil
	case int32:
		return float64(d), nil
	case int64:
		return float64(d), nil
	case float32:
		return float64(d), nil
	case float64:
		return d, nil
	case json.Number:
		return parseNumeric(string(d))
	case string:
		return parseDurationString(d)
	case storage.DurationValue:
		return d.Seconds, nil
	case *storage.DurationValue:
		if d == nil {
			return 0, fmt.Errorf("%w: nil value", ErrInvalidDuration)
		}
		return d.Seconds, nil
	case map[string]any:
		s, ok := d["seconds"]
		if !ok {
			return 0, fmt.Errorf("%w: object without seconds field", ErrInvalidDuration)
		}
		if _, nested := s.(map[string]any); nested {
			return 0, fmt.Errorf("%w: nested seconds object", ErrInvalidDuration)
		}
		return rawSeconds(s)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidDuration, v)
	}
}

func parseDurationString(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidDuration)
	}

	if !strings.Contains(s, ":") {
		return parseNumeric(s)
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q is not HH:MM:SS", ErrInvalidDuration, s)
	}

	var total float64
	for i, part := range parts {
		n, err := strconv.ParseFloat(part, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %q is not HH:MM:SS", ErrInvalidDuration, s)
		}
		// minutes and seconds fields are base 60
		if i > 0 && n >= 60 {
			return 0, fmt.Errorf("%w: %q has field out of range", ErrInvalidDuration, s)
		}
		total = total*60 + n
	}

	return total, nil
}

func parseNumeric(s string) (float64, error) {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	return n, nil
}
