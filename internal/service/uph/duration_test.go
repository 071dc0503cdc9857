package uph

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uph-engine/internal/storage"
)

func TestParseDuration_Accepted(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want int64
	}{
		{"int seconds", 5400, 5400},
		{"int64 seconds", int64(1800), 1800},
		{"float seconds", 90.4, 90},
		{"float rounds half up", 89.5, 90},
		{"json number", json.Number("120"), 120},
		{"numeric string", "600", 600},
		{"numeric string with spaces", "  45.0 ", 45},
		{"hh:mm:ss", "01:30:00", 5400},
		{"hh:mm:ss large hours", "26:00:01", 93601},
		{"hh:mm:ss fractional seconds", "00:00:10.6", 11},
		{"object with seconds", map[string]any{"seconds": 300.0}, 300},
		{"object with string seconds", map[string]any{"seconds": "00:05:00"}, 300},
		{"struct value", storage.DurationValue{Seconds: 42}, 42},
		{"struct pointer", &storage.DurationValue{Seconds: 7}, 7},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDuration(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseDuration_Rejected(t *testing.T) {
	cases := []struct {
		name string
		in   any
	}{
		{"nil", nil},
		{"zero", 0},
		{"negative", -30.0},
		{"rounds to zero", 0.4},
		{"nan", math.NaN()},
		{"inf", math.Inf(1)},
		{"empty string", ""},
		{"garbage string", "about an hour"},
		{"two fields", "10:00"},
		{"minutes out of range", "00:75:00"},
		{"negative field", "00:-1:00"},
		{"zero clock", "00:00:00"},
		{"object without seconds", map[string]any{"minutes": 5}},
		{"nested object", map[string]any{"seconds": map[string]any{"seconds": 5}}},
		{"nil struct pointer", (*storage.DurationValue)(nil)},
		{"bool", true},
		{"slice", []int{60}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDuration(tc.in)
			assert.ErrorIs(t, err, ErrInvalidDuration)
		})
	}
}
