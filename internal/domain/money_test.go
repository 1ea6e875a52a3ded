package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceAmount(t *testing.T) {
	cases := []struct {
		name  string
		input any
		want  string
		ok    bool
	}{
		{"nil", nil, "0", false},
		{"float", 12.5, "12.5", true},
		{"negative float", -3.25, "-3.25", true},
		{"int", 42, "42", true},
		{"int64", int64(-7), "-7", true},
		{"decimal", decimal.RequireFromString("99.99"), "99.99", true},
		{"json number", json.Number("1500.50"), "1500.5", true},
		{"string", "200", "200", true},
		{"string with spaces", "  7.10  ", "7.1", true},
		{"empty string", "", "0", false},
		{"garbage string", "abc", "0", false},
		{"nan", math.NaN(), "0", false},
		{"positive infinity", math.Inf(1), "0", false},
		{"negative infinity", math.Inf(-1), "0", false},
		{"unsupported type", struct{}{}, "0", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := CoerceAmount(tc.input)
			assert.Equal(t, tc.ok, ok)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)),
				"expected %s got %s", tc.want, got)
		})
	}
}

func TestClampNonNegative(t *testing.T) {
	assert.True(t, ClampNonNegative(decimal.NewFromInt(-5)).IsZero())
	assert.True(t, ClampNonNegative(decimal.Zero).IsZero())

	kept := decimal.RequireFromString("3.33")
	assert.True(t, ClampNonNegative(kept).Equal(kept))
}

func TestClampQuantity(t *testing.T) {
	assert.Equal(t, 0, ClampQuantity(-3))
	assert.Equal(t, 0, ClampQuantity(0))
	assert.Equal(t, 9, ClampQuantity(9))
}

func TestRound2(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"1.005", "1.01"},
		{"1.004", "1.00"},
		{"2.675", "2.68"},
		{"-1.005", "-1.01"},
		{"10", "10"},
	}
	for _, tc := range cases {
		got := Round2(decimal.RequireFromString(tc.input))
		require.True(t, got.Equal(decimal.RequireFromString(tc.want)),
			"round2(%s): expected %s got %s", tc.input, tc.want, got)
	}
}
