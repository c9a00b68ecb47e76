package money

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("AcceptsPositiveDecimals", func(t *testing.T) {
		for _, raw := range []string{"0.01", "1", "100.00", "99999999.99", "40.5"} {
			a, err := Parse(raw)
			require.NoError(t, err, "expected %q to parse", raw)
			assert.False(t, a.IsZero())
		}
	})

	t.Run("RejectsZeroAndNegative", func(t *testing.T) {
		for _, raw := range []string{"0", "0.00", "-1", "-0.01"} {
			_, err := Parse(raw)
			require.Error(t, err, "expected %q to be rejected", raw)
			assert.True(t, errors.Is(err, ErrInvalidAmount))
		}
	})

	t.Run("RejectsExcessiveScale", func(t *testing.T) {
		_, err := Parse("1.001")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidAmount))
	})

	t.Run("RejectsMalformedInput", func(t *testing.T) {
		for _, raw := range []string{"", "abc", "1,50", "1.5.0"} {
			_, err := Parse(raw)
			require.Error(t, err, "expected %q to be rejected", raw)
			assert.True(t, errors.Is(err, ErrInvalidAmount))
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("RejectsZeroDecimal", func(t *testing.T) {
		_, err := New(decimal.Zero)
		assert.True(t, errors.Is(err, ErrInvalidAmount))
	})

	t.Run("AcceptsValidDecimal", func(t *testing.T) {
		a, err := New(decimal.RequireFromString("12.34"))
		require.NoError(t, err)
		assert.Equal(t, "12.34", a.String())
	})
}

func TestAmountComparisons(t *testing.T) {
	a := mustParse(t, "1.50")
	b := mustParse(t, "1.5")
	c := mustParse(t, "2.00")

	assert.True(t, a.Equal(b), "1.50 and 1.5 are the same value")
	assert.True(t, c.GreaterThan(a))
	assert.False(t, a.GreaterThan(c))
}

func TestAmountJSON(t *testing.T) {
	t.Run("MarshalsAsString", func(t *testing.T) {
		a := mustParse(t, "100.00")
		data, err := json.Marshal(a)
		require.NoError(t, err)
		assert.Equal(t, `"100.00"`, string(data))
	})

	t.Run("UnmarshalValidates", func(t *testing.T) {
		var a Amount
		require.NoError(t, json.Unmarshal([]byte(`"42.10"`), &a))
		assert.Equal(t, "42.10", a.String())

		err := json.Unmarshal([]byte(`"-5"`), &a)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidAmount))
	})
}

func mustParse(t *testing.T, raw string) Amount {
	t.Helper()
	a, err := Parse(raw)
	require.NoError(t, err)
	return a
}
