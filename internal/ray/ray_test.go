package ray

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bigFromString(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "bad literal %q", s)
	return v
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		factor string
		want   string
	}{
		{
			name:   "identity at ray one",
			amount: "1000000000000000000",
			factor: "1000000000000000000000000000",
			want:   "1000000000000000000",
		},
		{
			name:   "five percent growth",
			amount: "1000000000000000000",
			factor: "1050000000000000000000000000",
			want:   "1050000000000000000",
		},
		{
			name:   "truncates toward zero",
			amount: "1",
			factor: "1999999999999999999999999999",
			want:   "1",
		},
		{
			name:   "zero amount",
			amount: "0",
			factor: "1050000000000000000000000000",
			want:   "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MulDiv(bigFromString(t, tt.amount), bigFromString(t, tt.factor))
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestMulDivExceedsFloatPrecision(t *testing.T) {
	// A balance beyond 2^53 must survive unrounded. This is the whole reason
	// the package exists.
	amount := bigFromString(t, "123456789012345678901234567890")
	got := MulDiv(amount, One)
	assert.Equal(t, amount.String(), got.String())
}

func TestAccrued(t *testing.T) {
	scaled := bigFromString(t, "1000000000000000000")
	before := bigFromString(t, "1000000000000000000000000000")
	after := bigFromString(t, "1020000000000000000000000000")

	got := Accrued(scaled, before, after)
	assert.Equal(t, "20000000000000000", got.String())
}

func TestAccruedRegressedIndexIsNegative(t *testing.T) {
	scaled := bigFromString(t, "1000000000000000000")
	before := bigFromString(t, "1020000000000000000000000000")
	after := bigFromString(t, "1000000000000000000000000000")

	got := Accrued(scaled, before, after)
	assert.Equal(t, -1, got.Sign())
	assert.Equal(t, "-20000000000000000", got.String())
}

func TestAccruedNoIndexMove(t *testing.T) {
	scaled := bigFromString(t, "5000000")
	index := bigFromString(t, "1100000000000000000000000000")

	got := Accrued(scaled, index, index)
	assert.Equal(t, 0, got.Sign())
}

func TestParse(t *testing.T) {
	v, err := Parse("123456789")
	require.NoError(t, err)
	assert.Equal(t, "123456789", v.String())

	v, err = Parse("-42")
	require.NoError(t, err)
	assert.Equal(t, "-42", v.String())

	_, err = Parse("")
	assert.Error(t, err)

	_, err = Parse("12.5")
	assert.Error(t, err)

	_, err = Parse("0x1f")
	assert.Error(t, err)
}

func TestParseUnsigned(t *testing.T) {
	v, err := ParseUnsigned("0")
	require.NoError(t, err)
	assert.Equal(t, 0, v.Sign())

	_, err = ParseUnsigned("-1")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0", Format(nil))
	assert.Equal(t, "42", Format(big.NewInt(42)))
}
