package ethereum

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RustLabx/rstoken/lib/block/types"
)

func TestUnits(t *testing.T) {
	cases := []struct {
		in       string
		decimals uint8
		wei      string
		out      string
	}{
		{"1", 18, "1000000000000000000", "1"},
		{"1.5", 18, "1500000000000000000", "1.5"},
		{"0.000000000000000001", 18, "1", "0.000000000000000001"},
		{"0", 18, "0", "0"},
		{"12.340", 6, "12340000", "12.34"},
		{"100", 0, "100", "100"},
	}

	for _, c := range cases {
		v, err := ParseUnits(c.in, c.decimals)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.wei, v.String(), c.in)
		assert.Equal(t, c.out, FormatUnits(v, c.decimals), c.in)
	}

	for _, bad := range []string{"", "abc", "-1", "0.0000000000000000001", "1e-19"} {
		_, err := ParseUnits(bad, 18)
		assert.ErrorIs(t, err, types.ErrInvalidAmount, bad)
	}

	assert.Equal(t, "0", FormatUnits(nil, 18))
	assert.Equal(t, "1615796230.43348576", FormatUnits(big.NewInt(161579623043348576), 8))
}
