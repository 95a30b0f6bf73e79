package domain

import (
	"math/big"
	"testing"
)

func TestOut(t *testing.T) {
	tests := []struct {
		name   string
		x      string
		rIn    string
		rOut   string
		feeBps int64
		want   string
	}{
		{
			name:   "standard_30bps_fee",
			x:      "1000000000000000000", // 1e18
			rIn:    "100000000000000000000",
			rOut:   "200000000000000000000",
			feeBps: 30,
			// out = floor(x * 9970 * rOut / (rIn*10000 + x*9970))
			want: "1974316068794122597",
		},
		{
			name:   "zero_input",
			x:      "0",
			rIn:    "100",
			rOut:   "200",
			feeBps: 30,
			want:   "0",
		},
		{
			name:   "zero_fee",
			x:      "100",
			rIn:    "1000",
			rOut:   "1000",
			feeBps: 0,
			want:   "90", // floor(100*10000*1000/(1000*10000+100*10000)) = floor(1000000000/11000000) = 90
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := mustBig(tt.x)
			rIn := mustBig(tt.rIn)
			rOut := mustBig(tt.rOut)
			want := mustBig(tt.want)

			got := Out(x, rIn, rOut, tt.feeBps)
			if got.Cmp(want) != 0 {
				t.Errorf("Out() = %s, want %s", got, want)
			}
		})
	}
}

func TestOut_NegativeReservesReturnsZero(t *testing.T) {
	x := big.NewInt(100)
	rIn := big.NewInt(-1)
	rOut := big.NewInt(1000)

	got := Out(x, rIn, rOut, 30)
	if got.Sign() != 0 {
		t.Errorf("Out() with negative reserve = %s, want 0", got)
	}
}

func TestOut_FeeAtOrAboveDenominatorReturnsZero(t *testing.T) {
	x := big.NewInt(100)
	rIn := big.NewInt(1000)
	rOut := big.NewInt(1000)

	got := Out(x, rIn, rOut, FeeBpsDenominator)
	if got.Sign() != 0 {
		t.Errorf("Out() with 100%% fee = %s, want 0", got)
	}
}

func mustBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad big.Int literal: " + s)
	}
	return n
}
