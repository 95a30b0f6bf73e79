package app

import (
	"context"
	"io"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	pooldomain "github.com/fd1az/arbdetectd/business/pool/domain"
	"github.com/fd1az/arbdetectd/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func wbnbToken() pooldomain.Token {
	return pooldomain.Token{Symbol: "WBNB", Address: common.HexToAddress("0x1"), Decimals: 18}
}

func usdtToken() pooldomain.Token {
	return pooldomain.Token{Symbol: "USDT", Address: common.HexToAddress("0x2"), Decimals: 18}
}

func wei(f float64) *big.Int {
	bf := new(big.Float).Mul(big.NewFloat(f), big.NewFloat(1e18))
	i, _ := bf.Int(nil)
	return i
}

func flatUSDPrice(wbnbUSD decimal.Decimal) func(pooldomain.Token) (decimal.Decimal, bool) {
	return func(tok pooldomain.Token) (decimal.Decimal, bool) {
		if tok.Symbol == "WBNB" {
			return wbnbUSD, true
		}
		return decimal.NewFromInt(1), true
	}
}

func cfgForCrossDex() CrossDexConfig {
	return CrossDexConfig{
		MinProfitPercent: decimal.NewFromFloat(0.1),
		FlashLoanFee:     decimal.NewFromFloat(0.0025),
		MinLiquidityUSD:  decimal.NewFromInt(10000),
		MinTradeSizeUSD:  decimal.NewFromInt(100),
		MaxTradeSizeUSD:  decimal.NewFromInt(5000),
	}
}

func TestCrossDexDetector_Detect(t *testing.T) {
	base := pooldomain.NewPairKey(wbnbToken().Address, usdtToken().Address)

	cheapDex := pooldomain.Pool{
		Key:         pooldomain.NewPoolKey(base, "cheap"),
		Pair:        base,
		TokenA:      wbnbToken(),
		TokenB:      usdtToken(),
		DexName:     "cheap",
		SwapFee:     decimal.NewFromFloat(0.003),
		ReserveA:    wei(1000),
		ReserveB:    wei(300000), // price 300 USDT/WBNB
	}
	expensiveDex := pooldomain.Pool{
		Key:      pooldomain.NewPoolKey(base, "expensive"),
		Pair:     base,
		TokenA:   wbnbToken(),
		TokenB:   usdtToken(),
		DexName:  "expensive",
		SwapFee:  decimal.NewFromFloat(0.003),
		ReserveA: wei(1000),
		ReserveB: wei(306000), // price 306 USDT/WBNB
	}

	t.Run("profitable spread finds the opportunity buying where B is cheapest", func(t *testing.T) {
		d := NewCrossDexDetector(cfgForCrossDex(), testLogger())
		got := d.Detect(context.Background(), []pooldomain.Pool{cheapDex, expensiveDex}, flatUSDPrice(decimal.NewFromInt(300)), decimal.NewFromFloat(0.5))

		if len(got) != 1 {
			t.Fatalf("len(got) = %d, want 1", len(got))
		}
		opp := got[0]

		if opp.BuyDex != "expensive" {
			t.Errorf("BuyDex = %q, want %q (tokenB is cheapest per tokenA at the higher-priced pool)", opp.BuyDex, "expensive")
		}
		if opp.SellDex != "cheap" {
			t.Errorf("SellDex = %q, want %q", opp.SellDex, "cheap")
		}
		if !opp.NetProfitUSD.GreaterThan(decimal.Zero) {
			t.Errorf("NetProfitUSD = %s, want > 0", opp.NetProfitUSD)
		}

		wantNetProfit := decimal.NewFromFloat(4.30)
		diff := opp.NetProfitUSD.Sub(wantNetProfit).Abs()
		if diff.GreaterThan(decimal.NewFromFloat(0.5)) {
			t.Errorf("NetProfitUSD = %s, want close to %s", opp.NetProfitUSD, wantNetProfit)
		}

		wantTradeSize := decimal.NewFromFloat(841)
		tdiff := opp.TradeSizeUSD.Sub(wantTradeSize).Abs()
		if tdiff.GreaterThan(decimal.NewFromInt(100)) {
			t.Errorf("TradeSizeUSD = %s, want close to %s", opp.TradeSizeUSD, wantTradeSize)
		}
	})

	t.Run("identical prices produce no opportunity", func(t *testing.T) {
		same := cheapDex
		same.DexName = "same"
		d := NewCrossDexDetector(cfgForCrossDex(), testLogger())
		got := d.Detect(context.Background(), []pooldomain.Pool{cheapDex, same}, flatUSDPrice(decimal.NewFromInt(300)), decimal.Zero)
		if got != nil {
			t.Errorf("got %v, want nil", got)
		}
	})

	t.Run("spread below fees plus min profit is rejected", func(t *testing.T) {
		tight := expensiveDex
		tight.ReserveB = wei(300100) // ~0.03% spread, below 2*0.3%+0.1%
		d := NewCrossDexDetector(cfgForCrossDex(), testLogger())
		got := d.Detect(context.Background(), []pooldomain.Pool{cheapDex, tight}, flatUSDPrice(decimal.NewFromInt(300)), decimal.Zero)
		if got != nil {
			t.Errorf("got %v, want nil", got)
		}
	})

	t.Run("thin liquidity is rejected", func(t *testing.T) {
		thin := cheapDex
		thin.DexName = "thin"
		thin.ReserveA = wei(1)
		thin.ReserveB = wei(300)
		d := NewCrossDexDetector(cfgForCrossDex(), testLogger())
		got := d.Detect(context.Background(), []pooldomain.Pool{thin, expensiveDex}, flatUSDPrice(decimal.NewFromInt(300)), decimal.Zero)
		if got != nil {
			t.Errorf("got %v, want nil", got)
		}
	})

	t.Run("fewer than two pools is a no-op", func(t *testing.T) {
		d := NewCrossDexDetector(cfgForCrossDex(), testLogger())
		got := d.Detect(context.Background(), []pooldomain.Pool{cheapDex}, flatUSDPrice(decimal.NewFromInt(300)), decimal.Zero)
		if got != nil {
			t.Errorf("got %v, want nil", got)
		}
	})
}
