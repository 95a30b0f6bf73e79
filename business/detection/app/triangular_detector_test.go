package app

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	poolapp "github.com/fd1az/arbdetectd/business/pool/app"
	pooldomain "github.com/fd1az/arbdetectd/business/pool/domain"
)

func busdToken() pooldomain.Token {
	return pooldomain.Token{Symbol: "BUSD", Address: common.HexToAddress("0x3"), Decimals: 18}
}

func cfgForTriangular() TriangularConfig {
	return TriangularConfig{
		MinProfitPercent: decimal.NewFromFloat(0.2),
		MinTradeSizeUSD:  decimal.NewFromInt(100),
		MaxTradeSizeUSD:  decimal.NewFromInt(5000),
	}
}

func threeHopCycle(dex1, dex2, dex3 string) poolapp.Cycle3 {
	wbnb, usdt, busd := wbnbToken(), usdtToken(), busdToken()

	return poolapp.Cycle3{
		Base: wbnb.Address,
		Mid1: usdt.Address,
		Mid2: busd.Address,
		Hop1: poolapp.Edge{
			To: usdt.Address, Price: decimal.NewFromInt(300),
			ReserveIn: wei(1000), ReserveOut: wei(300000),
			SwapFee: decimal.NewFromFloat(0.003), DexName: dex1,
			PoolKey: pooldomain.NewPoolKey(pooldomain.NewPairKey(wbnb.Address, usdt.Address), dex1),
		},
		Hop2: poolapp.Edge{
			To: busd.Address, Price: decimal.NewFromFloat(0.5),
			ReserveIn: wei(300000), ReserveOut: wei(150000),
			SwapFee: decimal.NewFromFloat(0.003), DexName: dex2,
			PoolKey: pooldomain.NewPoolKey(pooldomain.NewPairKey(usdt.Address, busd.Address), dex2),
		},
		Hop3: poolapp.Edge{
			To: wbnb.Address, Price: decimal.NewFromFloat(0.0068),
			ReserveIn: wei(150000), ReserveOut: wei(1020),
			SwapFee: decimal.NewFromFloat(0.003), DexName: dex3,
			PoolKey: pooldomain.NewPoolKey(pooldomain.NewPairKey(busd.Address, wbnb.Address), dex3),
		},
	}
}

func tokenResolver() func(common.Address) (pooldomain.Token, bool) {
	tokens := map[common.Address]pooldomain.Token{
		wbnbToken().Address: wbnbToken(),
		usdtToken().Address: usdtToken(),
		busdToken().Address: busdToken(),
	}
	return func(a common.Address) (pooldomain.Token, bool) {
		t, ok := tokens[a]
		return t, ok
	}
}

func TestTriangularDetector_Detect(t *testing.T) {
	t.Run("profitable same-dex cycle is classified as single-DEX", func(t *testing.T) {
		cyc := threeHopCycle("pancake", "pancake", "pancake")
		d := NewTriangularDetector(cfgForTriangular(), testLogger())

		single, cross := d.Detect(context.Background(), []poolapp.Cycle3{cyc}, tokenResolver(), flatUSDPrice(decimal.NewFromInt(300)))

		if len(cross) != 0 {
			t.Fatalf("len(cross) = %d, want 0", len(cross))
		}
		if len(single) != 1 {
			t.Fatalf("len(single) = %d, want 1", len(single))
		}
		got := single[0]

		wantCycleProduct := decimal.NewFromFloat(1.010847)
		if diff := got.CycleProduct.Sub(wantCycleProduct).Abs(); diff.GreaterThan(decimal.NewFromFloat(0.0005)) {
			t.Errorf("CycleProduct = %s, want close to %s", got.CycleProduct, wantCycleProduct)
		}
		if got.DexName != "pancake" {
			t.Errorf("DexName = %q, want %q", got.DexName, "pancake")
		}
		if !got.NetProfitUSD.GreaterThan(decimal.Zero) {
			t.Errorf("NetProfitUSD = %s, want > 0", got.NetProfitUSD)
		}

		wantNetProfit := decimal.NewFromFloat(2.94)
		if diff := got.NetProfitUSD.Sub(wantNetProfit).Abs(); diff.GreaterThan(decimal.NewFromFloat(0.5)) {
			t.Errorf("NetProfitUSD = %s, want close to %s", got.NetProfitUSD, wantNetProfit)
		}

		wantTradeSize := decimal.NewFromFloat(544)
		if diff := got.TradeSizeUSD.Sub(wantTradeSize).Abs(); diff.GreaterThan(decimal.NewFromInt(100)) {
			t.Errorf("TradeSizeUSD = %s, want close to %s", got.TradeSizeUSD, wantTradeSize)
		}
	})

	t.Run("mixed-dex hops are classified as cross-DEX triangular", func(t *testing.T) {
		cyc := threeHopCycle("pancake", "biswap", "pancake")
		d := NewTriangularDetector(cfgForTriangular(), testLogger())

		single, cross := d.Detect(context.Background(), []poolapp.Cycle3{cyc}, tokenResolver(), flatUSDPrice(decimal.NewFromInt(300)))

		if len(single) != 0 {
			t.Fatalf("len(single) = %d, want 0", len(single))
		}
		if len(cross) != 1 {
			t.Fatalf("len(cross) = %d, want 1", len(cross))
		}
		got := cross[0]
		wantDexPath := [3]string{"pancake", "biswap", "pancake"}
		if got.DexPath != wantDexPath {
			t.Errorf("DexPath = %v, want %v", got.DexPath, wantDexPath)
		}
		if !got.NetProfitUSD.GreaterThan(decimal.Zero) {
			t.Errorf("NetProfitUSD = %s, want > 0", got.NetProfitUSD)
		}
	})

	t.Run("cycle product below min profit is rejected", func(t *testing.T) {
		cyc := threeHopCycle("pancake", "pancake", "pancake")
		cyc.Hop3.Price = decimal.NewFromFloat(0.0065) // cycle_product drops below 1
		cyc.Hop3.ReserveOut = wei(975)
		d := NewTriangularDetector(cfgForTriangular(), testLogger())

		single, cross := d.Detect(context.Background(), []poolapp.Cycle3{cyc}, tokenResolver(), flatUSDPrice(decimal.NewFromInt(300)))
		if len(single) != 0 || len(cross) != 0 {
			t.Errorf("got single=%v cross=%v, want both empty", single, cross)
		}
	})

	t.Run("unresolvable base token yields nothing", func(t *testing.T) {
		cyc := threeHopCycle("pancake", "pancake", "pancake")
		d := NewTriangularDetector(cfgForTriangular(), testLogger())

		noTokens := func(common.Address) (pooldomain.Token, bool) { return pooldomain.Token{}, false }
		single, cross := d.Detect(context.Background(), []poolapp.Cycle3{cyc}, noTokens, flatUSDPrice(decimal.NewFromInt(300)))
		if len(single) != 0 || len(cross) != 0 {
			t.Errorf("got single=%v cross=%v, want both empty", single, cross)
		}
	})
}
