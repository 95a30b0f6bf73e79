package app

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	detdomain "github.com/fd1az/arbdetectd/business/detection/domain"
	poolapp "github.com/fd1az/arbdetectd/business/pool/app"
	pooldomain "github.com/fd1az/arbdetectd/business/pool/domain"
	"github.com/fd1az/arbdetectd/internal/clock"
)

type fakeGasFeed struct {
	wei *big.Int
	err error
}

func (f *fakeGasFeed) GasPriceWei(ctx context.Context) (*big.Int, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.wei, "fake", nil
}

func seedCrossDexPools(t *testing.T, store *poolapp.ReserveStore) {
	t.Helper()
	base := pooldomain.NewPairKey(wbnbToken().Address, usdtToken().Address)

	cheap := pooldomain.Pool{
		Key: pooldomain.NewPoolKey(base, "cheap"), Pair: base,
		TokenA: wbnbToken(), TokenB: usdtToken(), DexName: "cheap",
		SwapFee: decimal.NewFromFloat(0.003), ReserveA: wei(1000), ReserveB: wei(300000),
	}
	expensive := pooldomain.Pool{
		Key: pooldomain.NewPoolKey(base, "expensive"), Pair: base,
		TokenA: wbnbToken(), TokenB: usdtToken(), DexName: "expensive",
		SwapFee: decimal.NewFromFloat(0.003), ReserveA: wei(1000), ReserveB: wei(306000),
	}

	if _, err := store.Upsert(context.Background(), cheap); err != nil {
		t.Fatalf("upsert cheap: %v", err)
	}
	if _, err := store.Upsert(context.Background(), expensive); err != nil {
		t.Fatalf("upsert expensive: %v", err)
	}
}

func newTestOrchestrator(t *testing.T, clk clock.Clock, gasFeed GasFeed) (*DetectionOrchestrator, *poolapp.ReserveStore) {
	t.Helper()
	store := poolapp.NewReserveStore(testLogger())
	seedCrossDexPools(t, store)

	crossDex := NewCrossDexDetector(cfgForCrossDex(), testLogger())
	triangular := NewTriangularDetector(cfgForTriangular(), testLogger())
	riskScorer := NewRiskScorer()

	cfg := OrchestratorConfig{
		BaseTokenSymbols:          nil,
		NativeGasTokenSymbol:      "WBNB",
		MinLiquidityUSD:           decimal.NewFromInt(10000),
		MinLiquidityTriangularUSD: decimal.NewFromInt(10000),
		MaxTradeSizeUSD:           decimal.NewFromInt(5000),
		EstimatedGasLimit:         200000,
		CooldownWindow:            30 * time.Second,
		TriangularEnabled:         false,
		StaticGasFallbackWei:      big.NewInt(5_000_000_000),
	}

	return NewDetectionOrchestrator(cfg, store, crossDex, triangular, riskScorer, gasFeed, clk, testLogger()), store
}

func TestDetectionOrchestrator_Detect(t *testing.T) {
	t.Run("finds and ranks a cross-dex opportunity", func(t *testing.T) {
		clk := clock.NewFake(time.Unix(1_700_000_000, 0))
		gasFeed := &fakeGasFeed{wei: big.NewInt(5_000_000_000)}
		o, _ := newTestOrchestrator(t, clk, gasFeed)

		opps := o.Detect(context.Background(), 100, detdomain.SourceBlock)
		if len(opps) != 1 {
			t.Fatalf("len(opps) = %d, want 1", len(opps))
		}
		if opps[0].Kind != detdomain.KindCrossDex {
			t.Errorf("Kind = %v, want KindCrossDex", opps[0].Kind)
		}
		if opps[0].Risk.Recommendation == "" {
			t.Errorf("Risk report was not populated")
		}

		stats := o.Stats()
		if stats.EventsReceived != 1 || stats.EventsProcessed != 1 || stats.BlocksProcessed != 1 {
			t.Errorf("Stats = %+v, want EventsReceived=1 EventsProcessed=1 BlocksProcessed=1", stats)
		}
		if stats.OpportunitiesByKind[detdomain.KindCrossDex] != 1 {
			t.Errorf("OpportunitiesByKind[CrossDex] = %d, want 1", stats.OpportunitiesByKind[detdomain.KindCrossDex])
		}
	})

	t.Run("empty snapshot yields no opportunities", func(t *testing.T) {
		clk := clock.NewFake(time.Unix(1_700_000_000, 0))
		gasFeed := &fakeGasFeed{wei: big.NewInt(5_000_000_000)}
		store := poolapp.NewReserveStore(testLogger())
		crossDex := NewCrossDexDetector(cfgForCrossDex(), testLogger())
		triangular := NewTriangularDetector(cfgForTriangular(), testLogger())
		o := NewDetectionOrchestrator(OrchestratorConfig{
			NativeGasTokenSymbol: "WBNB",
			CooldownWindow:       time.Second,
			StaticGasFallbackWei: big.NewInt(5_000_000_000),
		}, store, crossDex, triangular, NewRiskScorer(), gasFeed, clk, testLogger())

		opps := o.Detect(context.Background(), 1, detdomain.SourceBlock)
		if opps != nil {
			t.Errorf("got %v, want nil", opps)
		}
	})

	t.Run("repeat trigger within cooldown is suppressed, reappears after", func(t *testing.T) {
		clk := clock.NewFake(time.Unix(1_700_000_000, 0))
		gasFeed := &fakeGasFeed{wei: big.NewInt(5_000_000_000)}
		o, _ := newTestOrchestrator(t, clk, gasFeed)

		first := o.Detect(context.Background(), 100, detdomain.SourceBlock)
		if len(first) != 1 {
			t.Fatalf("first Detect: len = %d, want 1", len(first))
		}

		second := o.Detect(context.Background(), 101, detdomain.SourceBlock)
		if len(second) != 0 {
			t.Fatalf("second Detect within cooldown: len = %d, want 0", len(second))
		}

		clk.Advance(31 * time.Second)
		third := o.Detect(context.Background(), 102, detdomain.SourceBlock)
		if len(third) != 1 {
			t.Fatalf("third Detect after cooldown: len = %d, want 1", len(third))
		}
	})

	t.Run("re-entrant trigger is dropped while a cycle is in flight", func(t *testing.T) {
		clk := clock.NewFake(time.Unix(1_700_000_000, 0))
		gasFeed := &fakeGasFeed{wei: big.NewInt(5_000_000_000)}
		o, _ := newTestOrchestrator(t, clk, gasFeed)

		o.state = stateProcessing
		opps := o.Detect(context.Background(), 1, detdomain.SourceBlock)
		if opps != nil {
			t.Errorf("got %v, want nil", opps)
		}
		if stats := o.Stats(); stats.ReentrantDropped != 1 {
			t.Errorf("ReentrantDropped = %d, want 1", stats.ReentrantDropped)
		}
	})

	t.Run("gas feed failure falls back to the static price without erroring the cycle", func(t *testing.T) {
		clk := clock.NewFake(time.Unix(1_700_000_000, 0))
		gasFeed := &fakeGasFeed{err: context.DeadlineExceeded}
		o, _ := newTestOrchestrator(t, clk, gasFeed)

		opps := o.Detect(context.Background(), 100, detdomain.SourceBlock)
		if len(opps) != 1 {
			t.Fatalf("len(opps) = %d, want 1", len(opps))
		}
	})
}
