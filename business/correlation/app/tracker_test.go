package app

import (
	"context"
	"io"
	"testing"
	"time"

	pooldomain "github.com/fd1az/arbdetectd/business/pool/domain"
	"github.com/fd1az/arbdetectd/internal/clock"
	"github.com/fd1az/arbdetectd/internal/logger"
)

func newTestTracker() *Tracker {
	cfg := DefaultConfig()
	cfg.Threshold = 0.5
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	return NewTracker(cfg, clock.NewFake(time.Unix(0, 0)), log)
}

func TestTracker_RecordSkipsBelowEpsilon(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()
	pool := pooldomain.PoolKey("A-B@dexA")
	pair := pooldomain.PairKey("A-B")

	hints := tr.Record(ctx, pool, pair, "A", "B", 1.0, 0, 1)
	if hints != nil {
		t.Errorf("first record should never itself produce hints, got %v", hints)
	}

	h := tr.histories[pool]
	if len(h.Points) != 1 {
		t.Fatalf("expected 1 point recorded, got %d", len(h.Points))
	}

	tr.Record(ctx, pool, pair, "A", "B", 1.00001, 1, 2) // below default epsilon 0.001
	if len(h.Points) != 1 {
		t.Errorf("expected point below epsilon to be dropped, history has %d points", len(h.Points))
	}

	tr.Record(ctx, pool, pair, "A", "B", 1.01, 2, 3)
	if len(h.Points) != 2 {
		t.Errorf("expected point above epsilon to be recorded, history has %d points", len(h.Points))
	}
}

func TestTracker_Recompute_CorrelatesLinkedPools(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	poolA := pooldomain.PoolKey("A-B@dexA")
	poolB := pooldomain.PoolKey("A-B@dexB")
	pair := pooldomain.PairKey("A-B")

	// Feed perfectly correlated return series across 12 blocks. The
	// returns alternate between 2% and 1%: a constant return has zero
	// variance and therefore no defined correlation.
	price := 1.0
	for block := uint64(1); block <= 12; block++ {
		if block%2 == 0 {
			price *= 1.01
		} else {
			price *= 1.02
		}
		wall := int64(block) * 1000
		tr.Record(ctx, poolA, pair, "A", "B", price, wall, block)
		tr.Record(ctx, poolB, pair, "A", "B", price*2, wall, block)
	}

	tr.Recompute(ctx)

	neighbors := tr.matrix.Neighbors(poolA)
	if len(neighbors) == 0 {
		t.Fatal("expected poolA and poolB to correlate after recompute")
	}
	if neighbors[0].PoolKey != poolB {
		t.Errorf("expected poolB as top neighbor, got %s (score %f)", neighbors[0].PoolKey, neighbors[0].Score)
	}
	if neighbors[0].Score < 0.99 {
		t.Errorf("expected near-perfect correlation, got %f", neighbors[0].Score)
	}
}

func TestTracker_CorrelatedPools_SamePairImplicitScore(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	poolA := pooldomain.PoolKey("A-B@dexA")
	poolB := pooldomain.PoolKey("A-B@dexB")
	pair := pooldomain.PairKey("A-B")

	tr.Record(ctx, poolA, pair, "A", "B", 1.0, 0, 1)
	tr.Record(ctx, poolB, pair, "A", "B", 1.0, 0, 1)

	hints := tr.correlatedPools(poolA)
	if len(hints) != 1 {
		t.Fatalf("expected one same-pair hint, got %d", len(hints))
	}
	if hints[0].TargetPool != poolB || hints[0].Reason != ReasonSamePair {
		t.Errorf("unexpected hint: %+v", hints[0])
	}
	if hints[0].Score != sameDexPairScore {
		t.Errorf("score = %f, want %f", hints[0].Score, sameDexPairScore)
	}
}

func TestTracker_CorrelatedPools_BaseTokenPeer(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	poolA := pooldomain.PoolKey("A-B@dexA")
	poolC := pooldomain.PoolKey("A-C@dexA")

	tr.Record(ctx, poolA, pooldomain.PairKey("A-B"), "WBNB", "B", 1.0, 0, 1)
	tr.Record(ctx, poolC, pooldomain.PairKey("A-C"), "WBNB", "C", 1.0, 0, 1)

	hints := tr.correlatedPools(poolA)
	if len(hints) != 1 {
		t.Fatalf("expected one base-token hint, got %d", len(hints))
	}
	if hints[0].TargetPool != poolC || hints[0].Reason != ReasonBaseToken {
		t.Errorf("unexpected hint: %+v", hints[0])
	}
}

func TestTracker_ExportImportRoundTrip(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	poolA := pooldomain.PoolKey("A-B@dexA")
	poolB := pooldomain.PoolKey("A-B@dexB")
	pair := pooldomain.PairKey("A-B")

	price := 1.0
	for block := uint64(1); block <= 12; block++ {
		if block%2 == 0 {
			price *= 1.01
		} else {
			price *= 1.02
		}
		tr.Record(ctx, poolA, pair, "A", "B", price, int64(block)*1000, block)
		tr.Record(ctx, poolB, pair, "A", "B", price*2, int64(block)*1000, block)
	}
	tr.Recompute(ctx)

	snapshot := tr.Export()
	if len(snapshot) == 0 {
		t.Fatal("expected a non-empty exported snapshot")
	}

	restored := newTestTracker()
	restored.Import(snapshot)

	if len(restored.matrix.Neighbors(poolA)) != len(tr.matrix.Neighbors(poolA)) {
		t.Error("restored matrix does not match original neighbor count")
	}
}
