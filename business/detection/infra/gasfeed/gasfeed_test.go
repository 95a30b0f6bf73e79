package gasfeed

import (
	"context"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/fd1az/arbdetectd/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func TestFeed_GasPriceWei_NilClientFallsBackToStatic(t *testing.T) {
	static := big.NewInt(5_000_000_000)
	f := New(nil, time.Minute, static, testLogger())
	defer f.Close()

	wei, source, err := f.GasPriceWei(context.Background())
	if err != nil {
		t.Fatalf("GasPriceWei() error = %v, want nil", err)
	}
	if source != sourceStatic {
		t.Errorf("source = %q, want %q", source, sourceStatic)
	}
	if wei.Cmp(static) != 0 {
		t.Errorf("wei = %s, want %s", wei, static)
	}
}

func TestFeed_GasPriceWei_CacheHitSkipsRPC(t *testing.T) {
	static := big.NewInt(5_000_000_000)
	f := New(nil, time.Minute, static, testLogger())
	defer f.Close()

	cached := big.NewInt(9_000_000_000)
	f.priceCache.Set(context.Background(), cacheKey, cached, time.Minute)

	wei, source, err := f.GasPriceWei(context.Background())
	if err != nil {
		t.Fatalf("GasPriceWei() error = %v, want nil", err)
	}
	if source != sourceRPC {
		t.Errorf("source = %q, want %q (cache hits are reported under the RPC source)", source, sourceRPC)
	}
	if wei.Cmp(cached) != 0 {
		t.Errorf("wei = %s, want %s (cached value, not static fallback)", wei, cached)
	}
}

func TestFeed_GasPriceWei_RepeatedFallbackDoesNotCache(t *testing.T) {
	static := big.NewInt(5_000_000_000)
	f := New(nil, time.Minute, static, testLogger())
	defer f.Close()

	if _, _, err := f.GasPriceWei(context.Background()); err != nil {
		t.Fatalf("first GasPriceWei() error = %v", err)
	}
	if f.priceCache.Len() != 0 {
		t.Errorf("priceCache.Len() = %d, want 0 (a fallback must not poison the cache)", f.priceCache.Len())
	}

	wei, source, err := f.GasPriceWei(context.Background())
	if err != nil {
		t.Fatalf("second GasPriceWei() error = %v", err)
	}
	if source != sourceStatic || wei.Cmp(static) != 0 {
		t.Errorf("second call = (%s, %q), want (%s, %q)", wei, source, static, sourceStatic)
	}
}
