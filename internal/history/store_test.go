package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/janekbaraniewski/usagesync/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndReadBack(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	clock := base
	store.now = func() time.Time { return clock }

	snaps := []core.UsageSnapshot{
		{ProviderID: "anthropic", PaymentType: core.PaymentUsageBased, UsagePercentage: 40, CostUsed: 4, CostLimit: 10, IsAvailable: true},
		{ProviderID: "cursor", PaymentType: core.PaymentQuota, UsagePercentage: 70, IsAvailable: true},
	}
	if err := store.RecordPoll(ctx, snaps); err != nil {
		t.Fatalf("record poll: %v", err)
	}

	clock = base.Add(30 * time.Second)
	snaps[0].UsagePercentage = 55
	if err := store.RecordPoll(ctx, snaps); err != nil {
		t.Fatalf("record second poll: %v", err)
	}

	series, err := store.RecentSeries(ctx, "anthropic", 10)
	if err != nil {
		t.Fatalf("recent series: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("series length = %d, want 2", len(series))
	}
	if !series[0].ObservedAt.Before(series[1].ObservedAt) {
		t.Error("series must be chronological")
	}
	if series[0].UsedPercent != 40 || series[1].UsedPercent != 55 {
		t.Errorf("used percents = %v, %v", series[0].UsedPercent, series[1].UsedPercent)
	}

	// Quota providers store normalized consumption, not the raw remaining figure.
	series, err = store.RecentSeries(ctx, "cursor", 10)
	if err != nil {
		t.Fatalf("recent series: %v", err)
	}
	if len(series) != 2 || series[0].UsedPercent != 30 {
		t.Fatalf("quota series = %+v", series)
	}
}

func TestRecentSeriesLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		tick := base.Add(time.Duration(i) * time.Minute)
		store.now = func() time.Time { return tick }
		err := store.RecordPoll(ctx, []core.UsageSnapshot{
			{ProviderID: "openai", PaymentType: core.PaymentUsageBased, UsagePercentage: float64(i * 10)},
		})
		if err != nil {
			t.Fatalf("record poll %d: %v", i, err)
		}
	}

	series, err := store.RecentSeries(ctx, "openai", 3)
	if err != nil {
		t.Fatalf("recent series: %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("series length = %d, want 3", len(series))
	}
	// The newest three, oldest first.
	if series[0].UsedPercent != 20 || series[2].UsedPercent != 40 {
		t.Errorf("series = %+v", series)
	}
}

func TestPrune(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	old := base.Add(-48 * time.Hour)
	store.now = func() time.Time { return old }
	if err := store.RecordPoll(ctx, []core.UsageSnapshot{{ProviderID: "openai"}}); err != nil {
		t.Fatalf("record old poll: %v", err)
	}

	store.now = func() time.Time { return base }
	if err := store.RecordPoll(ctx, []core.UsageSnapshot{{ProviderID: "openai"}}); err != nil {
		t.Fatalf("record fresh poll: %v", err)
	}

	if err := store.Prune(ctx, 24*time.Hour); err != nil {
		t.Fatalf("prune: %v", err)
	}
	series, err := store.RecentSeries(ctx, "openai", 10)
	if err != nil {
		t.Fatalf("recent series: %v", err)
	}
	if len(series) != 1 {
		t.Errorf("series after prune = %d, want 1", len(series))
	}
	if !series[0].ObservedAt.Equal(base) {
		t.Errorf("surviving sample at %v, want %v", series[0].ObservedAt, base)
	}
}

func TestEmptyPollIsNoop(t *testing.T) {
	store := openTestStore(t)
	if err := store.RecordPoll(context.Background(), nil); err != nil {
		t.Fatalf("empty poll errored: %v", err)
	}
}
