package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halftrip/cachepurge"
)

func result(id string, ok bool) cachepurge.AggregateResult {
	start := time.Unix(1700000000, 0)
	return cachepurge.AggregateResult{
		PassID:     id,
		StartedAt:  start,
		FinishedAt: start.Add(15 * time.Millisecond),
		Outcomes: []cachepurge.PurgeOutcome{
			{Adapter: "offline-db", Success: true},
			{Adapter: "kv-storage", Success: ok, Error: "disabled"},
		},
		AllSucceeded: ok,
	}
}

func TestHistoryRecordAndSince(t *testing.T) {
	h := NewHistory(10)
	h.Record(result("p1", true))
	h.Record(result("p2", false))

	recs, latest := h.Since(0)
	require.Len(t, recs, 2)
	assert.Equal(t, uint64(2), latest)
	assert.Equal(t, "p1", recs[0].PassID)
	assert.Equal(t, int64(15), recs[0].DurationMs)
	assert.Equal(t, []string{"kv-storage"}, recs[1].Failed())

	recs, latest = h.Since(2)
	assert.Empty(t, recs)
	assert.Equal(t, uint64(2), latest)
}

func TestHistoryDropsOldest(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Record(result(fmt.Sprintf("p%d", i), true))
	}
	assert.Equal(t, 3, h.Len())
	recs, _ := h.Since(0)
	require.Len(t, recs, 3)
	assert.Equal(t, uint64(3), recs[0].Seq)
	last, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, "p4", last.PassID)
}

func TestHistoryEmpty(t *testing.T) {
	h := NewHistory(0)
	_, ok := h.Latest()
	assert.False(t, ok)
	recs, latest := h.Since(7)
	assert.Nil(t, recs)
	assert.Equal(t, uint64(7), latest)
}

func TestHistoryRecordsGuardedTransition(t *testing.T) {
	reg, err := cachepurge.NewRegistry(cachepurge.NewAdapterFunc("a", nil))
	require.NoError(t, err)
	c, err := cachepurge.NewCoordinator(cachepurge.DefaultConfig(), reg, nil, nil)
	require.NoError(t, err)
	h := NewHistory(4)
	g := cachepurge.NewGuard(c, nil, cachepurge.WithRecorder(h))
	out := g.SecureTransition(t.Context(), func(context.Context) error { return nil })
	last, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, out.Purge.PassID, last.PassID)
}
