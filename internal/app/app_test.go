package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halftrip/cachepurge"
	"github.com/halftrip/cachepurge/internal/appconfig"
	"github.com/halftrip/cachepurge/store/offlinedb"
)

func testConfig(t *testing.T) (appconfig.Config, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := appconfig.Default()
	cfg.OfflineDB.Path = filepath.Join(t.TempDir(), "offline.db")
	cfg.KeyValue.Addr = mr.Addr()
	cfg.KeyValue.Prefix = "device-1:"
	return cfg, mr
}

func TestBuildRegistersStoresInOrder(t *testing.T) {
	cfg, mr := testConfig(t)
	a, err := Build(cfg, nil, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"offline-db", "kv-storage", "response-cache"}, a.Registry.Names())

	ctx := context.Background()
	require.NoError(t, a.Offline.SaveTrip(ctx, offlinedb.Trip{ID: "t1", Name: "Porto"}))
	require.NoError(t, a.KV.Set(ctx, "pref:theme", "dark", 0))
	a.Responses.Open("api").Put(1, nil)

	out := a.Guard.SecureTransition(ctx, func(context.Context) error { return nil })
	require.NoError(t, out.Err)
	assert.True(t, out.Purge.AllSucceeded, "%+v", out.Purge.Outcomes)

	total, err := a.Offline.Total(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.False(t, mr.Exists("device-1:pref:theme"))
	assert.Zero(t, a.Responses.Len())

	last, ok := a.History.Latest()
	require.True(t, ok)
	assert.Equal(t, out.Purge.PassID, last.PassID)
}

func TestBuildKeepsSigningOutWhenRedisDies(t *testing.T) {
	cfg, mr := testConfig(t)
	cfg.KeyValue.Retries = 0
	a, err := Build(cfg, nil, nil)
	require.NoError(t, err)
	defer a.Close()

	mr.Close()
	called := false
	out := a.Guard.SecureTransition(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.True(t, called)
	assert.False(t, out.Purge.AllSucceeded)
	failed := out.Purge.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "kv-storage", failed[0].Adapter)
	assert.ErrorIs(t, failed[0].Err, cachepurge.ErrUnavailable)
}

func TestBuildRegistersStoresThatFailToOpen(t *testing.T) {
	cfg, mr := testConfig(t)
	mr.Close()
	cfg.OfflineDB.Path = filepath.Join(t.TempDir(), "missing", "dir", "offline.db")
	cfg.KeyValue.Retries = 0
	cfg.KeyValue.Timeout = 500 * time.Millisecond

	a, err := Build(cfg, nil, nil)
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, []string{"offline-db", "kv-storage", "response-cache"}, a.Registry.Names())
	assert.Nil(t, a.Offline)

	calls := 0
	out := a.Guard.SecureTransition(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	assert.Equal(t, 1, calls)
	require.NoError(t, out.Err)
	assert.False(t, out.Purge.AllSucceeded)

	failed := out.Purge.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, "offline-db", failed[0].Adapter)
	assert.ErrorIs(t, failed[0].Err, cachepurge.ErrUnavailable)
	assert.Equal(t, "kv-storage", failed[1].Adapter)
	assert.True(t, errors.Is(failed[1].Err, cachepurge.ErrUnavailable) || errors.Is(failed[1].Err, cachepurge.ErrTimeout),
		"got %v", failed[1].Err)
	assert.True(t, out.Purge.Outcomes[2].Success)
}

func TestBuildWithOnlyResponseCache(t *testing.T) {
	cfg := appconfig.Default()
	cfg.OfflineDB.Enabled = false
	cfg.KeyValue.Enabled = false
	cfg.AuditSize = 0
	a, err := Build(cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"response-cache"}, a.Registry.Names())
	assert.Nil(t, a.History)
	require.NoError(t, a.Close())
}
