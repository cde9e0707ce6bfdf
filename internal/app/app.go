package app

import (
	"errors"
	"fmt"

	"github.com/halftrip/cachepurge"
	"github.com/halftrip/cachepurge/audit"
	"github.com/halftrip/cachepurge/internal/appconfig"
	"github.com/halftrip/cachepurge/store/kvstore"
	"github.com/halftrip/cachepurge/store/offlinedb"
	"github.com/halftrip/cachepurge/store/respcache"
)

// App holds the wired purge stack.
type App struct {
	Registry    *cachepurge.Registry
	Coordinator *cachepurge.Coordinator
	Guard       *cachepurge.Guard
	History     *audit.History

	Offline   *offlinedb.Store
	KV        *kvstore.Store
	Responses *respcache.Cache

	closers []func() error
}

// Build opens the configured stores and registers them in dependency order: offline
// database, key-value storage, response cache. A store that cannot be opened is still
// registered and fails each purge with ErrUnavailable, so sign-out never depends on it.
func Build(cfg appconfig.Config, logger cachepurge.Logger, metrics cachepurge.Metrics) (*App, error) {
	if logger == nil {
		logger = cachepurge.NopLogger()
	}
	a := &App{Registry: &cachepurge.Registry{}}

	if cfg.OfflineDB.Enabled {
		var adapter cachepurge.Adapter
		db, err := offlinedb.Open(cfg.OfflineDB.Path)
		if err != nil {
			logger.Warn("offline db not available; purges will report it as not cleared",
				cachepurge.Field{Key: "path", Value: cfg.OfflineDB.Path},
				cachepurge.Field{Key: "err", Value: err})
			adapter = cachepurge.Unavailable(offlinedb.DefaultName, err)
		} else {
			a.Offline = db
			a.closers = append(a.closers, db.Close)
			adapter = withPolicy(db, cfg.OfflineDB.AdapterPolicy, cfg.Backoff)
		}
		if err := a.Registry.Register(adapter); err != nil {
			return nil, a.fail(err)
		}
	}

	if cfg.KeyValue.Enabled {
		prefix := cfg.KeyValue.Prefix
		if prefix == "" {
			p, err := cachepurge.ClientKeyPrefix("halftrip")
			if err != nil {
				logger.Warn("no client id; using the shared key prefix", cachepurge.Field{Key: "err", Value: err})
			}
			prefix = p
		}
		opts := kvstore.Options{
			Addr:      cfg.KeyValue.Addr,
			KeyPrefix: prefix,
			Timeout:   cfg.KeyValue.Timeout,
		}
		kv, err := kvstore.New(opts)
		if err != nil {
			// Keep the client: the server may come back before the next purge, and until
			// then Clear reports it as unavailable.
			logger.Warn("key-value store not reachable at startup",
				cachepurge.Field{Key: "addr", Value: cfg.KeyValue.Addr},
				cachepurge.Field{Key: "err", Value: err})
			kv = kvstore.Dial(opts)
		}
		a.KV = kv
		a.closers = append(a.closers, kv.Close)
		policy := cfg.KeyValue.AdapterPolicy
		// kvstore bounds each clear itself.
		policy.Timeout = 0
		if err := a.Registry.Register(withPolicy(kv, policy, cfg.Backoff)); err != nil {
			return nil, a.fail(err)
		}
	}

	if cfg.ResponseCache.Enabled {
		a.Responses = respcache.New(respcache.Options{Size: cfg.ResponseCache.Size, TTL: cfg.ResponseCache.TTL})
		if err := a.Registry.Register(a.Responses); err != nil {
			return nil, a.fail(err)
		}
	}

	coord, err := cachepurge.NewCoordinator(cfg.Purge, a.Registry, logger, metrics)
	if err != nil {
		return nil, a.fail(err)
	}
	a.Coordinator = coord

	opts := []cachepurge.GuardOption{}
	if metrics != nil {
		opts = append(opts, cachepurge.WithGuardMetrics(metrics))
	}
	if cfg.AuditSize > 0 {
		a.History = audit.NewHistory(cfg.AuditSize)
		opts = append(opts, cachepurge.WithRecorder(a.History))
	}
	a.Guard = cachepurge.NewGuard(coord, logger, opts...)

	logger.Info("purge stack ready",
		cachepurge.Field{Key: "adapters", Value: a.Registry.Names()},
		cachepurge.Field{Key: "mode", Value: string(cfg.Purge.Mode)})
	return a, nil
}

func withPolicy(a cachepurge.Adapter, p appconfig.AdapterPolicy, b cachepurge.BackoffConfig) cachepurge.Adapter {
	return cachepurge.WithRetry(cachepurge.WithTimeout(a, p.Timeout), b, p.Retries+1)
}

// Close releases every opened store.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) fail(err error) error {
	if cerr := a.Close(); cerr != nil {
		return fmt.Errorf("%w (cleanup: %v)", err, cerr)
	}
	return err
}
