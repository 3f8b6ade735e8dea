package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/girona-rent/internal/resilience"
	"github.com/sells-group/girona-rent/internal/store"
)

// initStore opens and migrates the run ledger configured in cfg.Store,
// retrying transient failures.
func initStore(ctx context.Context) (store.Store, error) {
	policy := resilience.DefaultPolicy()
	policy.Attempts = cfg.Store.ConnectAttempts
	policy.OnRetry = resilience.LogRetry("open " + cfg.Store.Driver + " store")

	return resilience.DoVal(ctx, policy, openStore)
}

func openStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Store.DatabaseURL), 0o755); err != nil {
			return nil, eris.Wrap(err, "create store dir")
		}
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
