package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/opengov-es/revisor/internal/reconcile"
	"github.com/opengov-es/revisor/internal/store"
)

// openStore opens the configured backend. An unreachable database is a
// missing-input condition, not an upstream pipeline failure.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		st, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, exitErr(reconcile.ExitMissingInput, err)
		}
		return st, nil
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, exitErr(reconcile.ExitMissingInput, err)
		}
		return st, nil
	default:
		return nil, exitErr(reconcile.ExitMissingInput,
			eris.Errorf("unknown store driver %q (want sqlite or postgres)", cfg.Store.Driver))
	}
}
