package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/debtlink/internal/rules"
	"github.com/sells-group/debtlink/internal/store"
)

// openStore connects the configured driver. Postgres is the production
// store; sqlite serves local runs against a file or :memory:.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q (postgres or sqlite)", cfg.Store.Driver)
	}
}

// loadRules reads the classification ruleset, falling back to the builtin
// when no path is configured.
func loadRules() (*rules.RuleSet, error) {
	rs, err := rules.Load(cfg.Match.RulesPath)
	if err != nil {
		return nil, eris.Wrap(err, "load rules")
	}
	return rs, nil
}

// resolveCompanies returns the single requested company or every known one.
func resolveCompanies(ctx context.Context, s store.Store, companyID int64) ([]int64, error) {
	if companyID != 0 {
		return []int64{companyID}, nil
	}
	ids, err := s.ListCompanyIDs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "list companies")
	}
	return ids, nil
}
