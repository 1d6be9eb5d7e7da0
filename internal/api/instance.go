package api

import (
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/Pareto/internal/config"
	"github.com/MikeSquared-Agency/Pareto/internal/demand"
	"github.com/MikeSquared-Agency/Pareto/internal/pricing"
)

// Instance is the export of one solved instance: its demand segments and the
// market prices recovered from its balance duals.
type Instance struct {
	Table    *demand.Table
	Prices   []pricing.Price
	LoadedAt time.Time
}

// Loader reads an Instance from wherever the exports live.
type Loader func() (*Instance, error)

// ExportLoader reads the instance from the configured export directories.
func ExportLoader(cfg *config.Config) Loader {
	return func() (*Instance, error) {
		tbl, err := demand.LoadTable(cfg.Demand.ExportDir, demand.LoadOptions{PriceScale: cfg.Demand.PriceScale})
		if err != nil {
			return nil, fmt.Errorf("load demand table: %w", err)
		}
		duals, err := pricing.LoadDuals(cfg.Pricing.ExportDir)
		if err != nil {
			return nil, fmt.Errorf("load duals: %w", err)
		}
		prices, err := pricing.NewRecoverer(cfg.Pricing.UnitScale).Recover(duals)
		if err != nil {
			return nil, fmt.Errorf("recover prices: %w", err)
		}
		return &Instance{Table: tbl, Prices: prices, LoadedAt: time.Now().UTC()}, nil
	}
}
