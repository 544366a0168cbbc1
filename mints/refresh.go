package mints

import (
	"context"
	"fmt"
	"log/slog"
)

// RefreshCoordinator re-validates a collection's heuristically detected
// configurations. It orchestrates only: the simulator owns the storage
// mutation, and configurations are revisited one at a time to bound load on
// the simulation backend.
type RefreshCoordinator struct {
	store     Store
	simulator Simulator
	logger    *slog.Logger
}

// NewRefreshCoordinator wires a refresh coordinator.
func NewRefreshCoordinator(store Store, simulator Simulator, logger *slog.Logger) *RefreshCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshCoordinator{
		store:     store,
		simulator: simulator,
		logger:    logger.With("component", "mint-refresh"),
	}
}

// Refresh re-runs simulation for every configuration of collection that
// carries the heuristic standard tag. The first simulator failure aborts
// the pass; remaining configurations are picked up by the next refresh.
func (c *RefreshCoordinator) Refresh(ctx context.Context, collection string) error {
	known, err := c.store.ListMintsByStandard(ctx, collection, StandardUnknown)
	if err != nil {
		return fmt.Errorf("listing configurations: %w", err)
	}
	if len(known) == 0 {
		c.logger.Debug("no configurations to refresh", slog.String("collection", collection))
		return nil
	}

	for _, m := range known {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.simulator.SimulateAndUpsert(ctx, m); err != nil {
			return fmt.Errorf("refreshing %s/%s: %w", m.Collection, m.Stage, err)
		}
		c.logger.Debug("refreshed mint configuration",
			slog.String("collection", m.Collection),
			slog.String("stage", m.Stage))
	}

	c.logger.Info("refreshed collection mints",
		slog.String("collection", collection),
		slog.Int("count", len(known)))
	return nil
}
