package cmd

import (
	"context"
	"fmt"

	"github.com/wesm/tabview/internal/config"
	"github.com/wesm/tabview/internal/query"
	"github.com/wesm/tabview/internal/source"
)

// openEngine opens the DuckDB engine the commands query through.
func openEngine() (*query.DuckDBEngine, error) {
	eng, err := query.NewDuckDBEngine(0)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	return eng, nil
}

// openSource opens paths for a headless command. Streaming sources are
// drained before returning so complete-data operations are allowed; a
// stream cut short at the memory budget comes back truncated.
func openSource(ctx context.Context, eng query.Engine, paths ...string) (*source.Opened, error) {
	budget := budgetFor(cfg)
	op, err := source.Open(ctx, eng, cfg.OpenOptions(budget), paths...)
	if err != nil {
		return nil, fmt.Errorf("open %v: %w", paths, err)
	}
	for _, w := range op.Warnings {
		logger.Warn("open", "source", op.Name, "warning", w)
	}
	if op.Stream == nil || !op.Stream.Background() {
		if op.Stream != nil {
			op.Source.Finish(op.Stream.Truncated)
		}
		return op, nil
	}
	if err := drain(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

// drain merges every background chunk of op's stream into its source.
func drain(ctx context.Context, op *source.Opened) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ch, ok := <-op.Stream.Chunks:
			if !ok {
				op.Source.Finish(true)
				logger.Warn("loading stopped early, data is incomplete", "source", op.Name)
				return nil
			}
			if ch.Table != nil {
				w, err := op.Source.AppendChunk(ch.Table)
				if err != nil {
					return fmt.Errorf("load %s: %w", op.Name, err)
				}
				ch.Warnings = append(ch.Warnings, w...)
			}
			for _, w := range ch.Warnings {
				logger.Warn("load", "source", op.Name, "warning", w)
			}
			if ch.Done {
				if ch.Err != nil {
					logger.Warn("load stopped", "source", op.Name, "err", ch.Err)
				}
				op.Source.Finish(ch.Truncated)
				return nil
			}
		}
	}
}

// budgetFor is the resolved memory budget, logged once at debug level.
func budgetFor(c *config.Config) config.Budget {
	b := c.MemoryBudget()
	logger.Debug("memory budget", "total", b.Total, "limit", b.Limit)
	return b
}
