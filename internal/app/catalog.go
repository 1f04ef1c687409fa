package app

import (
	"context"
	"fmt"

	"github.com/varoOP/animesync/internal/cache"
	"github.com/varoOP/animesync/internal/catalog"
	"github.com/varoOP/animesync/internal/database"
	"github.com/varoOP/animesync/internal/repository"
)

// PlanningEntry is one planning card and whether it is already queued
type PlanningEntry struct {
	catalog.Card
	Queued bool
}

// Planning scrapes the catalog's weekly planning and marks queued cards
func (a *App) Planning(ctx context.Context) (string, []PlanningEntry, error) {
	base := a.resolver.BaseURL(ctx)

	cards, err := a.scraper.Planning(ctx, base)
	if err != nil {
		return base, nil, fmt.Errorf("failed to read planning: %w", err)
	}

	snap, err := a.Status(ctx)
	if err != nil {
		return base, nil, err
	}
	queued := make(map[string]bool, len(snap.Keys))
	for _, k := range snap.Keys {
		queued[string(k)] = true
	}

	entries := make([]PlanningEntry, 0, len(cards))
	for _, c := range cards {
		entries = append(entries, PlanningEntry{Card: c, Queued: queued[string(c.Key)]})
	}
	return base, entries, nil
}

// Supported reports whether pageURL is a catalog page the companion acts on
func (a *App) Supported(ctx context.Context, pageURL string) (bool, string) {
	base := a.resolver.BaseURL(ctx)
	return catalog.IsSupportedPage(pageURL, base), base
}

// ImportExtension loads an extension storage dump into the cache and outbox
func (a *App) ImportExtension(ctx context.Context, path string) (*cache.ImportStats, error) {
	export, err := repository.ReadExtensionExport(path)
	if err != nil {
		return nil, err
	}

	stats, err := cache.ImportExtension(ctx, export, a.cache, a.outbox, database.NewImportRepo(a.log, a.db), a.log)
	if err != nil {
		return nil, fmt.Errorf("import failed: %w", err)
	}
	return stats, nil
}
