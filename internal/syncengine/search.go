package syncengine

import (
	"context"

	"github.com/dmitrijs2005/travellife/internal/dbx"
	"github.com/dmitrijs2005/travellife/internal/models"
	"github.com/dmitrijs2005/travellife/internal/repositories/records"
	"github.com/dmitrijs2005/travellife/internal/repositories/searchindex"
)

// Search runs a case-insensitive substring query over the derived index,
// optionally scoped to one trip.
func (e *Engine) Search(ctx context.Context, tripID, query string) ([]models.SearchIndexEntry, error) {
	return e.search.Search(ctx, tripID, query)
}

// RebuildSearchIndex drops the index and rebuilds it from the record store.
// Records whose payload no longer decodes are skipped rather than failing
// the rebuild; the skipped count is returned alongside the indexed count.
func (e *Engine) RebuildSearchIndex(ctx context.Context) (indexed, skipped int, err error) {
	now := e.now()
	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		recs := records.NewSQLiteRepository(tx)
		si := searchindex.NewSQLiteRepository(tx)

		if err := si.Clear(ctx); err != nil {
			return err
		}
		all, err := recs.All(ctx)
		if err != nil {
			return err
		}
		for i := range all {
			entry := models.BuildSearchIndexEntry(&all[i], now)
			if entry == nil {
				skipped++
				continue
			}
			if err := si.Upsert(ctx, entry); err != nil {
				return err
			}
			indexed++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	e.log.Info(ctx, "search index rebuilt", "indexed", indexed, "skipped", skipped)
	return indexed, skipped, nil
}
