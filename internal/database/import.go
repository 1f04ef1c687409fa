package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/animesync/internal/domain"
)

// ImportRepo implements domain.ImportRepo over the cache and outbox tables
type ImportRepo struct {
	log zerolog.Logger
	db  *DB
}

func NewImportRepo(log zerolog.Logger, db *DB) domain.ImportRepo {
	return &ImportRepo{
		log: log.With().Str("repo", "import").Logger(),
		db:  db,
	}
}

func (r *ImportRepo) Import(ctx context.Context, keys []domain.AnimeKey, syncedAt time.Time, actions []domain.PendingAction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.db.replaceCache(ctx, tx, keys, syncedAt); err != nil {
		return err
	}

	for _, action := range actions {
		query, args, err := r.db.insertAction(action)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrapf(err, "error queueing %s %s", action.Kind, action.Key)
		}
	}

	r.log.Trace().Int("keys", len(keys)).Int("actions", len(actions)).Msg("Import")

	return errors.Wrap(tx.Commit(), "error committing transaction")
}
