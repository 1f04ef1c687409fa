package database

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/animesync/internal/domain"
)

// CacheRepo implements domain.CacheRepo
type CacheRepo struct {
	log zerolog.Logger
	db  *DB
}

// NewCacheRepo creates a new cache repository
func NewCacheRepo(log zerolog.Logger, db *DB) domain.CacheRepo {
	return &CacheRepo{
		log: log.With().Str("repo", "cache").Logger(),
		db:  db,
	}
}

func (r *CacheRepo) List(ctx context.Context) ([]domain.AnimeKey, error) {
	queryBuilder := r.db.squirrel.
		Select("anime_key").
		From("anime_cache").
		OrderBy("anime_key")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("List")

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	keys := make([]domain.AnimeKey, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		keys = append(keys, domain.AnimeKey(key))
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return keys, nil
}

// LastSyncedAt returns the zero time until the first successful merge
func (r *CacheRepo) LastSyncedAt(ctx context.Context) (time.Time, error) {
	queryBuilder := r.db.squirrel.
		Select("last_synced_at").
		From("cache_meta").
		Where(sq.Eq{"id": 1})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return time.Time{}, errors.Wrap(err, "error building query")
	}

	var synced sql.NullString
	err = r.db.handler.QueryRowContext(ctx, query, args...).Scan(&synced)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !synced.Valid) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, errors.Wrap(err, "error executing query")
	}

	return parseTime(synced.String)
}

func (r *CacheRepo) Add(ctx context.Context, key domain.AnimeKey, at time.Time) error {
	queryBuilder := r.db.squirrel.
		Insert("anime_cache").
		Options("OR IGNORE").
		Columns("anime_key", "added_at").
		Values(string(key), formatTime(at))

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Add")

	if _, err := r.db.handler.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	return nil
}

func (r *CacheRepo) Remove(ctx context.Context, key domain.AnimeKey) (bool, error) {
	queryBuilder := r.db.squirrel.
		Delete("anime_cache").
		Where(sq.Eq{"anime_key": string(key)})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return false, errors.Wrap(err, "error building delete query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Remove")

	res, err := r.db.handler.ExecContext(ctx, query, args...)
	if err != nil {
		return false, errors.Wrap(err, "error executing delete query")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "error reading affected rows")
	}

	return n > 0, nil
}

func (r *CacheRepo) ReplaceAll(ctx context.Context, keys []domain.AnimeKey, syncedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.db.replaceCache(ctx, tx, keys, syncedAt); err != nil {
		return err
	}

	r.log.Trace().Int("keys", len(keys)).Msg("ReplaceAll")

	return errors.Wrap(tx.Commit(), "error committing transaction")
}

// replaceCache swaps the cached keys and the sync time inside tx
func (db *DB) replaceCache(ctx context.Context, tx *Tx, keys []domain.AnimeKey, syncedAt time.Time) error {
	query, args, err := db.squirrel.Delete("anime_cache").ToSql()
	if err != nil {
		return errors.Wrap(err, "error building delete query")
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error clearing cache")
	}

	stamp := formatTime(syncedAt)
	for _, key := range keys {
		query, args, err := db.squirrel.
			Insert("anime_cache").
			Options("OR IGNORE").
			Columns("anime_key", "added_at").
			Values(string(key), stamp).
			ToSql()
		if err != nil {
			return errors.Wrap(err, "error building query")
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrapf(err, "error inserting %s", key)
		}
	}

	query, args, err = db.squirrel.
		Replace("cache_meta").
		Columns("id", "last_synced_at").
		Values(1, stamp).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error storing sync time")
	}
	return nil
}
