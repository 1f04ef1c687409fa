package database

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/animesync/internal/domain"
)

// OutboxRepo implements domain.OutboxRepo on the action_queue table
type OutboxRepo struct {
	log zerolog.Logger
	db  *DB
}

func NewOutboxRepo(log zerolog.Logger, db *DB) domain.OutboxRepo {
	return &OutboxRepo{
		log: log.With().Str("repo", "outbox").Logger(),
		db:  db,
	}
}

func (r *OutboxRepo) Enqueue(ctx context.Context, action domain.PendingAction) error {
	query, args, err := r.db.insertAction(action)
	if err != nil {
		return err
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Enqueue")

	if _, err := r.db.handler.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	return nil
}

func (db *DB) insertAction(action domain.PendingAction) (string, []interface{}, error) {
	var day sql.NullString
	if action.Day != nil {
		day = sql.NullString{String: string(*action.Day), Valid: true}
	}

	query, args, err := db.squirrel.
		Insert("action_queue").
		Columns("id", "kind", "anime_key", "day", "created_at").
		Values(action.ID, string(action.Kind), string(action.Key), day, formatTime(action.CreatedAt)).
		ToSql()
	if err != nil {
		return "", nil, errors.Wrap(err, "error building query")
	}
	return query, args, nil
}

func (r *OutboxRepo) List(ctx context.Context) ([]domain.PendingAction, error) {
	queryBuilder := r.db.squirrel.
		Select("id", "kind", "anime_key", "day", "created_at").
		From("action_queue").
		OrderBy("seq")

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

	actions := make([]domain.PendingAction, 0)
	for rows.Next() {
		var (
			a       domain.PendingAction
			kind    string
			key     string
			day     sql.NullString
			created string
		)
		if err := rows.Scan(&a.ID, &kind, &key, &day, &created); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}

		a.Kind = domain.ActionKind(kind)
		a.Key = domain.AnimeKey(key)
		if day.Valid {
			d := domain.Day(day.String)
			a.Day = &d
		}
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}

		actions = append(actions, a)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return actions, nil
}

// Delete removes the given actions; unknown ids are ignored
func (r *OutboxRepo) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	queryBuilder := r.db.squirrel.
		Delete("action_queue").
		Where(sq.Eq{"id": ids})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building delete query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Delete")

	if _, err := r.db.handler.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing delete query")
	}

	return nil
}

func (r *OutboxRepo) Count(ctx context.Context) (int, error) {
	query, args, err := r.db.squirrel.
		Select("COUNT(*)").
		From("action_queue").
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "error building query")
	}

	var n int
	if err := r.db.handler.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "error executing query")
	}

	return n, nil
}
