package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/foxseedlab/playhost/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

func NewPostgresRepository(exec pgExecutor) *PostgresRepository {
	repo := &PostgresRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     time.Now,
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

func (r *PostgresRepository) Migrate(ctx context.Context) error {
	return runMigration(ctx, postgresMigrationStatements, func(ctx context.Context, stmt string) error {
		_, err := r.exec.Exec(ctx, stmt)
		return err
	})
}

func (r *PostgresRepository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

func (r *PostgresRepository) AddSession(ctx context.Context, rec repository.SessionRecord) error {
	doc, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	stmt, args, err := r.builder.Insert(sessionsTable).
		Columns("unique_id", "id", "state", "host_id", "record", "updated_at").
		Values(rec.UniqueID, rec.ID, string(rec.State), rec.HostID, doc, r.now()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert session %s: %w", rec.UniqueID, err)
	}
	return nil
}

func (r *PostgresRepository) UpdateSession(ctx context.Context, rec repository.SessionRecord) error {
	doc, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	stmt, args, err := r.builder.Update(sessionsTable).
		Set("id", rec.ID).
		Set("state", string(rec.State)).
		Set("host_id", rec.HostID).
		Set("record", doc).
		Set("updated_at", r.now()).
		Where(squirrel.Eq{"unique_id": rec.UniqueID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update session sql: %w", err)
	}
	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update session %s: %w", rec.UniqueID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update session %s: %w", rec.UniqueID, repository.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) GetSession(ctx context.Context, uniqueID string) (*repository.SessionRecord, error) {
	stmt, args, err := r.builder.Select("record").
		From(sessionsTable).
		Where(squirrel.Eq{"unique_id": uniqueID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}
	var doc []byte
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select session %s: %w", uniqueID, err)
	}
	rec, err := decodeRecord(doc)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *PostgresRepository) ListLiveSessions(ctx context.Context) ([]repository.SessionRecord, error) {
	stmt, args, err := r.builder.Select("record").
		From(sessionsTable).
		Where(squirrel.Eq{"state": liveStates}).
		OrderBy("unique_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions sql: %w", err)
	}
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list live sessions: %w", err)
	}
	defer rows.Close()

	var list []repository.SessionRecord
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec, err := decodeRecord(doc)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) GetReputation(ctx context.Context, userID string) (repository.UserReputation, error) {
	stmt, args, err := r.builder.Select(
		"recommendation_score",
		"total_recommendation_score",
		"last_recommendation_score_update",
		"last_ping_at",
	).
		From(reputationsTable).
		Where(squirrel.Eq{"user_id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return repository.UserReputation{}, fmt.Errorf("build select reputation sql: %w", err)
	}

	rep := repository.UserReputation{UserID: userID}
	var lastUpdate *time.Time
	err = r.exec.QueryRow(ctx, stmt, args...).Scan(
		&rep.RecommendationScore,
		&rep.TotalRecommendationScore,
		&lastUpdate,
		&rep.LastPingAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.UserReputation{UserID: userID}, nil
	}
	if err != nil {
		return repository.UserReputation{}, fmt.Errorf("select reputation %s: %w", userID, err)
	}
	if lastUpdate != nil {
		rep.LastRecommendationScoreUpdate = *lastUpdate
	}
	return rep, nil
}

func (r *PostgresRepository) UpdateScoreFields(ctx context.Context, rep repository.UserReputation) error {
	stmt, args, err := r.builder.Insert(reputationsTable).
		Columns("user_id", "recommendation_score", "total_recommendation_score", "last_recommendation_score_update").
		Values(rep.UserID, rep.RecommendationScore, rep.TotalRecommendationScore, rep.LastRecommendationScoreUpdate).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			recommendation_score = EXCLUDED.recommendation_score,
			total_recommendation_score = EXCLUDED.total_recommendation_score,
			last_recommendation_score_update = EXCLUDED.last_recommendation_score_update`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert reputation sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert reputation %s: %w", rep.UserID, err)
	}
	return nil
}

func (r *PostgresRepository) UpdateLastPing(ctx context.Context, userID string, at time.Time) error {
	stmt, args, err := r.builder.Insert(reputationsTable).
		Columns("user_id", "last_ping_at").
		Values(userID, at).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET last_ping_at = EXCLUDED.last_ping_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert last ping sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert last ping %s: %w", userID, err)
	}
	return nil
}

var _ repository.Repository = (*PostgresRepository)(nil)
