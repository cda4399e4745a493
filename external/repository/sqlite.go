package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/foxseedlab/playhost/internal/repository"
	_ "modernc.org/sqlite"
)

// SQLiteRepository is the single-file store for local and small deployments.
// Timestamps are stored as RFC 3339 text.
type SQLiteRepository struct {
	db      *sql.DB
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps in-memory databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return NewSQLiteRepository(db), nil
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		now:     time.Now,
	}
}

func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	return runMigration(ctx, sqliteMigrationStatements, func(ctx context.Context, stmt string) error {
		_, err := r.db.ExecContext(ctx, stmt)
		return err
	})
}

func (r *SQLiteRepository) Close() {
	_ = r.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp %q: %w", s.String, err)
	}
	return &t, nil
}

func (r *SQLiteRepository) AddSession(ctx context.Context, rec repository.SessionRecord) error {
	doc, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	stmt, args, err := r.builder.Insert(sessionsTable).
		Columns("unique_id", "id", "state", "host_id", "record", "updated_at").
		Values(rec.UniqueID, rec.ID, string(rec.State), rec.HostID, doc, formatTime(r.now())).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert session %s: %w", rec.UniqueID, err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateSession(ctx context.Context, rec repository.SessionRecord) error {
	doc, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	stmt, args, err := r.builder.Update(sessionsTable).
		Set("id", rec.ID).
		Set("state", string(rec.State)).
		Set("host_id", rec.HostID).
		Set("record", doc).
		Set("updated_at", formatTime(r.now())).
		Where(squirrel.Eq{"unique_id": rec.UniqueID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update session sql: %w", err)
	}
	res, err := r.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update session %s: %w", rec.UniqueID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session %s: %w", rec.UniqueID, err)
	}
	if n == 0 {
		return fmt.Errorf("update session %s: %w", rec.UniqueID, repository.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) GetSession(ctx context.Context, uniqueID string) (*repository.SessionRecord, error) {
	stmt, args, err := r.builder.Select("record").
		From(sessionsTable).
		Where(squirrel.Eq{"unique_id": uniqueID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}
	var doc string
	if err := r.db.QueryRowContext(ctx, stmt, args...).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select session %s: %w", uniqueID, err)
	}
	rec, err := decodeRecord([]byte(doc))
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *SQLiteRepository) ListLiveSessions(ctx context.Context) ([]repository.SessionRecord, error) {
	stmt, args, err := r.builder.Select("record").
		From(sessionsTable).
		Where(squirrel.Eq{"state": liveStates}).
		OrderBy("unique_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions sql: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list live sessions: %w", err)
	}
	defer rows.Close()

	var list []repository.SessionRecord
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec, err := decodeRecord([]byte(doc))
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

func (r *SQLiteRepository) GetReputation(ctx context.Context, userID string) (repository.UserReputation, error) {
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
	var lastUpdate, lastPing sql.NullString
	err = r.db.QueryRowContext(ctx, stmt, args...).Scan(
		&rep.RecommendationScore,
		&rep.TotalRecommendationScore,
		&lastUpdate,
		&lastPing,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.UserReputation{UserID: userID}, nil
	}
	if err != nil {
		return repository.UserReputation{}, fmt.Errorf("select reputation %s: %w", userID, err)
	}
	updated, err := parseNullTime(lastUpdate)
	if err != nil {
		return repository.UserReputation{}, err
	}
	if updated != nil {
		rep.LastRecommendationScoreUpdate = *updated
	}
	if rep.LastPingAt, err = parseNullTime(lastPing); err != nil {
		return repository.UserReputation{}, err
	}
	return rep, nil
}

func (r *SQLiteRepository) UpdateScoreFields(ctx context.Context, rep repository.UserReputation) error {
	stmt, args, err := r.builder.Insert(reputationsTable).
		Columns("user_id", "recommendation_score", "total_recommendation_score", "last_recommendation_score_update").
		Values(rep.UserID, rep.RecommendationScore, rep.TotalRecommendationScore, formatTime(rep.LastRecommendationScoreUpdate)).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			recommendation_score = excluded.recommendation_score,
			total_recommendation_score = excluded.total_recommendation_score,
			last_recommendation_score_update = excluded.last_recommendation_score_update`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert reputation sql: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert reputation %s: %w", rep.UserID, err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateLastPing(ctx context.Context, userID string, at time.Time) error {
	stmt, args, err := r.builder.Insert(reputationsTable).
		Columns("user_id", "last_ping_at").
		Values(userID, formatTime(at)).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET last_ping_at = excluded.last_ping_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert last ping sql: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert last ping %s: %w", userID, err)
	}
	return nil
}

var _ repository.Repository = (*SQLiteRepository)(nil)
