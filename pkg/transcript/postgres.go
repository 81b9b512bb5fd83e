package transcript

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore implements Store on a transcript_turns table.
// Appends to one session are serialized with a transaction-scoped advisory
// lock so sequence numbers stay gapless and ordered.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore connects to dsn and applies pending migrations.
func NewPostgresStore(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("transcript: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("transcript: ping postgres: %w", err)
	}

	store := &PostgresStore{
		pool:   pool,
		logger: logger.With("component", "transcript.postgres"),
	}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("transcript: goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("transcript: migrate: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err == nil {
		s.logger.Info("schema ready", "version", version)
	}
	return nil
}

// Append commits a turn at the next sequence number of the session.
func (s *PostgresStore) Append(ctx context.Context, sessionID string, turn Turn) error {
	if err := checkAppend(sessionID, turn); err != nil {
		return err
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sessionID); err != nil {
			return fmt.Errorf("transcript: lock session: %w", err)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO transcript_turns (session_id, seq, speaker, text, spoken_at, spoken_at_ns)
			SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5
			FROM transcript_turns WHERE session_id = $1`,
			sessionID, string(turn.Speaker), turn.Text, turn.Timestamp, turn.Timestamp.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("transcript: insert turn: %w", err)
		}
		return nil
	})
}

// All returns the session's turns ordered by sequence.
func (s *PostgresStore) All(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT speaker, text, spoken_at_ns FROM transcript_turns
		WHERE session_id = $1 ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("transcript: query turns: %w", err)
	}

	turns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Turn, error) {
		var (
			t       Turn
			speaker string
			nanos   int64
		)
		if err := row.Scan(&speaker, &t.Text, &nanos); err != nil {
			return Turn{}, err
		}
		t.Speaker = Speaker(speaker)
		// spoken_at only keeps microseconds; spoken_at_ns is the exact stamp.
		t.Timestamp = time.Unix(0, nanos).UTC()
		return t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("transcript: scan turns: %w", err)
	}
	if turns == nil {
		turns = []Turn{}
	}
	return turns, nil
}

// Clear deletes the session's rows.
func (s *PostgresStore) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM transcript_turns WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("transcript: clear session: %w", err)
	}
	return nil
}

// Sessions lists stored sessions, most recently updated first.
func (s *PostgresStore) Sessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT session_id, COUNT(*), MAX(spoken_at) FROM transcript_turns
		GROUP BY session_id ORDER BY MAX(spoken_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("transcript: list sessions: %w", err)
	}

	infos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SessionInfo, error) {
		var info SessionInfo
		err := row.Scan(&info.ID, &info.Turns, &info.UpdatedAt)
		return info, err
	})
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transcript: scan sessions: %w", err)
	}
	return infos, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Verify PostgresStore implements Store and Lister at compile time.
var (
	_ Store  = (*PostgresStore)(nil)
	_ Lister = (*PostgresStore)(nil)
)
