package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
)

var payloadCodec = jsoniter.ConfigCompatibleWithStandardLibrary

type PostgresStateStore struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresStateStore(db *pgxpool.Pool, timeout time.Duration) *PostgresStateStore {
	return &PostgresStateStore{db: db, timeout: timeout}
}

func (s *PostgresStateStore) Set(ctx context.Context, key string, st *State) error {
	payload, err := payloadCodec.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal oauth state: %w", err)
	}

	const upsertSQL = `
		INSERT INTO oauth_states (key, data, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data
	`
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.Exec(timeoutCtx, upsertSQL, key, payload); err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

// Get filters on age rather than trusting a sweeper to have run; an entry
// older than StateTTL is treated as absent.
func (s *PostgresStateStore) Get(ctx context.Context, key string) (*State, error) {
	const querySQL = `
		SELECT data FROM oauth_states
		WHERE key = $1 AND created_at > now() - make_interval(secs => $2)
	`
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var payload []byte
	err := s.db.QueryRow(timeoutCtx, querySQL, key, StateTTL.Seconds()).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load oauth state: %w", err)
	}

	var st State
	if err := payloadCodec.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("unmarshal oauth state: %w", err)
	}
	return &st, nil
}

func (s *PostgresStateStore) Del(ctx context.Context, key string) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.Exec(timeoutCtx, `DELETE FROM oauth_states WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete oauth state: %w", err)
	}
	return nil
}

// DeleteExpired is run periodically from cmd/api to keep the table small.
func (s *PostgresStateStore) DeleteExpired(ctx context.Context) (int64, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tag, err := s.db.Exec(timeoutCtx,
		`DELETE FROM oauth_states WHERE created_at <= now() - make_interval(secs => $1)`, StateTTL.Seconds())
	if err != nil {
		return 0, fmt.Errorf("sweep oauth states: %w", err)
	}
	return tag.RowsAffected(), nil
}

type PostgresSessionStore struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresSessionStore(db *pgxpool.Pool, timeout time.Duration) *PostgresSessionStore {
	return &PostgresSessionStore{db: db, timeout: timeout}
}

func (s *PostgresSessionStore) Set(ctx context.Context, did string, sess *Session) error {
	payload, err := payloadCodec.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal oauth session: %w", err)
	}

	const upsertSQL = `
		INSERT INTO oauth_sessions (did, data, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (did) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
	`
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.Exec(timeoutCtx, upsertSQL, did, payload); err != nil {
		return fmt.Errorf("save oauth session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) Get(ctx context.Context, did string) (*Session, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var payload []byte
	err := s.db.QueryRow(timeoutCtx, `SELECT data FROM oauth_sessions WHERE did = $1`, did).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load oauth session: %w", err)
	}

	var sess Session
	if err := payloadCodec.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal oauth session: %w", err)
	}
	return &sess, nil
}

func (s *PostgresSessionStore) Del(ctx context.Context, did string) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.Exec(timeoutCtx, `DELETE FROM oauth_sessions WHERE did = $1`, did); err != nil {
		return fmt.Errorf("delete oauth session: %w", err)
	}
	return nil
}
