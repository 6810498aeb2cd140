package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SofiaChang/shopping-agent/internal/models"
)

// Turn is one recorded conversational turn.
type Turn struct {
	ID            string             `json:"id"`
	SessionID     string             `json:"session_id"`
	Input         string             `json:"input"`
	Constraints   models.Constraints `json:"constraints"`
	MatchingCount int                `json:"matching_count"`
	OtherCount    int                `json:"other_count"`
	CreatedAt     time.Time          `json:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS conversation_turns (
	id UUID PRIMARY KEY,
	session_id UUID NOT NULL,
	input TEXT NOT NULL,
	constraints JSONB NOT NULL,
	matching_count INT NOT NULL,
	other_count INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON conversation_turns (session_id, created_at);
`

// Store persists conversation turns to Postgres.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	MaxConns int32
}

func NewStore(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &Store{
		pool:   pool,
		logger: logger.With("component", "history"),
	}, nil
}

// Record writes one turn. The returned turn carries its generated ID.
func (s *Store) Record(ctx context.Context, turn Turn) (Turn, error) {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	constraints, err := json.Marshal(turn.Constraints)
	if err != nil {
		return Turn{}, fmt.Errorf("failed to marshal constraints: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO conversation_turns (id, session_id, input, constraints, matching_count, other_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		turn.ID, turn.SessionID, turn.Input, constraints,
		turn.MatchingCount, turn.OtherCount, turn.CreatedAt,
	)
	if err != nil {
		return Turn{}, fmt.Errorf("failed to insert turn: %w", err)
	}

	s.logger.Debug("recorded turn", "session_id", turn.SessionID, "turn_id", turn.ID)
	return turn, nil
}

// List returns a session's turns in chronological order.
func (s *Store) List(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, input, constraints, matching_count, other_count, created_at
		FROM conversation_turns
		WHERE session_id = $1
		ORDER BY created_at`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var constraints []byte
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Input, &constraints,
			&t.MatchingCount, &t.OtherCount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		if err := json.Unmarshal(constraints, &t.Constraints); err != nil {
			return nil, fmt.Errorf("failed to decode constraints: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *Store) Close() {
	s.pool.Close()
}
