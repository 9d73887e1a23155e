package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"livequiz-service/internal/domain"
)

// SessionRecords persists session lifecycle rows.
type SessionRecords struct {
	pool *pgxpool.Pool
}

func NewSessionRecords(pool *pgxpool.Pool) *SessionRecords {
	return &SessionRecords{pool: pool}
}

func (s *SessionRecords) Create(ctx context.Context, sess domain.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, join_code, host_id, question_set_id, status, created_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sess.ID, sess.JoinCode, sess.HostID, sess.QuestionSetID, string(sess.Status), sess.CreatedAt, sess.EndedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *SessionRecords) Get(ctx context.Context, id string) (domain.Session, error) {
	return s.getWhere(ctx, `id=$1`, id, domain.ErrSessionNotFound)
}

func (s *SessionRecords) GetByJoinCode(ctx context.Context, code string) (domain.Session, error) {
	return s.getWhere(ctx, `join_code=$1`, code, domain.ErrUnknownJoinCode)
}

func (s *SessionRecords) SetStatus(ctx context.Context, id string, status domain.SessionStatus, endedAt *time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE sessions SET status=$2, ended_at=$3 WHERE id=$1`,
		id, string(status), endedAt)
	if err != nil {
		return fmt.Errorf("set session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *SessionRecords) getWhere(ctx context.Context, where, arg string, missing error) (domain.Session, error) {
	var sess domain.Session
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT id, join_code, host_id, question_set_id, status, created_at, ended_at
		FROM sessions WHERE `+where, arg).
		Scan(&sess.ID, &sess.JoinCode, &sess.HostID, &sess.QuestionSetID, &status, &sess.CreatedAt, &sess.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, missing
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	sess.Status = domain.SessionStatus(status)
	return sess, nil
}
