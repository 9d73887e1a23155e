package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"livequiz-service/internal/domain"
)

// ResponseStore appends and reads durable response rows.
type ResponseStore struct {
	pool *pgxpool.Pool
}

func NewResponseStore(pool *pgxpool.Pool) *ResponseStore {
	return &ResponseStore{pool: pool}
}

func (s *ResponseStore) Append(ctx context.Context, r domain.Response) error {
	answer, err := json.Marshal(r.Answer)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO responses (session_id, question_id, user_id, nickname, answer, elapsed_ms, verdict, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.SessionID, r.QuestionID, r.UserID, r.Nickname, answer, r.ElapsedMs, string(r.Verdict), r.SubmittedAt)
	if err != nil {
		return fmt.Errorf("append response: %w", err)
	}
	return nil
}

func (s *ResponseStore) ListByQuestion(ctx context.Context, sessionID, questionID string) ([]domain.Response, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT session_id, question_id, user_id, nickname, answer, elapsed_ms, verdict, submitted_at
		FROM responses
		WHERE session_id=$1 AND question_id=$2
		ORDER BY submitted_at`, sessionID, questionID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()
	return scanResponses(rows)
}

func (s *ResponseStore) ListBySession(ctx context.Context, sessionID string) ([]domain.Response, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT session_id, question_id, user_id, nickname, answer, elapsed_ms, verdict, submitted_at
		FROM responses
		WHERE session_id=$1
		ORDER BY submitted_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()
	return scanResponses(rows)
}

func scanResponses(rows pgx.Rows) ([]domain.Response, error) {
	out := make([]domain.Response, 0)
	for rows.Next() {
		var r domain.Response
		var answer []byte
		var verdict string
		if err := rows.Scan(&r.SessionID, &r.QuestionID, &r.UserID, &r.Nickname, &answer, &r.ElapsedMs, &verdict, &r.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		if err := json.Unmarshal(answer, &r.Answer); err != nil {
			return nil, fmt.Errorf("unmarshal answer: %w", err)
		}
		r.Verdict = domain.Verdict(verdict)
		out = append(out, r)
	}
	return out, rows.Err()
}
