package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"livequiz-service/internal/domain"
)

// maxTxRetries bounds the optimistic-concurrency retry loop. Contention on a
// single session key is low (one broker process owns the session), so a
// handful of retries is plenty.
const maxTxRetries = 5

// StateStore is a Redis implementation of app.StateStore. Per session it
// keeps the state JSON at room:{id}:state and the participant registry as a
// hash at room:{id}:members. Read-modify-write cycles run under WATCH so
// concurrent writers for the same session serialize; both keys carry the TTL,
// refreshed on every write.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStateStore(client *redis.Client, ttl time.Duration) *StateStore {
	return &StateStore{client: client, ttl: ttl}
}

func (s *StateStore) CreateState(ctx context.Context, sessionID string, st domain.SessionState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.stateKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *StateStore) GetState(ctx context.Context, sessionID string) (domain.SessionState, bool, error) {
	raw, err := s.client.Get(ctx, s.stateKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionState{}, false, nil
	}
	if err != nil {
		return domain.SessionState{}, false, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	var st domain.SessionState
	if err := json.Unmarshal(raw, &st); err != nil {
		return domain.SessionState{}, false, err
	}
	return st, true, nil
}

func (s *StateStore) UpdateState(ctx context.Context, sessionID string, apply func(*domain.SessionState)) error {
	stateKey := s.stateKey(sessionID)
	return s.watch(ctx, func(tx *redis.Tx) error {
		st, err := s.readState(ctx, tx, stateKey)
		if err != nil {
			return err
		}
		apply(&st)
		data, err := json.Marshal(st)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, stateKey, data, s.ttl)
			return nil
		})
		return err
	}, stateKey)
}

func (s *StateStore) DeleteState(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.stateKey(sessionID), s.membersKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *StateStore) AddParticipant(ctx context.Context, sessionID string, p domain.Participant) error {
	return s.mutateRoster(ctx, sessionID, func(members map[string]domain.Participant) {
		members[p.ConnID] = p
	})
}

func (s *StateStore) RemoveParticipant(ctx context.Context, sessionID, connID string) error {
	return s.mutateRoster(ctx, sessionID, func(members map[string]domain.Participant) {
		delete(members, connID)
	})
}

func (s *StateStore) GetParticipant(ctx context.Context, sessionID, connID string) (domain.Participant, bool, error) {
	raw, err := s.client.HGet(ctx, s.membersKey(sessionID), connID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Participant{}, false, nil
	}
	if err != nil {
		return domain.Participant{}, false, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	var p domain.Participant
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Participant{}, false, err
	}
	return p, true, nil
}

func (s *StateStore) GetParticipants(ctx context.Context, sessionID string) ([]domain.Participant, error) {
	entries, err := s.client.HGetAll(ctx, s.membersKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return decodeMembers(entries)
}

// mutateRoster changes the participant hash and folds the recomputed student
// roster into the state JSON inside one transaction, so headcount and name
// list never drift apart.
func (s *StateStore) mutateRoster(ctx context.Context, sessionID string, mutate func(map[string]domain.Participant)) error {
	stateKey := s.stateKey(sessionID)
	membersKey := s.membersKey(sessionID)
	return s.watch(ctx, func(tx *redis.Tx) error {
		entries, err := tx.HGetAll(ctx, membersKey).Result()
		if err != nil {
			return err
		}
		list, err := decodeMembers(entries)
		if err != nil {
			return err
		}
		members := make(map[string]domain.Participant, len(list))
		for _, p := range list {
			members[p.ConnID] = p
		}
		mutate(members)

		st, err := s.readState(ctx, tx, stateKey)
		if err != nil {
			return err
		}
		roster := make([]domain.Participant, 0, len(members))
		for _, p := range members {
			roster = append(roster, p)
		}
		domain.FoldRoster(&st, roster)

		stateData, err := json.Marshal(st)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, membersKey)
			if len(members) > 0 {
				fields := make(map[string]interface{}, len(members))
				for connID, p := range members {
					data, err := json.Marshal(p)
					if err != nil {
						return err
					}
					fields[connID] = data
				}
				pipe.HSet(ctx, membersKey, fields)
				pipe.Expire(ctx, membersKey, s.ttl)
			}
			pipe.Set(ctx, stateKey, stateData, s.ttl)
			return nil
		})
		return err
	}, stateKey, membersKey)
}

func (s *StateStore) watch(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		return nil
	}
	return fmt.Errorf("%w: transaction retries exhausted", domain.ErrStoreUnavailable)
}

func (s *StateStore) readState(ctx context.Context, tx *redis.Tx, stateKey string) (domain.SessionState, error) {
	raw, err := tx.Get(ctx, stateKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionState{Phase: domain.PhaseWaiting}, nil
	}
	if err != nil {
		return domain.SessionState{}, err
	}
	var st domain.SessionState
	if err := json.Unmarshal(raw, &st); err != nil {
		return domain.SessionState{}, err
	}
	return st, nil
}

func decodeMembers(entries map[string]string) ([]domain.Participant, error) {
	out := make([]domain.Participant, 0, len(entries))
	for _, raw := range entries {
		var p domain.Participant
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *StateStore) stateKey(sessionID string) string {
	return "room:" + sessionID + ":state"
}

func (s *StateStore) membersKey(sessionID string) string {
	return "room:" + sessionID + ":members"
}
