package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"livequiz-service/internal/domain"
	"livequiz-service/internal/infra/memory"
)

// QuestionStore caches question sets in Redis (JSON per set) and falls back
// to a loader on cache miss. Cached as: SET qset:{setID} {json} with TTL.
type QuestionStore struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionStore(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionStore {
	return &QuestionStore{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *QuestionStore) GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	key := s.key(setID)

	if set, ok := s.fromCache(ctx, key); ok {
		return set, nil
	}

	result, err, _ := s.sf.Do(setID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if set, ok := s.fromCache(ctx, key); ok {
			return set, nil
		}

		set, err := s.loader.LoadQuestionSet(ctx, setID)
		if err != nil {
			return domain.QuestionSet{}, err
		}

		data, err := json.Marshal(set)
		if err != nil {
			return domain.QuestionSet{}, err
		}
		// best-effort fill; a failed write only costs the next reader a load
		_ = s.client.Set(ctx, key, data, s.ttlWithJitter()).Err()
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

func (s *QuestionStore) fromCache(ctx context.Context, key string) (domain.QuestionSet, bool) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) || err != nil {
		return domain.QuestionSet{}, false
	}
	var set domain.QuestionSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return domain.QuestionSet{}, false
	}
	return set, true
}

func (s *QuestionStore) key(setID string) string {
	return "qset:" + setID
}

func (s *QuestionStore) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}
