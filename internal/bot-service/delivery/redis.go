package delivery

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/filestore-bot/internal/bot-service/metrics"
	"github.com/konorlevich/filestore-bot/internal/bot-service/transport"
)

const (
	DefaultQueueKey = "filestore-bot:cleanup"

	pollInterval   = time.Second
	claimBatch     = 100
	enqueueTimeout = 5 * time.Second
)

// SortedSet is the part of *redis.Client the queue needs.
type SortedSet interface {
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
}

type batch struct {
	ID  string                 `json:"id"`
	IDs []transport.DeliveryID `json:"ids"`
}

// RedisScheduler keeps pending batches in a sorted set scored by due time, so
// they survive a restart. Whoever removes a member from the set owns it.
type RedisScheduler struct {
	rdb SortedSet
	key string
	c   *cleaner
	now func() time.Time
	wg  sync.WaitGroup
}

func NewRedisScheduler(rdb SortedSet, key string, d transport.Deleter, m *metrics.Metrics, l *log.Entry) *RedisScheduler {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisScheduler{
		rdb: rdb,
		key: key,
		c:   &cleaner{d: d, m: m, l: l.WithField("queue", key)},
		now: time.Now,
	}
}

func (s *RedisScheduler) Schedule(ids []transport.DeliveryID, after time.Duration) {
	if len(ids) == 0 {
		return
	}
	b := batch{ID: uuid.NewString(), IDs: append([]transport.DeliveryID(nil), ids...)}
	due := s.now().Add(after)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
		defer cancel()
		l := s.c.l.WithFields(log.Fields{"batch_id": b.ID, "messages": len(b.IDs)})
		if err := s.enqueue(ctx, b, due); err != nil {
			l.WithError(err).Error("can't enqueue cleanup, messages will stay")
			return
		}
		l.WithField("due", due).Debug("cleanup enqueued")
	}()
}

// Wait blocks until every Schedule call has reached redis.
func (s *RedisScheduler) Wait() {
	s.wg.Wait()
}

func (s *RedisScheduler) enqueue(ctx context.Context, b batch, due time.Time) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return s.rdb.ZAdd(ctx, s.key, redis.Z{Score: float64(due.UnixMilli()), Member: string(data)}).Err()
}

// Run claims and cleans due batches until ctx is done.
func (s *RedisScheduler) Run(ctx context.Context) {
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.poll(ctx); err != nil {
				s.c.l.WithError(err).Error("can't poll cleanup queue")
			}
		}
	}
}

func (s *RedisScheduler) poll(ctx context.Context) (int, error) {
	members, err := s.rdb.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(s.now().UnixMilli(), 10),
		Count: claimBatch,
	}).Result()
	if err != nil {
		return 0, err
	}

	claimed := 0
	for _, member := range members {
		n, err := s.rdb.ZRem(ctx, s.key, member).Result()
		if err != nil {
			return claimed, err
		}
		if n == 0 {
			continue
		}
		var b batch
		if err := json.Unmarshal([]byte(member), &b); err != nil {
			s.c.l.WithError(err).Error("dropping malformed cleanup batch")
			continue
		}
		claimed++
		s.c.run(b.IDs)
	}
	return claimed, nil
}
