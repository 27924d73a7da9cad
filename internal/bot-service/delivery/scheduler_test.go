package delivery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konorlevich/filestore-bot/internal/bot-service/metrics"
	"github.com/konorlevich/filestore-bot/internal/bot-service/transport"
)

func ids(chatID int64, messages ...int) []transport.DeliveryID {
	res := make([]transport.DeliveryID, 0, len(messages))
	for _, m := range messages {
		res = append(res, transport.DeliveryID{ChatID: chatID, MessageID: m})
	}
	return res
}

func TestTimerScheduler_Schedule(t *testing.T) {
	d := &fakeDeleter{errs: map[int]error{
		2: fmt.Errorf("%w: message to delete not found", transport.ErrMessageGone),
		3: errors.New("too many requests"),
	}}
	clock := &fakeClock{}
	s := NewTimerScheduler(d, nil, getLogger())
	s.clock = clock

	s.Schedule(ids(7, 1, 2, 3, 4), 10*time.Minute)
	s.Schedule(ids(7, 5), 20*time.Minute)
	s.Schedule(nil, time.Minute)

	clock.Advance(9 * time.Minute)
	assert.Empty(t, d.sorted(), "nothing is due yet")

	clock.Advance(time.Minute)
	assert.Equal(t, []int{1, 4}, d.sorted(), "failures don't stop the batch")

	clock.Advance(10 * time.Minute)
	assert.Equal(t, []int{1, 4, 5}, d.sorted())
	assert.Empty(t, clock.pending)
}

func TestTimerScheduler_CopiesBatch(t *testing.T) {
	d := &fakeDeleter{}
	clock := &fakeClock{}
	s := NewTimerScheduler(d, nil, getLogger())
	s.clock = clock

	batch := ids(1, 10, 11)
	s.Schedule(batch, time.Second)
	batch[0].MessageID = 99

	clock.Advance(time.Second)
	assert.Equal(t, []int{10, 11}, d.sorted())
}

func TestCleaner_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	d := &fakeDeleter{errs: map[int]error{
		2: transport.ErrMessageGone,
		3: errors.New("boom"),
	}}
	c := &cleaner{d: d, m: m, l: getLogger()}
	c.run(ids(1, 1, 2, 3))

	count, err := testutil.GatherAndCount(reg, "filestore_bot_cleanup_deletes_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "one series per result")
}

func TestRedisScheduler(t *testing.T) {
	z := newFakeZSet()
	d := &fakeDeleter{errs: map[int]error{3: transport.ErrMessageGone}}
	s := NewRedisScheduler(z, "", d, nil, getLogger())
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.Schedule(ids(5, 1, 2), 10*time.Minute)
	s.Schedule(ids(5, 3), 30*time.Minute)
	s.Wait()
	require.Equal(t, 2, z.len())

	ctx := context.Background()
	claimed, err := s.poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, claimed)

	now = now.Add(10 * time.Minute)
	claimed, err = s.poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)
	assert.Equal(t, []int{1, 2}, d.sorted())
	assert.Equal(t, 1, z.len())

	claimed, err = s.poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, claimed, "a claimed batch is gone from the queue")

	now = now.Add(time.Hour)
	claimed, err = s.poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)
	assert.Equal(t, []int{1, 2}, d.sorted())
	assert.Zero(t, z.len())
}

func TestRedisScheduler_Failures(t *testing.T) {
	z := newFakeZSet()
	z.members["not json"] = 0
	d := &fakeDeleter{}
	s := NewRedisScheduler(z, "queue", d, nil, getLogger())
	assert.Equal(t, "queue", s.key)

	claimed, err := s.poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, claimed, "malformed batch is dropped")
	assert.Zero(t, z.len())

	z.err = errors.New("connection refused")
	s.Schedule(ids(1, 1), time.Minute)
	s.Wait()
	_, err = s.poll(context.Background())
	assert.Error(t, err)
	assert.Empty(t, d.sorted())
}

func TestRedisScheduler_Run(t *testing.T) {
	z := newFakeZSet()
	d := &fakeDeleter{}
	s := NewRedisScheduler(z, "", d, nil, getLogger())
	s.Schedule(ids(1, 42), 0)
	s.Wait()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(d.sorted()) == 1 }, 5*time.Second, 50*time.Millisecond)
	cancel()
	<-done
}
