package delivery

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/konorlevich/filestore-bot/internal/bot-service/metrics"
	"github.com/konorlevich/filestore-bot/internal/bot-service/transport"
)

const (
	cleanupParallelism = 4
	cleanupTimeout     = time.Minute
)

// Scheduler removes delivered messages after a delay. Schedule never blocks
// and a scheduled batch can't be called off; failures are only logged.
type Scheduler interface {
	Schedule(ids []transport.DeliveryID, after time.Duration)
}

type Clock interface {
	AfterFunc(d time.Duration, f func())
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

type cleaner struct {
	d transport.Deleter
	m *metrics.Metrics
	l *log.Entry
}

func (c *cleaner) run(ids []transport.DeliveryID) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	eg := &errgroup.Group{}
	eg.SetLimit(cleanupParallelism)
	for _, id := range ids {
		id := id
		eg.Go(func() error {
			l := c.l.WithFields(log.Fields{"chat_id": id.ChatID, "message_id": id.MessageID})
			err := c.d.Delete(ctx, id)
			switch {
			case err == nil:
				c.m.CleanedUp(metrics.ResultOK)
				l.Debug("message deleted")
			case errors.Is(err, transport.ErrMessageGone):
				c.m.CleanedUp(metrics.ResultGone)
				l.WithError(err).Warn("message already gone")
			default:
				c.m.CleanedUp(metrics.ResultFailed)
				l.WithError(err).Error("can't delete message")
			}
			return nil
		})
	}
	_ = eg.Wait()
}

// TimerScheduler keeps pending batches in process timers; they are lost on
// restart.
type TimerScheduler struct {
	clock Clock
	c     *cleaner
}

func NewTimerScheduler(d transport.Deleter, m *metrics.Metrics, l *log.Entry) *TimerScheduler {
	return &TimerScheduler{clock: realClock{}, c: &cleaner{d: d, m: m, l: l}}
}

func (s *TimerScheduler) Schedule(ids []transport.DeliveryID, after time.Duration) {
	if len(ids) == 0 {
		return
	}
	batch := append([]transport.DeliveryID(nil), ids...)
	s.c.l.WithFields(log.Fields{"messages": len(batch), "after": after}).Debug("cleanup scheduled")
	s.clock.AfterFunc(after, func() { s.c.run(batch) })
}
