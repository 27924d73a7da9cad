package delivery

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/filestore-bot/internal/bot-service/transport"
)

func getLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.FatalLevel)
	return logger.WithField("in_test", true)
}

type sent struct {
	chatID  int64
	obj     *transport.Object
	text    string
	caption string
}

type fakeSender struct {
	mu       sync.Mutex
	next     int
	failObj  map[string]bool
	failText bool
	sent     []sent
}

func (s *fakeSender) Send(_ context.Context, chatID int64, obj transport.Object, caption string) (transport.DeliveryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failObj[obj.Name] {
		return transport.DeliveryID{}, errors.New("bad request: wrong file identifier")
	}
	s.next++
	s.sent = append(s.sent, sent{chatID: chatID, obj: &obj, caption: caption})
	return transport.DeliveryID{ChatID: chatID, MessageID: 100 + s.next}, nil
}

func (s *fakeSender) SendText(_ context.Context, chatID int64, text string) (transport.DeliveryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failText {
		return transport.DeliveryID{}, errors.New("chat not found")
	}
	s.next++
	s.sent = append(s.sent, sent{chatID: chatID, text: text})
	return transport.DeliveryID{ChatID: chatID, MessageID: 100 + s.next}, nil
}

type scheduled struct {
	ids   []transport.DeliveryID
	after time.Duration
}

type recordingScheduler struct {
	calls []scheduled
}

func (s *recordingScheduler) Schedule(ids []transport.DeliveryID, after time.Duration) {
	s.calls = append(s.calls, scheduled{ids: ids, after: after})
}

type fakeClock struct {
	mu      sync.Mutex
	now     time.Duration
	pending []timer
}

type timer struct {
	at time.Duration
	f  func()
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, timer{at: c.now + d, f: f})
}

// Advance moves the clock and runs the timers that became due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due, rest []timer
	for _, t := range c.pending {
		if t.at <= c.now {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	c.pending = rest
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

type fakeDeleter struct {
	mu      sync.Mutex
	errs    map[int]error
	deleted []transport.DeliveryID
}

func (d *fakeDeleter) Delete(_ context.Context, id transport.DeliveryID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.errs[id.MessageID]; err != nil {
		return err
	}
	d.deleted = append(d.deleted, id)
	return nil
}

func (d *fakeDeleter) sorted() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := make([]int, 0, len(d.deleted))
	for _, id := range d.deleted {
		res = append(res, id.MessageID)
	}
	sort.Ints(res)
	return res
}

type fakeZSet struct {
	mu      sync.Mutex
	members map[string]float64
	err     error
}

func newFakeZSet() *fakeZSet {
	return &fakeZSet{members: map[string]float64{}}
}

func (z *fakeZSet) ZAdd(_ context.Context, _ string, members ...redis.Z) *redis.IntCmd {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.err != nil {
		return redis.NewIntResult(0, z.err)
	}
	for _, m := range members {
		z.members[m.Member.(string)] = m.Score
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (z *fakeZSet) ZRangeByScore(_ context.Context, _ string, opt *redis.ZRangeBy) *redis.StringSliceCmd {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.err != nil {
		return redis.NewStringSliceResult(nil, z.err)
	}
	limit, err := strconv.ParseFloat(opt.Max, 64)
	if err != nil {
		return redis.NewStringSliceResult(nil, err)
	}
	var res []string
	for m, score := range z.members {
		if score <= limit {
			res = append(res, m)
		}
	}
	sort.Slice(res, func(i, j int) bool { return z.members[res[i]] < z.members[res[j]] })
	if opt.Count > 0 && int64(len(res)) > opt.Count {
		res = res[:opt.Count]
	}
	return redis.NewStringSliceResult(res, nil)
}

func (z *fakeZSet) ZRem(_ context.Context, _ string, members ...interface{}) *redis.IntCmd {
	z.mu.Lock()
	defer z.mu.Unlock()
	var n int64
	for _, m := range members {
		if _, ok := z.members[m.(string)]; ok {
			delete(z.members, m.(string))
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (z *fakeZSet) len() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return len(z.members)
}
