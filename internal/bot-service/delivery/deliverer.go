// Package delivery sends stored objects to whoever presented a share code and
// takes care of removing the sent messages after a while.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/filestore-bot/internal/bot-service/database"
	"github.com/konorlevich/filestore-bot/internal/bot-service/metrics"
	"github.com/konorlevich/filestore-bot/internal/bot-service/transport"
)

var (
	ErrSend             = errors.New("can't send file")
	ErrEmptyGroup       = errors.New("group has no files")
	ErrNothingDelivered = errors.New("no file could be delivered")
)

const DefaultDeleteAfter = 10 * time.Minute

const failedListLimit = 5

type FileCaptioner interface {
	Caption(ctx context.Context, uploaderID int64, name string, serial int64) string
}

// Report lists what one delivery sent.
type Report struct {
	Delivered int
	Failed    []string
	// IDs are every message scheduled for removal, the request included.
	IDs []transport.DeliveryID
}

type Deliverer struct {
	sender   transport.Sender
	sched    Scheduler
	captions FileCaptioner
	after    time.Duration
	m        *metrics.Metrics
	l        *log.Entry
}

func NewDeliverer(sender transport.Sender, sched Scheduler, captions FileCaptioner, after time.Duration, m *metrics.Metrics, l *log.Entry) *Deliverer {
	if after <= 0 {
		after = DefaultDeleteAfter
	}
	return &Deliverer{sender: sender, sched: sched, captions: captions, after: after, m: m, l: l}
}

// DeliverFile sends f to the requester followed by a short notice.
func (d *Deliverer) DeliverFile(ctx context.Context, req transport.Event, f *database.File) (*Report, error) {
	l := d.l.WithFields(log.Fields{"chat_id": req.ChatID, "file_id": f.ID, "file_name": f.Name})

	sent, err := d.sender.Send(ctx, req.ChatID, objectOf(f), d.captions.Caption(ctx, f.UploaderID, f.Name, 0))
	if err != nil {
		d.m.Delivered(metrics.ResultFailed)
		l.WithError(err).Error(ErrSend)
		d.sched.Schedule([]transport.DeliveryID{req.Request()}, d.after)
		return nil, fmt.Errorf("%w: %w", ErrSend, err)
	}
	d.m.Delivered(metrics.ResultOK)

	r := &Report{Delivered: 1, IDs: []transport.DeliveryID{sent, req.Request()}}
	notice := fmt.Sprintf("File: %s\n\nThis message will be deleted in %s.", f.Name, humanize(d.after))
	if id, err := d.sender.SendText(ctx, req.ChatID, notice); err != nil {
		l.WithError(err).Warn("can't send delivery notice")
	} else {
		r.IDs = append(r.IDs, id)
	}

	d.sched.Schedule(r.IDs, d.after)
	l.Info("file delivered")
	return r, nil
}

// DeliverGroup sends files in the given order. A file that fails is reported
// and skipped; the rest are still sent.
func (d *Deliverer) DeliverGroup(ctx context.Context, req transport.Event, g *database.Group, files []*database.File) (*Report, error) {
	l := d.l.WithFields(log.Fields{"chat_id": req.ChatID, "group_id": g.ID, "group": g.Name})
	if len(files) == 0 {
		return nil, ErrEmptyGroup
	}

	r := &Report{IDs: []transport.DeliveryID{req.Request()}}
	header := fmt.Sprintf("Sending %d files from '%s'.\n\nThey will be deleted in %s.", len(files), g.Name, humanize(d.after))
	if id, err := d.sender.SendText(ctx, req.ChatID, header); err != nil {
		l.WithError(err).Warn("can't send group header")
	} else {
		r.IDs = append(r.IDs, id)
	}

	for _, f := range files {
		id, err := d.sender.Send(ctx, req.ChatID, objectOf(f), d.captions.Caption(ctx, f.UploaderID, f.Name, f.SerialNumber))
		if err != nil {
			d.m.Delivered(metrics.ResultFailed)
			l.WithError(err).WithFields(log.Fields{"file_id": f.ID, "serial": f.SerialNumber}).Error(ErrSend)
			r.Failed = append(r.Failed, f.Name)
			continue
		}
		d.m.Delivered(metrics.ResultOK)
		r.Delivered++
		r.IDs = append(r.IDs, id)
	}

	if id, err := d.sender.SendText(ctx, req.ChatID, summary(g.Name, r)); err != nil {
		l.WithError(err).Warn("can't send group summary")
	} else {
		r.IDs = append(r.IDs, id)
	}

	d.sched.Schedule(r.IDs, d.after)
	l.WithFields(log.Fields{"delivered": r.Delivered, "failed": len(r.Failed)}).Info("group delivered")
	if r.Delivered == 0 {
		return r, ErrNothingDelivered
	}
	return r, nil
}

func summary(group string, r *Report) string {
	if len(r.Failed) == 0 {
		return fmt.Sprintf("All %d files from '%s' sent.", r.Delivered, group)
	}
	b := &strings.Builder{}
	fmt.Fprintf(b, "Sent %d files from '%s', these failed:", r.Delivered, group)
	for i, name := range r.Failed {
		if i == failedListLimit {
			fmt.Fprintf(b, "\n...and %d more.", len(r.Failed)-failedListLimit)
			break
		}
		fmt.Fprintf(b, "\n- %s", name)
	}
	return b.String()
}

func objectOf(f *database.File) transport.Object {
	return transport.Object{Kind: f.Kind, Handle: f.ExternalHandle, Name: f.Name, Size: f.Size}
}

func humanize(d time.Duration) string {
	switch {
	case d%time.Minute != 0:
		return d.String()
	case d == time.Minute:
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", int64(d/time.Minute))
}
