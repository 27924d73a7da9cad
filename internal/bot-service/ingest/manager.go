// Package ingest runs per-principal upload sessions: a single armed upload
// that is consumed by the next object, or a bulk session that collects
// objects into one group until it is finished or cancelled.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/filestore-bot/internal/bot-service/database"
	"github.com/konorlevich/filestore-bot/internal/bot-service/metrics"
	"github.com/konorlevich/filestore-bot/internal/bot-service/transport"
)

var (
	ErrTooLarge  = errors.New("object is larger than allowed")
	ErrConflict  = errors.New("an upload session is already open")
	ErrNoSession = errors.New("no upload session")
	ErrNoGroup   = errors.New("group name is empty")
	ErrStore     = errors.New("can't save file")
	ErrTransport = errors.New("can't archive file")
)

// cleanupTimeout bounds store writes that outlive the request context.
const cleanupTimeout = 10 * time.Second

type Store interface {
	SaveFile(ctx context.Context, ownerID int64, groupName string, f *database.File) (*database.Group, bool, error)
	SetDeliveryRef(ctx context.Context, fileID uint64, ref int64) error
	RollbackFile(ctx context.Context, fileID uint64) error
	RemoveGroup(ctx context.Context, groupID uint64) error
}

type Archiver interface {
	Archive(ctx context.Context, obj transport.Object, caption string) (int64, error)
}

type LinkIssuer interface {
	Issue(ctx context.Context, kind database.LinkKind, targetID uint64, ownerID int64) (string, error)
}

type Captioner interface {
	Caption(ctx context.Context, uploaderID int64, name string, serial int64) string
}

// Result describes one accepted object.
type Result struct {
	Mode  Mode
	File  *database.File
	Group *database.Group
	// SessionFiles is the bulk session size after this object.
	SessionFiles int
	// Code is the share code minted for a single upload. LinkErr is set
	// when the file was stored but the code could not be minted.
	Code    string
	LinkErr error
}

// Summary is what a finished bulk session reports.
type Summary struct {
	SessionID string
	GroupName string
	FileNames []string
}

type Manager struct {
	sessions *sessions
	store    Store
	archive  Archiver
	links    LinkIssuer
	captions Captioner
	maxSize  int64
	m        *metrics.Metrics
	l        *log.Entry
	now      func() time.Time
}

func NewManager(store Store, archive Archiver, links LinkIssuer, captions Captioner, maxSize int64, m *metrics.Metrics, l *log.Entry) *Manager {
	return &Manager{
		sessions: newSessions(),
		store:    store,
		archive:  archive,
		links:    links,
		captions: captions,
		maxSize:  maxSize,
		m:        m,
		l:        l,
		now:      time.Now,
	}
}

// ArmSingle makes the principal's next object land in groupName and get a
// share link of its own.
func (m *Manager) ArmSingle(ownerID int64, groupName string) error {
	_, err := m.open(ownerID, groupName, ModeSingle)
	return err
}

// OpenBulk starts collecting objects into groupName and returns the session ID.
func (m *Manager) OpenBulk(ownerID int64, groupName string) (string, error) {
	return m.open(ownerID, groupName, ModeBulk)
}

func (m *Manager) open(ownerID int64, groupName string, mode Mode) (string, error) {
	groupName = strings.TrimSpace(groupName)
	if groupName == "" {
		return "", ErrNoGroup
	}
	sl := m.sessions.lock(ownerID)
	defer sl.mu.Unlock()

	l := m.l.WithFields(log.Fields{"owner_id": ownerID, "group": groupName, "mode": mode})
	if sl.session != nil {
		l.WithField("open_mode", sl.session.Mode).Warn("upload session already open")
		return "", ErrConflict
	}
	sl.session = &Session{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Mode:      mode,
		GroupName: groupName,
		StartedAt: m.now(),
	}
	l.WithField("session_id", sl.session.ID).Info("upload session opened")
	return sl.session.ID, nil
}

// Current returns a copy of the principal's session, or nil.
func (m *Manager) Current(ownerID int64) *Session {
	sl := m.sessions.lock(ownerID)
	defer sl.mu.Unlock()
	if sl.session == nil {
		return nil
	}
	return sl.session.clone()
}

// Finish closes a bulk session and reports the names it collected.
func (m *Manager) Finish(ownerID int64) (*Summary, error) {
	sl := m.sessions.lock(ownerID)
	defer sl.mu.Unlock()

	if sl.session == nil || sl.session.Mode != ModeBulk {
		return nil, ErrNoSession
	}
	s := sl.session
	sl.session = nil
	m.l.WithFields(log.Fields{
		"owner_id":   ownerID,
		"group":      s.GroupName,
		"session_id": s.ID,
		"files":      len(s.FileNames),
	}).Info("bulk session finished")
	return &Summary{SessionID: s.ID, GroupName: s.GroupName, FileNames: s.FileNames}, nil
}

// Cancel forgets the principal's session. Files already stored stay.
func (m *Manager) Cancel(ownerID int64) (*Session, error) {
	sl := m.sessions.lock(ownerID)
	defer sl.mu.Unlock()

	if sl.session == nil {
		return nil, ErrNoSession
	}
	s := sl.session
	sl.session = nil
	m.l.WithFields(log.Fields{
		"owner_id":   ownerID,
		"group":      s.GroupName,
		"session_id": s.ID,
		"mode":       s.Mode,
	}).Info("upload session cancelled")
	return s, nil
}

// Ingest stores obj under the principal's open session and archives it. When
// archiving fails the stored row, and the group if this object created it,
// are removed again.
func (m *Manager) Ingest(ctx context.Context, from transport.Principal, obj transport.Object) (*Result, error) {
	sl := m.sessions.lock(from.ID)
	defer sl.mu.Unlock()

	if sl.session == nil {
		return nil, ErrNoSession
	}
	s := sl.session
	l := m.l.WithFields(log.Fields{
		"owner_id":   from.ID,
		"group":      s.GroupName,
		"session_id": s.ID,
		"file_name":  obj.Name,
		"size":       obj.Size,
	})
	if m.maxSize > 0 && obj.Size > m.maxSize {
		l.Info("object rejected: too large")
		return nil, ErrTooLarge
	}

	f := &database.File{
		UniqueID:       newUniqueID(),
		Name:           obj.Name,
		Kind:           obj.Kind,
		Size:           obj.Size,
		ExternalHandle: obj.Handle,
		UploaderID:     from.ID,
		UploaderName:   from.Username,
		UploadedAt:     m.now(),
	}
	g, groupCreated, err := m.store.SaveFile(ctx, from.ID, s.GroupName, f)
	if err != nil {
		l.WithError(err).Error(ErrStore)
		m.m.FileIngested(metrics.ResultFailed)
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	l = l.WithFields(log.Fields{"group_id": g.ID, "file_id": f.ID, "serial": f.SerialNumber})

	ref, err := m.archive.Archive(ctx, obj, m.captions.Caption(ctx, from.ID, f.Name, f.SerialNumber))
	if err != nil {
		l.WithError(err).Error(ErrTransport)
		m.rollback(ctx, l, f.ID, g.ID, groupCreated)
		m.m.FileIngested(metrics.ResultFailed)
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	// the object is archived by now, so a shutdown must not lose its reference
	if err := m.detached(ctx, func(ctx context.Context) error {
		return m.store.SetDeliveryRef(ctx, f.ID, ref)
	}); err != nil {
		l.WithError(err).WithField("delivery_ref", ref).Error("can't attach archive reference")
		m.rollback(ctx, l, f.ID, g.ID, groupCreated)
		m.m.FileIngested(metrics.ResultFailed)
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	f.DeliveryRef = ref
	m.m.FileIngested(metrics.ResultOK)

	res := &Result{Mode: s.Mode, File: f, Group: g}
	switch s.Mode {
	case ModeSingle:
		sl.session = nil
		res.Code, res.LinkErr = m.links.Issue(ctx, database.LinkKindFile, f.ID, from.ID)
		if res.LinkErr != nil {
			l.WithError(res.LinkErr).Warn("file stored without a share link")
		}
	case ModeBulk:
		s.FileNames = append(s.FileNames, f.Name)
		res.SessionFiles = len(s.FileNames)
	}
	l.Info("file ingested")
	return res, nil
}

// rollback runs even when ctx is already cancelled: a half stored upload must
// not survive a shutdown.
func (m *Manager) rollback(ctx context.Context, l *log.Entry, fileID, groupID uint64, groupCreated bool) {
	l.Warning("removing file")
	if err := m.detached(ctx, func(ctx context.Context) error {
		return m.store.RollbackFile(ctx, fileID)
	}); err != nil {
		l.WithError(err).Error("can't remove file, it is left without an archive copy")
		return
	}
	if !groupCreated {
		return
	}
	if err := m.detached(ctx, func(ctx context.Context) error {
		return m.store.RemoveGroup(ctx, groupID)
	}); err != nil && !errors.Is(err, database.ErrRecordNotFound) {
		l.WithError(err).Error("can't remove empty group")
	}
}

func (m *Manager) detached(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	return fn(ctx)
}

func newUniqueID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
