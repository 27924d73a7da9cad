package links

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/filestore-bot/internal/bot-service/database"
	"github.com/konorlevich/filestore-bot/internal/bot-service/metrics"
)

var (
	ErrNotFound  = errors.New("link not found")
	ErrInactive  = errors.New("link has been revoked")
	ErrForbidden = errors.New("only the owner or an admin can revoke this link")
	ErrStore     = errors.New("link storage failure")
)

const mintAttempts = 3

type Repository interface {
	ActiveLink(ctx context.Context, ownerID int64, kind database.LinkKind, targetID uint64) (*database.Link, error)
	CreateLink(ctx context.Context, l *database.Link) error
	GetLinkByCode(ctx context.Context, code string) (*database.Link, error)
	DeactivateLink(ctx context.Context, id uint64) error
	IncrementClicks(ctx context.Context, id uint64) error
	GetFile(ctx context.Context, id uint64) (*database.File, error)
	GetGroup(ctx context.Context, id uint64) (*database.Group, error)
	ListFiles(ctx context.Context, groupID uint64) ([]*database.File, error)
}

type AdminChecker interface {
	IsAdmin(id int64) bool
}

// Resolution describes what a share code points to.
type Resolution struct {
	LinkID   uint64
	Code     string
	Kind     database.LinkKind
	TargetID uint64
	OwnerID  int64
	Active   bool
}

// Target is a resolved link together with the live records it points to.
type Target struct {
	*Resolution
	File  *database.File
	Group *database.Group
	Files []*database.File
}

type Engine struct {
	repo    Repository
	admins  AdminChecker
	m       *metrics.Metrics
	l       *log.Entry
	newCode func() string
}

func NewEngine(repo Repository, admins AdminChecker, m *metrics.Metrics, l *log.Entry) *Engine {
	return &Engine{repo: repo, admins: admins, m: m, l: l, newCode: NewCode}
}

// Issue returns the owner's active code for the target, minting one when
// there is none. Concurrent callers end up with the same code.
func (e *Engine) Issue(ctx context.Context, kind database.LinkKind, targetID uint64, ownerID int64) (string, error) {
	l := e.l.WithFields(log.Fields{"kind": kind, "target_id": targetID, "owner_id": ownerID})

	existing, err := e.repo.ActiveLink(ctx, ownerID, kind, targetID)
	if err == nil {
		return existing.Code, nil
	}
	if !errors.Is(err, database.ErrRecordNotFound) {
		l.WithError(err).Error("can't look up active link")
		return "", fmt.Errorf("%w: %w", ErrStore, err)
	}

	for i := 0; i < mintAttempts; i++ {
		link := &database.Link{Code: e.newCode(), Kind: kind, OwnerID: ownerID}
		id := targetID
		switch kind {
		case database.LinkKindFile:
			link.FileID = &id
		case database.LinkKindGroup:
			link.GroupID = &id
		default:
			return "", fmt.Errorf("unknown link kind %q", kind)
		}

		err = e.repo.CreateLink(ctx, link)
		if err == nil {
			e.m.LinkIssued(string(kind))
			l.WithField("link_code", link.Code).Info("link issued")
			return link.Code, nil
		}

		// either another request won the race for this target or the code
		// itself collided; the first case has an active link to return
		existing, lookupErr := e.repo.ActiveLink(ctx, ownerID, kind, targetID)
		if lookupErr == nil {
			return existing.Code, nil
		}
		if !errors.Is(err, database.ErrDuplicatedKey) {
			break
		}
	}
	l.WithError(err).Error("can't create link")
	return "", fmt.Errorf("%w: %w", ErrStore, err)
}

// Resolve reports what the code points to. A revoked code yields its
// resolution together with ErrInactive.
func (e *Engine) Resolve(ctx context.Context, code string) (*Resolution, error) {
	link, err := e.repo.GetLinkByCode(ctx, code)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		e.l.WithField("link_code", code).WithError(err).Error("can't get link")
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	res := &Resolution{
		LinkID:   link.ID,
		Code:     link.Code,
		Kind:     link.Kind,
		TargetID: link.TargetID(),
		OwnerID:  link.OwnerID,
		Active:   link.Active,
	}
	if !link.Active {
		return res, ErrInactive
	}
	return res, nil
}

// Open resolves an active code and loads its target, checking that the
// target still exists.
func (e *Engine) Open(ctx context.Context, code string) (*Target, error) {
	res, err := e.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	l := e.l.WithFields(log.Fields{"link_code": code, "kind": res.Kind, "target_id": res.TargetID})

	t := &Target{Resolution: res}
	switch res.Kind {
	case database.LinkKindFile:
		t.File, err = e.repo.GetFile(ctx, res.TargetID)
	case database.LinkKindGroup:
		t.Group, err = e.repo.GetGroup(ctx, res.TargetID)
		if err == nil {
			t.Files, err = e.repo.ListFiles(ctx, res.TargetID)
		}
	default:
		err = database.ErrRecordNotFound
	}
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			l.Warn("active link points to a missing target")
			return nil, ErrNotFound
		}
		l.WithError(err).Error("can't load link target")
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return t, nil
}

// Revoke deactivates the code. Only its owner or an admin may do so.
func (e *Engine) Revoke(ctx context.Context, code string, requesterID int64) error {
	res, err := e.Resolve(ctx, code)
	if err != nil {
		return err
	}
	l := e.l.WithFields(log.Fields{"link_code": code, "owner_id": res.OwnerID, "requester_id": requesterID})
	if res.OwnerID != requesterID && !e.admins.IsAdmin(requesterID) {
		l.Warn("revocation denied")
		return ErrForbidden
	}
	if err := e.repo.DeactivateLink(ctx, res.LinkID); err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return ErrInactive
		}
		l.WithError(err).Error("can't revoke link")
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	l.Info("link revoked")
	return nil
}

// RecordClick counts one delivered resolution of the code.
func (e *Engine) RecordClick(ctx context.Context, res *Resolution) error {
	if err := e.repo.IncrementClicks(ctx, res.LinkID); err != nil {
		e.l.WithField("link_code", res.Code).WithError(err).Error("can't record click")
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	e.m.LinkClicked()
	return nil
}
