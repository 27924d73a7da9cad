package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/filestore-bot/internal/bot-service/database"
	"github.com/konorlevich/filestore-bot/internal/bot-service/delivery"
	"github.com/konorlevich/filestore-bot/internal/bot-service/links"
	"github.com/konorlevich/filestore-bot/internal/bot-service/transport"
)

// start is open to everybody: with a code it hands out the shared content,
// without one it greets authorized users.
func (r *Router) start(ctx context.Context, e transport.Event) (string, error) {
	rd := r.request(e)
	if len(rd.args) > 0 {
		return r.access(ctx, e, rd.args[0])
	}
	ok, err := r.directory.IsAuthorized(ctx, e.From.ID)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("Access denied.\n\nYou need permission to use this bot.\nContact admin: %s\nYour user ID: %d\n\nAnyone can open files through shared links.",
			r.opts.AdminContact, e.From.ID), nil
	}
	return fmt.Sprintf("Welcome, %s!\n\n%s", orName(e.From), r.helpText(e.From.ID)), nil
}

func (r *Router) access(ctx context.Context, e transport.Event, code string) (string, error) {
	l := r.l.WithFields(log.Fields{"user_id": e.From.ID, "link_code": code})
	target, err := r.links.Open(ctx, code)
	if err != nil {
		return "", err
	}

	switch target.Kind {
	case database.LinkKindFile:
		if _, err := r.delivery.DeliverFile(ctx, e, target.File); err != nil {
			return "", err
		}
	case database.LinkKindGroup:
		_, err := r.delivery.DeliverGroup(ctx, e, target.Group, target.Files)
		if errors.Is(err, delivery.ErrNothingDelivered) {
			// the group summary already told the requester
			return "", nil
		}
		if err != nil {
			return "", err
		}
	}

	if err := r.links.RecordClick(ctx, target.Resolution); err != nil {
		l.WithError(err).Warn("delivered without counting the click")
	}
	l.Info("link opened")
	return "", nil
}

func (r *Router) getLink(ctx context.Context, e transport.Event) (string, error) {
	group, serial, err := r.request(e).groupAndSerial("/getlink <group> <file number>")
	if err != nil {
		return "", err
	}
	f, err := r.library.GetFileBySerial(ctx, e.From.ID, group, serial)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return fmt.Sprintf("File #%03d not found in group '%s' or you don't own it.", serial, group), nil
		}
		return "", err
	}
	code, err := r.links.Issue(ctx, database.LinkKindFile, f.ID, e.From.ID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Link for #%03d %s:\n\n%s", f.SerialNumber, f.Name, r.shareURL(code)), nil
}

func (r *Router) getGroupLink(ctx context.Context, e transport.Event) (string, error) {
	group, err := r.request(e).group("/getgrouplink <group>")
	if err != nil {
		return "", err
	}
	g, err := r.library.GetGroupByName(ctx, e.From.ID, group)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return fmt.Sprintf("Group '%s' not found or you don't own it.", group), nil
		}
		return "", err
	}
	code, err := r.links.Issue(ctx, database.LinkKindGroup, g.ID, e.From.ID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Link for group '%s' (%d files, %s):\n\n%s",
		g.Name, g.TotalFiles, formatSize(g.TotalSize), r.shareURL(code)), nil
}

func (r *Router) revoke(ctx context.Context, e transport.Event) (string, error) {
	code, err := r.request(e).linkCode("/revoke <code or link>")
	if err != nil {
		return "", err
	}
	if err := r.links.Revoke(ctx, code, e.From.ID); err != nil {
		if errors.Is(err, links.ErrInactive) {
			return "This link is already revoked.", nil
		}
		return "", err
	}
	return fmt.Sprintf("Link %s revoked. It will no longer work.", code), nil
}

func (r *Router) myLinks(ctx context.Context, e transport.Event) (string, error) {
	active, err := r.library.ListActiveLinks(ctx, e.From.ID, myLinksLimit)
	if err != nil {
		return "", err
	}
	if len(active) == 0 {
		return "You have no active links.", nil
	}
	b := &strings.Builder{}
	b.WriteString("Your active links:\n")
	for _, l := range active {
		fmt.Fprintf(b, "\n%s %s\n%s\nclicks: %d\n", l.Kind, linkTarget(l), r.shareURL(l.Code), l.Clicks)
	}
	return b.String(), nil
}

func linkTarget(l *database.Link) string {
	switch {
	case l.File != nil:
		return fmt.Sprintf("#%03d %s", l.File.SerialNumber, l.File.Name)
	case l.Group != nil:
		return "'" + l.Group.Name + "'"
	}
	return "?"
}

func orName(p transport.Principal) string {
	if p.FirstName != "" {
		return p.FirstName
	}
	if p.Username != "" {
		return "@" + p.Username
	}
	return fmt.Sprintf("user %d", p.ID)
}
