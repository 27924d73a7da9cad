// Package handler routes inbound bot events to the services behind them.
package handler

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/filestore-bot/internal/bot-service/database"
	"github.com/konorlevich/filestore-bot/internal/bot-service/delivery"
	"github.com/konorlevich/filestore-bot/internal/bot-service/directory"
	"github.com/konorlevich/filestore-bot/internal/bot-service/handler/middleware"
	"github.com/konorlevich/filestore-bot/internal/bot-service/ingest"
	"github.com/konorlevich/filestore-bot/internal/bot-service/links"
	"github.com/konorlevich/filestore-bot/internal/bot-service/transport"
)

const (
	myLinksLimit = 10
	listLimit    = 10
)

type Ingester interface {
	ArmSingle(ownerID int64, groupName string) error
	OpenBulk(ownerID int64, groupName string) (string, error)
	Ingest(ctx context.Context, from transport.Principal, obj transport.Object) (*ingest.Result, error)
	Finish(ownerID int64) (*ingest.Summary, error)
	Cancel(ownerID int64) (*ingest.Session, error)
}

type LinkEngine interface {
	Issue(ctx context.Context, kind database.LinkKind, targetID uint64, ownerID int64) (string, error)
	Open(ctx context.Context, code string) (*links.Target, error)
	Revoke(ctx context.Context, code string, requesterID int64) error
	RecordClick(ctx context.Context, res *links.Resolution) error
}

type Deliverer interface {
	DeliverFile(ctx context.Context, req transport.Event, f *database.File) (*delivery.Report, error)
	DeliverGroup(ctx context.Context, req transport.Event, g *database.Group, files []*database.File) (*delivery.Report, error)
}

type Directory interface {
	middleware.Authorizer
	AddUser(ctx context.Context, id int64, username string, addedBy int64) (*database.AuthorizedUser, error)
	RemoveUser(ctx context.Context, id int64) error
	ListUsers(ctx context.Context) ([]*database.AuthorizedUser, error)
	ToggleCaption(ctx context.Context, id int64) (bool, error)
}

type Captions interface {
	Settings(ctx context.Context) (bool, string, error)
	Toggle(ctx context.Context) (bool, error)
	SetText(ctx context.Context, text string) error
}

type Library interface {
	ListGroups(ctx context.Context, ownerID int64) ([]*database.Group, error)
	GetGroupByName(ctx context.Context, ownerID int64, name string) (*database.Group, error)
	ListFiles(ctx context.Context, groupID uint64) ([]*database.File, error)
	GetFileBySerial(ctx context.Context, ownerID int64, groupName string, serial int64) (*database.File, error)
	RemoveFile(ctx context.Context, fileID uint64) (*database.File, error)
	RemoveGroup(ctx context.Context, groupID uint64) error
	ListActiveLinks(ctx context.Context, ownerID int64, limit int) ([]*database.Link, error)
	Stats(ctx context.Context) (*database.Stats, error)
}

type Options struct {
	BotUsername  string
	LinkHost     string
	AdminContact string
	MaxFileSize  int64
}

type Router struct {
	sender    transport.Sender
	ingest    Ingester
	links     LinkEngine
	delivery  Deliverer
	directory Directory
	captions  Captions
	library   Library
	opts      Options
	routes    map[string]middleware.HandlerFunc
	l         *log.Entry
}

func NewRouter(
	sender transport.Sender,
	ingester Ingester,
	engine LinkEngine,
	deliverer Deliverer,
	dir Directory,
	captions Captions,
	library Library,
	opts Options,
	l *log.Entry,
) *Router {
	r := &Router{
		sender:    sender,
		ingest:    ingester,
		links:     engine,
		delivery:  deliverer,
		directory: dir,
		captions:  captions,
		library:   library,
		opts:      opts,
		l:         l,
	}

	auth := func(h middleware.HandlerFunc) middleware.HandlerFunc { return middleware.CheckAuth(dir, h) }
	admin := func(h middleware.HandlerFunc) middleware.HandlerFunc { return middleware.CheckAdmin(dir, h) }

	r.routes = map[string]middleware.HandlerFunc{
		"start": r.start,
		"help":  auth(r.help),

		"upload":     auth(r.upload),
		"bulkupload": auth(r.bulkUpload),
		"finish":     auth(r.finish),
		"cancel":     auth(r.cancel),

		"groups":      auth(r.groups),
		"files":       auth(r.files),
		"deletefile":  auth(r.deleteFile),
		"deletegroup": auth(r.deleteGroup),

		"getlink":      auth(r.getLink),
		"getgrouplink": auth(r.getGroupLink),
		"revoke":       auth(r.revoke),
		"revokelink":   auth(r.revoke),
		"mylinks":      auth(r.myLinks),

		"adduser":       admin(r.addUser),
		"removeuser":    admin(r.removeUser),
		"users":         admin(r.listUsers),
		"listusers":     admin(r.listUsers),
		"stats":         admin(r.stats),
		"botstats":      admin(r.stats),
		"togglecaption": admin(r.toggleCaption),
		"setcaption":    admin(r.setCaption),
		"usercaption":   admin(r.userCaption),
	}
	return r
}

// Handle answers one inbound event. It never fails: every error becomes a
// reply to the sender.
func (r *Router) Handle(ctx context.Context, e transport.Event) {
	l := r.l.WithFields(log.Fields{"user_id": e.From.ID, "chat_id": e.ChatID, "message_id": e.MessageID})

	reply, err := r.dispatch(ctx, e)
	if err != nil {
		reply = r.errorReply(l, e, err)
	}
	if reply == "" {
		return
	}
	if _, err := r.sender.SendText(ctx, e.ChatID, reply); err != nil {
		l.WithError(err).Error("can't send reply")
	}
}

func (r *Router) dispatch(ctx context.Context, e transport.Event) (string, error) {
	if e.Object != nil {
		return middleware.CheckAuth(r.directory, r.ingestObject)(ctx, e)
	}
	if e.Text == "" {
		return middleware.CheckAuth(r.directory, unsupported)(ctx, e)
	}
	rd, err := newRequestData(e.Text, r.opts.BotUsername)
	if err != nil {
		// plain chatter
		return "", nil
	}
	h, ok := r.routes[rd.command]
	if !ok {
		return middleware.CheckAuth(r.directory, unknownCommand)(ctx, e)
	}
	return h(ctx, e)
}

func (r *Router) request(e transport.Event) *requestData {
	rd, err := newRequestData(e.Text, r.opts.BotUsername)
	if err != nil {
		return &requestData{}
	}
	return rd
}

func unsupported(context.Context, transport.Event) (string, error) {
	return "Unsupported file type.\n\nSupported: photos, videos, documents, audio, voice and video notes.", nil
}

func unknownCommand(context.Context, transport.Event) (string, error) {
	return "Unknown command. Send /help to see what I can do.", nil
}

func (r *Router) errorReply(l *log.Entry, e transport.Event, err error) string {
	var usage *usageError
	switch {
	case errors.As(err, &usage):
		return "Usage: " + usage.usage
	case errors.Is(err, middleware.ErrUnauthorized):
		return fmt.Sprintf("You are not authorized to use this bot.\n\nContact admin: %s\nYour user ID: %d\n\nAnyone can open files through shared links.", r.opts.AdminContact, e.From.ID)
	case errors.Is(err, middleware.ErrAdminOnly):
		return "Admin access required."

	case errors.Is(err, links.ErrNotFound):
		return "Invalid link: it doesn't exist or its file was deleted."
	case errors.Is(err, links.ErrInactive):
		return "This link has been revoked."
	case errors.Is(err, links.ErrForbidden):
		return "Only the owner of a link or an admin can revoke it."

	case errors.Is(err, ingest.ErrConflict):
		return "You already have an upload session open. Send /finish or /cancel first."
	case errors.Is(err, ingest.ErrNoSession):
		return "No active upload session.\n\nUse /upload <group> or /bulkupload <group> to start uploading files."
	case errors.Is(err, ingest.ErrNoGroup):
		return "Usage: /upload <group>"
	case errors.Is(err, ingest.ErrTransport):
		return "Couldn't archive the file, nothing was saved. Please try again."

	case errors.Is(err, delivery.ErrEmptyGroup):
		return "This group is empty."
	case errors.Is(err, delivery.ErrSend):
		return "Couldn't send the file. It might be unavailable."

	case errors.Is(err, directory.ErrUserExists):
		return "This user is already authorized."
	case errors.Is(err, directory.ErrUserNotFound):
		return "This user is not authorized."
	case errors.Is(err, directory.ErrAdminImmutable):
		return "Admins are set in the bot configuration and can't be changed here."

	case errors.Is(err, database.ErrRecordNotFound):
		return "Not found, or you don't own it."
	}
	l.WithError(err).Error("request failed")
	return "Something went wrong, please try later."
}
