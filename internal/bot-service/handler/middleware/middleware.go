package middleware

import (
	"context"
	"errors"

	"github.com/konorlevich/filestore-bot/internal/bot-service/transport"
)

var (
	ErrUnauthorized = errors.New("you are not authorized for this action")
	ErrAdminOnly    = errors.New("admin access required")
)

// HandlerFunc handles one inbound event and returns the text to reply with.
type HandlerFunc func(ctx context.Context, e transport.Event) (string, error)

type Authorizer interface {
	IsAdmin(id int64) bool
	IsAuthorized(ctx context.Context, id int64) (bool, error)
}

// CheckAuth lets through admins and authorized users only.
func CheckAuth(a Authorizer, next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, e transport.Event) (string, error) {
		ok, err := a.IsAuthorized(ctx, e.From.ID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrUnauthorized
		}
		return next(ctx, e)
	}
}

func CheckAdmin(a Authorizer, next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, e transport.Event) (string, error) {
		if !a.IsAdmin(e.From.ID) {
			return "", ErrAdminOnly
		}
		return next(ctx, e)
	}
}
