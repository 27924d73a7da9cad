// Package transport holds the contract between the bot core and the
// messaging network: inbound events, outbound objects and the IDs of
// delivered messages.
package transport

import (
	"context"
	"errors"
)

var (
	ErrMessageGone = errors.New("message is already gone")
	ErrUnsupported = errors.New("unsupported object kind")
)

const (
	KindDocument  = "document"
	KindPhoto     = "photo"
	KindVideo     = "video"
	KindAudio     = "audio"
	KindVoice     = "voice"
	KindVideoNote = "video_note"
)

// Object references content already held by the transport.
type Object struct {
	Kind   string
	Handle string
	Name   string
	Size   int64
}

type Principal struct {
	ID        int64
	Username  string
	FirstName string
}

// DeliveryID addresses one message the bot can delete later.
type DeliveryID struct {
	ChatID    int64
	MessageID int
}

type Event struct {
	From      Principal
	ChatID    int64
	MessageID int
	Text      string
	Object    *Object
}

// Request returns the DeliveryID of the inbound message itself.
func (e Event) Request() DeliveryID {
	return DeliveryID{ChatID: e.ChatID, MessageID: e.MessageID}
}

type Sender interface {
	Send(ctx context.Context, chatID int64, obj Object, caption string) (DeliveryID, error)
	SendText(ctx context.Context, chatID int64, text string) (DeliveryID, error)
}

type Deleter interface {
	Delete(ctx context.Context, id DeliveryID) error
}
