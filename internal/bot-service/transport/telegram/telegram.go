package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/filestore-bot/internal/bot-service/transport"
)

const pollTimeout = 60

type Bot struct {
	api           *tgbotapi.BotAPI
	archiveChatID int64
	l             *log.Entry
}

func New(token string, archiveChatID int64, l *log.Entry) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("can't connect to telegram: %w", err)
	}
	l = l.WithField("bot", api.Self.UserName)
	l.Info("authorized on telegram")
	return &Bot{api: api, archiveChatID: archiveChatID, l: l}, nil
}

func (b *Bot) Send(_ context.Context, chatID int64, obj transport.Object, caption string) (transport.DeliveryID, error) {
	c, err := newObjectMessage(chatID, obj, caption)
	if err != nil {
		return transport.DeliveryID{}, err
	}
	msg, err := b.api.Send(c)
	if err != nil {
		return transport.DeliveryID{}, err
	}
	return transport.DeliveryID{ChatID: msg.Chat.ID, MessageID: msg.MessageID}, nil
}

func (b *Bot) SendText(_ context.Context, chatID int64, text string) (transport.DeliveryID, error) {
	msg, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return transport.DeliveryID{}, err
	}
	return transport.DeliveryID{ChatID: msg.Chat.ID, MessageID: msg.MessageID}, nil
}

// Archive relays the object to the storage channel and returns the ID of
// the archived message.
func (b *Bot) Archive(ctx context.Context, obj transport.Object, caption string) (int64, error) {
	id, err := b.Send(ctx, b.archiveChatID, obj, caption)
	if err != nil {
		return 0, err
	}
	return int64(id.MessageID), nil
}

func (b *Bot) Delete(_ context.Context, id transport.DeliveryID) error {
	_, err := b.api.Request(tgbotapi.NewDeleteMessage(id.ChatID, id.MessageID))
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && isGone(apiErr.Message) {
		return fmt.Errorf("%w: %s", transport.ErrMessageGone, apiErr.Message)
	}
	return err
}

// Listen feeds inbound messages to handle one at a time until ctx is done.
func (b *Bot) Listen(ctx context.Context, handle func(context.Context, transport.Event)) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := newEvent(upd.Message)
			if !ok {
				continue
			}
			handle(ctx, ev)
		}
	}
}

func isGone(description string) bool {
	d := strings.ToLower(description)
	return strings.Contains(d, "message to delete not found") ||
		strings.Contains(d, "message can't be deleted")
}

func newEvent(msg *tgbotapi.Message) (transport.Event, bool) {
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return transport.Event{}, false
	}
	return transport.Event{
		From: transport.Principal{
			ID:        msg.From.ID,
			Username:  msg.From.UserName,
			FirstName: msg.From.FirstName,
		},
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      msg.Text,
		Object:    extractObject(msg),
	}, true
}

func extractObject(msg *tgbotapi.Message) *transport.Object {
	switch {
	case msg.Document != nil:
		return &transport.Object{
			Kind:   transport.KindDocument,
			Handle: msg.Document.FileID,
			Name:   orDefault(msg.Document.FileName, "document"),
			Size:   int64(msg.Document.FileSize),
		}
	case len(msg.Photo) > 0:
		p := msg.Photo[len(msg.Photo)-1]
		return &transport.Object{
			Kind:   transport.KindPhoto,
			Handle: p.FileID,
			Name:   fmt.Sprintf("photo_%s.jpg", short(p.FileID)),
			Size:   int64(p.FileSize),
		}
	case msg.Video != nil:
		return &transport.Object{
			Kind:   transport.KindVideo,
			Handle: msg.Video.FileID,
			Name:   orDefault(msg.Video.FileName, fmt.Sprintf("video_%s.mp4", short(msg.Video.FileID))),
			Size:   int64(msg.Video.FileSize),
		}
	case msg.Audio != nil:
		return &transport.Object{
			Kind:   transport.KindAudio,
			Handle: msg.Audio.FileID,
			Name:   orDefault(msg.Audio.FileName, fmt.Sprintf("audio_%s.mp3", short(msg.Audio.FileID))),
			Size:   int64(msg.Audio.FileSize),
		}
	case msg.Voice != nil:
		return &transport.Object{
			Kind:   transport.KindVoice,
			Handle: msg.Voice.FileID,
			Name:   fmt.Sprintf("voice_%s.ogg", short(msg.Voice.FileID)),
			Size:   int64(msg.Voice.FileSize),
		}
	case msg.VideoNote != nil:
		return &transport.Object{
			Kind:   transport.KindVideoNote,
			Handle: msg.VideoNote.FileID,
			Name:   fmt.Sprintf("videonote_%s.mp4", short(msg.VideoNote.FileID)),
			Size:   int64(msg.VideoNote.FileSize),
		}
	}
	return nil
}

func newObjectMessage(chatID int64, obj transport.Object, caption string) (tgbotapi.Chattable, error) {
	file := tgbotapi.FileID(obj.Handle)
	switch obj.Kind {
	case transport.KindDocument:
		c := tgbotapi.NewDocument(chatID, file)
		c.Caption = caption
		return c, nil
	case transport.KindPhoto:
		c := tgbotapi.NewPhoto(chatID, file)
		c.Caption = caption
		return c, nil
	case transport.KindVideo:
		c := tgbotapi.NewVideo(chatID, file)
		c.Caption = caption
		return c, nil
	case transport.KindAudio:
		c := tgbotapi.NewAudio(chatID, file)
		c.Caption = caption
		return c, nil
	case transport.KindVoice:
		c := tgbotapi.NewVoice(chatID, file)
		c.Caption = caption
		return c, nil
	case transport.KindVideoNote:
		// video notes carry no caption
		return tgbotapi.NewVideoNote(chatID, 0, file), nil
	}
	return nil, fmt.Errorf("%w: %q", transport.ErrUnsupported, obj.Kind)
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
