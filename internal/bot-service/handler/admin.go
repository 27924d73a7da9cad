package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/konorlevich/filestore-bot/internal/bot-service/transport"
)

func (r *Router) helpText(userID int64) string {
	b := &strings.Builder{}
	b.WriteString(`Uploading:
/upload <group> - upload one file and get its link
/bulkupload <group> - upload many files into a group
/finish - finish a bulk upload
/cancel - cancel the current upload

Browsing:
/groups - your groups
/files <group> - files in a group
/deletefile <group> <number> - delete a file
/deletegroup <group> - delete a group with its files

Links:
/getlink <group> <number> - link to one file
/getgrouplink <group> - link to a whole group
/mylinks - your active links
/revoke <code> - disable a link`)
	if r.directory.IsAdmin(userID) {
		b.WriteString(`

Admin:
/adduser <id> [username] - authorize a user
/removeuser <id> - remove a user
/users - authorized users
/stats - bot statistics
/togglecaption - turn the caption on or off
/setcaption <text> - change the caption text
/usercaption <id> - turn the caption on or off for a user`)
	}
	b.WriteString("\n\nShared files are deleted from the chat after a while.")
	return b.String()
}

func (r *Router) help(_ context.Context, e transport.Event) (string, error) {
	return r.helpText(e.From.ID), nil
}

func (r *Router) addUser(ctx context.Context, e transport.Event) (string, error) {
	rd := r.request(e)
	id, err := rd.userID("/adduser <id> [username]")
	if err != nil {
		return "", err
	}
	var username string
	if len(rd.args) > 1 {
		username = strings.TrimPrefix(rd.args[1], "@")
	}
	if _, err := r.directory.AddUser(ctx, id, username, e.From.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("User %d can use the bot now.", id), nil
}

func (r *Router) removeUser(ctx context.Context, e transport.Event) (string, error) {
	id, err := r.request(e).userID("/removeuser <id>")
	if err != nil {
		return "", err
	}
	if err := r.directory.RemoveUser(ctx, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("User %d removed.", id), nil
}

func (r *Router) listUsers(ctx context.Context, _ transport.Event) (string, error) {
	users, err := r.directory.ListUsers(ctx)
	if err != nil {
		return "", err
	}
	if len(users) == 0 {
		return "No authorized users yet. Add one with /adduser <id>.", nil
	}
	b := &strings.Builder{}
	fmt.Fprintf(b, "Authorized users: %d\n", len(users))
	for _, u := range users {
		name := u.Username
		if name == "" {
			name = "-"
		}
		caption := "on"
		if u.CaptionDisabled {
			caption = "off"
		}
		fmt.Fprintf(b, "\n%d @%s, added %s, caption %s", u.UserID, name, u.AddedAt.Format("2006-01-02"), caption)
	}
	return b.String(), nil
}

func (r *Router) stats(ctx context.Context, _ transport.Event) (string, error) {
	s, err := r.library.Stats(ctx)
	if err != nil {
		return "", err
	}
	enabled, text, err := r.captions.Settings(ctx)
	if err != nil {
		return "", err
	}
	caption := "off"
	if enabled {
		caption = "on"
	}
	return fmt.Sprintf(`Bot statistics:

Authorized users: %d
Groups: %d
Files: %d
Stored: %s
Active links: %d
Total clicks: %d
Caption: %s (%s)`,
		s.Users, s.Groups, s.Files, formatSize(s.TotalSize), s.ActiveLinks, s.TotalClicks, caption, text), nil
}

func (r *Router) toggleCaption(ctx context.Context, _ transport.Event) (string, error) {
	enabled, err := r.captions.Toggle(ctx)
	if err != nil {
		return "", err
	}
	if enabled {
		return "Caption turned on.", nil
	}
	return "Caption turned off.", nil
}

func (r *Router) setCaption(ctx context.Context, e transport.Event) (string, error) {
	rd := r.request(e)
	if rd.rest == "" {
		return "", &usageError{usage: "/setcaption <text>"}
	}
	if err := r.captions.SetText(ctx, rd.rest); err != nil {
		return "", err
	}
	return fmt.Sprintf("Caption text set to:\n\n%s", rd.rest), nil
}

func (r *Router) userCaption(ctx context.Context, e transport.Event) (string, error) {
	id, err := r.request(e).userID("/usercaption <id>")
	if err != nil {
		return "", err
	}
	disabled, err := r.directory.ToggleCaption(ctx, id)
	if err != nil {
		return "", err
	}
	if disabled {
		return fmt.Sprintf("Caption turned off for files of user %d.", id), nil
	}
	return fmt.Sprintf("Caption turned on for files of user %d.", id), nil
}
