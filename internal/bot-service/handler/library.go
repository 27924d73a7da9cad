package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/filestore-bot/internal/bot-service/database"
	"github.com/konorlevich/filestore-bot/internal/bot-service/transport"
)

func (r *Router) groups(ctx context.Context, e transport.Event) (string, error) {
	groups, err := r.library.ListGroups(ctx, e.From.ID)
	if err != nil {
		return "", err
	}
	if len(groups) == 0 {
		return "You have no groups yet.\n\nUpload your first file with /upload <group>.", nil
	}
	b := &strings.Builder{}
	b.WriteString("Your groups:\n")
	for i, g := range groups {
		fmt.Fprintf(b, "\n%d. %s\n   %d files, %s\n   %s\n", i+1, g.Name, g.TotalFiles, formatSize(g.TotalSize), g.CreatedAt.Format("2006-01-02"))
	}
	return b.String(), nil
}

func (r *Router) files(ctx context.Context, e transport.Event) (string, error) {
	name, err := r.request(e).group("/files <group>")
	if err != nil {
		return "", err
	}
	g, err := r.library.GetGroupByName(ctx, e.From.ID, name)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return fmt.Sprintf("Group '%s' not found or you don't own it.", name), nil
		}
		return "", err
	}
	files, err := r.library.ListFiles(ctx, g.ID)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return fmt.Sprintf("Group '%s' is empty.", g.Name), nil
	}
	b := &strings.Builder{}
	fmt.Fprintf(b, "Group '%s': %d files, %s\n", g.Name, g.TotalFiles, formatSize(g.TotalSize))
	for _, f := range files {
		fmt.Fprintf(b, "\n#%03d %s (%s)", f.SerialNumber, f.Name, formatSize(f.Size))
	}
	return b.String(), nil
}

func (r *Router) deleteFile(ctx context.Context, e transport.Event) (string, error) {
	group, serial, err := r.request(e).groupAndSerial("/deletefile <group> <file number>")
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
	if _, err := r.library.RemoveFile(ctx, f.ID); err != nil {
		return "", err
	}
	r.l.WithFields(log.Fields{"user_id": e.From.ID, "group": group, "serial": serial}).Info("file deleted")
	return fmt.Sprintf("Deleted #%03d %s from '%s'. Its links no longer work.", f.SerialNumber, f.Name, group), nil
}

func (r *Router) deleteGroup(ctx context.Context, e transport.Event) (string, error) {
	name, err := r.request(e).group("/deletegroup <group>")
	if err != nil {
		return "", err
	}
	g, err := r.library.GetGroupByName(ctx, e.From.ID, name)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return fmt.Sprintf("Group '%s' not found or you don't own it.", name), nil
		}
		return "", err
	}
	if err := r.library.RemoveGroup(ctx, g.ID); err != nil {
		return "", err
	}
	r.l.WithFields(log.Fields{"user_id": e.From.ID, "group": name}).Info("group deleted")
	return fmt.Sprintf("Deleted group '%s' with its %d files and all their links.", g.Name, g.TotalFiles), nil
}
