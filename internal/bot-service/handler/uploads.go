package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/konorlevich/filestore-bot/internal/bot-service/ingest"
	"github.com/konorlevich/filestore-bot/internal/bot-service/links"
	"github.com/konorlevich/filestore-bot/internal/bot-service/transport"
)

func (r *Router) upload(_ context.Context, e transport.Event) (string, error) {
	group, err := r.request(e).group("/upload <group>")
	if err != nil {
		return "", err
	}
	if err := r.ingest.ArmSingle(e.From.ID, group); err != nil {
		return "", err
	}
	return fmt.Sprintf("Send the file to upload into '%s'.", group), nil
}

func (r *Router) bulkUpload(_ context.Context, e transport.Event) (string, error) {
	group, err := r.request(e).group("/bulkupload <group>")
	if err != nil {
		return "", err
	}
	if _, err := r.ingest.OpenBulk(e.From.ID, group); err != nil {
		return "", err
	}
	return fmt.Sprintf("Bulk upload into '%s' started.\n\nSend your files, then /finish or /cancel.", group), nil
}

func (r *Router) finish(_ context.Context, e transport.Event) (string, error) {
	sum, err := r.ingest.Finish(e.From.ID)
	if err != nil {
		return "", err
	}
	if len(sum.FileNames) == 0 {
		return fmt.Sprintf("Bulk upload into '%s' finished with no files added.", sum.GroupName), nil
	}
	b := &strings.Builder{}
	fmt.Fprintf(b, "Bulk upload finished.\n\nGroup: %s\nFiles added: %d\n", sum.GroupName, len(sum.FileNames))
	writeNames(b, sum.FileNames, listLimit)
	return b.String(), nil
}

func (r *Router) cancel(_ context.Context, e transport.Event) (string, error) {
	s, err := r.ingest.Cancel(e.From.ID)
	if err != nil {
		return "", err
	}
	if len(s.FileNames) == 0 {
		return "Upload session cancelled.", nil
	}
	return fmt.Sprintf("Upload session cancelled. The %d files already added stay in '%s'.", len(s.FileNames), s.GroupName), nil
}

func (r *Router) ingestObject(ctx context.Context, e transport.Event) (string, error) {
	res, err := r.ingest.Ingest(ctx, e.From, *e.Object)
	if errors.Is(err, ingest.ErrTooLarge) {
		return fmt.Sprintf("File too large.\n\nMaximum: %s\nYour file: %s",
			formatSize(r.opts.MaxFileSize), formatSize(e.Object.Size)), nil
	}
	if err != nil {
		return "", err
	}

	if res.Mode == ingest.ModeBulk {
		return fmt.Sprintf("Added %s as #%03d.\nFiles in this session: %d\n\nSend more files or /finish.",
			res.File.Name, res.File.SerialNumber, res.SessionFiles), nil
	}
	if res.LinkErr != nil {
		return fmt.Sprintf("Uploaded %s to '%s' as #%03d, but the share link could not be created.\n\nTry /getlink %s %d.",
			res.File.Name, res.Group.Name, res.File.SerialNumber, res.Group.Name, res.File.SerialNumber), nil
	}
	return fmt.Sprintf("Uploaded %s to '%s' as #%03d.\n\nShare link: %s",
		res.File.Name, res.Group.Name, res.File.SerialNumber, r.shareURL(res.Code)), nil
}

func (r *Router) shareURL(code string) string {
	return links.ShareURL(r.opts.LinkHost, r.opts.BotUsername, code)
}

func writeNames(b *strings.Builder, names []string, limit int) {
	for i, name := range names {
		if i == limit {
			fmt.Fprintf(b, "\n...and %d more.", len(names)-limit)
			return
		}
		fmt.Fprintf(b, "\n- %s", name)
	}
}
