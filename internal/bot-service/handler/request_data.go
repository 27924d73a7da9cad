package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

const commandPrefix = "/"

var errNotCommand = errors.New("not a command")

type usageError struct {
	usage string
}

func (e *usageError) Error() string {
	return "usage: " + e.usage
}

type requestData struct {
	command string
	args    []string
	// rest is everything after the command, spaces kept
	rest string
}

// newRequestData splits "/cmd@bot arg1 arg2" into its parts. A command
// addressed to another bot is not a command for this one.
func newRequestData(text, botUsername string) (*requestData, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, commandPrefix) {
		return nil, errNotCommand
	}
	head, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		head, rest = text[:i], text[i:]
	}
	name, addressee, found := strings.Cut(strings.TrimPrefix(head, commandPrefix), "@")
	if name == "" {
		return nil, errNotCommand
	}
	if found && !strings.EqualFold(addressee, strings.TrimPrefix(botUsername, "@")) {
		return nil, errNotCommand
	}
	rest = strings.TrimSpace(rest)
	return &requestData{
		command: strings.ToLower(name),
		args:    strings.Fields(rest),
		rest:    rest,
	}, nil
}

func (rd *requestData) group(usage string) (string, error) {
	if rd.rest == "" {
		return "", &usageError{usage: usage}
	}
	return rd.rest, nil
}

// groupAndSerial reads "<group> <serial>". The group may contain spaces.
func (rd *requestData) groupAndSerial(usage string) (string, int64, error) {
	if len(rd.args) < 2 {
		return "", 0, &usageError{usage: usage}
	}
	last := rd.args[len(rd.args)-1]
	serial, err := strconv.ParseInt(strings.TrimPrefix(last, "#"), 10, 64)
	if err != nil || serial <= 0 {
		return "", 0, &usageError{usage: usage}
	}
	group := strings.TrimSpace(strings.TrimSuffix(rd.rest, last))
	return group, serial, nil
}

func (rd *requestData) userID(usage string) (int64, error) {
	if len(rd.args) == 0 {
		return 0, &usageError{usage: usage}
	}
	id, err := strconv.ParseInt(rd.args[0], 10, 64)
	if err != nil {
		return 0, &usageError{usage: usage}
	}
	return id, nil
}

// linkCode accepts a bare code or a whole share link.
func (rd *requestData) linkCode(usage string) (string, error) {
	if len(rd.args) == 0 {
		return "", &usageError{usage: usage}
	}
	code := rd.args[0]
	if _, after, found := strings.Cut(code, "start="); found {
		code = after
	}
	if code == "" {
		return "", &usageError{usage: usage}
	}
	return code, nil
}

func formatSize(size int64) string {
	const unit = 1024
	switch {
	case size < unit:
		return fmt.Sprintf("%d B", size)
	case size < unit*unit:
		return fmt.Sprintf("%.1f KB", float64(size)/unit)
	case size < unit*unit*unit:
		return fmt.Sprintf("%.1f MB", float64(size)/(unit*unit))
	}
	return fmt.Sprintf("%.1f GB", float64(size)/(unit*unit*unit))
}
