package controller

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Reply is a parsed QUERY_INFO answer.
type Reply struct {
	Pid   uint32 `json:"pid"`
	HWND  uint64 `json:"hwnd"`
	Title string `json:"title"`
}

// Resolved reports whether the agent found a main window.
func (r Reply) Resolved() bool { return r.HWND != 0 }

// ErrMalformedReply is returned when a reply does not have the
// PID:<n>;HWND:<n>;Title:<s>; shape.
var ErrMalformedReply = errors.New("malformed reply")

// ParseReply parses a reply frame. The title runs from "Title:" to the
// final semicolon and may itself contain semicolons.
func ParseReply(b []byte) (Reply, error) {
	s := string(b)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}

	rest, ok := strings.CutPrefix(s, "PID:")
	if !ok {
		return Reply{}, errors.Wrapf(ErrMalformedReply, "%q", s)
	}
	pidStr, rest, ok := strings.Cut(rest, ";HWND:")
	if !ok {
		return Reply{}, errors.Wrapf(ErrMalformedReply, "%q", s)
	}
	hwndStr, rest, ok := strings.Cut(rest, ";Title:")
	if !ok || !strings.HasSuffix(rest, ";") {
		return Reply{}, errors.Wrapf(ErrMalformedReply, "%q", s)
	}

	pid, err := strconv.ParseUint(pidStr, 10, 32)
	if err != nil {
		return Reply{}, errors.Wrapf(ErrMalformedReply, "pid %q", pidStr)
	}
	hwnd, err := strconv.ParseUint(hwndStr, 10, 64)
	if err != nil {
		return Reply{}, errors.Wrapf(ErrMalformedReply, "hwnd %q", hwndStr)
	}
	return Reply{
		Pid:   uint32(pid),
		HWND:  hwnd,
		Title: strings.TrimSuffix(rest, ";"),
	}, nil
}
