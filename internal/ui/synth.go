package ui

import (
	"encoding/binary"
	"time"

	"golang.org/x/text/encoding/unicode"

	"github.com/r0lh/uiinject/winsys"
)

const (
	// CharPace is the pause after each posted character so a slow target
	// queue is not flooded.
	CharPace = 25 * time.Millisecond

	// MaxTitle bounds the title read in UTF-16 units.
	MaxTitle = 255

	// NoTitle stands in for an unresolved window or an empty title.
	NoTitle = "N/A"
)

// Info is what a status query reports.
type Info struct {
	Pid   uint32
	HWND  uintptr
	Title string
}

// Synthesizer posts input messages to the window a Locator resolves.
type Synthesizer struct {
	Locator *Locator
	Pace    time.Duration
	Sleep   func(time.Duration)
}

// NewSynthesizer returns a Synthesizer with the default pacing.
func NewSynthesizer(l *Locator) *Synthesizer {
	return &Synthesizer{Locator: l, Pace: CharPace, Sleep: time.Sleep}
}

// TypeText posts one WM_CHAR per byte of text, in order, each followed by
// the pacing delay. It returns how many messages were posted.
func (s *Synthesizer) TypeText(text []byte) int {
	if len(text) == 0 {
		return 0
	}
	w, ok := s.Locator.Resolve()
	if !ok {
		s.Locator.Logger.Warn("type dropped, no main window", "bytes", len(text))
		return 0
	}
	posted := 0
	for _, c := range text {
		if err := s.Locator.Backend.PostMessage(w, winsys.WM_CHAR, uintptr(c), 0); err != nil {
			s.Locator.Logger.Warn("post WM_CHAR failed", "char", c, "err", err)
		} else {
			posted++
		}
		s.Sleep(s.Pace)
	}
	s.Locator.Logger.Debug("typed text", "posted", posted, "bytes", len(text))
	return posted
}

// ActivateMenu posts one WM_COMMAND carrying id. It reports whether the
// message was posted.
func (s *Synthesizer) ActivateMenu(id int) bool {
	w, ok := s.Locator.Resolve()
	if !ok {
		s.Locator.Logger.Warn("menu dropped, no main window", "id", id)
		return false
	}
	if err := s.Locator.Backend.PostMessage(w, winsys.WM_COMMAND, uintptr(id), 0); err != nil {
		s.Locator.Logger.Warn("post WM_COMMAND failed", "id", id, "err", err)
		return false
	}
	s.Locator.Logger.Debug("menu activated", "id", id)
	return true
}

// QueryInfo reports the pid, the main window and its UTF-8 title.
func (s *Synthesizer) QueryInfo() Info {
	info := Info{Pid: s.Locator.Pid, Title: NoTitle}
	w, ok := s.Locator.Resolve()
	if !ok {
		return info
	}
	info.HWND = uintptr(w)
	if title := decodeTitle(s.Locator.Backend.Title(w, MaxTitle)); title != "" {
		info.Title = title
	}
	return info
}

func decodeTitle(units []uint16) string {
	if len(units) == 0 {
		return ""
	}
	if len(units) > MaxTitle {
		units = units[:MaxTitle]
	}
	raw := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(raw[2*i:], u)
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(raw)
	if err != nil {
		return ""
	}
	return string(out)
}
