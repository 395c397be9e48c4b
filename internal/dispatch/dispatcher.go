package dispatch

import (
	"fmt"

	"github.com/r0lh/uiinject/internal/ui"
)

// Synthesizer is the UI side a Dispatcher drives.
type Synthesizer interface {
	TypeText(text []byte) int
	ActivateMenu(id int) bool
	QueryInfo() ui.Info
}

// Dispatcher routes frames to a Synthesizer. Only QUERY_INFO produces a
// reply; every other frame, valid or not, gets none.
type Dispatcher struct {
	UI Synthesizer

	// OnReject, when set, sees every frame that was dropped as
	// unparseable. It never changes what goes back to the client.
	OnReject func(frame []byte, err error)
}

// New returns a Dispatcher over s.
func New(s Synthesizer) *Dispatcher {
	return &Dispatcher{UI: s}
}

// Dispatch handles one frame. ok reports whether reply should be written.
func (d *Dispatcher) Dispatch(frame []byte) (reply []byte, ok bool) {
	cmd, err := Parse(frame)
	if err != nil {
		if d.OnReject != nil {
			d.OnReject(frame, err)
		}
		return nil, false
	}

	switch cmd.Kind {
	case KindType:
		d.UI.TypeText(cmd.Text)
	case KindMenu:
		d.UI.ActivateMenu(cmd.MenuID)
	case KindQuery:
		return FormatReply(d.UI.QueryInfo()), true
	}
	return nil, false
}

// FormatReply renders info as a reply frame. Semicolons in the title are
// not escaped.
func FormatReply(info ui.Info) []byte {
	title := info.Title
	if title == "" {
		title = ui.NoTitle
	}
	return []byte(fmt.Sprintf("PID:%d;HWND:%d;Title:%s;", info.Pid, info.HWND, title))
}
