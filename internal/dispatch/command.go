// Package dispatch parses command frames and routes them to the UI layer.
package dispatch

import (
	"bytes"
	"strconv"

	"github.com/pkg/errors"
)

// Wire prefixes. Matching is case-sensitive and exact.
const (
	PrefixType = "TYPE:"
	PrefixMenu = "MENU:"
	QueryInfo  = "QUERY_INFO"
)

// Kind identifies a parsed command.
type Kind int

const (
	KindType Kind = iota + 1
	KindMenu
	KindQuery
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "TYPE"
	case KindMenu:
		return "MENU"
	case KindQuery:
		return "QUERY_INFO"
	}
	return "UNKNOWN"
}

// Command is one parsed frame.
type Command struct {
	Kind   Kind
	Text   []byte
	MenuID int
}

// ErrUnknownCommand is returned for frames matching no command.
var ErrUnknownCommand = errors.New("unknown command")

// ErrBadMenuID is returned when a MENU payload is not a base-10 integer.
var ErrBadMenuID = errors.New("menu id is not a base-10 integer")

// Parse classifies frame. The first matching rule wins.
func Parse(frame []byte) (Command, error) {
	switch {
	case bytes.HasPrefix(frame, []byte(PrefixType)):
		text := append([]byte(nil), frame[len(PrefixType):]...)
		return Command{Kind: KindType, Text: text}, nil

	case bytes.HasPrefix(frame, []byte(PrefixMenu)):
		raw := string(frame[len(PrefixMenu):])
		id, err := strconv.Atoi(raw)
		if err != nil {
			return Command{}, errors.Wrapf(ErrBadMenuID, "%q", raw)
		}
		return Command{Kind: KindMenu, MenuID: id}, nil

	case string(frame) == QueryInfo:
		return Command{Kind: KindQuery}, nil
	}
	return Command{}, ErrUnknownCommand
}
