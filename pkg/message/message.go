package message

import (
	"errors"
	"strconv"
	"strings"

	plumber "github.com/MostlyMax/plumber-queue"
)

// Wire form of a message is "[<hex-offset>] <text>". The same form is
// written to consumer sockets, to the journal files and to the backup
// dump, so recovery can replay any of them.

var (
	ErrBadFrame  = errors.New("line is not in wire form")
	ErrBadOffset = errors.New("offset is not valid hex")
)

// Encode returns the wire form of msg without a trailing newline.
func Encode(msg plumber.Message) string {
	var b strings.Builder
	b.Grow(len(msg.Text) + 20)
	b.WriteByte('[')
	b.WriteString(strconv.FormatUint(msg.Offset, 16))
	b.WriteString("] ")
	b.WriteString(msg.Text)
	return b.String()
}

// AppendWire appends the wire form of msg plus a trailing newline to dst.
func AppendWire(dst []byte, msg plumber.Message) []byte {
	dst = append(dst, '[')
	dst = strconv.AppendUint(dst, msg.Offset, 16)
	dst = append(dst, ']', ' ')
	dst = append(dst, msg.Text...)
	return append(dst, '\n')
}

// Parse decodes a single wire-form line. The line must not contain the
// trailing newline. Lines that fail to parse are reported with
// ErrBadFrame or ErrBadOffset so callers can skip them.
func Parse(line string) (plumber.Message, error) {
	if len(line) < 3 || line[0] != '[' {
		return plumber.Message{}, ErrBadFrame
	}
	end := strings.IndexByte(line, ']')
	if end < 1 || end+1 >= len(line) || line[end+1] != ' ' {
		return plumber.Message{}, ErrBadFrame
	}
	off, err := strconv.ParseUint(line[1:end], 16, 64)
	if err != nil {
		return plumber.Message{}, ErrBadOffset
	}
	return plumber.Message{Offset: off, Text: line[end+2:]}, nil
}
