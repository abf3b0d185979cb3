// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package irc

import (
	"bytes"
	"fmt"
)

// MaxLineBytes is the longest line accepted in either direction,
// not counting the line delimiter.
const MaxLineBytes = 512

// Reasons a line is dropped by the Framer.
const (
	DropOversized = "oversized"
	DropEncoding  = "encoding"
	DropNUL       = "nul"
)

const frameExcerpt = 64

// FrameError describes a line the Framer refused to deliver.
type FrameError struct {
	Reason string
	Line   []byte // at most the first few bytes.
}

func (err *FrameError) Error() string {
	return fmt.Sprintf("dropped %s line: %q", err.Reason, latin1(err.Line))
}

func newFrameError(reason string, line []byte) *FrameError {
	if len(line) > frameExcerpt {
		line = line[:frameExcerpt]
	}
	return &FrameError{Reason: reason, Line: append([]byte(nil), line...)}
}

// Framer splits a byte stream into lines at CR or LF.
// The zero value is ready to use.
type Framer struct {
	partial  []byte
	overflow bool // partial exceeded MaxLineBytes; discarding to the next delimiter.
}

// Feed consumes chunk and returns the complete lines it finished.
// Empty lines are never returned. Lines that are too long, contain NUL or
// are not valid UTF-8 are reported in dropped instead.
func (framer *Framer) Feed(chunk []byte) (lines []string, dropped []*FrameError) {
	for len(chunk) > 0 {
		i := bytes.IndexAny(chunk, "\r\n")
		if i == -1 {
			framer.buffer(chunk)
			break
		}
		framer.buffer(chunk[:i])
		chunk = chunk[i+1:]
		line, ferr := framer.take()
		if ferr != nil {
			dropped = append(dropped, ferr)
		} else if line != "" {
			lines = append(lines, line)
		}
	}
	return
}

// Pending returns the number of buffered bytes of an incomplete line.
func (framer *Framer) Pending() int {
	return len(framer.partial)
}

func (framer *Framer) buffer(b []byte) {
	if framer.overflow {
		return
	}
	if len(framer.partial)+len(b) > MaxLineBytes {
		framer.overflow = true
		room := frameExcerpt - len(framer.partial)
		if room > len(b) {
			room = len(b)
		}
		if room > 0 {
			framer.partial = append(framer.partial, b[:room]...)
		}
		return
	}
	framer.partial = append(framer.partial, b...)
}

func (framer *Framer) take() (string, *FrameError) {
	defer func() {
		framer.partial = framer.partial[:0]
		framer.overflow = false
	}()
	if framer.overflow {
		return "", newFrameError(DropOversized, framer.partial)
	}
	if len(framer.partial) == 0 {
		return "", nil
	}
	if bytes.IndexByte(framer.partial, 0) != -1 {
		return "", newFrameError(DropNUL, framer.partial)
	}
	line, ok := decodeLine(framer.partial)
	if !ok {
		return "", newFrameError(DropEncoding, framer.partial)
	}
	return line, nil
}
