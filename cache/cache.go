// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package cache holds the replay buffer of lines already pushed to the
// browser, so a reloaded page can be brought up to date.
package cache

import (
	"errors"
	"strings"
	"sync"
)

// CategoryAll erases the whole cache.
const CategoryAll = "CACHE"

// ErrCategory is returned for an erase category that is not a command name.
var ErrCategory = errors.New("cache: invalid erase category")

// Cache is the replay cache contract used by the engine.
type Cache interface {
	Append(line string)
	All() []string
	Erase()
	EraseByCategory(kind string) error
	Info() Info
}

// Info describes cache usage.
type Info struct {
	UsedLines int `json:"usedLines"`
	SizeLines int `json:"sizeLines"`
	UsedBytes int `json:"usedBytes"`
}

// Buffer is a bounded, append-only ring of lines; the oldest line is
// overwritten when it is full. It is safe for concurrent use.
type Buffer struct {
	mx    sync.Mutex
	lines []string // locked by mx
	head  int      // locked by mx. index of the oldest line.
	count int      // locked by mx
}

// New creates a Buffer holding up to size lines.
func New(size int) *Buffer {
	if size < 1 {
		size = 1
	}
	return &Buffer{lines: make([]string, size)}
}

func (buf *Buffer) Append(line string) {
	buf.mx.Lock()
	defer buf.mx.Unlock()
	buf.appendUnlocked(line)
}

func (buf *Buffer) appendUnlocked(line string) {
	size := len(buf.lines)
	if buf.count < size {
		buf.lines[(buf.head+buf.count)%size] = line
		buf.count++
		return
	}
	buf.lines[buf.head] = line
	buf.head = (buf.head + 1) % size
}

// All returns the cached lines, oldest first.
func (buf *Buffer) All() []string {
	buf.mx.Lock()
	defer buf.mx.Unlock()
	return buf.allUnlocked()
}

func (buf *Buffer) allUnlocked() []string {
	out := make([]string, buf.count)
	for i := 0; i < buf.count; i++ {
		out[i] = buf.lines[(buf.head+i)%len(buf.lines)]
	}
	return out
}

func (buf *Buffer) Erase() {
	buf.mx.Lock()
	defer buf.mx.Unlock()
	buf.eraseUnlocked()
}

func (buf *Buffer) eraseUnlocked() {
	for i := range buf.lines {
		buf.lines[i] = ""
	}
	buf.head = 0
	buf.count = 0
}

// EraseByCategory removes lines whose IRC command equals kind,
// or everything for CategoryAll.
func (buf *Buffer) EraseByCategory(kind string) error {
	if kind == CategoryAll {
		buf.Erase()
		return nil
	}
	if !validCategory(kind) {
		return ErrCategory
	}
	buf.mx.Lock()
	defer buf.mx.Unlock()
	keep := buf.allUnlocked()
	buf.eraseUnlocked()
	for _, line := range keep {
		if Command(line) != kind {
			buf.appendUnlocked(line)
		}
	}
	return nil
}

// Load appends previously saved lines, oldest first.
func (buf *Buffer) Load(lines []string) {
	buf.mx.Lock()
	defer buf.mx.Unlock()
	for _, line := range lines {
		buf.appendUnlocked(line)
	}
}

func (buf *Buffer) Info() Info {
	buf.mx.Lock()
	defer buf.mx.Unlock()
	info := Info{UsedLines: buf.count, SizeLines: len(buf.lines)}
	for i := 0; i < buf.count; i++ {
		info.UsedBytes += len(buf.lines[(buf.head+i)%len(buf.lines)])
	}
	return info
}

func validCategory(kind string) bool {
	if kind == "" {
		return false
	}
	for i := 0; i < len(kind); i++ {
		ch := kind[i]
		if (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') {
			return false
		}
	}
	return true
}

// Command returns the IRC command of a cached line, skipping the
// receive timestamp and the prefix.
func Command(line string) string {
	for _, lead := range []byte{'@', ':'} {
		if strings.IndexByte(line, ' ') == -1 {
			break
		}
		if len(line) > 0 && line[0] == lead {
			line = line[strings.IndexByte(line, ' ')+1:]
		}
	}
	if i := strings.IndexByte(line, ' '); i != -1 {
		return line[:i]
	}
	return line
}
