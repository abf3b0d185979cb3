// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package irc

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decodeLine checks that a line from the server is valid UTF-8. Anything
// else, including a sequence cut off at the end of the line, is refused.
func decodeLine(line []byte) (string, bool) {
	if !utf8.Valid(line) {
		return "", false
	}
	return string(line), true
}

// latin1 renders arbitrary bytes readable for logs.
func latin1(b []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().String(string(b))
	if err != nil {
		return string(b)
	}
	return s
}
