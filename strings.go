// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package irc

// caseMapping folds nicknames and channel names the way the server
// compares them. Bytes from 'A' up to last are lowered by 32.
type caseMapping struct {
	name string
	last byte
}

var (
	caseASCII = caseMapping{"ascii", 'Z'}
	// {}|~ are the lowercase of []\^
	caseRFC1459 = caseMapping{"rfc1459", '^'}
	// {}| are the lowercase of []\
	caseStrictRFC1459 = caseMapping{"strict-rfc1459", ']'}
)

// caseMappingFor returns the mapping advertised by CASEMAPPING,
// rfc1459 when unknown.
func caseMappingFor(name string) caseMapping {
	switch name {
	case caseASCII.name:
		return caseASCII
	case caseStrictRFC1459.name:
		return caseStrictRFC1459
	default:
		return caseRFC1459
	}
}

func (cm caseMapping) lowerByte(ch byte) byte {
	if ch >= 'A' && ch <= cm.last {
		return ch + ('a' - 'A')
	}
	return ch
}

// Lower folds s; s is returned as is when nothing changes.
func (cm caseMapping) Lower(s string) string {
	var buf []byte
	for i := 0; i < len(s); i++ {
		x := cm.lowerByte(s[i])
		if buf != nil {
			buf[i] = x
		} else if x != s[i] {
			buf = make([]byte, len(s))
			copy(buf[:i], s[:i])
			buf[i] = x
		}
	}
	if buf != nil {
		return string(buf)
	}
	return s
}

// Equal compares a and b under the mapping.
func (cm caseMapping) Equal(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if cm.lowerByte(a[i]) != cm.lowerByte(b[i]) {
			return false
		}
	}
	return true
}
