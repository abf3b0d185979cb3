// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package irc

import (
	"strings"
)

// isupport holds the RPL_ISUPPORT (005) tokens of the current server.
type isupport map[string]string

var defaultSupport = isupport{
	"PREFIX":      "(ov)@+",
	"CHANTYPES":   "#&",
	"CHANMODES":   "be,k,l,imnpst",
	"CASEMAPPING": "rfc1459",
	"MODES":       "3",
	"NICKLEN":     "9",
}

func (support isupport) clone() isupport {
	x := isupport{}
	for k, v := range support {
		x[k] = v
	}
	return x
}

// apply merges 005 tokens: PARAMETER, PARAMETER=VALUE or -PARAMETER.
// Anything else, such as the closing "are supported" text, is ignored.
func (support isupport) apply(tokens []string) {
	// https://modern.ircdocs.horse/#rplisupport-005
	for _, x := range tokens {
		if len(x) == 0 {
			continue
		}
		ch := x[0]
		if !(ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' || ch == '_' || ch == '-') {
			continue
		}
		if strings.IndexByte(x, ' ') != -1 {
			continue
		}
		name, value, _ := strings.Cut(x, "=")
		if name == "" || name == "-" {
			continue
		}
		if name[0] == '-' {
			name = name[1:]
			// Revert to default.
			if defValue, def := defaultSupport[name]; def {
				support[name] = defValue
			} else {
				delete(support, name)
			}
			continue
		}
		support[name] = value
	}
}

func (support isupport) caseMapping() caseMapping {
	return caseMappingFor(support["CASEMAPPING"])
}

// prefix splits PREFIX, e.g. "(ov)@+" into "ov" and "@+".
func (support isupport) prefix() (modes string, chars string) {
	prefix := support["PREFIX"]
	if len(prefix) > 0 && prefix[0] == '(' {
		x := prefix[1:]
		ix := strings.IndexByte(x, ')')
		if ix != -1 {
			return x[:ix], x[ix+1:]
		}
	}
	return "", ""
}

// Returns 0 if mode is not a channel nick prefix mode.
func (support isupport) nickPrefix(mode byte) byte {
	modes, chars := support.prefix()
	ich := strings.IndexByte(modes, mode)
	if ich != -1 && ich < len(chars) {
		return chars[ich]
	}
	return 0
}

func (support isupport) isNickPrefix(ch byte) bool {
	_, chars := support.prefix()
	return strings.IndexByte(chars, ch) != -1
}

func (support isupport) isChanType(ch byte) bool {
	return strings.IndexByte(support["CHANTYPES"], ch) != -1
}

// isChannel reports whether target names a channel.
func (support isupport) isChannel(target string) bool {
	return len(target) > 0 && support.isChanType(target[0])
}

// splitNickPrefixes separates the rank prefixes of a NAMES entry;
// there can be several with multi-prefix.
func (support isupport) splitNickPrefixes(name string) (prefixes, nick string) {
	i := 0
	for i < len(name) && support.isNickPrefix(name[i]) {
		i++
	}
	return name[:i], name[i:]
}

type chanMode byte

const (
	chanModeNone        chanMode = iota
	chanModeList                 // A
	chanModeAlwaysParam          // B
	chanModeSetParam             // C
	chanModeSetting              // D
)

// isSet should be true if the arg is being set (+)
func (x chanMode) HasArg(isSet bool) bool {
	switch x {
	case chanModeList, chanModeAlwaysParam:
		return true
	case chanModeSetParam:
		return isSet
	default:
		return false
	}
}

// chanModeType classifies mode by CHANMODES, then PREFIX.
// chanModeNone means not a channel mode.
func (support isupport) chanModeType(mode byte) chanMode {
	itype := chanModeList
	chanmodes := support["CHANMODES"]
	for i := 0; i < len(chanmodes); i++ {
		ch := chanmodes[i]
		if ch == ',' {
			itype++
		} else if ch == mode {
			return itype
		}
	}
	modes, _ := support.prefix()
	if strings.IndexByte(modes, mode) != -1 {
		return chanModeAlwaysParam
	}
	return chanModeNone
}
