// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package irc

// Numeric replies the engine acts on.
const (
	RPL_WELCOME          = "001"
	RPL_ISUPPORT         = "005"
	RPL_UMODEIS          = "221"
	RPL_UNAWAY           = "305"
	RPL_NOWAWAY          = "306"
	RPL_NOTOPIC          = "331"
	RPL_TOPIC            = "332"
	RPL_NAMREPLY         = "353"
	RPL_ENDOFNAMES       = "366"
	ERR_NONICKNAMEGIVEN  = "431"
	ERR_ERRONEUSNICKNAME = "432"
	ERR_NICKNAMEINUSE    = "433"
	ERR_NICKCOLLISION    = "436"
	ERR_UNAVAILRESOURCE  = "437"
	ERR_NOTREGISTERED    = "451"

	RPL_LOGGEDIN    = "900"
	RPL_LOGGEDOUT   = "901"
	ERR_NICKLOCKED  = "902"
	RPL_SASLSUCCESS = "903"
	ERR_SASLFAIL    = "904"
	ERR_SASLTOOLONG = "905"
	ERR_SASLABORTED = "906"
	ERR_SASLALREADY = "907"
	RPL_SASLMECHS   = "908"
)
