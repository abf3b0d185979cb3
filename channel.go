// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package irc

import (
	"strings"
)

// Channel is the state of one channel touched this session.
// Entries outlive PART, KICK and disconnect; only a prune removes them.
type Channel struct {
	name        string // casemapped key
	displayName string // as the server spells it
	topic       string
	joined      bool
	kicked      bool
	members     []Member // meaningful only while joined
}

// clear forgets the topic and members.
func (channel *Channel) clear() {
	channel.topic = ""
	channel.members = nil
}

// leave marks the channel parted; kicked records why.
func (channel *Channel) leave(kicked bool) {
	channel.clear()
	channel.joined = false
	channel.kicked = kicked
}

// Returns index in members, or -1
func (channel *Channel) indexOf(cm caseMapping, nick string) int {
	for i, member := range channel.members {
		if cm.Equal(member.Nick, nick) {
			return i
		}
	}
	return -1
}

// addMember adds member, or replaces the prefixes of an existing one.
func (channel *Channel) addMember(cm caseMapping, member Member) {
	if i := channel.indexOf(cm, member.Nick); i != -1 {
		channel.members[i] = member
		return
	}
	channel.members = append(channel.members, member)
}

func (channel *Channel) removeMember(cm caseMapping, nick string) bool {
	i := channel.indexOf(cm, nick)
	if i == -1 {
		return false
	}
	channel.members = append(channel.members[:i], channel.members[i+1:]...)
	return true
}

// renameMember keeps the rank prefixes across a NICK change.
func (channel *Channel) renameMember(cm caseMapping, oldNick, newNick string) bool {
	i := channel.indexOf(cm, oldNick)
	if i == -1 {
		return false
	}
	channel.members[i].Nick = newNick
	return true
}

// names lists members with their highest rank prefix.
func (channel *Channel) names() []string {
	names := make([]string, len(channel.members))
	for i, member := range channel.members {
		names[i] = member.String()
	}
	return names
}

type Member struct {
	Prefixes string // every rank held, highest first.
	Nick     string
}

func (member Member) String() string {
	if member.Prefixes != "" {
		return member.Prefixes[:1] + member.Nick // Use highest rank prefix.
	}
	return member.Nick
}

func insertPrefix(toPrefixes string, prefix byte, allPrefixesOrder string) string {
	prefixOrd := strings.IndexByte(allPrefixesOrder, prefix)
	if prefixOrd == -1 {
		return toPrefixes // Not a prefix.
	}
	for i := 0; i < len(toPrefixes); i++ {
		pOrd := strings.IndexByte(allPrefixesOrder, toPrefixes[i])
		if pOrd > prefixOrd {
			return toPrefixes[:i] + string(prefix) + toPrefixes[i:]
		}
		if prefixOrd == pOrd {
			return toPrefixes // Already there.
		}
	}
	return toPrefixes + string(prefix) // Lowest.
}

func removePrefix(fromPrefixes string, prefix byte) string {
	i := strings.IndexByte(fromPrefixes, prefix)
	if i == -1 {
		return fromPrefixes
	}
	return fromPrefixes[:i] + fromPrefixes[i+1:]
}

func (client *Client) channelKey(name string) string {
	return client.support.caseMapping().Lower(name)
}

// getChannel returns the channel entry, or nil.
func (client *Client) getChannel(name string) *Channel {
	key := client.channelKey(name)
	for _, channel := range client.channels {
		if channel.name == key {
			return channel
		}
	}
	return nil
}

// ensureChannel returns the channel entry, creating it if needed.
func (client *Client) ensureChannel(name string) *Channel {
	if channel := client.getChannel(name); channel != nil {
		return channel
	}
	channel := &Channel{name: client.channelKey(name), displayName: name}
	client.channels = append(client.channels, channel)
	return channel
}

func (client *Client) removeChannel(channel *Channel) bool {
	for i, c := range client.channels {
		if c == channel {
			client.channels = append(client.channels[:i], client.channels[i+1:]...)
			return true
		}
	}
	return false
}

// joinedChannels returns the display names of up to limit joined channels.
func (client *Client) joinedChannels(limit int) []string {
	var list []string
	for _, channel := range client.channels {
		if channel.joined && len(list) < limit {
			list = append(list, channel.displayName)
		}
	}
	return list
}
