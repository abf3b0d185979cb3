package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsertPrefix(t *testing.T) {
	allPrefixesOrder := "@%+"
	list := [][2]string{
		{"x", ""},
		{"%", "%"},
		{"%", "%"},
		{"@", "@%"},
		{"x", "@%"},
		{"+", "@%+"},
		{"+", "@%+"},
		{"%", "@%+"},
		{"@", "@%+"},
		{"x", "@%+"},
	}
	toPrefixes := ""
	for i, x := range list {
		expect := x[1]
		toPrefixes = insertPrefix(toPrefixes, x[0][0], allPrefixesOrder)
		if toPrefixes != expect {
			t.Errorf("[%d] expected '%s' got '%s'", i, expect, toPrefixes)
		}
	}
	for i, x := range [][3]string{
		{"@%+", "%", "@+"},
		{"@+", "@", "+"},
		{"+", "@", "+"},
		{"+", "+", ""},
	} {
		if got := removePrefix(x[0], x[1][0]); got != x[2] {
			t.Errorf("[%d] expected '%s' got '%s'", i, x[2], got)
		}
	}
}

func TestChannelMembers(t *testing.T) {
	cm := caseRFC1459
	channel := &Channel{name: "#go", displayName: "#Go", joined: true}
	channel.addMember(cm, Member{Prefixes: "@+", Nick: "Alice"})
	channel.addMember(cm, Member{Nick: "bob[m]"})
	channel.addMember(cm, Member{Prefixes: "+", Nick: "alice"})
	assert.Equal(t, []string{"+alice", "bob[m]"}, channel.names())

	assert.True(t, channel.renameMember(cm, "BOB{M}", "robert"))
	assert.Equal(t, []string{"+alice", "robert"}, channel.names())
	assert.False(t, channel.removeMember(cm, "bob[m]"))
	assert.True(t, channel.removeMember(cm, "ALICE"))
	assert.Equal(t, []string{"robert"}, channel.names())

	channel.topic = "hello"
	channel.leave(true)
	assert.False(t, channel.joined)
	assert.True(t, channel.kicked)
	assert.Empty(t, channel.topic)
	assert.Empty(t, channel.names())
}
