package irc

import (
	"strings"
	"testing"
)

func TestDecodeLine(t *testing.T) {
	for i, x := range encIRCTest {
		got, ok := decodeLine([]byte(x.input))
		if ok != x.ok || got != x.expect {
			t.Errorf("[%d] expected (%q, %v) got (%q, %v)", i, x.expect, x.ok, got, ok)
		}
	}
}

func TestLatin1(t *testing.T) {
	if got := latin1([]byte("\xCA\xF1\xE7 :\xDE")); got != "Êñç :Þ" {
		t.Errorf("got %q", got)
	}
}

var encIRCLong1 = strings.Repeat(".", 350)
var encIRCLong2 = strings.Repeat("\xC2\xB7", 175)

var encIRCTest = []struct {
	input, expect string
	ok            bool
}{
	{"", "", true},
	{"foo bar", "foo bar", true},
	{"\xE2\x98\x83", "☃", true},
	{"\xC2\xB7", "·", true},
	{"\xCA\xF1\xE7 :\xDE", "", false}, // latin1 is refused
	{"Êñç :Þ", "Êñç :Þ", true},
	{"short \xE2\x98", "", false},
	{encIRCLong1, encIRCLong1, true},
	{encIRCLong1 + "foo bar", encIRCLong1 + "foo bar", true},
	{encIRCLong1 + "Êñç :Þ", encIRCLong1 + "Êñç :Þ", true},
	{encIRCLong1 + "\xE2\x98", "", false}, // last seq truncated
	{encIRCLong1 + "\xCA\xF1 x\xE2\x98", "", false},
	{encIRCLong2, encIRCLong2, true},
	{encIRCLong2 + "foo bar", encIRCLong2 + "foo bar", true},
	{encIRCLong2 + "\xE2\x98", "", false}, // last seq truncated
}
