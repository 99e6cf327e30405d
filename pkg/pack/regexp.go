package pack

import (
	"regexp"
	"strings"
)

// RegExpFlag is the flag bitmask stored with a regular expression entry.
type RegExpFlag uint8

const (
	FlagGlobal RegExpFlag = 1 << iota
	FlagIgnoreCase
	FlagMultiline
	FlagDotAll
	FlagUnicode
	FlagSticky
)

// RegExp is a regular expression as source text plus flags. Global,
// unicode and sticky are matching-mode hints with no Go regexp
// counterpart; they are carried through unchanged.
type RegExp struct {
	Source string
	Flags  RegExpFlag
}

func (f RegExpFlag) String() string {
	var sb strings.Builder

	for _, fl := range []struct {
		bit RegExpFlag
		c   byte
	}{
		{FlagGlobal, 'g'},
		{FlagIgnoreCase, 'i'},
		{FlagMultiline, 'm'},
		{FlagDotAll, 's'},
		{FlagUnicode, 'u'},
		{FlagSticky, 'y'},
	} {
		if f&fl.bit != 0 {
			sb.WriteByte(fl.c)
		}
	}

	return sb.String()
}

// ParseRegExpFlags converts a flag string such as "gim" into a bitmask.
// Unknown letters are ignored.
func ParseRegExpFlags(s string) RegExpFlag {
	var f RegExpFlag

	for _, c := range s {
		switch c {
		case 'g':
			f |= FlagGlobal
		case 'i':
			f |= FlagIgnoreCase
		case 'm':
			f |= FlagMultiline
		case 's':
			f |= FlagDotAll
		case 'u':
			f |= FlagUnicode
		case 'y':
			f |= FlagSticky
		}
	}

	return f
}

// Compile builds a Go regexp honoring the ignoreCase, multiline and dotAll
// flags.
func (r RegExp) Compile() (*regexp.Regexp, error) {
	var mods string

	if r.Flags&FlagIgnoreCase != 0 {
		mods += "i"
	}

	if r.Flags&FlagMultiline != 0 {
		mods += "m"
	}

	if r.Flags&FlagDotAll != 0 {
		mods += "s"
	}

	if mods == "" {
		return regexp.Compile(r.Source)
	}

	return regexp.Compile("(?" + mods + ")" + r.Source)
}
