package reminder

import (
	"strconv"
	"strings"
)

const identityPrefix = "reminder:"

// Identity names one scheduled daily job.
type Identity string

func (id Identity) String() string { return string(id) }

// NormalizeMessage trims the message and collapses inner whitespace runs to
// single spaces.
func NormalizeMessage(msg string) string {
	return strings.Join(strings.Fields(msg), " ")
}

// IdentityOf composes the job identity of a reminder. hhmm is canonicalised
// when it parses; otherwise it is used trimmed as is.
func IdentityOf(recipient int64, hhmm, message string) Identity {
	at := strings.TrimSpace(hhmm)
	if c, err := ParseClock(at); err == nil {
		at = c.String()
	}
	var b strings.Builder
	b.Grow(len(identityPrefix) + 24 + len(message))
	b.WriteString(identityPrefix)
	b.WriteString(strconv.FormatInt(recipient, 10))
	b.WriteByte(':')
	b.WriteString(at)
	b.WriteByte(':')
	b.WriteString(messageToken(message))
	return Identity(b.String())
}

func messageToken(msg string) string {
	msg = NormalizeMessage(msg)
	var b strings.Builder
	b.Grow(len(msg))
	for _, r := range msg {
		switch r {
		case ' ':
			b.WriteByte('_')
		case '%':
			b.WriteString("%25")
		case '_':
			b.WriteString("%5F")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
