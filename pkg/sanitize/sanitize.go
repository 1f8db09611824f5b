// Package sanitize neutralizes client-controlled strings before they are
// used as map keys, written to a terminal or embedded in log lines.
//
// Client identifiers taken from forwarding headers and request paths are
// attacker controlled. Rendering them raw in the dashboard would let a
// client inject ANSI escape sequences; using them raw as registry keys would
// let a client grow memory with arbitrarily long identifiers.
package sanitize

import "strings"

const (
	// DefaultMaxDisplayLength bounds strings rendered without an explicit limit.
	DefaultMaxDisplayLength = 256

	// MaxClientIDLength is the longest client identifier kept. The textual
	// form of an IPv6 address with zone fits comfortably.
	MaxClientIDLength = 64
)

// Terminal replaces control characters and escape sequences with visible
// placeholders. Tabs and newlines become spaces.
func Terminal(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		if isControl(s[i]) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == 0x1B:
			// Swallow a whole CSI sequence so "\x1b[31m" leaves one marker.
			if i+1 < len(s) && s[i+1] == '[' {
				i += 2
				for i < len(s) && !isCSITerminator(s[i]) {
					i++
				}
			}
			b.WriteString("[ESC]")
		case c == '\t', c == '\n':
			b.WriteByte(' ')
		case c == '\r':
			b.WriteString("[CR]")
		case c == 0x7F:
			b.WriteString("[DEL]")
		case c < 0x20:
			b.WriteString("[CTRL]")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isControl(c byte) bool {
	return c < 0x20 || c == 0x7F
}

func isCSITerminator(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '@' || c == '`'
}

// String applies Terminal and truncates the result to maxLen runes, marking
// the cut with "...". maxLen <= 0 uses DefaultMaxDisplayLength.
func String(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxDisplayLength
	}
	s = Terminal(s)

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// Identifier keeps only printable, non-space ASCII and truncates to
// maxLen bytes. The result is safe as a map key, a log field and terminal
// output.
func Identifier(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = MaxClientIDLength
	}
	var b strings.Builder
	for i := 0; i < len(s) && b.Len() < maxLen; i++ {
		if c := s[i]; c > 0x20 && c < 0x7F {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ClientID returns the display form of a client identifier.
func ClientID(id string) string {
	if id = Identifier(id, MaxClientIDLength); id == "" {
		return "unknown"
	}
	return id
}
