// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package message

import "strings"

// MaxTextLen is the maximum length in bytes of the text of an outbound chat
// message. Longer text is truncated by [Privmsg].
const MaxTextLen = 500

// Capability is the capability requested after login. It enables the server
// to deliver reconnect notices.
const Capability = "twitch.tv/commands"

// Pass returns the line that presents the authentication token.
func Pass(token string) string { return "PASS " + token }

// Nick returns the line that presents the login name.
func Nick(user string) string { return "NICK " + user }

// CapReq returns the line that requests a capability.
func CapReq(capability string) string { return "CAP REQ :" + capability }

// Join returns the line that joins channel, e.g. "#name".
func Join(channel string) string { return "JOIN " + channel }

// Pong returns the reply to a ping carrying token.
func Pong(token string) string { return "PONG " + token }

// Privmsg returns the line that sends text to channel. Line breaks in text are
// replaced by spaces, and text longer than MaxTextLen is truncated.
func Privmsg(channel, text string) string {
	text = strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, text)
	return "PRIVMSG " + channel + " :" + truncate(text, MaxTextLen)
}

// truncate returns a prefix of a UTF-8 string s, having length no greater than
// n bytes.  If s exceeds this length, it is truncated at a point ≤ n so that
// the result does not end in a partial UTF-8 encoding.
func truncate(s string, n int) string {
	if n >= len(s) {
		return s
	}

	// Back up until we find the beginning of a UTF-8 encoding.
	for n > 0 && s[n-1]&0xc0 == 0x80 { // 0x10... is a continuation byte
		n--
	}

	// If we're at the beginning of a multi-byte encoding, back up one more to
	// skip it. It's possible the value was already complete, but it's simpler
	// if we only have to check in one direction.
	//
	// Otherwise, we have a single-byte code (0x00... or 0x01...).
	if n > 0 && s[n-1]&0xc0 == 0xc0 { // 0x11... starts a multibyte encoding
		n--
	}
	return s[:n]
}
