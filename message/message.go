// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package message classifies inbound chat protocol lines and constructs the
// outbound lines a bot sends.
//
// The protocol is the subset of IRC spoken by Twitch chat servers. A [Parser]
// assigns each raw line exactly one [Kind], checking the kinds in a fixed
// priority order:
//
//	Ping → Reconnect → CapAck → Chat → Ignore → EndOfMOTD → AuthFailed → Unknown
//
// The first match wins. A chat line must match the full message shape,
// including the sender's identity token; lines that almost match are
// classified as Unknown.
package message

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultHost is the chat host domain used when none is specified.
const DefaultHost = "tmi.twitch.tv"

// A Kind identifies the class of an inbound line.
type Kind byte

const (
	KindUnknown    Kind = iota // unrecognized; logged, never dispatched
	KindPing                   // server keepalive; reply with a pong
	KindReconnect              // server asks the client to reconnect
	KindCapAck                 // a requested capability was acknowledged
	KindChat                   // a chat message in a channel
	KindIgnore                 // membership or state notices
	KindEndOfMOTD              // end of the message of the day (logged in)
	KindAuthFailed             // the server rejected the credentials
)

var kindNames = [...]string{
	KindUnknown:    "unknown",
	KindPing:       "ping",
	KindReconnect:  "reconnect",
	KindCapAck:     "cap-ack",
	KindChat:       "chat",
	KindIgnore:     "ignore",
	KindEndOfMOTD:  "end-of-motd",
	KindAuthFailed: "auth-failed",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind:%d", byte(k))
}

// A Message is the classification of one inbound line.
type Message struct {
	Kind  Kind
	User  string // KindChat: the sender's login name
	Text  string // KindChat: the message text; KindAuthFailed: the reason
	Token string // KindPing: the payload to echo in the pong
	Raw   string // the complete line as received
}

// IsCommand reports whether m is a chat message that invokes a command,
// that is, whose text begins with [CommandPrefix].
func (m Message) IsCommand() bool {
	return m.Kind == KindChat && strings.HasPrefix(m.Text, CommandPrefix)
}

// CommandPrefix marks a chat message as a bot command.
const CommandPrefix = "!"

// A Parser classifies lines received from a chat server. A Parser is safe for
// concurrent use by multiple goroutines.
type Parser struct {
	host string
	chat *regexp.Regexp
}

// NewParser constructs a parser for a chat server whose user hosts are
// subdomains of host, e.g. "tmi.twitch.tv". If host == "", DefaultHost is
// used.
func NewParser(host string) *Parser {
	if host == "" {
		host = DefaultHost
	}
	return &Parser{
		host: host,
		chat: regexp.MustCompile(`^:([a-zA-Z0-9_]+)![a-zA-Z0-9_]+@[a-zA-Z0-9_]+\.` +
			regexp.QuoteMeta(host) + ` PRIVMSG #[a-zA-Z0-9_]+ :(.+)$`),
	}
}

// Host reports the chat host domain of p.
func (p *Parser) Host() string { return p.host }

// Classify assigns line to exactly one kind.
func (p *Parser) Classify(line string) Message {
	m := Message{Raw: line}
	if tok, ok := strings.CutPrefix(line, "PING"); ok {
		m.Kind = KindPing
		m.Token = strings.TrimSpace(tok)
		return m
	}

	cmd, params := split(line)
	switch {
	case cmd == "RECONNECT":
		m.Kind = KindReconnect
	case cmd == "CAP" && len(params) > 1 && params[1] == "ACK":
		m.Kind = KindCapAck
	default:
		if sub := p.chat.FindStringSubmatch(line); sub != nil {
			m.Kind = KindChat
			m.User = strings.ToLower(sub[1])
			m.Text = sub[2]
			return m
		}
		switch cmd {
		case "353", "366", "ROOMSTATE", "USERSTATE", "JOIN", "PART":
			m.Kind = KindIgnore
		case "376":
			m.Kind = KindEndOfMOTD
		case "NOTICE":
			if len(params) > 0 && params[0] == "*" {
				m.Kind = KindAuthFailed
				m.Text = trailing(line)
			}
		}
	}
	return m
}

// split separates the command word and middle parameters of line, skipping
// any message tags and source prefix. The trailing parameter is omitted.
func split(line string) (cmd string, params []string) {
	rest := line
	if strings.HasPrefix(rest, "@") {
		_, rest, _ = strings.Cut(rest, " ")
	}
	if strings.HasPrefix(rest, ":") {
		_, rest, _ = strings.Cut(rest, " ")
	}
	rest, _, _ = strings.Cut(rest, " :")
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

// trailing returns the trailing parameter of line, or "".
func trailing(line string) string {
	if strings.HasPrefix(line, ":") {
		_, line, _ = strings.Cut(line, " ")
	}
	_, text, _ := strings.Cut(line, " :")
	return text
}
