// Package conversation maintains the ordered message history for a session.
package conversation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bylawhq/bylaw/pkg/llm"
)

// ErrNoUserMessage is returned by OverwriteLastUser when the log holds no
// user message yet. This indicates a sequencing defect in the caller, not a
// recoverable condition.
var ErrNoUserMessage = errors.New("conversation has no user message")

// Log is an ordered message history. It always begins with exactly one
// system message, seeded at construction.
//
// Log is not safe for concurrent use: a session processes one turn at a
// time and guards its log with the session's own lock.
type Log struct {
	messages []llm.Message

	// Index of the most recent user message, -1 when none. Tracked at
	// append time so OverwriteLastUser is O(1) even when roles repeat.
	lastUser int
}

// NewLog creates a log seeded with the given system prompt.
func NewLog(systemPrompt string) *Log {
	return &Log{
		messages: []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}},
		lastUser: -1,
	}
}

// Append adds a message to the end of the log.
func (l *Log) Append(msg llm.Message) error {
	if !llm.ValidRole(msg.Role) {
		return fmt.Errorf("invalid role %q", msg.Role)
	}

	l.messages = append(l.messages, msg)
	if msg.Role == llm.RoleUser {
		l.lastUser = len(l.messages) - 1
	}
	return nil
}

// Snapshot returns a copy of the full history, system message included.
// Mutating the returned slice does not affect the log.
func (l *Log) Snapshot() []llm.Message {
	out := make([]llm.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of messages, counting the system message.
func (l *Log) Len() int {
	return len(l.messages)
}

// OverwriteLastUser replaces the content of the most recently appended user
// message in place. Message count and ordering never change. Returns
// ErrNoUserMessage if no user message has been appended yet.
func (l *Log) OverwriteLastUser(content string) error {
	if l.lastUser < 0 {
		return ErrNoUserMessage
	}

	l.messages[l.lastUser].Content = content
	return nil
}

// RemoveLast drops the most recent message. Used to roll back the user
// message appended at the start of a turn that aborts before completing.
// Removing from an empty log (only the system message left) is a no-op.
func (l *Log) RemoveLast() {
	if len(l.messages) <= 1 {
		return
	}

	removed := l.messages[len(l.messages)-1]
	l.messages = l.messages[:len(l.messages)-1]

	if removed.Role == llm.RoleUser {
		// Rollback is the rare path; a rescan here keeps the common
		// path (overwrite) index-tracked.
		l.lastUser = -1
		for i := len(l.messages) - 1; i >= 0; i-- {
			if l.messages[i].Role == llm.RoleUser {
				l.lastUser = i
				break
			}
		}
	}
}

// Render flattens messages into a single prompt text, one "role: content"
// line per message. All token counting of conversations and prompts goes
// through this rendering so counts stay consistent across components.
func Render(messages []llm.Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}
