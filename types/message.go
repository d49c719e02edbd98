package types

import "time"

// SpeakerType identifies who authored a message.
type SpeakerType string

const (
	SpeakerUser  SpeakerType = "user"
	SpeakerAgent SpeakerType = "agent"
)

// Message is one entry of the bounded recent-message window supplied by the host.
type Message struct {
	ID          string      `json:"id,omitempty"`
	SpeakerID   string      `json:"speaker_id"`
	SpeakerType SpeakerType `json:"speaker_type"`
	SpeakerName string      `json:"speaker_name,omitempty"`
	Content     string      `json:"content"`
	CreatedAt   time.Time   `json:"created_at"`
}

// IsAgent reports whether the message was written by an AI member.
func (m Message) IsAgent() bool {
	return m.SpeakerType == SpeakerAgent
}

// AgentMessages filters the window down to agent-authored messages, keeping order.
func AgentMessages(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsAgent() {
			out = append(out, m)
		}
	}
	return out
}

// Tail returns the last n messages of the window.
func Tail(msgs []Message, n int) []Message {
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
