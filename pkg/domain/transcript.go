package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleRequester     Role = "user"
	RoleDecisionMaker Role = "assistant"
	RoleToolResult    Role = "tool"
)

// BlockType is the kind of a content block.
type BlockType string

const (
	BlockText    BlockType = "text"
	BlockImage   BlockType = "image"
	BlockToolUse BlockType = "tool_use"
)

// Block is one piece of message content. Image data is base64 encoded in JSON.
type Block struct {
	Type      BlockType `json:"type"`
	Text      string    `json:"text,omitempty"`
	MediaType string    `json:"media_type,omitempty"`
	Data      []byte    `json:"data,omitempty"`
	Call      *Call     `json:"call,omitempty"`
}

// TextBlock returns a text block.
func TextBlock(text string) Block { return Block{Type: BlockText, Text: text} }

// ImageBlock returns an image block.
func ImageBlock(mediaType string, data []byte) Block {
	return Block{Type: BlockImage, MediaType: mediaType, Data: data}
}

// ToolUseBlock records the call the decision-maker made.
func ToolUseBlock(call *Call) Block { return Block{Type: BlockToolUse, Call: call} }

// Message is an entry of the transcript.
type Message struct {
	Role   Role    `json:"role"`
	Blocks []Block `json:"blocks"`
	// CallID links a tool-result message to the call it answers.
	CallID  string `json:"call_id,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

// Text concatenates the message's text blocks.
func (m Message) Text() string {
	var parts []string
	for _, b := range m.Blocks {
		if b.Type == BlockText {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Transcript is the append-only record of a session.
type Transcript struct {
	messages []Message
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript { return &Transcript{} }

// Append adds a message at the end.
func (t *Transcript) Append(m Message) {
	t.messages = append(t.messages, m)
}

// Len returns the number of messages.
func (t *Transcript) Len() int { return len(t.messages) }

// Messages returns a copy of the messages in order.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Last returns the most recent message.
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// Clone returns an independent copy.
func (t *Transcript) Clone() *Transcript {
	out := &Transcript{messages: make([]Message, len(t.messages))}
	for i, m := range t.messages {
		m.Blocks = append([]Block(nil), m.Blocks...)
		out.messages[i] = m
	}
	return out
}

// Render writes the transcript as plain text, one section per message. Images are
// summarized by size so the output is stable for diffing.
func (t *Transcript) Render() string {
	var b strings.Builder
	for i, m := range t.messages {
		fmt.Fprintf(&b, "--- %d %s", i, m.Role)
		if m.CallID != "" {
			b.WriteString(" (result)")
		}
		if m.IsError {
			b.WriteString(" [error]")
		}
		b.WriteString("\n")
		for _, blk := range m.Blocks {
			switch blk.Type {
			case BlockText:
				b.WriteString(blk.Text)
			case BlockImage:
				fmt.Fprintf(&b, "<image %s>", blk.MediaType)
			case BlockToolUse:
				fmt.Fprintf(&b, "<call %s %s>", blk.Call.Name, formatKwargs(blk.Call.Input))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// MarshalJSON encodes the messages as a JSON array.
func (t *Transcript) MarshalJSON() ([]byte, error) {
	msgs := t.messages
	if msgs == nil {
		msgs = []Message{}
	}
	return json.Marshal(msgs)
}

// UnmarshalJSON restores the messages.
func (t *Transcript) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &t.messages)
}
