package anthropic

import (
	"encoding/base64"
	"strings"

	"github.com/aretw0/tabula/pkg/domain"
)

type request struct {
	Model       string         `json:"model"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature float64        `json:"temperature"`
	System      string         `json:"system,omitempty"`
	Tools       []tool         `json:"tools,omitempty"`
	ToolChoice  *toolChoice    `json:"tool_choice,omitempty"`
	Messages    []wireMessage  `json:"messages"`
}

type tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type toolChoice struct {
	Type                   string `json:"type"`
	DisableParallelToolUse bool   `json:"disable_parallel_tool_use,omitempty"`
}

type wireMessage struct {
	Role    string        `json:"role"`
	Content []wireContent `json:"content"`
}

type wireContent struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     any            `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   []wireContent  `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
	Source    *imageSource   `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type response struct {
	ID         string        `json:"id"`
	Content    []wireContent `json:"content"`
	StopReason string        `json:"stop_reason"`
}

type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func toTools(tools []domain.Tool) []tool {
	out := make([]tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, tool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
	}
	return out
}

// toMessages translates the transcript. Tool results travel as user messages and
// consecutive user turns are merged, since the API requires alternating roles.
func toMessages(tr *domain.Transcript) []wireMessage {
	var out []wireMessage
	for _, m := range tr.Messages() {
		var wm wireMessage
		switch m.Role {
		case domain.RoleDecisionMaker:
			wm = wireMessage{Role: "assistant", Content: contentOf(m.Blocks)}
		case domain.RoleToolResult:
			wm = wireMessage{Role: "user", Content: []wireContent{{
				Type:      "tool_result",
				ToolUseID: m.CallID,
				Content:   contentOf(m.Blocks),
				IsError:   m.IsError,
			}}}
		default:
			wm = wireMessage{Role: "user", Content: contentOf(m.Blocks)}
		}
		if len(wm.Content) == 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == wm.Role {
			out[n-1].Content = append(out[n-1].Content, wm.Content...)
			continue
		}
		out = append(out, wm)
	}
	return out
}

func contentOf(blocks []domain.Block) []wireContent {
	out := make([]wireContent, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case domain.BlockText:
			if strings.TrimSpace(b.Text) == "" {
				continue
			}
			out = append(out, wireContent{Type: "text", Text: b.Text})
		case domain.BlockImage:
			out = append(out, wireContent{Type: "image", Source: &imageSource{
				Type:      "base64",
				MediaType: b.MediaType,
				Data:      base64.StdEncoding.EncodeToString(b.Data),
			}})
		case domain.BlockToolUse:
			input := b.Call.Input
			if input == nil {
				input = map[string]any{}
			}
			out = append(out, wireContent{Type: "tool_use", ID: b.Call.ID, Name: b.Call.Name, Input: input})
		}
	}
	return out
}

// toDecision keeps the first tool_use block; parallel calls are disabled in the request.
func toDecision(resp response) domain.Decision {
	var d domain.Decision
	var texts []string
	for _, c := range resp.Content {
		switch c.Type {
		case "text":
			texts = append(texts, c.Text)
		case "tool_use":
			if d.Call == nil {
				input, _ := c.Input.(map[string]any)
				if input == nil {
					input = map[string]any{}
				}
				d.Call = &domain.Call{ID: c.ID, Name: c.Name, Input: input}
			}
		}
	}
	d.Narration = strings.Join(texts, "\n")
	return d
}
