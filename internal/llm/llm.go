// Package llm talks to the hosted chat model. Completions come back as a
// Reply, which is either Text or a ToolCall.
package llm

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go/v3"
	"github.com/tidwall/gjson"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

var ErrEmptyReply = errors.New("empty completion")

type Message struct {
	Role       Role
	Content    string
	ToolCallID string

	// echo replays the provider's own assistant message, tool calls included.
	echo *openai.ChatCompletionMessageParamUnion
}

func System(content string) Message { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message   { return Message{Role: RoleUser, Content: content} }

// Tool describes a function the model may call. Parameters is a JSON schema
// object.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Reply is Text or ToolCall.
type Reply interface {
	reply()
}

type Text string

func (Text) reply() {}

type ToolCall struct {
	ID   string
	Name string
	Args string // raw JSON arguments

	// extra holds ids of further calls in the same reply; they are answered
	// without being executed.
	extra []string
	echo  *openai.ChatCompletionMessageParamUnion
}

func (ToolCall) reply() {}

// Params decodes the call arguments into a map. Invalid or non-object JSON
// yields an empty map.
func (c ToolCall) Params() map[string]any {
	if !gjson.Valid(c.Args) {
		return map[string]any{}
	}
	m, ok := gjson.Parse(c.Args).Value().(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

// Answer returns the messages that must follow the request to report the
// call's result: the assistant turn carrying the call and one tool message
// per call id.
func (c ToolCall) Answer(result string) []Message {
	out := make([]Message, 0, 2+len(c.extra))
	out = append(out, Message{Role: RoleAssistant, echo: c.echo})
	out = append(out, Message{Role: RoleTool, Content: result, ToolCallID: c.ID})
	for _, id := range c.extra {
		out = append(out, Message{Role: RoleTool, Content: "Not executed: one tool call per turn.", ToolCallID: id})
	}
	return out
}

// Completer produces one reply for a conversation. tools may be nil.
type Completer interface {
	Complete(ctx context.Context, msgs []Message, tools []Tool) (Reply, error)
}
