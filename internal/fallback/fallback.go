// Package fallback answers free-form requests with the hosted model when no
// skill claims them.
package fallback

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"

	"jarvis/internal/llm"
	"jarvis/internal/skill"
)

const Apology = "I'm sorry, I'm having trouble reaching my brain right now. Please try again in a moment."

const (
	DefaultAttempts = 3
	DefaultMaxWords = 500
)

const systemPrompt = `You are Jarvis, a helpful voice assistant for %s.
Answer in a few short spoken sentences. No markdown, no lists, no code blocks.
%s`

// Tools is the part of the skill registry the model can call.
type Tools interface {
	Tools() []skill.ToolSpec
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}

type Options struct {
	Owner    string
	Attempts int
	MaxWords int
	// Style is appended to the system prompt, e.g. a personality hint.
	Style func() string
}

type Fallback struct {
	model llm.Completer
	tools Tools
	opt   Options
}

// New builds a Fallback. tools may be nil, in which case RespondWithTools
// behaves like Respond.
func New(model llm.Completer, tools Tools, opt Options) *Fallback {
	if opt.Attempts < 1 {
		opt.Attempts = DefaultAttempts
	}
	if opt.MaxWords <= 0 {
		opt.MaxWords = DefaultMaxWords
	}
	if opt.Owner == "" {
		opt.Owner = "Sir"
	}
	return &Fallback{model: model, tools: tools, opt: opt}
}

// Respond asks the model for a plain text answer. It never fails; exhausted
// retries yield Apology.
func (f *Fallback) Respond(ctx context.Context, text, convo string) string {
	msgs := f.prompt(text, convo)

	reply, err := f.complete(ctx, msgs, nil)
	if err != nil {
		log.Error("Fallback failed", "err", err)
		return Apology
	}

	switch r := reply.(type) {
	case llm.Text:
		return Shorten(string(r), f.opt.MaxWords)
	default:
		log.Warn("Unexpected tool call without tools", "reply", fmt.Sprintf("%T", r))
		return Apology
	}
}

// RespondWithTools lets the model call one registry tool. The tool result is
// fed back and the model's next text is returned. A second tool call is not
// executed.
func (f *Fallback) RespondWithTools(ctx context.Context, text, convo string) string {
	if f.tools == nil {
		return f.Respond(ctx, text, convo)
	}

	specs := f.tools.Tools()
	if len(specs) == 0 {
		return f.Respond(ctx, text, convo)
	}
	tools := make([]llm.Tool, 0, len(specs))
	for _, s := range specs {
		tools = append(tools, llm.Tool{Name: s.Name, Description: s.Description, Parameters: s.Parameters})
	}

	msgs := f.prompt(text, convo)
	reply, err := f.complete(ctx, msgs, tools)
	if err != nil {
		log.Error("Fallback failed", "err", err)
		return Apology
	}

	var call llm.ToolCall
	switch r := reply.(type) {
	case llm.Text:
		return Shorten(string(r), f.opt.MaxWords)
	case llm.ToolCall:
		call = r
	}

	result, err := f.tools.Invoke(ctx, call.Name, call.Params())
	if err != nil {
		log.Warn("Tool call failed", "tool", call.Name, "err", err)
		result = "Error: " + err.Error()
	}
	log.Info("Tool called", "tool", call.Name, "result", result)

	msgs = append(msgs, call.Answer(result)...)
	reply, err = f.complete(ctx, msgs, nil)
	if err != nil {
		log.Error("Fallback follow-up failed", "err", err)
		return Shorten(result, f.opt.MaxWords)
	}

	switch r := reply.(type) {
	case llm.Text:
		return Shorten(string(r), f.opt.MaxWords)
	default:
		// one round only; the first tool's result is the answer
		return Shorten(result, f.opt.MaxWords)
	}
}

func (f *Fallback) prompt(text, convo string) []llm.Message {
	style := ""
	if f.opt.Style != nil {
		style = f.opt.Style()
	}

	msgs := []llm.Message{llm.System(strings.TrimSpace(fmt.Sprintf(systemPrompt, f.opt.Owner, style)))}
	if convo != "" {
		msgs = append(msgs, llm.System("Conversation so far:\n"+convo))
	}
	return append(msgs, llm.User(text))
}

func (f *Fallback) complete(ctx context.Context, msgs []llm.Message, tools []llm.Tool) (llm.Reply, error) {
	var reply llm.Reply
	err := llm.Retry(ctx, f.opt.Attempts, func() error {
		r, err := f.model.Complete(ctx, msgs, tools)
		if err != nil {
			return err
		}
		if t, ok := r.(llm.Text); ok && strings.TrimSpace(string(t)) == "" {
			return llm.ErrEmptyReply
		}
		reply = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, errors.New("no reply")
	}
	return reply, nil
}

// Shorten cuts s to at most max words, marking the cut with "...".
func Shorten(s string, max int) string {
	s = strings.TrimSpace(s)
	words := strings.Fields(s)
	if max <= 0 || len(words) <= max {
		return s
	}
	return strings.Join(words[:max], " ") + "..."
}
