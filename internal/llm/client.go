package llm

import (
	"context"
	"fmt"
	log "log/slog"
	"net/http"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Client is a Completer backed by the OpenAI chat completions API.
type Client struct {
	api   openai.Client
	model string
}

func NewClient(opt Options) *Client {
	// Retries are done by the callers through Retry.
	opts := []option.RequestOption{option.WithAPIKey(opt.APIKey), option.WithMaxRetries(0)}
	if opt.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(opt.HTTPClient))
	}
	if opt.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(opt.BaseURL))
	}

	return &Client{
		api:   openai.NewClient(opts...),
		model: opt.Model,
	}
}

// WithModel returns a client sharing the connection but using another model.
func (c *Client) WithModel(model string) *Client {
	return &Client{api: c.api, model: model}
}

func (c *Client) Complete(ctx context.Context, msgs []Message, tools []Tool) (Reply, error) {
	params := openai.ChatCompletionNewParams{
		Messages: toParams(msgs),
		Model:    openai.ChatModel(c.model),
	}
	for _, t := range tools {
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  openai.FunctionParameters(t.Parameters),
		}))
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response: %w", ErrEmptyReply)
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		first := msg.ToolCalls[0]
		echo := msg.ToParam()
		call := ToolCall{
			ID:   first.ID,
			Name: first.Function.Name,
			Args: first.Function.Arguments,
			echo: &echo,
		}
		for _, tc := range msg.ToolCalls[1:] {
			call.extra = append(call.extra, tc.ID)
		}
		log.Debug("Tool call", "name", call.Name, "args", call.Args)
		return call, nil
	}

	if msg.Content == "" {
		return nil, ErrEmptyReply
	}
	return Text(msg.Content), nil
}

func toParams(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		if m.echo != nil {
			out = append(out, *m.echo)
			continue
		}
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// Ping checks that the API is reachable and the model exists.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.Models.Get(ctx, c.model); err != nil {
		return fmt.Errorf("get model %s: %w", c.model, err)
	}
	return nil
}
