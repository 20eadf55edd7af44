package skills

import (
	"context"
	"errors"
	"strings"

	"jarvis/internal/intent"
	"jarvis/internal/skill"
	"jarvis/pkg/protocol"
)

// Requester sends one device frame and waits for the answer;
// *protocol.Protocol implements it.
type Requester interface {
	Request(ctx context.Context, m protocol.Message) (*protocol.Message, error)
}

var _ Requester = (*protocol.Protocol)(nil)

// Home switches devices through the smart home hub. Device names map to
// frame nouns: "the lamp" -> LAMP.
type Home struct {
	hub  Requester
	node string
}

func NewHome(hub Requester, node string) *Home {
	if node == "" {
		node = "HOME"
	}
	return &Home{hub: hub, node: strings.ToUpper(node)}
}

func (*Home) Name() string { return "home" }

func (*Home) CanHandle(tag intent.Tag, _ intent.Params) bool { return tag == intent.SmartHome }

func (h *Home) Handle(ctx context.Context, _ intent.Tag, params intent.Params) (string, error) {
	if h.hub == nil {
		return "Smart home control is not configured.", nil
	}

	device := strings.ToLower(params.String("device"))
	if device == "" {
		return "Which device do you mean?", nil
	}
	noun := strings.ToUpper(strings.ReplaceAll(device, " ", "_"))

	state := strings.ToLower(params.String("state"))
	verb := "STATUS"
	switch state {
	case "on", "off":
		verb = strings.ToUpper(state)
	case "":
	default:
		return "I can only turn the " + device + " on or off.", nil
	}

	reply, err := h.hub.Request(ctx, protocol.Message{To: h.node, Verb: verb, Noun: noun})
	if errors.Is(err, protocol.ErrTimeout) {
		return "The " + device + " did not respond.", nil
	}
	if err != nil {
		return "", err
	}
	if reply.IsError() {
		return "The hub reported a problem with the " + device + ".", nil
	}

	if verb == "STATUS" {
		if len(reply.Args) == 0 {
			return "The " + device + " is " + strings.ToLower(reply.Verb) + ".", nil
		}
		return "The " + device + " is " + strings.ToLower(strings.Join(reply.Args, " ")) + ".", nil
	}
	return "Turning the " + device + " " + state + ".", nil
}

func (*Home) Tools() []skill.ToolSpec {
	return []skill.ToolSpec{{
		Name:        "control_device",
		Description: "Turn a smart home device on or off, or ask for its state.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"device": map[string]any{"type": "string", "description": "lamp, lights, fan or heater"},
				"state":  map[string]any{"type": "string", "enum": []string{"on", "off"}},
			},
			"required": []string{"device"},
		},
		Tag: intent.SmartHome,
	}}
}
