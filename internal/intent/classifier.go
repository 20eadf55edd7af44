package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"jarvis/internal/llm"
	"jarvis/pkg/util"
)

const classifierPrompt = `
You are the intent classifier of the Jarvis voice assistant.
Your ONLY job is to convert the user's utterance into a minimal JSON object.

RULES:
1. Do NOT converse.
2. Do NOT answer the question.
3. Output ONLY JSON. No markdown.
4. Never invent parameters the user did not say.

OUTPUT FORMAT:
{"intent": "<one of the allowed intents>", "confidence": <0.0-1.0>, "parameters": { ... }}

ALLOWED INTENTS:
%s

PARAMETERS BY INTENT:
- open_app: {"app": "<name>"}
- volume: {"action": "mute|unmute|increase|decrease|set", "level": <int>, "step": <int>}
- weather: {"location": "<place>"}
- learn_preference: {"key": "<what>", "value": "<value>"}
- recall_preference: {"key": "<what>"}
- note: {"action": "add|list", "content": "<text>"}
- goal: {"action": "add|list|done", "text": "<goal>", "id": <int>}
- reminder: {"task": "<text>", "seconds": <int>}
- smart_home: {"device": "<name>", "state": "on|off"}
- personality: {"mode": "normal|boss|fun|savage"}

If nothing fits, use "ai_response".

EXAMPLE:
User: turn the volume up by 10
{"intent": "volume", "confidence": 0.9, "parameters": {"action": "increase", "step": 10}}
`

const replySchema = `{
  "type": "object",
  "required": ["intent"],
  "properties": {
    "intent": {"type": "string"},
    "confidence": {"type": "number"},
    "parameters": {"type": ["object", "null"]}
  }
}`

// contextLimit bounds how much conversation is sent with a classification
// request.
const contextLimit = 600

var errNotJSON = errors.New("classifier reply is not a JSON object")

// LLMResolver classifies with one bounded model call and falls back to the
// keyword rules on any failure.
type LLMResolver struct {
	model    llm.Completer
	fallback Resolver
	timeout  time.Duration
	schema   *gojsonschema.Schema
	prompt   string
}

func NewLLMResolver(model llm.Completer, fallback Resolver, timeout time.Duration) (*LLMResolver, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(replySchema))
	if err != nil {
		return nil, fmt.Errorf("compile reply schema: %w", err)
	}
	if fallback == nil {
		fallback = NewKeywordResolver(nil)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	names := make([]string, 0, len(Tags))
	for _, t := range Tags {
		names = append(names, "- "+string(t))
	}

	return &LLMResolver{
		model:    model,
		fallback: fallback,
		timeout:  timeout,
		schema:   schema,
		prompt:   fmt.Sprintf(classifierPrompt, strings.Join(names, "\n")),
	}, nil
}

func (r *LLMResolver) Resolve(ctx context.Context, text, convo string) Intent {
	in, err := r.classify(ctx, text, convo)
	if err != nil {
		log.Warn("Classifier failed, using keywords", "err", err)
		return r.fallback.Resolve(ctx, text, convo)
	}
	return in
}

func (r *LLMResolver) classify(ctx context.Context, text, convo string) (Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	user := "User input: " + text
	if convo = tail(convo, contextLimit); convo != "" {
		user = "Context:\n" + convo + "\n\n" + user
	}

	reply, err := r.model.Complete(ctx, []llm.Message{llm.System(r.prompt), llm.User(user)}, nil)
	if err != nil {
		return Intent{}, err
	}
	content, ok := reply.(llm.Text)
	if !ok {
		return Intent{}, errNotJSON
	}

	return r.parse(string(content), text)
}

func (r *LLMResolver) parse(content, text string) (Intent, error) {
	raw := stripFences(content)
	log.Debug("Classified", "data", raw)

	res, err := r.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return Intent{}, fmt.Errorf("%w: %v", errNotJSON, err)
	}
	if !res.Valid() {
		return Intent{}, fmt.Errorf("classifier reply invalid: %v", res.Errors())
	}

	var out struct {
		Intent     string         `json:"intent"`
		Confidence *float64       `json:"confidence"`
		Parameters map[string]any `json:"parameters"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Intent{}, fmt.Errorf("unmarshal classifier reply: %w", err)
	}

	tag := Tag(strings.ToLower(strings.TrimSpace(out.Intent)))
	if !tag.Valid() {
		tag = AIResponse
	}

	conf := 0.7
	if out.Confidence != nil {
		conf = util.Clamp(*out.Confidence, 0, 1)
	}

	// Rule extraction fills in what the model left out.
	params := Extract(tag, text)
	for k, v := range out.Parameters {
		if v != nil {
			params[k] = v
		}
	}

	return Intent{Tag: tag, Confidence: conf, Params: params}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
