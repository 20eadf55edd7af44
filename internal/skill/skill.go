// Package skill holds the capability registry. Skills are registered once at
// startup and dispatched in registration order.
package skill

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"

	"jarvis/internal/intent"
)

const Apology = "I'm sorry, something went wrong while doing that."

var ErrUnknownTool = errors.New("unknown tool")

type Skill interface {
	Name() string
	CanHandle(tag intent.Tag, params intent.Params) bool
	Handle(ctx context.Context, tag intent.Tag, params intent.Params) (string, error)
}

// ToolSpec exposes part of a skill to the model as a callable function.
// Calls are routed back through Handle with Tag and the decoded arguments.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
	Tag         intent.Tag
}

// Tooled is implemented by skills that the model may call directly.
type Tooled interface {
	Tools() []ToolSpec
}

type entry struct {
	skill Skill
	tool  ToolSpec
}

type Registry struct {
	mu     sync.RWMutex
	skills []Skill
	tools  map[string]entry
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]entry{}}
}

func (r *Registry) Register(s Skill) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.skills = append(r.skills, s)

	t, ok := s.(Tooled)
	if !ok {
		return
	}
	for _, spec := range t.Tools() {
		if _, dup := r.tools[spec.Name]; dup {
			log.Warn("Duplicate tool ignored", "tool", spec.Name, "skill", s.Name())
			continue
		}
		r.tools[spec.Name] = entry{skill: s, tool: spec}
		r.order = append(r.order, spec.Name)
	}
}

// Dispatch runs the first skill that accepts the intent. handled is false
// when no skill matches; the caller falls back to conversation. A handler
// error or panic is logged and answered with Apology.
func (r *Registry) Dispatch(ctx context.Context, in intent.Intent, raw string) (reply string, handled bool) {
	s := r.find(in.Tag, in.Params)
	if s == nil {
		return "", false
	}

	log.Debug("Dispatching", "skill", s.Name(), "intent", in.Tag, "text", raw)
	return r.run(ctx, s, in.Tag, in.Params), true
}

// Invoke runs a tool by name on behalf of the model.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	return r.run(ctx, e.skill, e.tool.Tag, intent.Params(args)), nil
}

func (r *Registry) Tools() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].tool)
	}
	return out
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s.Name())
	}
	return out
}

func (r *Registry) find(tag intent.Tag, params intent.Params) Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.skills {
		if s.CanHandle(tag, params) {
			return s
		}
	}
	return nil
}

func (r *Registry) run(ctx context.Context, s Skill, tag intent.Tag, params intent.Params) (reply string) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("Skill panicked", "skill", s.Name(), "intent", tag, "panic", p)
			reply = Apology
		}
	}()

	if params == nil {
		params = intent.Params{}
	}

	out, err := s.Handle(ctx, tag, params)
	if err != nil {
		log.Error("Skill failed", "skill", s.Name(), "intent", tag, "err", err)
		return Apology
	}
	return out
}
