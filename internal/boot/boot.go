// Package boot wires the assistant core shared by the daemon and the shard:
// LLM client, memory, skills, resolver and fallback.
package boot

import (
	"context"
	"fmt"
	log "log/slog"
	"net/http"

	"jarvis/internal/assistant"
	"jarvis/internal/config"
	"jarvis/internal/fallback"
	"jarvis/internal/intent"
	"jarvis/internal/llm"
	"jarvis/internal/memory"
	"jarvis/internal/personality"
	"jarvis/internal/proxy"
	"jarvis/internal/skill"
	"jarvis/internal/skills"
	"jarvis/pkg/protocol"
)

// Options carries the host-specific collaborators. Any of them may be nil.
type Options struct {
	Mixer    skills.Mixer
	Launcher skills.Launcher
	Checks   []skills.Check
	// HTTPClient overrides the proxied client, mainly for tests.
	HTTPClient *http.Client
}

type Core struct {
	Config      *config.Config
	HTTP        *http.Client
	LLM         *llm.Client
	Store       *memory.Store
	Memory      *memory.Memory
	Personality *personality.Personality
	Registry    *skill.Registry
	Resolver    intent.Resolver
	Fallback    *fallback.Fallback
	Home        *protocol.Protocol

	closers []func() error
}

// Build constructs the core. Only the store is fatal; the Redis window and
// the smart home hub degrade with a warning.
func Build(ctx context.Context, cfg *config.Config, opt Options) (*Core, error) {
	c := &Core{Config: cfg}

	c.HTTP = opt.HTTPClient
	if c.HTTP == nil {
		client, err := proxy.NewClient(cfg.Proxy.Addr, cfg.LLM.Timeout)
		if err != nil {
			return nil, err
		}
		c.HTTP = client
	}

	c.LLM = llm.NewClient(llm.Options{
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.Model,
		HTTPClient: c.HTTP,
	})

	if err := c.openMemory(ctx); err != nil {
		c.Close()
		return nil, err
	}

	c.Personality = personality.New(cfg.Assistant.Personality)
	c.Registry = skill.NewRegistry()
	c.Fallback = fallback.New(c.LLM, c.Registry, fallback.Options{
		Owner:    cfg.Assistant.Owner,
		Attempts: cfg.LLM.Attempts,
		MaxWords: cfg.LLM.MaxWords,
		Style:    c.Personality.Hint,
	})

	keywords := intent.NewKeywordResolver(nil)
	c.Resolver = keywords
	if cfg.LLM.Classifier {
		r, err := intent.NewLLMResolver(c.LLM.WithModel(cfg.LLM.IntentModel), keywords, cfg.LLM.IntentTimeout)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("intent classifier: %w", err)
		}
		c.Resolver = r
	}

	c.dialHome(ctx)
	c.registerSkills(opt)

	log.Debug("Core ready", "skills", c.Registry.Names(), "classifier", cfg.LLM.Classifier)
	return c, nil
}

func (c *Core) openMemory(ctx context.Context) error {
	cfg := c.Config.Memory

	store, err := memory.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open memory: %w", err)
	}
	c.Store = store
	c.closers = append(c.closers, store.Close)

	if cfg.LegacyPath != "" {
		imported, err := store.ImportLegacy(ctx, cfg.LegacyPath)
		if err != nil {
			log.Warn("Legacy memory import failed", "path", cfg.LegacyPath, "err", err)
		} else if imported {
			log.Info("Imported legacy memory", "path", cfg.LegacyPath)
		}
	}

	var recent memory.Recent
	if cfg.RedisURL != "" {
		rw, err := memory.NewRedisWindow(ctx, cfg.RedisURL, cfg.RedisKey, cfg.WindowSize)
		if err != nil {
			log.Warn("Redis unavailable, keeping context in process", "err", err)
		} else {
			recent = rw
			c.closers = append(c.closers, rw.Close)
		}
	}

	warm := recent == nil
	if recent == nil {
		recent = memory.NewWindow(cfg.WindowSize)
	}

	c.Memory = memory.New(recent, store, memory.Options{
		ContextEntries: cfg.ContextEntries,
		Budget:         cfg.ContextBudget,
	})
	if warm {
		if err := c.Memory.Warm(ctx, cfg.WindowSize); err != nil {
			log.Warn("Failed to warm context", "err", err)
		}
	}
	return nil
}

func (c *Core) dialHome(ctx context.Context) {
	cfg := c.Config.Home
	if cfg.URL == "" {
		return
	}

	p, err := protocol.Dial(ctx, protocol.Config{
		Shard:   cfg.Name,
		URL:     cfg.URL,
		Timeout: cfg.Timeout,
		OnFrame: func(m *protocol.Message) {
			log.Info("Hub frame", "from", m.From, "verb", m.Verb, "noun", m.Noun, "args", m.Args)
		},
	})
	if err != nil {
		log.Warn("Smart home hub unavailable", "url", cfg.URL, "err", err)
		return
	}

	c.Home = p
	c.closers = append(c.closers, p.Close)
	go func() {
		if err := p.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("Hub connection ended", "err", err)
		}
	}()
}

func (c *Core) registerSkills(opt Options) {
	cfg := c.Config

	deps := skills.Deps{
		Owner:       cfg.Assistant.Owner,
		Store:       c.Store,
		Prefs:       c.Memory,
		Weather:     skills.NewWeather(c.HTTP, cfg.Weather.BaseURL, cfg.Weather.City, c.Memory),
		Mixer:       opt.Mixer,
		Launcher:    opt.Launcher,
		Power:       skills.SystemPower{DryRun: cfg.Power.DryRun},
		HomeNode:    cfg.Home.Node,
		Personality: c.Personality,
		Names:       c.Registry.Names,
		Checks:      append(c.checks(), opt.Checks...),
	}
	if c.Home != nil {
		deps.Home = c.Home
	}

	for _, s := range skills.Defaults(deps) {
		c.Registry.Register(s)
	}
}

func (c *Core) checks() []skills.Check {
	out := []skills.Check{
		{Name: "language model", Run: c.LLM.Ping},
		{Name: "memory", Run: func(ctx context.Context) error {
			_, _, err := c.Store.Preferences(ctx)
			return err
		}},
	}
	if c.Home != nil {
		out = append(out, skills.Check{Name: "smart home", Run: func(ctx context.Context) error {
			_, err := c.Home.Request(ctx, protocol.Message{To: c.Config.Home.Node, Verb: "PING", Noun: "HUB"})
			return err
		}})
	}
	return out
}

// Assistant fills the core collaborators into opt and builds the
// orchestrator. The caller supplies the audio side.
func (c *Core) Assistant(opt assistant.Options) (*assistant.Assistant, error) {
	cfg := c.Config

	opt.Resolver = c.Resolver
	opt.Skills = c.Registry
	opt.Fallback = c.Fallback
	opt.Memory = c.Memory
	opt.Personality = c.Personality
	opt.Reminders = c.Store
	opt.UseTools = cfg.LLM.Tools
	opt.AsyncSpeech = cfg.TTS.Async
	opt.RecoverDelay = cfg.Assistant.RecoverDelay
	opt.ReminderInterval = cfg.Assistant.ReminderInterval

	return assistant.New(opt)
}

func (c *Core) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Debug("Close failed", "err", err)
		}
	}
	c.closers = nil
}
