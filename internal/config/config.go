// Package config loads the assistant settings. Values are layered: built-in
// defaults, then an optional YAML file, then JARVIS_* environment variables
// (JARVIS_MEMORY__WINDOW_SIZE -> memory.window_size).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "JARVIS_"

var ErrNoAPIKey = errors.New("llm api key is not set (OPENAI_API_KEY)")

type Config struct {
	Log       LogConfig       `koanf:"log"`
	LLM       LLMConfig       `koanf:"llm"`
	Wake      WakeConfig      `koanf:"wake"`
	Audio     AudioConfig     `koanf:"audio"`
	STT       STTConfig       `koanf:"stt"`
	TTS       TTSConfig       `koanf:"tts"`
	Memory    MemoryConfig    `koanf:"memory"`
	Assistant AssistantConfig `koanf:"assistant"`
	Weather   WeatherConfig   `koanf:"weather"`
	Home      HomeConfig      `koanf:"home"`
	Power     PowerConfig     `koanf:"power"`
	IPC       IPCConfig       `koanf:"ipc"`
	Bus       BusConfig       `koanf:"bus"`
	Proxy     ProxyConfig     `koanf:"proxy"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

type LLMConfig struct {
	APIKey        string        `koanf:"api_key"`
	BaseURL       string        `koanf:"base_url"`
	Model         string        `koanf:"model"`
	IntentModel   string        `koanf:"intent_model"`
	Classifier    bool          `koanf:"classifier"` // LLM intent resolver instead of keywords
	Tools         bool          `koanf:"tools"`      // function calling in the fallback
	Attempts      int           `koanf:"attempts"`
	Timeout       time.Duration `koanf:"timeout"`
	IntentTimeout time.Duration `koanf:"intent_timeout"`
	MaxWords      int           `koanf:"max_words"`
}

type WakeConfig struct {
	Phrases      []string `koanf:"phrases"`
	SleepPhrases []string `koanf:"sleep_phrases"`
}

type AudioConfig struct {
	WakeWindow     time.Duration `koanf:"wake_window"`
	CommandTimeout time.Duration `koanf:"command_timeout"`
	Chime          string        `koanf:"chime"`
}

type STTConfig struct {
	ModelPath string `koanf:"model_path"`
	Language  string `koanf:"language"`
	Threads   int    `koanf:"threads"`
	Prompt    string `koanf:"prompt"` // biases decoding towards the wake phrase
}

type TTSConfig struct {
	Voice string `koanf:"voice"`
	Async bool   `koanf:"async"`
	Duck  bool   `koanf:"duck"`
}

type MemoryConfig struct {
	DBPath         string `koanf:"db_path"`
	LegacyPath     string `koanf:"legacy_path"`
	WindowSize     int    `koanf:"window_size"`
	ContextEntries int    `koanf:"context_entries"`
	ContextBudget  int    `koanf:"context_budget"`
	RedisURL       string `koanf:"redis_url"`
	RedisKey       string `koanf:"redis_key"`
}

type AssistantConfig struct {
	Owner            string        `koanf:"owner"`
	Personality      string        `koanf:"personality"`
	RecoverDelay     time.Duration `koanf:"recover_delay"`
	ReminderInterval time.Duration `koanf:"reminder_interval"`
}

type WeatherConfig struct {
	BaseURL string `koanf:"base_url"`
	City    string `koanf:"city"`
}

type HomeConfig struct {
	URL     string        `koanf:"url"`  // hub websocket; empty disables smart home
	Name    string        `koanf:"name"` // our shard name on the hub
	Node    string        `koanf:"node"` // device controller addressed by requests
	Timeout time.Duration `koanf:"timeout"`
}

type PowerConfig struct {
	DryRun bool `koanf:"dry_run"`
}

type IPCConfig struct {
	Socket string `koanf:"socket"`
}

type BusConfig struct {
	URL    string `koanf:"url"`
	Name   string `koanf:"name"`
	Events bool   `koanf:"events"` // daemon publishes state and turns
}

type ProxyConfig struct {
	Addr string `koanf:"addr"`
}

var defaults = map[string]any{
	"log.level": "info",

	"llm.base_url":       "",
	"llm.model":          "gpt-4o-mini",
	"llm.intent_model":   "gpt-4o-mini",
	"llm.classifier":     false,
	"llm.tools":          true,
	"llm.attempts":       3,
	"llm.timeout":        60 * time.Second,
	"llm.intent_timeout": 10 * time.Second,
	"llm.max_words":      500,

	"wake.phrases":       []string{"jarvis", "hey jarvis"},
	"wake.sleep_phrases": []string{"go to sleep", "stop listening", "standby mode"},

	"audio.wake_window":     2 * time.Second,
	"audio.command_timeout": 8 * time.Second,
	"audio.chime":           "assets/beep.mp3",

	"stt.model_path": "third_party/whisper.cpp/models/ggml-base.en.bin",
	"stt.language":   "en",
	"stt.threads":    0,
	"stt.prompt":     "Jarvis.",

	"tts.voice": "en",
	"tts.async": false,
	"tts.duck":  true,

	"memory.db_path":         "jarvis.db",
	"memory.legacy_path":     "memory.json",
	"memory.window_size":     10,
	"memory.context_entries": 0,
	"memory.context_budget":  2000,
	"memory.redis_key":       "jarvis:recent",

	"assistant.owner":             "Sir",
	"assistant.personality":       "normal",
	"assistant.recover_delay":     time.Second,
	"assistant.reminder_interval": 5 * time.Second,

	"weather.base_url": "https://wttr.in",

	"home.name":    "JARVIS",
	"home.node":    "VERTEX",
	"home.timeout": 5 * time.Second,

	"power.dry_run": true,

	"ipc.socket": "/tmp/jarvis.sock",

	"bus.url":    "ws://localhost:8092",
	"bus.name":   "JARVIS",
	"bus.events": false,

	"proxy.addr": "",
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return &cfg, nil
}

// envKey maps JARVIS_MEMORY__WINDOW_SIZE to memory.window_size.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// envValue splits comma separated phrase lists.
func envValue(key, value string) (string, any) {
	key = envKey(key)
	if strings.HasSuffix(key, "phrases") {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return key, parts
	}
	return key, value
}

// Validate reports settings the assistant cannot start without.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return ErrNoAPIKey
	}
	if c.LLM.Attempts < 1 {
		return fmt.Errorf("llm.attempts must be >= 1, got %d", c.LLM.Attempts)
	}
	if len(c.Wake.Phrases) == 0 {
		return errors.New("wake.phrases is empty")
	}
	if c.Memory.WindowSize < 1 {
		return fmt.Errorf("memory.window_size must be >= 1, got %d", c.Memory.WindowSize)
	}
	return nil
}
