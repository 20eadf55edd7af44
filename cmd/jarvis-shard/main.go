package main

import (
	"context"
	"errors"
	log "log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"jarvis/internal/assistant"
	"jarvis/internal/boot"
	"jarvis/internal/bus"
	"jarvis/internal/config"
	"jarvis/internal/logging"
	"jarvis/internal/shard"
	"jarvis/pkg/audioconv"
	"jarvis/pkg/stt"
)

func main() {
	cfgPath := cli.StringP("config", "c", "", "Config file path")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	busURL := cli.StringP("url", "u", "", "Url of bus")
	logLevel := cli.StringP("log", "l", "", "Log level")
	noAudio := cli.Bool("no-audio", false, "Do not load whisper; audio requests are refused")
	cli.Parse()

	godotenv.Load(*envFile)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logging.Setup(os.Stderr, "info")
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *busURL != "" {
		cfg.Bus.URL = *busURL
	}
	logging.Setup(os.Stdout, cfg.Log.Level)

	log.Info("Starting Jarvis shard", "bus", cfg.Bus.URL, "name", cfg.Bus.Name)

	if err := cfg.Validate(); err != nil {
		log.Error("Invalid config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	core, err := boot.Build(ctx, cfg, boot.Options{})
	if err != nil {
		log.Error("Failed to build core", "err", err)
		os.Exit(1)
	}
	defer core.Close()

	dial := func(ctx context.Context) (shard.Conn, error) {
		b, err := bus.Dial(ctx, cfg.Bus.URL)
		if err != nil {
			return nil, err
		}
		return b, nil
	}

	b, err := bus.Dial(ctx, cfg.Bus.URL)
	if err != nil {
		log.Error("Failed to connect to bus", "url", cfg.Bus.URL, "err", err)
		os.Exit(1)
	}

	opt := shard.Options{
		Name: cfg.Bus.Name,
		Dial: dial,
	}

	if !*noAudio {
		whisper, err := stt.NewTranscriber(cfg.STT.ModelPath, stt.Options{
			Language: cfg.STT.Language,
			Threads:  cfg.STT.Threads,
			Prompt:   cfg.STT.Prompt,
		})
		if err != nil {
			log.Warn("Whisper unavailable, refusing audio", "model", cfg.STT.ModelPath, "err", err)
		} else {
			defer whisper.Close()
			opt.Transcriber = whisper
			opt.Decoder = func(ctx context.Context, data []byte, format string) ([]float32, error) {
				return audioconv.DecodeBytes(ctx, data, format, audioconv.Options{MaxSamples: 60 * audioconv.SampleRate})
			}
		}
	}

	aopt := assistant.Options{}
	if cfg.Bus.Events {
		aopt.Events = bus.NewPublisher(b, cfg.Bus.Name)
	}

	a, err := core.Assistant(aopt)
	if err != nil {
		log.Error("Failed to build assistant", "err", err)
		os.Exit(1)
	}
	opt.Responder = a

	if err := shard.New(opt).Run(ctx, b); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Shard stopped", "err", err)
		os.Exit(1)
	}
}
