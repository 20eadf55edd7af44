package main

import (
	"context"
	"errors"
	log "log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"jarvis/internal/assistant"
	"jarvis/internal/audio"
	"jarvis/internal/boot"
	"jarvis/internal/bus"
	"jarvis/internal/config"
	"jarvis/internal/ipc"
	"jarvis/internal/listen"
	"jarvis/internal/logging"
	"jarvis/internal/mixer"
	"jarvis/internal/notify"
	"jarvis/internal/skills"
	"jarvis/internal/tts"
	"jarvis/internal/wake"
	"jarvis/pkg/stt"
)

func main() {
	cfgPath := cli.StringP("config", "c", "", "Config file path")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address")
	logLevel := cli.StringP("log", "l", "", "Log level")
	textMode := cli.BoolP("text", "t", false, "Read commands from stdin instead of the microphone")
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
	if *proxyAddr != "" {
		cfg.Proxy.Addr = *proxyAddr
	}
	logging.Setup(os.Stdout, cfg.Log.Level)

	log.Info("Booting up")

	if err := cfg.Validate(); err != nil {
		log.Error("Invalid config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pulse := mixer.NewPulse(nil)
	core, err := boot.Build(ctx, cfg, boot.Options{
		Mixer:    pulse,
		Launcher: skills.ExecLauncher{},
		Checks:   []skills.Check{{Name: "audio", Run: pulse.Available}},
	})
	if err != nil {
		log.Error("Failed to build core", "err", err)
		os.Exit(1)
	}
	defer core.Close()

	log.Debug("Loaded core")

	opt := assistant.Options{}
	if *textMode {
		console := listen.NewConsole(os.Stdin, os.Stdout, "you> ")
		opt.Wake = wake.New(console, wake.Options{WakePhrases: cfg.Wake.Phrases, SleepPhrases: cfg.Wake.SleepPhrases})
		opt.Command = console
		opt.Speaker = tts.NewPrinter(os.Stdout, "jarvis> ")
		opt.SkipWake = true
	} else {
		closeAudio := voice(cfg, &opt)
		defer closeAudio()
	}

	if cfg.Bus.Events {
		b, err := bus.Dial(ctx, cfg.Bus.URL)
		if err != nil {
			log.Warn("Event bus unavailable", "url", cfg.Bus.URL, "err", err)
		} else {
			defer b.Close()
			opt.Events = bus.NewPublisher(b, cfg.Bus.Name)
		}
	}

	a, err := core.Assistant(opt)
	if err != nil {
		log.Error("Failed to build assistant", "err", err)
		os.Exit(1)
	}

	srv, err := ipc.Listen(ctx, cfg.IPC.Socket, control(a))
	if err != nil {
		log.Error("Failed ipc server", "socket", cfg.IPC.Socket, "err", err)
		os.Exit(1)
	}
	defer srv.Close()

	log.Info("Boot up - successful", "socket", srv.Addr(), "text", *textMode)

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Assistant stopped", "err", err)
		os.Exit(1)
	}
	log.Info("Shutting down")
}

// voice fills the microphone, whisper and espeak collaborators into opt.
// The returned func releases them.
func voice(cfg *config.Config, opt *assistant.Options) func() {
	rec := audio.NewRecorder()
	if err := rec.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}

	log.Debug("Loaded recorder")

	whisper, err := stt.NewTranscriber(cfg.STT.ModelPath, stt.Options{
		Language: cfg.STT.Language,
		Threads:  cfg.STT.Threads,
		Prompt:   cfg.STT.Prompt,
	})
	if err != nil {
		rec.Close()
		log.Error("Failed to init whisper", "model", cfg.STT.ModelPath, "err", err)
		os.Exit(1)
	}

	log.Debug("Loaded whisper")

	wakeMic := listen.NewMic(rec, whisper, listen.MicOptions{Mode: listen.Window, Duration: cfg.Audio.WakeWindow})
	opt.Wake = wake.New(wakeMic, wake.Options{
		WakePhrases:  cfg.Wake.Phrases,
		SleepPhrases: cfg.Wake.SleepPhrases,
	})
	opt.Command = listen.NewMic(rec, whisper, listen.MicOptions{
		Mode:     listen.Utterance,
		Duration: cfg.Audio.CommandTimeout,
		VAD:      listen.DefaultVAD,
	})

	espeak, err := tts.NewEspeak(cfg.TTS.Voice)
	if err != nil {
		whisper.Close()
		rec.Close()
		log.Error("Failed to init espeak", "err", err)
		os.Exit(1)
	}

	log.Debug("Loaded espeak")

	opt.Speaker = espeak
	if cfg.TTS.Duck {
		opt.Speaker = &mixer.DuckingSpeaker{
			Speaker: espeak,
			Ducker:  mixer.NewDucker(nil, []string{"espeak", "jarvis"}, 5),
			Factor:  0.3,
			Fade:    200 * time.Millisecond,
		}
	}

	if cfg.Audio.Chime != "" {
		chime, err := notify.NewChime(cfg.Audio.Chime)
		if err != nil {
			log.Warn("Chime unavailable", "path", cfg.Audio.Chime, "err", err)
		} else {
			opt.Chime = chime
		}
	}

	return func() {
		espeak.Close()
		whisper.Close()
		rec.Close()
	}
}

func control(a *assistant.Assistant) ipc.Handler {
	return func(ctx context.Context, msg ipc.ControlMessage) ipc.Reply {
		switch msg.Cmd {
		case ipc.CmdTrigger:
			a.Trigger()
			return ipc.Reply{OK: true}
		case ipc.CmdSleep:
			a.Sleep()
			return ipc.Reply{OK: true}
		case ipc.CmdSay:
			if msg.Text == "" {
				return ipc.Reply{Error: "nothing to say"}
			}
			// speech is serialized with the main loop; an exit stops Run
			reply, exit := a.HandleCommand(ctx, msg.Text)
			if exit {
				log.Info("Exit requested over control socket")
			}
			return ipc.Reply{OK: true, Text: reply}
		case ipc.CmdStatus:
			return ipc.Reply{OK: true, Text: a.State().String()}
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
			return ipc.Reply{Error: "unknown command " + msg.Cmd}
		}
	}
}
