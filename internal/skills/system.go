package skills

import (
	"context"
	"fmt"
	log "log/slog"
	"os/exec"
	"strings"

	"jarvis/internal/intent"
	"jarvis/internal/mixer"
	"jarvis/internal/skill"
	"jarvis/pkg/util"
)

// Launcher starts a program or opens a URL without waiting for it.
type Launcher interface {
	Launch(ctx context.Context, target string) error
}

// ExecLauncher opens URLs with xdg-open and runs anything else directly.
type ExecLauncher struct{}

func (ExecLauncher) Launch(_ context.Context, target string) error {
	var cmd *exec.Cmd
	if strings.Contains(target, "://") {
		cmd = exec.Command("xdg-open", target)
	} else {
		fields := strings.Fields(target)
		cmd = exec.Command(fields[0], fields[1:]...)
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

// DefaultApps maps spoken names to launch targets.
var DefaultApps = map[string]string{
	"chrome":     "google-chrome",
	"firefox":    "firefox",
	"youtube":    "https://www.youtube.com",
	"spotify":    "https://open.spotify.com",
	"vscode":     "code",
	"notepad":    "gnome-text-editor",
	"calculator": "gnome-calculator",
	"terminal":   "x-terminal-emulator",
}

type Apps struct {
	launcher Launcher
	apps     map[string]string
}

func NewApps(l Launcher) *Apps {
	return &Apps{launcher: l, apps: DefaultApps}
}

func (*Apps) Name() string { return "apps" }

func (*Apps) CanHandle(tag intent.Tag, _ intent.Params) bool { return tag == intent.OpenApp }

func (a *Apps) Handle(ctx context.Context, _ intent.Tag, params intent.Params) (string, error) {
	app := strings.ToLower(params.String("app"))
	if app == "" {
		return "Which application should I open?", nil
	}
	if a.launcher == nil {
		return "Opening applications is not available on this system.", nil
	}

	target, ok := a.apps[app]
	if !ok {
		return "I don't know how to open " + app + ".", nil
	}
	if err := a.launcher.Launch(ctx, target); err != nil {
		log.Warn("Launch failed", "app", app, "target", target, "err", err)
		return "Could not open " + app + ".", nil
	}
	return "Opening " + app + ".", nil
}

func (*Apps) Tools() []skill.ToolSpec {
	return []skill.ToolSpec{{
		Name:        "open_app",
		Description: "Open a desktop application or website by name.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"app": map[string]any{"type": "string", "description": "Application name, e.g. firefox"},
			},
			"required": []string{"app"},
		},
		Tag: intent.OpenApp,
	}}
}

// Mixer is the system volume control; *mixer.Pulse implements it.
type Mixer interface {
	Volume(ctx context.Context) (int, error)
	SetVolume(ctx context.Context, percent int) error
	SetMute(ctx context.Context, mute bool) error
}

var _ Mixer = (*mixer.Pulse)(nil)

const (
	DefaultVolumeStep = 10
	volumeRange       = "Volume must be between 0 and 100."
	volumeFailed      = "I couldn't control the volume."
)

type Volume struct {
	mixer Mixer
}

func NewVolume(m Mixer) *Volume { return &Volume{mixer: m} }

func (*Volume) Name() string { return "volume" }

func (*Volume) CanHandle(tag intent.Tag, _ intent.Params) bool { return tag == intent.Volume }

// Handle applies a volume action. Levels outside 0-100 are refused, never
// clamped; relative steps saturate at the range ends.
func (v *Volume) Handle(ctx context.Context, _ intent.Tag, params intent.Params) (string, error) {
	if v.mixer == nil {
		return "Volume control is not available on this system.", nil
	}

	action := params.String("action")
	level, hasLevel := params.Int("level")
	if action == "" && hasLevel {
		action = "set"
	}

	switch action {
	case "mute", "unmute":
		if err := v.mixer.SetMute(ctx, action == "mute"); err != nil {
			log.Warn("Mute failed", "err", err)
			return volumeFailed, nil
		}
		return "Volume " + action + "d.", nil

	case "set":
		if !hasLevel {
			return "What level should I set the volume to?", nil
		}
		if level < 0 || level > 100 {
			return volumeRange, nil
		}
		if err := v.mixer.SetVolume(ctx, level); err != nil {
			log.Warn("Set volume failed", "err", err)
			return volumeFailed, nil
		}
		return fmt.Sprintf("Volume set to %d%%.", level), nil

	case "increase", "decrease":
		step, ok := params.Int("step")
		if !ok {
			step = DefaultVolumeStep
		}
		if step < 0 || step > 100 {
			return volumeRange, nil
		}
		cur, err := v.mixer.Volume(ctx)
		if err != nil {
			log.Warn("Read volume failed", "err", err)
			return volumeFailed, nil
		}
		if action == "decrease" {
			step = -step
		}
		next := util.Clamp(cur+step, 0, 100)
		if err := v.mixer.SetVolume(ctx, next); err != nil {
			log.Warn("Set volume failed", "err", err)
			return volumeFailed, nil
		}
		return fmt.Sprintf("Volume %sd to %d%%.", action, next), nil

	default:
		cur, err := v.mixer.Volume(ctx)
		if err != nil {
			log.Warn("Read volume failed", "err", err)
			return volumeFailed, nil
		}
		return fmt.Sprintf("Current volume is %d%%.", cur), nil
	}
}

func (*Volume) Tools() []skill.ToolSpec {
	return []skill.ToolSpec{{
		Name:        "set_volume",
		Description: "Change or report the system volume.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{"type": "string", "enum": []string{"mute", "unmute", "increase", "decrease", "set"}},
				"level":  map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
				"step":   map[string]any{"type": "integer", "minimum": 1, "maximum": 100},
			},
		},
		Tag: intent.Volume,
	}}
}

type PowerController interface {
	Shutdown(ctx context.Context) error
	Restart(ctx context.Context) error
}

// SystemPower drives systemctl. With DryRun set it only logs.
type SystemPower struct {
	Run    mixer.Runner
	DryRun bool
}

func (p SystemPower) Shutdown(ctx context.Context) error { return p.do(ctx, "poweroff") }

func (p SystemPower) Restart(ctx context.Context) error { return p.do(ctx, "reboot") }

func (p SystemPower) do(ctx context.Context, verb string) error {
	if p.DryRun {
		log.Info("Power action skipped (dry run)", "action", verb)
		return nil
	}
	run := p.Run
	if run == nil {
		run = mixer.Exec
	}
	if out, err := run.Output(ctx, "systemctl", verb); err != nil {
		return fmt.Errorf("systemctl %s: %w: %s", verb, err, strings.TrimSpace(string(out)))
	}
	return nil
}

type Power struct {
	ctl PowerController
}

func NewPower(ctl PowerController) *Power { return &Power{ctl: ctl} }

func (*Power) Name() string { return "power" }

func (*Power) CanHandle(tag intent.Tag, _ intent.Params) bool {
	return is(tag, intent.Shutdown, intent.Restart)
}

func (p *Power) Handle(ctx context.Context, tag intent.Tag, _ intent.Params) (string, error) {
	if p.ctl == nil {
		return "Power control is not available on this system.", nil
	}
	if tag == intent.Restart {
		if err := p.ctl.Restart(ctx); err != nil {
			return "", err
		}
		return "Restarting the system.", nil
	}
	if err := p.ctl.Shutdown(ctx); err != nil {
		return "", err
	}
	return "Shutting down the system.", nil
}
