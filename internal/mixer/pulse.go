// Package mixer drives PulseAudio through pactl: master volume for the
// volume skill and ducking of other streams while the assistant speaks.
package mixer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"jarvis/pkg/util"
)

const defaultSink = "@DEFAULT_SINK@"

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

var ErrNoVolume = errors.New("no volume in pactl output")

// Runner executes a command and returns its stdout.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Exec runs real commands.
var Exec Runner = execRunner{}

// Pulse controls the default sink.
type Pulse struct {
	run Runner
}

func NewPulse(run Runner) *Pulse {
	if run == nil {
		run = Exec
	}
	return &Pulse{run: run}
}

func (p *Pulse) Volume(ctx context.Context) (int, error) {
	out, err := p.run.Output(ctx, "pactl", "get-sink-volume", defaultSink)
	if err != nil {
		return 0, fmt.Errorf("pactl get-sink-volume: %w", err)
	}
	m := percentRe.FindStringSubmatch(string(out))
	if m == nil {
		return 0, ErrNoVolume
	}
	return strconv.Atoi(m[1])
}

// SetVolume sets the master volume in percent, clamped to 0..100.
func (p *Pulse) SetVolume(ctx context.Context, percent int) error {
	percent = util.Clamp(percent, 0, 100)
	if _, err := p.run.Output(ctx, "pactl", "set-sink-volume", defaultSink, fmt.Sprintf("%d%%", percent)); err != nil {
		return fmt.Errorf("pactl set-sink-volume: %w", err)
	}
	return nil
}

func (p *Pulse) SetMute(ctx context.Context, mute bool) error {
	v := "0"
	if mute {
		v = "1"
	}
	if _, err := p.run.Output(ctx, "pactl", "set-sink-mute", defaultSink, v); err != nil {
		return fmt.Errorf("pactl set-sink-mute: %w", err)
	}
	return nil
}

// Available reports whether pactl answers at all.
func (p *Pulse) Available(ctx context.Context) error {
	_, err := p.run.Output(ctx, "pactl", "info")
	return err
}

// parsePercent pulls the first "NN%" out of a pactl line.
func parsePercent(line string) (int, bool) {
	m := percentRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	return v, err == nil
}

func quoted(line string) string {
	i := strings.IndexByte(line, '"')
	if i < 0 {
		return ""
	}
	line = line[i+1:]
	j := strings.IndexByte(line, '"')
	if j < 0 {
		return ""
	}
	return line[:j]
}
