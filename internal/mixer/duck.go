package mixer

import (
	"context"
	"fmt"
	log "log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"jarvis/pkg/util"
)

const maxStreamVolume = 150

type streamInfo struct {
	ID      int
	Volume  int
	AppName string
}

type fadeTarget struct {
	id   int
	from int
	to   int
}

// Ducker fades every sink input except those whose application.name is in
// selfNames.
type Ducker struct {
	mu          sync.Mutex
	run         Runner
	active      bool
	selfNames   []string
	originalVol map[int]int // sink input id -> volume before ducking
	minVolume   int
}

func NewDucker(run Runner, selfNames []string, minVolume int) *Ducker {
	if run == nil {
		run = Exec
	}
	return &Ducker{
		run:         run,
		selfNames:   append([]string(nil), selfNames...),
		originalVol: make(map[int]int),
		minVolume:   util.Clamp(minVolume, 0, maxStreamVolume),
	}
}

// DuckOthers fades other streams to current*factor, never below minVolume.
func (d *Ducker) DuckOthers(ctx context.Context, factor float64, fade time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := d.listStreams(ctx)
	if err != nil {
		return err
	}

	d.originalVol = make(map[int]int)
	var targets []fadeTarget

	for _, s := range streams {
		if d.isSelf(s) {
			continue
		}
		to := util.Clamp(int(math.Round(float64(s.Volume)*factor)), d.minVolume, maxStreamVolume)
		d.originalVol[s.ID] = s.Volume
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: to})
	}

	if err := d.fade(ctx, targets, fade); err != nil {
		return err
	}
	d.active = true
	return nil
}

// UnduckOthers restores the streams touched by DuckOthers. Streams that
// appeared in between are left alone.
func (d *Ducker) UnduckOthers(ctx context.Context, fade time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	streams, err := d.listStreams(ctx)
	if err != nil {
		return err
	}

	var targets []fadeTarget
	for _, s := range streams {
		orig, ok := d.originalVol[s.ID]
		if !ok || d.isSelf(s) {
			continue
		}
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: orig})
	}

	if err := d.fade(ctx, targets, fade); err != nil {
		return err
	}

	d.originalVol = make(map[int]int)
	d.active = false
	return nil
}

func (d *Ducker) isSelf(s streamInfo) bool {
	for _, name := range d.selfNames {
		if s.AppName == name {
			return true
		}
	}
	return false
}

func (d *Ducker) fade(ctx context.Context, targets []fadeTarget, duration time.Duration) error {
	if len(targets) == 0 {
		return nil
	}

	const minStep = 10 * time.Millisecond

	steps := 1
	if duration > 0 {
		steps = max(int(duration/minStep), 1)
	}
	stepDur := duration / time.Duration(steps)

	start := 0
	if duration <= 0 {
		start = steps
	}

	for i := start; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		frac := float64(i) / float64(steps)
		for _, t := range targets {
			v := int(math.Round(float64(t.from) + float64(t.to-t.from)*frac))
			if err := d.setVolume(ctx, t.id, v); err != nil {
				return fmt.Errorf("set volume id=%d: %w", t.id, err)
			}
		}

		if i < steps {
			time.Sleep(stepDur)
		}
	}
	return nil
}

func (d *Ducker) listStreams(ctx context.Context) ([]streamInfo, error) {
	out, err := d.run.Output(ctx, "pactl", "list", "sink-inputs")
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return parseSinkInputs(string(out)), nil
}

func (d *Ducker) setVolume(ctx context.Context, id, percent int) error {
	percent = util.Clamp(percent, 0, maxStreamVolume)
	_, err := d.run.Output(ctx, "pactl", "set-sink-input-volume", strconv.Itoa(id), fmt.Sprintf("%d%%", percent))
	return err
}

func parseSinkInputs(text string) []streamInfo {
	parts := strings.Split(text, "Sink Input #")
	var res []streamInfo

	for _, block := range parts[1:] {
		nl := strings.IndexByte(block, '\n')
		if nl <= 0 {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(block[:nl]))
		if err != nil {
			continue
		}

		s := streamInfo{ID: id}
		for _, line := range strings.Split(block[nl+1:], "\n") {
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, "Volume:") && s.Volume == 0:
				if v, ok := parsePercent(line); ok {
					s.Volume = v
				}
			case strings.HasPrefix(line, "application.name =") && s.AppName == "":
				s.AppName = quoted(line)
			}
		}

		if s.Volume == 0 && s.AppName == "" {
			continue
		}
		res = append(res, s)
	}
	return res
}

// Speaker is what DuckingSpeaker wraps.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// DuckingSpeaker lowers other audio while the wrapped speaker talks.
// Ducking failures are logged; speech goes ahead regardless.
type DuckingSpeaker struct {
	Speaker
	Ducker *Ducker
	Factor float64
	Fade   time.Duration
}

func (s *DuckingSpeaker) Speak(ctx context.Context, text string) error {
	if err := s.Ducker.DuckOthers(ctx, s.Factor, s.Fade); err != nil {
		log.Warn("Failed to duck", "err", err)
	}
	defer func() {
		if err := s.Ducker.UnduckOthers(context.WithoutCancel(ctx), s.Fade); err != nil {
			log.Warn("Failed to unduck", "err", err)
		}
	}()
	return s.Speaker.Speak(ctx, text)
}
