package skills

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"jarvis/internal/intent"
	"jarvis/internal/personality"
)

// Personas switches the reply style; *personality.Personality implements it.
type Personas interface {
	Mode() personality.Mode
	Set(mode string) (personality.Mode, bool)
}

type Personality struct {
	p Personas
}

func NewPersonality(p Personas) *Personality { return &Personality{p: p} }

func (*Personality) Name() string { return "personality" }

func (*Personality) CanHandle(tag intent.Tag, _ intent.Params) bool { return tag == intent.Personality }

func (s *Personality) Handle(_ context.Context, _ intent.Tag, params intent.Params) (string, error) {
	if s.p == nil {
		return "My personality is fixed today.", nil
	}

	mode := params.String("mode")
	if mode == "" {
		return "I'm in " + s.p.Mode().String() + " mode.", nil
	}
	if _, ok := personality.ParseMode(mode); !ok {
		return "I don't know that mode. Try " + strings.Join(intent.Modes, ", ") + ".", nil
	}

	m, _ := s.p.Set(mode)
	return "Switched to " + m.String() + " mode.", nil
}

type Help struct {
	names func() []string
}

func NewHelp(names func() []string) *Help { return &Help{names: names} }

func (*Help) Name() string { return "help" }

func (*Help) CanHandle(tag intent.Tag, _ intent.Params) bool { return tag == intent.Help }

func (h *Help) Handle(context.Context, intent.Tag, intent.Params) (string, error) {
	if h.names == nil {
		return "I can chat with you and answer questions.", nil
	}

	var names []string
	for _, n := range h.names() {
		if n != "help" {
			names = append(names, n)
		}
	}
	return "I can help with " + strings.Join(names, ", ") + ", and I can chat about anything else.", nil
}

// Check is one named health probe run by the diagnostics skill.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

const checkTimeout = 5 * time.Second

type Diagnostics struct {
	checks []Check
}

func NewDiagnostics(checks []Check) *Diagnostics { return &Diagnostics{checks: checks} }

func (*Diagnostics) Name() string { return "diagnostics" }

func (*Diagnostics) CanHandle(tag intent.Tag, _ intent.Params) bool { return tag == intent.Diagnostics }

// Handle runs every check concurrently and reports the failures in check
// order.
func (d *Diagnostics) Handle(ctx context.Context, _ intent.Tag, _ intent.Params) (string, error) {
	if len(d.checks) == 0 {
		return "There is nothing to check.", nil
	}

	errs := make([]error, len(d.checks))
	var wg sync.WaitGroup
	for i, c := range d.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			errs[i] = c.Run(cctx)
		}()
	}
	wg.Wait()

	var failed []string
	for i, err := range errs {
		if err != nil {
			log.Warn("Health check failed", "check", d.checks[i].Name, "err", err)
			failed = append(failed, d.checks[i].Name)
		}
	}

	if len(failed) == 0 {
		return fmt.Sprintf("All %d systems are operational.", len(d.checks)), nil
	}
	return fmt.Sprintf("%d of %d checks passed. Problems with: %s.",
		len(d.checks)-len(failed), len(d.checks), strings.Join(failed, ", ")), nil
}
