// Package assistant runs the turn loop: wait for the wake phrase, capture
// one command, resolve and dispatch it, remember the exchange and speak the
// answer.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"jarvis/internal/intent"
	"jarvis/internal/memory"
	"jarvis/internal/personality"
	"jarvis/internal/skill"
)

const (
	AckWake           = "Yes, how can I help you?"
	AckResume         = "I'm back online. How can I help you?"
	AckSleep          = "Going into standby mode."
	NotHeard          = "I didn't catch that"
	Goodbye           = "Goodbye! Have a great day."
	UnknownCapability = "I'm not sure how to help with that yet."
)

const (
	DefaultRecoverDelay = time.Second
	adjustEvery         = 10
	noticeBuffer        = 16
)

type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// Wake is satisfied by *wake.Trigger.
type Wake interface {
	Poll(ctx context.Context) (heard string, woke bool)
	IsSleepCommand(text string) bool
}

type Speaker interface {
	Speak(ctx context.Context, text string) error
}

type Chime interface {
	Play(ctx context.Context) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, in intent.Intent, raw string) (string, bool)
}

// Responder is satisfied by *fallback.Fallback.
type Responder interface {
	Respond(ctx context.Context, text, convo string) string
	RespondWithTools(ctx context.Context, text, convo string) string
}

type Memory interface {
	Context(ctx context.Context) string
	Record(ctx context.Context, it memory.Interaction) error
}

type Styler interface {
	Apply(text string) string
	AutoAdjust(convo string) personality.Mode
}

type Reminders interface {
	TakeDueReminders(ctx context.Context, now time.Time) ([]memory.Reminder, error)
}

// EventSink receives state changes and finished turns; *bus.Publisher
// implements it.
type EventSink interface {
	Publish(kind string, fields map[string]any)
}

type Options struct {
	Wake     Wake
	Command  Listener
	Speaker  Speaker
	Chime    Chime
	Resolver intent.Resolver
	Skills   Dispatcher
	Fallback Responder
	Memory   Memory

	Personality Styler
	Reminders   Reminders
	Events      EventSink

	// UseTools lets the fallback model call skills.
	UseTools bool
	// SkipWake goes straight from Idle to Listening (text console).
	SkipWake bool
	// AsyncSpeech returns from Speak before playback ends.
	AsyncSpeech bool

	RecoverDelay     time.Duration
	ReminderInterval time.Duration
}

type Assistant struct {
	opt Options

	state   atomic.Int32
	pending string

	turnMu sync.Mutex // at most one command in Dispatching
	turns  int

	speechMu sync.Mutex // one utterance at a time, loop or control channel
	exiting  atomic.Bool

	trigger chan struct{}
	sleep   chan struct{}
	notices chan string
}

// New builds an assistant. Only the turn collaborators are required; Run
// additionally needs the listeners and a speaker.
func New(opt Options) (*Assistant, error) {
	switch {
	case opt.Resolver == nil:
		return nil, errors.New("no intent resolver")
	case opt.Skills == nil:
		return nil, errors.New("no skill registry")
	case opt.Memory == nil:
		return nil, errors.New("no memory")
	}
	if opt.RecoverDelay <= 0 {
		opt.RecoverDelay = DefaultRecoverDelay
	}

	return &Assistant{
		opt:     opt,
		trigger: make(chan struct{}, 1),
		sleep:   make(chan struct{}, 1),
		notices: make(chan string, noticeBuffer),
	}, nil
}

func (a *Assistant) State() State { return State(a.state.Load()) }

func (a *Assistant) setState(s State) {
	if old := State(a.state.Swap(int32(s))); old != s {
		log.Debug("State", "from", old, "to", s)
		a.publish("state", map[string]any{"from": old.String(), "to": s.String()})
	}
}

// Trigger wakes the assistant as if the wake phrase was heard.
func (a *Assistant) Trigger() {
	select {
	case a.trigger <- struct{}{}:
	default:
	}
}

// Sleep puts the assistant into standby at the next idle step.
func (a *Assistant) Sleep() {
	select {
	case a.sleep <- struct{}{}:
	default:
	}
}

// Run steps the loop until the exit intent or ctx is done. A failing or
// panicking step is logged and the loop resumes from Idle after
// RecoverDelay.
func (a *Assistant) Run(ctx context.Context) error {
	switch {
	case a.opt.Command == nil:
		return errors.New("no command listener")
	case a.opt.Wake == nil && !a.opt.SkipWake:
		return errors.New("no wake trigger")
	case a.opt.Speaker == nil:
		return errors.New("no speaker")
	}

	if a.opt.Reminders != nil && a.opt.ReminderInterval > 0 {
		go a.watchReminders(ctx)
	}

	log.Info("Assistant ready", "wake", !a.opt.SkipWake)
	for a.State() != Exit {
		if err := ctx.Err(); err != nil {
			return err
		}
		if a.exiting.Load() {
			a.setState(Exit)
			break
		}

		if err := a.safeStep(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("Step failed", "state", a.State(), "err", err)
			a.setState(Idle)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(a.opt.RecoverDelay):
			}
		}
	}
	return nil
}

func (a *Assistant) safeStep(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return a.Step(ctx)
}

// Step performs one transition.
func (a *Assistant) Step(ctx context.Context) error {
	switch a.State() {
	case Idle:
		return a.idle(ctx)

	case Awake:
		if a.opt.Chime != nil {
			if err := a.opt.Chime.Play(ctx); err != nil {
				log.Warn("Failed to play chime", "err", err)
			}
		}
		a.say(ctx, AckWake)
		a.setState(Listening)

	case Listening:
		return a.listen(ctx)

	case Dispatching:
		text := a.pending
		a.pending = ""
		if _, exit := a.HandleCommand(ctx, text); exit {
			a.setState(Exit)
			return nil
		}
		a.setState(Idle)

	case Sleeping:
		if a.woken(ctx) {
			a.say(ctx, AckResume)
			a.setState(Listening)
		}
	}
	return nil
}

func (a *Assistant) idle(ctx context.Context) error {
	a.speakNotices(ctx)

	select {
	case <-a.sleep:
		a.goToSleep(ctx)
		return nil
	case <-a.trigger:
		a.setState(Awake)
		return nil
	default:
	}

	if a.opt.SkipWake {
		a.setState(Listening)
		return nil
	}

	heard, woke := a.opt.Wake.Poll(ctx)
	switch {
	case woke:
		log.Info("Wake phrase heard", "text", heard)
		a.setState(Awake)
	case heard != "" && a.opt.Wake.IsSleepCommand(heard):
		a.goToSleep(ctx)
	}
	return nil
}

func (a *Assistant) listen(ctx context.Context) error {
	text, err := a.opt.Command.Listen(ctx)
	if errors.Is(err, io.EOF) {
		log.Info("Input closed")
		a.setState(Exit)
		return nil
	}
	if err != nil {
		return fmt.Errorf("capture command: %w", err)
	}

	switch {
	case text == "":
		a.say(ctx, NotHeard)
		a.setState(Idle)
	case a.opt.Wake != nil && a.opt.Wake.IsSleepCommand(text):
		a.goToSleep(ctx)
	default:
		log.Info("Heard", "text", text)
		a.pending = text
		a.setState(Dispatching)
	}
	return nil
}

// woken polls once while sleeping. Only the wake phrase or an explicit
// trigger ends standby.
func (a *Assistant) woken(ctx context.Context) bool {
	select {
	case <-a.trigger:
		return true
	default:
	}
	if a.opt.Wake == nil {
		return false
	}
	_, woke := a.opt.Wake.Poll(ctx)
	return woke
}

func (a *Assistant) goToSleep(ctx context.Context) {
	a.say(ctx, AckSleep)
	a.setState(Sleeping)
}

// Respond runs one turn without speaking: resolve, dispatch or fall back,
// style the reply and record exactly one interaction. exit reports the exit
// intent. Turns are serialised.
func (a *Assistant) Respond(ctx context.Context, text string) (reply string, exit bool) {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()

	id := uuid.NewString()
	start := time.Now()

	reply, tag, exit := a.answer(ctx, id, text)

	it := memory.Interaction{UserText: text, AssistantText: reply, Intent: string(tag), At: start}
	if err := a.opt.Memory.Record(ctx, it); err != nil {
		log.Warn("Failed to record interaction", "turn", id, "err", err)
	}

	a.turns++
	if a.opt.Personality != nil && a.turns%adjustEvery == 0 {
		mode := a.opt.Personality.AutoAdjust(a.opt.Memory.Context(ctx))
		log.Debug("Personality adjusted", "mode", mode)
	}

	a.publish("turn", map[string]any{
		"id":      id,
		"intent":  string(tag),
		"user":    text,
		"reply":   reply,
		"elapsed": time.Since(start).String(),
	})
	return reply, exit
}

// answer produces the styled reply for one turn. A panic anywhere below
// becomes the apology so the caller still records the turn.
func (a *Assistant) answer(ctx context.Context, id, text string) (reply string, tag intent.Tag, exit bool) {
	tag = intent.AIResponse
	defer func() {
		if p := recover(); p != nil {
			log.Error("Turn panicked", "turn", id, "text", text, "panic", p)
			reply, exit = skill.Apology, false
		}
	}()

	convo := a.opt.Memory.Context(ctx)
	in := a.opt.Resolver.Resolve(ctx, text, convo)
	tag = in.Tag
	log.Debug("Resolved", "turn", id, "intent", in.Tag, "confidence", in.Confidence, "params", in.Params)

	if in.Tag == intent.Exit {
		reply, exit = Goodbye, true
	} else {
		reply = a.dispatch(ctx, in, text, convo)
	}

	if a.opt.Personality != nil {
		reply = a.opt.Personality.Apply(reply)
	}
	return reply, tag, exit
}

// dispatch tries the skills, then the conversational fallback.
func (a *Assistant) dispatch(ctx context.Context, in intent.Intent, text, convo string) string {
	if reply, handled := a.opt.Skills.Dispatch(ctx, in, text); handled {
		return reply
	}
	switch {
	case a.opt.Fallback == nil:
		return UnknownCapability
	case a.opt.UseTools:
		return a.opt.Fallback.RespondWithTools(ctx, text, convo)
	default:
		return a.opt.Fallback.Respond(ctx, text, convo)
	}
}

// HandleCommand runs one turn and speaks the reply. The goodbye is always
// spoken synchronously, and Run stops after its current step.
func (a *Assistant) HandleCommand(ctx context.Context, text string) (string, bool) {
	reply, exit := a.Respond(ctx, text)
	if exit {
		a.speak(ctx, reply)
		a.exiting.Store(true)
	} else {
		a.say(ctx, reply)
	}
	return reply, exit
}

// say speaks text, detached from the caller when AsyncSpeech is set.
func (a *Assistant) say(ctx context.Context, text string) {
	if !a.opt.AsyncSpeech {
		a.speak(ctx, text)
		return
	}
	go a.speak(context.WithoutCancel(ctx), text)
}

func (a *Assistant) speak(ctx context.Context, text string) {
	if text == "" || a.opt.Speaker == nil {
		return
	}

	a.speechMu.Lock()
	defer a.speechMu.Unlock()

	if err := a.opt.Speaker.Speak(ctx, text); err != nil {
		log.Error("Failed to speak", "err", err)
	}
}

func (a *Assistant) publish(kind string, fields map[string]any) {
	if a.opt.Events != nil {
		a.opt.Events.Publish(kind, fields)
	}
}
