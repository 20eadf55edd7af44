package assistant

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/intent"
	"jarvis/internal/memory"
	"jarvis/internal/personality"
	"jarvis/internal/skill"
	"jarvis/internal/wake"
)

// script returns its lines in order, then "" (or end when set).
type script struct {
	mu    sync.Mutex
	lines []any
	end   error
}

func lines(items ...any) *script { return &script{lines: items} }

func (s *script) Listen(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.lines) == 0 {
		return "", s.end
	}
	next := s.lines[0]
	s.lines = s.lines[1:]
	if err, ok := next.(error); ok {
		return "", err
	}
	return next.(string), nil
}

type speaker struct {
	mu    sync.Mutex
	spoke []string
}

func (s *speaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoke = append(s.spoke, text)
	return nil
}

func (s *speaker) said() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoke...)
}

type chime struct{ played int }

func (c *chime) Play(context.Context) error {
	c.played++
	return nil
}

// fixed answers the tags it is given with a constant reply.
type fixed struct {
	name  string
	tags  []intent.Tag
	reply string
}

func (f fixed) Name() string { return f.name }

func (f fixed) CanHandle(tag intent.Tag, _ intent.Params) bool {
	for _, t := range f.tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (f fixed) Handle(context.Context, intent.Tag, intent.Params) (string, error) {
	return f.reply, nil
}

type responder struct {
	plain, tools int
}

func (r *responder) Respond(context.Context, string, string) string {
	r.plain++
	return "Plain answer."
}

func (r *responder) RespondWithTools(context.Context, string, string) string {
	r.tools++
	return "Tool answer."
}

type harness struct {
	a      *Assistant
	wake   *script
	cmd    *script
	spk    *speaker
	chime  *chime
	window *memory.Window
}

func newHarness(t *testing.T, opt Options) *harness {
	t.Helper()

	h := &harness{
		wake:   lines(),
		cmd:    lines(),
		spk:    &speaker{},
		chime:  &chime{},
		window: memory.NewWindow(10),
	}

	reg := skill.NewRegistry()
	reg.Register(fixed{name: "clock", tags: []intent.Tag{intent.Time}, reply: "It's noon."})

	if opt.Wake == nil && !opt.SkipWake {
		opt.Wake = wake.New(h.wake, wake.Options{})
	}
	if opt.Command == nil {
		opt.Command = h.cmd
	}
	opt.Speaker = h.spk
	opt.Chime = h.chime
	if opt.Resolver == nil {
		opt.Resolver = intent.NewKeywordResolver(nil)
	}
	opt.Skills = reg
	opt.Memory = memory.New(h.window, nil, memory.Options{})
	if opt.RecoverDelay == 0 {
		opt.RecoverDelay = time.Millisecond
	}

	a, err := New(opt)
	require.NoError(t, err)
	h.a = a
	return h
}

func (h *harness) step(t *testing.T, want State) {
	t.Helper()
	require.NoError(t, h.a.Step(context.Background()))
	require.Equal(t, want, h.a.State())
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestTimeScenarioRecordsOnce(t *testing.T) {
	h := newHarness(t, Options{})

	reply, exit := h.a.Respond(context.Background(), "what time is it")
	assert.False(t, exit)
	assert.Equal(t, "It's noon.", reply)

	entries := h.window.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "what time is it", entries[0].UserText)
	assert.Equal(t, "It's noon.", entries[0].AssistantText)
	assert.Equal(t, string(intent.Time), entries[0].Intent)
}

func TestUnknownCapability(t *testing.T) {
	h := newHarness(t, Options{})

	reply, _ := h.a.Respond(context.Background(), "explain gravity")
	assert.Equal(t, UnknownCapability, reply)
	assert.Len(t, h.window.Entries(), 1)
}

func TestFallbackSelection(t *testing.T) {
	r := &responder{}
	h := newHarness(t, Options{Fallback: r})

	reply, _ := h.a.Respond(context.Background(), "explain gravity")
	assert.Equal(t, "Plain answer.", reply)

	h.a.opt.UseTools = true
	reply, _ = h.a.Respond(context.Background(), "explain gravity")
	assert.Equal(t, "Tool answer.", reply)
	assert.Equal(t, 1, r.plain)
	assert.Equal(t, 1, r.tools)

	// A handled intent never reaches the fallback.
	h.a.Respond(context.Background(), "what time is it")
	assert.Equal(t, 2, r.plain+r.tools)
}

func TestWakeListenDispatch(t *testing.T) {
	h := newHarness(t, Options{})
	h.wake.lines = []any{"hello there", "hey jarvis"}
	h.cmd.lines = []any{"what time is it"}

	h.step(t, Idle)
	h.step(t, Awake)
	h.step(t, Listening)
	assert.Equal(t, 1, h.chime.played)
	h.step(t, Dispatching)
	h.step(t, Idle)

	assert.Equal(t, []string{AckWake, "It's noon."}, h.spk.said())
	assert.Len(t, h.window.Entries(), 1)
}

func TestListenTimeoutIsNoOp(t *testing.T) {
	h := newHarness(t, Options{})
	h.a.setState(Listening)

	h.step(t, Idle)
	assert.Equal(t, []string{NotHeard}, h.spk.said())
	assert.Empty(t, h.window.Entries())
}

func TestSleepAndResume(t *testing.T) {
	h := newHarness(t, Options{})
	h.wake.lines = []any{"go to sleep", "what's up", "jarvis"}

	h.step(t, Sleeping)
	h.step(t, Sleeping)
	h.step(t, Listening)

	assert.Equal(t, []string{AckSleep, AckResume}, h.spk.said())
	assert.Empty(t, h.window.Entries())
}

func TestSleepCommandWhileListening(t *testing.T) {
	h := newHarness(t, Options{})
	h.a.setState(Listening)
	h.cmd.lines = []any{"please stop listening"}

	h.step(t, Sleeping)
	assert.Empty(t, h.window.Entries())
}

func TestTriggerAndSleep(t *testing.T) {
	h := newHarness(t, Options{})

	h.a.Trigger()
	h.a.Trigger()
	h.step(t, Awake)

	h.a.setState(Idle)
	h.a.Sleep()
	h.step(t, Sleeping)

	h.a.Trigger()
	h.step(t, Listening)
}

func TestRunTextModeUntilExit(t *testing.T) {
	h := newHarness(t, Options{SkipWake: true})
	h.cmd.lines = []any{"what time is it", "goodbye"}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, h.a.Run(ctx))
	assert.Equal(t, Exit, h.a.State())
	assert.Equal(t, []string{"It's noon.", Goodbye}, h.spk.said())

	entries := h.window.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, string(intent.Exit), entries[1].Intent)
}

func TestRunRecoversFromStepErrors(t *testing.T) {
	h := newHarness(t, Options{SkipWake: true})
	h.cmd.lines = []any{errors.New("mic unplugged"), "bye"}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, h.a.Run(ctx))
	assert.Equal(t, []string{Goodbye}, h.spk.said())
}

func TestRunStopsOnEOF(t *testing.T) {
	h := newHarness(t, Options{SkipWake: true})
	h.cmd.end = io.EOF

	require.NoError(t, h.a.Run(context.Background()))
	assert.Equal(t, Exit, h.a.State())
}

func TestRunHonoursCancel(t *testing.T) {
	h := newHarness(t, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, h.a.Run(ctx), context.DeadlineExceeded)
}

type panicky struct{}

func (panicky) Resolve(context.Context, string, string) intent.Intent { panic("boom") }

func TestTurnPanicBecomesApology(t *testing.T) {
	h := newHarness(t, Options{Resolver: panicky{}})

	reply, exit := h.a.Respond(context.Background(), "anything")
	assert.False(t, exit)
	assert.Equal(t, skill.Apology, reply)

	entries := h.window.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "anything", entries[0].UserText)
	assert.Equal(t, skill.Apology, entries[0].AssistantText)
	assert.Equal(t, string(intent.AIResponse), entries[0].Intent)
}

type slow struct {
	active, peak atomic.Int32
}

func (s *slow) Resolve(_ context.Context, text, _ string) intent.Intent {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return intent.Intent{Tag: intent.Time, Confidence: 1}
}

func TestTurnsAreSerialised(t *testing.T) {
	r := &slow{}
	h := newHarness(t, Options{Resolver: r})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.a.Respond(context.Background(), "what time is it")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), r.peak.Load())
	assert.Len(t, h.window.Entries(), 8)
}

type styler struct {
	adjusts int
}

func (s *styler) Apply(text string) string { return text + " Sir." }

func (s *styler) AutoAdjust(string) personality.Mode {
	s.adjusts++
	return personality.Normal
}

func TestPersonalityAppliedAndAdjusted(t *testing.T) {
	st := &styler{}
	h := newHarness(t, Options{Personality: st})

	for range 10 {
		reply, _ := h.a.Respond(context.Background(), "what time is it")
		assert.Equal(t, "It's noon. Sir.", reply)
	}
	assert.Equal(t, 1, st.adjusts)
}

type dueOnce struct {
	mu    sync.Mutex
	given bool
}

func (d *dueOnce) TakeDueReminders(context.Context, time.Time) ([]memory.Reminder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.given {
		return nil, nil
	}
	d.given = true
	return []memory.Reminder{{ID: 1, Task: "stretch"}}, nil
}

func TestRemindersSpokenWhenIdle(t *testing.T) {
	h := newHarness(t, Options{Reminders: &dueOnce{}, ReminderInterval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.a.watchReminders(ctx)

	require.Eventually(t, func() bool { return len(h.a.notices) == 1 }, 2*time.Second, time.Millisecond)

	h.step(t, Idle)
	assert.Equal(t, []string{"Reminder: stretch."}, h.spk.said())
}

type sink struct {
	mu    sync.Mutex
	kinds []string
}

func (s *sink) Publish(kind string, _ map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, kind)
}

func TestEvents(t *testing.T) {
	ev := &sink{}
	h := newHarness(t, Options{Events: ev})
	h.wake.lines = []any{"jarvis"}

	h.step(t, Awake)
	h.a.Respond(context.Background(), "what time is it")

	assert.Equal(t, []string{"state", "turn"}, ev.kinds)
}

func TestRespondWithoutAudio(t *testing.T) {
	reg := skill.NewRegistry()
	a, err := New(Options{
		Resolver: intent.NewKeywordResolver(nil),
		Skills:   reg,
		Memory:   memory.New(nil, nil, memory.Options{}),
	})
	require.NoError(t, err)

	reply, _ := a.Respond(context.Background(), "tell me a joke")
	assert.Equal(t, UnknownCapability, reply)
	assert.Error(t, a.Run(context.Background()))
}

type overlapSpeaker struct {
	active, peak atomic.Int32
}

func (s *overlapSpeaker) Speak(context.Context, string) error {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	return nil
}

func TestSpeechNeverOverlaps(t *testing.T) {
	h := newHarness(t, Options{})
	spk := &overlapSpeaker{}
	h.a.opt.Speaker = spk

	var wg sync.WaitGroup
	for range 6 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.a.HandleCommand(context.Background(), "what time is it")
		}()
		go func() {
			defer wg.Done()
			h.a.say(context.Background(), AckWake)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), spk.peak.Load())
}

func TestExitFromControlStopsRun(t *testing.T) {
	h := newHarness(t, Options{})

	done := make(chan error, 1)
	go func() { done <- h.a.Run(context.Background()) }()

	reply, exit := h.a.HandleCommand(context.Background(), "goodbye")
	assert.True(t, exit)
	assert.Equal(t, Goodbye, reply)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after exit")
	}
	assert.Equal(t, Exit, h.a.State())
	assert.Contains(t, h.spk.said(), Goodbye)
}
