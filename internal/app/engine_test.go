package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/vaccie/valoverlay-discord/internal/adapters/mq/queue"
	"github.com/vaccie/valoverlay-discord/internal/domain/model"
	"github.com/vaccie/valoverlay-discord/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeSession struct {
	mu           sync.Mutex
	ready        bool
	establishErr error
	establishes  int
}

func (f *fakeSession) Establish(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.establishes++
	if f.establishErr != nil {
		return f.establishErr
	}
	f.ready = true
	return nil
}

func (f *fakeSession) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

type fakeRoster struct {
	phase    model.MatchPhase
	entries  []model.RosterEntry
	selfChar string
	names    map[string]string

	fetchCalls atomic.Int32
	concurrent atomic.Int32
	maxOverlap atomic.Int32
	fetchDelay time.Duration
}

func (f *fakeRoster) ResolvePhase(ctx context.Context) model.MatchPhase { return f.phase }

func (f *fakeRoster) FetchRoster(ctx context.Context, phase model.MatchPhase) []model.RosterEntry {
	f.fetchCalls.Add(1)
	cur := f.concurrent.Add(1)
	for {
		max := f.maxOverlap.Load()
		if cur <= max || f.maxOverlap.CompareAndSwap(max, cur) {
			break
		}
	}
	if f.fetchDelay > 0 {
		time.Sleep(f.fetchDelay)
	}
	f.concurrent.Add(-1)
	return f.entries
}

func (f *fakeRoster) LocalCharacter(ctx context.Context, phase model.MatchPhase) string {
	return f.selfChar
}

func (f *fakeRoster) ResolveNames(ctx context.Context, ids []string) map[string]string {
	return f.names
}

type fakeIcons struct{ icons map[string]string }

func (f *fakeIcons) Ensure(ctx context.Context) error { return nil }
func (f *fakeIcons) Icon(id string) string            { return f.icons[id] }

type fakeVoice struct {
	roster    []model.VoiceParticipant
	err       error
	delay     time.Duration
	self      model.VoiceParticipant
	selfKnown bool
	events    chan model.SpeakingEvent
}

func (f *fakeVoice) CurrentRoster(ctx context.Context) ([]model.VoiceParticipant, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.roster, f.err
}

func (f *fakeVoice) Self() (model.VoiceParticipant, bool) { return f.self, f.selfKnown }

func (f *fakeVoice) Events() <-chan model.SpeakingEvent {
	if f.events == nil {
		f.events = make(chan model.SpeakingEvent)
	}
	return f.events
}

func (f *fakeVoice) Connected() bool { return true }

type fakeOverrides struct {
	m   map[string]string
	err error
}

func (f *fakeOverrides) Overrides() (map[string]string, error) { return f.m, f.err }

type fakeSink struct {
	mu       sync.Mutex
	states   [][]model.EnrichedParticipant
	speaking []model.SpeakingEvent
}

func (f *fakeSink) PublishState(p []model.EnrichedParticipant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, p)
}

func (f *fakeSink) PublishSpeaking(ev model.SpeakingEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speaking = append(f.speaking, ev)
}

func (f *fakeSink) stateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.states)
}

func (f *fakeSink) lastState() []model.EnrichedParticipant {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return nil
	}
	return f.states[len(f.states)-1]
}

func (f *fakeSink) speakingEvents() []model.SpeakingEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SpeakingEvent(nil), f.speaking...)
}

type deps struct {
	session   *fakeSession
	roster    *fakeRoster
	icons     *fakeIcons
	voice     *fakeVoice
	overrides *fakeOverrides
	sink      *fakeSink
}

func defaultDeps() *deps {
	return &deps{
		session:   &fakeSession{},
		roster:    &fakeRoster{},
		icons:     &fakeIcons{icons: map[string]string{}},
		voice:     &fakeVoice{},
		overrides: &fakeOverrides{},
		sink:      &fakeSink{},
	}
}

func (d *deps) engine(opts ...Option) *Engine {
	return New(d.session, d.roster, d.icons, d.voice, d.overrides, d.sink,
		queue.NewInMemoryQueue(queue.WithCapacity(8)), opts...)
}

func TestCycle(t *testing.T) {
	Convey("Given a correlation engine", t, func() {
		d := defaultDeps()
		ctx := context.Background()

		Convey("a failed handshake stays idle but still publishes the voice roster", func() {
			d.session.establishErr = errors.New("client not running")
			d.voice.roster = []model.VoiceParticipant{{PlatformID: "A", DisplayName: "Bob"}}
			e := d.engine()

			e.cycle(ctx)

			So(e.State(), ShouldEqual, StateIdle)
			// No match-side lookups without a session.
			So(d.roster.fetchCalls.Load(), ShouldEqual, 0)

			state := d.sink.lastState()
			So(state, ShouldHaveLength, 1)
			So(state[0].PlatformID, ShouldEqual, "A")
			So(state[0].DisplayName, ShouldEqual, "Bob")
			So(state[0].CharacterURL, ShouldBeEmpty)
		})

		Convey("an override routes a participant through the match name", func() {
			d.roster.phase = model.PhaseInMatch
			d.roster.entries = []model.RosterEntry{{PlayerID: "p1", CharacterID: "char-17"}}
			d.roster.names = map[string]string{"p1": "robert#9999"}
			d.icons.icons = map[string]string{"char-17": "https://cdn/agent-17.png"}
			d.voice.roster = []model.VoiceParticipant{{PlatformID: "A", DisplayName: "Bob"}}
			d.overrides.m = map[string]string{"bob": "robert"}
			e := d.engine()

			e.cycle(ctx)

			So(e.State(), ShouldEqual, StateActive)
			state := d.sink.lastState()
			So(state, ShouldHaveLength, 1)
			So(state[0].PlatformID, ShouldEqual, "A")
			So(state[0].CharacterURL, ShouldEqual, "https://cdn/agent-17.png")
		})

		Convey("a server nickname is displayed and drives the match", func() {
			d.roster.phase = model.PhaseInMatch
			d.roster.entries = []model.RosterEntry{{PlayerID: "p1", CharacterID: "char-17"}}
			d.roster.names = map[string]string{"p1": "Robert#9999"}
			d.icons.icons = map[string]string{"char-17": "https://cdn/agent-17.png"}
			d.voice.roster = []model.VoiceParticipant{
				{PlatformID: "A", DisplayName: "Bob", Nickname: "Robert"},
			}
			e := d.engine()

			e.cycle(ctx)

			state := d.sink.lastState()
			So(state, ShouldHaveLength, 1)
			So(state[0].DisplayName, ShouldEqual, "Robert")
			So(state[0].CharacterURL, ShouldEqual, "https://cdn/agent-17.png")
		})

		Convey("the local operator gets their own character regardless of name", func() {
			d.roster.phase = model.PhaseInMatch
			d.roster.entries = []model.RosterEntry{{PlayerID: "p1", CharacterID: "char-1"}}
			d.roster.selfChar = "char-9"
			d.icons.icons = map[string]string{"char-9": "https://cdn/agent-9.png"}
			d.voice.roster = []model.VoiceParticipant{{PlatformID: "me", DisplayName: "zzz-no-match"}}
			d.voice.self = model.VoiceParticipant{PlatformID: "me"}
			d.voice.selfKnown = true
			e := d.engine()

			e.cycle(ctx)

			state := d.sink.lastState()
			So(state, ShouldHaveLength, 1)
			So(state[0].CharacterURL, ShouldEqual, "https://cdn/agent-9.png")
		})

		Convey("an empty roster degrades the engine but still publishes", func() {
			d.voice.roster = []model.VoiceParticipant{{PlatformID: "A", DisplayName: "Bob"}}
			e := d.engine()

			e.cycle(ctx)

			So(e.State(), ShouldEqual, StateDegraded)
			state := d.sink.lastState()
			So(state, ShouldHaveLength, 1)
			So(state[0].CharacterURL, ShouldBeEmpty)

			Convey("and recovers to active once data returns", func() {
				d.roster.entries = []model.RosterEntry{{PlayerID: "p1", CharacterID: "char-1"}}
				e.cycle(ctx)
				So(e.State(), ShouldEqual, StateActive)
			})
		})

		Convey("a voice timeout skips the broadcast entirely", func() {
			d.voice.delay = 200 * time.Millisecond
			e := d.engine(WithVoiceTimeout(20 * time.Millisecond))

			e.cycle(ctx)

			So(d.sink.stateCount(), ShouldEqual, 0)
			So(d.roster.fetchCalls.Load(), ShouldEqual, 0)
		})

		Convey("a voice failure publishes an empty roster", func() {
			d.voice.err = errors.New("ipc closed")
			e := d.engine()

			e.cycle(ctx)

			So(d.sink.stateCount(), ShouldEqual, 1)
			So(d.sink.lastState(), ShouldBeEmpty)
		})
	})
}

func TestStartStop(t *testing.T) {
	d := defaultDeps()
	e := d.engine(WithPollInterval(10 * time.Millisecond))
	ctx := context.Background()

	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := e.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
	if err := e.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := e.Stop(ctx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("second Stop = %v, want ErrNotStarted", err)
	}
}

func TestCyclesNeverOverlap(t *testing.T) {
	d := defaultDeps()
	d.roster.fetchDelay = 30 * time.Millisecond
	e := d.engine(WithPollInterval(5 * time.Millisecond))
	ctx := context.Background()

	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if err := e.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if d.roster.fetchCalls.Load() == 0 {
		t.Fatal("expected at least one cycle to run")
	}
	if max := d.roster.maxOverlap.Load(); max > 1 {
		t.Errorf("observed %d concurrent roster fetches, want at most 1", max)
	}
}

func TestSpeakingEventsFlowToSink(t *testing.T) {
	d := defaultDeps()
	d.voice.events = make(chan model.SpeakingEvent, 1)
	e := d.engine(WithPollInterval(time.Hour))
	ctx := context.Background()

	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer e.Stop(ctx)

	d.voice.events <- model.SpeakingEvent{ParticipantID: "u1", Speaking: true}

	deadline := time.Now().Add(2 * time.Second)
	for {
		events := d.sink.speakingEvents()
		if len(events) == 1 {
			if events[0].ParticipantID != "u1" || !events[0].Speaking {
				t.Fatalf("unexpected event: %+v", events[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("speaking event never reached the sink")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
