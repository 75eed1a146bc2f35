// Package app drives the correlation loop: once per tick it pulls the
// voice roster and the match roster, resolves every participant to a
// character and hands the enriched result to the broadcast sink.
package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vaccie/valoverlay-discord/internal/adapters/mq/queue"
	"github.com/vaccie/valoverlay-discord/internal/adapters/voice"
	"github.com/vaccie/valoverlay-discord/internal/domain/match"
	"github.com/vaccie/valoverlay-discord/internal/domain/model"
	"github.com/vaccie/valoverlay-discord/pkg/logger"
	"github.com/vaccie/valoverlay-discord/pkg/metrics"
)

// Engine states. Idle re-attempts the session handshake every tick;
// Active never falls back to Idle, only to Degraded when a cycle yields
// no roster data.
const (
	StateIdle     = "idle"
	StateActive   = "active"
	StateDegraded = "degraded"
)

const (
	defaultPollInterval = time.Second
	defaultVoiceTimeout = 2 * time.Second
)

// SessionSource is the credential store the engine drives.
type SessionSource interface {
	Establish(ctx context.Context) error
	Ready() bool
}

// RosterSource resolves the match side of a cycle.
type RosterSource interface {
	ResolvePhase(ctx context.Context) model.MatchPhase
	FetchRoster(ctx context.Context, phase model.MatchPhase) []model.RosterEntry
	LocalCharacter(ctx context.Context, phase model.MatchPhase) string
	ResolveNames(ctx context.Context, playerIDs []string) map[string]string
}

// IconSource maps character ids to display-icon URLs.
type IconSource interface {
	Ensure(ctx context.Context) error
	Icon(characterID string) string
}

// OverrideSource supplies the operator-entered name mapping.
type OverrideSource interface {
	Overrides() (map[string]string, error)
}

// Sink receives the engine's output. Push-only.
type Sink interface {
	PublishState(participants []model.EnrichedParticipant)
	PublishSpeaking(ev model.SpeakingEvent)
}

// Engine is the correlation loop service.
type Engine struct {
	mu      sync.RWMutex
	started bool
	stopCh  chan struct{}
	state   string

	session   SessionSource
	roster    RosterSource
	icons     IconSource
	voice     voice.Client
	overrides OverrideSource
	sink      Sink
	speaking  queue.Queue

	pollInterval time.Duration
	voiceTimeout time.Duration

	inFlight atomic.Bool
	log      logger.Logger
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithPollInterval sets the cycle cadence.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithVoiceTimeout bounds the per-cycle voice roster fetch.
func WithVoiceTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.voiceTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// New constructs the engine around its collaborators.
func New(
	session SessionSource,
	roster RosterSource,
	icons IconSource,
	vc voice.Client,
	overrides OverrideSource,
	sink Sink,
	speaking queue.Queue,
	opts ...Option,
) *Engine {
	e := &Engine{
		session:      session,
		roster:       roster,
		icons:        icons,
		voice:        vc,
		overrides:    overrides,
		sink:         sink,
		speaking:     speaking,
		pollInterval: defaultPollInterval,
		voiceTimeout: defaultVoiceTimeout,
		state:        StateIdle,
		log:          logger.Named("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	metrics.UpdateEngineState(e.state)
	return e
}

// State returns the engine's current state label.
func (e *Engine) State() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// SessionReady reports whether a game-client session is established.
func (e *Engine) SessionReady() bool {
	return e.session.Ready()
}

// Start launches the ticker loop and the speaking-event forwarders.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.started = true
	e.stopCh = make(chan struct{})
	stop := e.stopCh
	e.mu.Unlock()

	e.log.Info(ctx, "engine starting",
		logger.Any("poll_interval", e.pollInterval),
		logger.Any("voice_timeout", e.voiceTimeout),
	)

	go e.run(ctx, stop)
	go e.forwardSpeaking(ctx, stop)
	go e.publishSpeaking(ctx)

	return nil
}

// Stop halts the loop. In-flight HTTP calls are abandoned via their own
// timeouts; session state is never left half-written.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return ErrNotStarted
	}
	e.started = false
	close(e.stopCh)
	_ = e.speaking.Close()
	e.log.Info(ctx, "engine stopped")
	return nil
}

func (e *Engine) run(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if !e.inFlight.CompareAndSwap(false, true) {
				metrics.RecordCycleSkipped()
				continue
			}
			e.cycle(ctx)
			e.inFlight.Store(false)
		}
	}
}

// forwardSpeaking moves voice activity into the bounded queue. A full
// queue drops the event rather than blocking the producer.
func (e *Engine) forwardSpeaking(ctx context.Context, stop <-chan struct{}) {
	events := e.voice.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.speaking.Enqueue(ctx, ev)
		}
	}
}

func (e *Engine) publishSpeaking(ctx context.Context) {
	for ev := range e.speaking.Dequeue(ctx) {
		e.sink.PublishSpeaking(ev)
	}
}

func (e *Engine) setState(state string) {
	e.mu.Lock()
	changed := e.state != state
	e.state = state
	e.mu.Unlock()
	if changed {
		metrics.UpdateEngineState(state)
		e.log.Info(context.Background(), "engine state changed", logger.String("state", state))
	}
}

// cycle runs one full correlation pass. Nothing in here is fatal: every
// failure degrades to unresolved characters or a skipped broadcast.
func (e *Engine) cycle(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.RecordCycle(float64(time.Since(start).Milliseconds()))
	}()

	sessionUp := e.session.Ready()
	if !sessionUp {
		if err := e.session.Establish(ctx); err != nil {
			// The game client may simply not be running. The voice
			// roster is still published below, with no characters
			// resolved, so the overlay never goes blank.
			e.setState(StateIdle)
			e.log.Debug(ctx, "session handshake failed", logger.Error(err))
		} else {
			if err := e.icons.Ensure(ctx); err != nil {
				e.log.Warn(ctx, "icon table fetch failed", logger.Error(err))
			}
			e.setState(StateActive)
			sessionUp = true
		}
	}

	participants, ok := e.voiceRoster(ctx)
	if !ok {
		// Timeout: keep the previously displayed state.
		return
	}

	phase := model.PhaseUnknown

	var (
		entries  []model.RosterEntry
		selfChar string
		names    map[string]string
	)
	if sessionUp {
		phase = e.roster.ResolvePhase(ctx)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			entries = e.roster.FetchRoster(ctx, phase)
		}()
		go func() {
			defer wg.Done()
			selfChar = e.roster.LocalCharacter(ctx, phase)
		}()
		wg.Wait()

		if len(entries) == 0 {
			e.setState(StateDegraded)
		} else {
			e.setState(StateActive)
		}

		ids := make([]string, 0, len(entries))
		for _, entry := range entries {
			ids = append(ids, entry.PlayerID)
		}
		names = e.roster.ResolveNames(ctx, ids)
	}

	metrics.UpdateRosterSize(len(entries))
	idx := match.BuildIndex(entries, names)

	// Read once per cycle, never mid-cycle.
	overrides, err := e.overrides.Overrides()
	if err != nil {
		e.log.Warn(ctx, "override read failed", logger.Error(err))
		overrides = nil
	}

	self := match.Self{CharacterID: selfChar}
	if sp, known := e.voice.Self(); known {
		self.PlatformID = sp.PlatformID
	}

	matched := 0
	out := make([]model.EnrichedParticipant, 0, len(participants))
	for _, p := range participants {
		// A server nickname takes precedence over the account name.
		displayName := p.DisplayName
		if p.Nickname != "" {
			displayName = p.Nickname
		}
		enriched := model.EnrichedParticipant{
			PlatformID:  p.PlatformID,
			DisplayName: displayName,
			AvatarURL:   p.AvatarURL,
			Muted:       p.Muted,
			Deafened:    p.Deafened,
		}
		if id := match.Match(p, idx, self, overrides); id != "" {
			if icon := e.icons.Icon(id); icon != "" {
				enriched.CharacterURL = icon
				matched++
			}
		}
		out = append(out, enriched)
	}
	metrics.UpdateMatchedParticipants(matched)

	e.sink.PublishState(out)
	e.log.Debug(ctx, "cycle complete",
		logger.String("phase", phase.String()),
		logger.Int("voice", len(participants)),
		logger.Int("roster", len(entries)),
		logger.Int("matched", matched),
	)
}

// voiceRoster fetches the voice channel roster under the configured
// bound. The second return is false when the fetch timed out and the
// cycle's broadcast must be skipped.
func (e *Engine) voiceRoster(ctx context.Context) ([]model.VoiceParticipant, bool) {
	vctx, cancel := context.WithTimeout(ctx, e.voiceTimeout)
	defer cancel()

	type result struct {
		participants []model.VoiceParticipant
		err          error
	}
	ch := make(chan result, 1)
	go func() {
		p, err := e.voice.CurrentRoster(vctx)
		ch <- result{participants: p, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			// A failed voice fetch means no participants this cycle.
			e.log.Debug(ctx, "voice roster failed", logger.Error(res.err))
			return nil, true
		}
		return res.participants, true
	case <-vctx.Done():
		metrics.RecordVoiceTimeout()
		e.log.Warn(ctx, "voice roster timed out")
		return nil, false
	}
}
