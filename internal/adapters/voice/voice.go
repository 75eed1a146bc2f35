// Package voice defines the capability the correlation loop consumes from
// a voice-platform client. The engine does not care which platform backs
// it; anything that can report a channel roster and speaking activity fits.
package voice

import (
	"context"

	"github.com/vaccie/valoverlay-discord/internal/domain/model"
)

// Client reports the state of the voice channel the local user occupies.
type Client interface {
	// CurrentRoster returns the participants of the current voice
	// channel. An empty slice means the user is not in a channel.
	CurrentRoster(ctx context.Context) ([]model.VoiceParticipant, error)

	// Self identifies the local user among the participants, when known.
	Self() (model.VoiceParticipant, bool)

	// Events delivers speaking start/stop notifications. The channel is
	// closed when the client disconnects.
	Events() <-chan model.SpeakingEvent

	// Connected reports whether the platform connection is up.
	Connected() bool
}

// Noop is a Client with no platform behind it. It keeps the engine
// runnable when no voice integration is configured.
type Noop struct {
	events chan model.SpeakingEvent
}

// NewNoop creates a disconnected placeholder client.
func NewNoop() *Noop {
	return &Noop{events: make(chan model.SpeakingEvent)}
}

func (n *Noop) CurrentRoster(ctx context.Context) ([]model.VoiceParticipant, error) {
	return nil, nil
}

func (n *Noop) Self() (model.VoiceParticipant, bool) {
	return model.VoiceParticipant{}, false
}

func (n *Noop) Events() <-chan model.SpeakingEvent {
	return n.events
}

func (n *Noop) Connected() bool {
	return false
}
