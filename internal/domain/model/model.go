// Package model contains domain models passed between layers.
package model

// MatchPhase is the stage the local player currently occupies.
type MatchPhase int

const (
	PhaseUnknown MatchPhase = iota
	PhaseMenu
	PhasePreMatch
	PhaseInMatch
)

// String returns a stable label for logging and metrics.
func (p MatchPhase) String() string {
	switch p {
	case PhaseMenu:
		return "menu"
	case PhasePreMatch:
		return "pre_match"
	case PhaseInMatch:
		return "in_match"
	default:
		return "unknown"
	}
}

// EmptyCharacterID is the sentinel the vendor uses for an agent not yet
// locked. It must be treated as unresolved, not as an error.
const EmptyCharacterID = "00000000-0000-0000-0000-000000000000"

// RosterEntry is one match participant as returned by the roster fetch.
type RosterEntry struct {
	PlayerID    string // stable player identifier (puuid)
	CharacterID string // chosen character; may be the empty sentinel
}

// Resolved reports whether the entry carries a usable character identifier.
func (r RosterEntry) Resolved() bool {
	return r.CharacterID != "" && r.CharacterID != EmptyCharacterID
}

// VoiceParticipant is one voice-channel member at a point in time,
// supplied by the external voice client and treated as read-only input.
type VoiceParticipant struct {
	PlatformID  string
	DisplayName string
	Nickname    string
	Muted       bool
	Deafened    bool
	AvatarURL   string
}

// EnrichedParticipant is the per-cycle output unit handed to the sink.
type EnrichedParticipant struct {
	PlatformID   string `json:"id"`
	DisplayName  string `json:"username"`
	AvatarURL    string `json:"avatar,omitempty"`
	CharacterURL string `json:"agentImage,omitempty"`
	Muted        bool   `json:"isMuted"`
	Deafened     bool   `json:"isDeaf"`
}

// SpeakingEvent is a voice activity change forwarded to the sink
// independently of the polling cadence.
type SpeakingEvent struct {
	ParticipantID string `json:"userId"`
	Speaking      bool   `json:"isSpeaking"`
}
