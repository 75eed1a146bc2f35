// Package match resolves voice-chat display names to in-match characters.
//
// The priority chain is strictly ordered and case-insensitive: self-identity,
// manual override, exact name, then two-way substring containment. The first
// hit wins; no hit yields an empty character id, which the display layer
// renders with a default avatar.
package match

import (
	"strings"

	"github.com/vaccie/valoverlay-discord/internal/domain/model"
)

// TagDelimiter separates a full vendor identity "Name#Tag" from its bare name.
const TagDelimiter = "#"

// Index maps lower-cased match names (full and bare) to character ids.
type Index map[string]string

// BuildIndex builds the name index from roster entries and a puuid -> full
// name map. Each named entry is keyed under both its full identity and the
// bare portion before the tag delimiter.
func BuildIndex(entries []model.RosterEntry, names map[string]string) Index {
	idx := make(Index, len(entries)*2)
	for _, e := range entries {
		full, ok := names[e.PlayerID]
		if !ok || full == "" {
			continue
		}
		lower := strings.ToLower(full)
		idx[lower] = e.CharacterID
		if bare, _, found := strings.Cut(lower, TagDelimiter); found && bare != "" {
			idx[bare] = e.CharacterID
		}
	}
	return idx
}

// Self identifies the local operator: their voice-platform id and the
// character resolved for them through the dedicated roster lookup.
type Self struct {
	PlatformID  string
	CharacterID string
}

// Match resolves one voice participant to a character id, or "" when no
// rule applies.
//
// The self-identity branch is authoritative: when the participant is the
// local operator the dedicated lookup's result is returned as-is, even when
// it is empty, and the name heuristics below never run for them.
func Match(p model.VoiceParticipant, idx Index, self Self, overrides map[string]string) string {
	if self.PlatformID != "" && p.PlatformID == self.PlatformID {
		return self.CharacterID
	}

	name := strings.ToLower(p.DisplayName)
	nick := strings.ToLower(p.Nickname)

	if id := matchOverride(name, idx, overrides); id != "" {
		return id
	}

	if id, ok := idx[name]; ok {
		return id
	}
	if nick != "" {
		if id, ok := idx[nick]; ok {
			return id
		}
	}

	return matchContains(name, nick, idx)
}

// matchOverride applies the operator-entered mapping: the override key must
// equal the display name, and its target is looked up exactly first, then by
// substring containment over the known match names.
func matchOverride(name string, idx Index, overrides map[string]string) string {
	var target string
	for key, val := range overrides {
		if strings.ToLower(key) == name {
			target = strings.ToLower(val)
			break
		}
	}
	if target == "" {
		return ""
	}
	if id, ok := idx[target]; ok {
		return id
	}
	for known, id := range idx {
		if strings.Contains(known, target) {
			return id
		}
	}
	return ""
}

// matchContains scans for two-way containment between the participant's
// names and the known match names.
func matchContains(name, nick string, idx Index) string {
	for known, id := range idx {
		if strings.Contains(known, name) || strings.Contains(name, known) {
			return id
		}
		if nick != "" && (strings.Contains(known, nick) || strings.Contains(nick, known)) {
			return id
		}
	}
	return ""
}
